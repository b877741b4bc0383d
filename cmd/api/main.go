package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shoplane/shoplane-backend/api/routes"
	"github.com/shoplane/shoplane-backend/internal/cart"
	"github.com/shoplane/shoplane-backend/internal/checkout"
	"github.com/shoplane/shoplane-backend/internal/finance"
	"github.com/shoplane/shoplane-backend/internal/gateway"
	"github.com/shoplane/shoplane-backend/internal/orders"
	"github.com/shoplane/shoplane-backend/internal/payments"
	"github.com/shoplane/shoplane-backend/internal/promo"
	"github.com/shoplane/shoplane-backend/internal/stock"
	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/metrics"
	"github.com/shoplane/shoplane-backend/pkg/migrate"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/idempotency"
	"github.com/shoplane/shoplane-backend/pkg/redis"
	"github.com/shoplane/shoplane-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	allowlist, err := security.NewIPAllowlist(strings.Join(cfg.Gateway.AllowedNets, ","))
	if err != nil {
		logg.Error(context.Background(), "failed to parse gateway allowlist", err)
		os.Exit(1)
	}

	eventGuard, err := idempotency.NewManager(redisClient, cfg.Gateway.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create event guard", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	stockService, err := stock.NewService(gormDB, stock.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	promoService, err := promo.NewService(promo.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create promo service", err)
		os.Exit(1)
	}

	financeService, err := finance.NewService(finance.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create finance service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersService, err := orders.NewService(ordersRepo, stockService, outboxService, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(gormDB)
	cartService, err := cart.NewService(cartRepo, stock.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		dbClient,
		cartRepo,
		ordersRepo,
		stockService,
		promoService,
		checkout.NewFlatRateQuoter(cfg.Shipping),
		gatewayClient,
		outboxService,
		cfg.Checkout,
		cfg.Gateway,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(gormDB),
		Orders:   ordersService,
		Ledger:   financeService,
		Promos:   promoService,
		Gateway:  gatewayClient,
		Guard:    eventGuard,
		Events:   outboxService,
		TxRunner: dbClient,
		Logger:   logg,
		Currency: cfg.Gateway.Currency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:           cfg,
			Logger:           logg,
			DB:               dbClient,
			Redis:            redisClient,
			Carts:            cartService,
			Checkout:         checkoutService,
			Orders:           ordersService,
			Payments:         paymentsService,
			Promos:           promoService,
			Stock:            stockService,
			Finance:          financeService,
			WebhookAllowlist: allowlist,
			WebhookMetrics:   webhookMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
