package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shoplane/shoplane-backend/api/controllers"
	webhookcontrollers "github.com/shoplane/shoplane-backend/api/controllers/webhooks"
	"github.com/shoplane/shoplane-backend/api/middleware"
	cartsvc "github.com/shoplane/shoplane-backend/internal/cart"
	checkoutsvc "github.com/shoplane/shoplane-backend/internal/checkout"
	financesvc "github.com/shoplane/shoplane-backend/internal/finance"
	orderssvc "github.com/shoplane/shoplane-backend/internal/orders"
	paymentssvc "github.com/shoplane/shoplane-backend/internal/payments"
	promosvc "github.com/shoplane/shoplane-backend/internal/promo"
	stocksvc "github.com/shoplane/shoplane-backend/internal/stock"
	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/metrics"
	"github.com/shoplane/shoplane-backend/pkg/redis"
	"github.com/shoplane/shoplane-backend/pkg/security"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               db.Pinger
	Redis            *redis.Client
	Carts            cartsvc.Service
	Checkout         checkoutsvc.Service
	Orders           orderssvc.Service
	Payments         paymentssvc.Service
	Promos           promosvc.Service
	Stock            stocksvc.Service
	Finance          financesvc.Service
	WebhookAllowlist *security.IPAllowlist
	WebhookMetrics   *metrics.WebhookMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(
			p.Payments,
			p.WebhookAllowlist,
			cfg.Gateway.WebhookSecret,
			p.WebhookMetrics,
			logg,
		))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(p.Carts, logg))
			r.Put("/", controllers.CartSetItem(p.Carts, logg))
			r.Delete("/", controllers.CartClear(p.Carts, logg))
			r.Delete("/{skuId}", controllers.CartRemoveItem(p.Carts, logg))
		})

		r.Post("/checkout", controllers.Checkout(p.Checkout, logg))
		r.Post("/promos/preview", controllers.PromoPreview(p.Promos, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(p.Orders, logg))
			r.Post("/{orderId}/payment/resolve", controllers.PaymentResolve(p.Payments, p.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(cfg.Admin.Token, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.AdminOrderDetail(p.Orders, logg))
			r.Post("/{orderId}/advance", controllers.AdminOrderAdvance(p.Orders, logg))
			r.Post("/{orderId}/refund", controllers.AdminRefund(p.Payments, logg))
		})

		r.Route("/promos", func(r chi.Router) {
			r.Get("/", controllers.AdminPromoList(p.Promos, logg))
			r.Post("/", controllers.AdminPromoCreate(p.Promos, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.AdminStockList(p.Stock, logg))
			r.Get("/{skuId}", controllers.AdminStockGet(p.Stock, logg))
			r.Post("/{skuId}/adjust", controllers.AdminStockAdjust(p.Stock, logg))
		})

		r.Route("/finance", func(r chi.Router) {
			r.Get("/balance", controllers.AdminFinanceBalance(p.Finance, logg))
			r.Get("/transactions", controllers.AdminFinanceList(p.Finance, logg))
			r.Get("/orders/{orderId}", controllers.AdminFinanceByOrder(p.Finance, logg))
		})
	})

	return r
}
