package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Admin        AdminConfig
	Checkout     CheckoutConfig
	Reaper       ReaperConfig
	Shipping     ShippingConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPLANE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPLANE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPLANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPLANE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"SHOPLANE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPLANE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPLANE_DB_DSN"`
	Driver string `envconfig:"SHOPLANE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPLANE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPLANE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPLANE_DB_USER"`
	LegacyPassword string `envconfig:"SHOPLANE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPLANE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPLANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPLANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPLANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPLANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPLANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPLANE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPLANE_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPLANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPLANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPLANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPLANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPLANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPLANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPLANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig carries the payment gateway credentials and webhook trust
// anchors. AllowedNets holds CIDR prefixes published by the gateway; webhook
// calls from outside them must present a valid HMAC signature.
type GatewayConfig struct {
	BaseURL        string        `envconfig:"SHOPLANE_GATEWAY_BASE_URL" required:"true"`
	ShopID         string        `envconfig:"SHOPLANE_GATEWAY_SHOP_ID" required:"true"`
	SecretKey      string        `envconfig:"SHOPLANE_GATEWAY_SECRET_KEY" required:"true"`
	WebhookSecret  string        `envconfig:"SHOPLANE_GATEWAY_WEBHOOK_SECRET" required:"true"`
	AllowedNets    []string      `envconfig:"SHOPLANE_GATEWAY_ALLOWED_NETS" default:"185.71.76.0/27,185.71.77.0/27,77.75.153.0/25,77.75.156.11/32,77.75.156.35/32"`
	Currency       string        `envconfig:"SHOPLANE_GATEWAY_CURRENCY" default:"RUB"`
	RequestTimeout time.Duration `envconfig:"SHOPLANE_GATEWAY_REQUEST_TIMEOUT" default:"10s"`
	ReturnURL      string        `envconfig:"SHOPLANE_GATEWAY_RETURN_URL" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"SHOPLANE_GATEWAY_IDEMPOTENCY_TTL" default:"168h"`
}

type AdminConfig struct {
	Token string `envconfig:"SHOPLANE_ADMIN_TOKEN" required:"true"`
}

type CheckoutConfig struct {
	OrderTTL time.Duration `envconfig:"SHOPLANE_CHECKOUT_ORDER_TTL" default:"30m"`
}

type ReaperConfig struct {
	Interval  time.Duration `envconfig:"SHOPLANE_REAPER_INTERVAL" default:"60s"`
	BatchSize int           `envconfig:"SHOPLANE_REAPER_BATCH_SIZE" default:"100"`
}

type ShippingConfig struct {
	FlatRateCents int `envconfig:"SHOPLANE_SHIPPING_FLAT_RATE_CENTS" default:"500"`
	FreeOverCents int `envconfig:"SHOPLANE_SHIPPING_FREE_OVER_CENTS" default:"0"`
}

type OutboxConfig struct {
	RetentionDays int `envconfig:"SHOPLANE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPLANE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPLANE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
