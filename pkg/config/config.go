package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Supabase/hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	Auth AuthConfig

	Redis RedisConfig

	// RabbitMQURL is optional. When empty, confirmed orders are not published.
	RabbitMQURL         string
	OrderConfirmedQueue string

	Payment PaymentConfig

	Cart CartConfig

	Currency string

	Log LogConfig

	// AllowedOrigins is a comma-separated allowlist of browser origins for the
	// marketing site, storefront and both dashboards.
	AllowedOrigins []string

	// SupportEmail is returned with the client dashboard (optional).
	SupportEmail string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type AuthConfig struct {
	// JWTSecret is the Supabase project JWT secret used to verify access tokens.
	JWTSecret string
	Audience  string
	AdminRole string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// RequestEventsChannel carries service request change events between API instances.
	RequestEventsChannel string
}

// Enabled reports whether a Redis address was configured explicitly.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type PaymentConfig struct {
	MercadoPagoAccessToken string
	Mock                   bool
	// Timeout bounds a single payment initiation; a widget that never reports back
	// would otherwise hold the checkout open forever.
	Timeout time.Duration
}

type CartConfig struct {
	Storage string // memory | file | redis
	Dir     string
	TTL     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func (c Config) IsProd() bool { return c.AppEnv == "prod" }

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "agency"),
			User:     env("DB_USER", "agency"),
			Password: env("DB_PASSWORD", "agency"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
			Audience:  env("SUPABASE_JWT_AUDIENCE", "authenticated"),
			AdminRole: env("ADMIN_ROLE", "admin"),
		},
		Redis: RedisConfig{
			Addr:                 os.Getenv("REDIS_ADDR"),
			Password:             os.Getenv("REDIS_PASSWORD"),
			DB:                   envInt("REDIS_DB", 0),
			RequestEventsChannel: env("REQUEST_EVENTS_CHANNEL", "service_requests.changes"),
		},
		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		OrderConfirmedQueue: env("ORDER_CONFIRMED_QUEUE", "order.confirmed"),
		Payment: PaymentConfig{
			MercadoPagoAccessToken: os.Getenv("MERCADOPAGO_ACCESS_TOKEN"),
			Mock:                   envBool("PAYMENT_GATEWAY_MOCK", false),
			Timeout:                envDuration("PAYMENT_TIMEOUT", 2*time.Minute),
		},
		Cart: CartConfig{
			Storage: env("CART_STORAGE", "memory"),
			Dir:     env("CART_DIR", "./data/carts"),
			TTL:     envDuration("CART_TTL", 30*24*time.Hour),
		},
		Currency: env("CURRENCY", "USD"),
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "text"),
		},
		AllowedOrigins: envList("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"),
		SupportEmail:   os.Getenv("SUPPORT_EMAIL"),
	}
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on", "mock":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
