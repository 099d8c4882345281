package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Read-failure policies for balance and usage reads.
const (
	ReadPolicyFailOpen   = "fail_open"
	ReadPolicyFailClosed = "fail_closed"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Identity provider (shared HS256 secret)
	JWTSecret string

	// Redis (balance cache + batch lock)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Stripe
	StripeSecretKey       string
	StripeWebhookSecret   string
	StripePriceStarter    string
	StripePricePro        string
	StripePriceEnterprise string

	// Event broker
	AMQPURL      string
	AMQPExchange string

	// Generative-audio provider
	StudioAPIURL         string
	StudioAPIKey         string
	StudioCallbackSecret string
	StudioTimeout        time.Duration

	// Quota
	QuotaReadPolicy string

	// Admin
	AdminEmails    string
	AdminUserIDs   string
	AdminTokenHash string

	// Server
	Port        string
	CORSOrigins string
	SentryDSN   string
	AppEnv      string

	// Batch
	GrantSchedule    string
	LogRetentionDays int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "studio_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceStarter:    getEnv("STRIPE_PRICE_STARTER", ""),
		StripePricePro:        getEnv("STRIPE_PRICE_PRO", ""),
		StripePriceEnterprise: getEnv("STRIPE_PRICE_ENTERPRISE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "studio.billing"),

		StudioAPIURL:         getEnv("STUDIO_API_URL", ""),
		StudioAPIKey:         getEnv("STUDIO_API_KEY", ""),
		StudioCallbackSecret: getEnv("STUDIO_CALLBACK_SECRET", ""),
		StudioTimeout:        parseDuration(getEnv("STUDIO_TIMEOUT", "60s"), 60*time.Second),

		QuotaReadPolicy: normalizeReadPolicy(getEnv("QUOTA_READ_POLICY", ReadPolicyFailOpen)),

		AdminEmails:    getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs:   getEnv("ADMIN_USER_IDS", ""),
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		AppEnv:      getEnv("APP_ENV", "development"),

		GrantSchedule:    getEnv("GRANT_SCHEDULE", "0 0 1 * *"),
		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 30),
	}
}

// Validate reports the first missing setting the HTTP server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.DBPassword == "" {
		return errors.New("DB_PASSWORD environment variable is required")
	}
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY environment variable is required")
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// FailOpen reports whether store read errors are treated as zero usage.
func (c *Config) FailOpen() bool {
	return c.QuotaReadPolicy != ReadPolicyFailClosed
}

// PlanForPrice maps a Stripe price id to a plan name, or "" when unknown.
func (c *Config) PlanForPrice(priceID string) string {
	if priceID == "" {
		return ""
	}
	switch priceID {
	case c.StripePriceStarter:
		return "starter"
	case c.StripePricePro:
		return "pro"
	case c.StripePriceEnterprise:
		return "enterprise"
	}
	return ""
}

func normalizeReadPolicy(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ReadPolicyFailClosed, "closed":
		return ReadPolicyFailClosed
	default:
		return ReadPolicyFailOpen
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
