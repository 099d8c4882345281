package testsupport

import (
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
)

const TestJWTSecret = "test-jwt-secret"

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns a config with every external dependency disabled and a
// fixed JWT secret.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := &config.Config{
		DBHost:          "localhost",
		DBPort:          "5432",
		DBUser:          "postgres",
		DBPassword:      "test",
		DBName:          "studio_test",
		DBSSLMode:       "disable",
		JWTSecret:       TestJWTSecret,
		StripeSecretKey: "sk_test",
		AMQPExchange:    "studio.billing",
		StudioTimeout:   5 * time.Second,
		QuotaReadPolicy: config.ReadPolicyFailOpen,
		Port:            "0",
		CORSOrigins:     "*",
		AppEnv:          "test",
		GrantSchedule:   "0 0 1 * *",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func WithFailClosed() ConfigOption {
	return func(c *config.Config) {
		c.QuotaReadPolicy = config.ReadPolicyFailClosed
	}
}

func WithAdmins(emails, userIDs string) ConfigOption {
	return func(c *config.Config) {
		c.AdminEmails = emails
		c.AdminUserIDs = userIDs
	}
}

func WithStudioCallbackSecret(secret string) ConfigOption {
	return func(c *config.Config) {
		c.StudioCallbackSecret = secret
	}
}
