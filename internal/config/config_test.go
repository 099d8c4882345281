package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUOTA_READ_POLICY", "")
	t.Setenv("STUDIO_TIMEOUT", "")
	t.Setenv("REDIS_DB", "")

	cfg := Load()
	if cfg.QuotaReadPolicy != ReadPolicyFailOpen {
		t.Fatalf("QuotaReadPolicy = %q, want %q", cfg.QuotaReadPolicy, ReadPolicyFailOpen)
	}
	if !cfg.FailOpen() {
		t.Fatalf("FailOpen() = false, want true")
	}
	if cfg.StudioTimeout != 60*time.Second {
		t.Fatalf("StudioTimeout = %v, want 60s", cfg.StudioTimeout)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("RedisDB = %d, want 0", cfg.RedisDB)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUOTA_READ_POLICY", "FAIL_CLOSED")
	t.Setenv("STUDIO_TIMEOUT", "5s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_RETENTION_DAYS", "not-a-number")

	cfg := Load()
	if cfg.FailOpen() {
		t.Fatalf("FailOpen() = true, want false")
	}
	if cfg.StudioTimeout != 5*time.Second {
		t.Fatalf("StudioTimeout = %v, want 5s", cfg.StudioTimeout)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB = %d, want 3", cfg.RedisDB)
	}
	if cfg.LogRetentionDays != 30 {
		t.Fatalf("LogRetentionDays = %d, want fallback 30", cfg.LogRetentionDays)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing jwt", Config{DBPassword: "x", StripeSecretKey: "sk"}, true},
		{"missing db password", Config{JWTSecret: "s", StripeSecretKey: "sk"}, true},
		{"missing stripe", Config{JWTSecret: "s", DBPassword: "x"}, true},
		{"complete", Config{JWTSecret: "s", DBPassword: "x", StripeSecretKey: "sk"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestPlanForPrice(t *testing.T) {
	cfg := &Config{StripePriceStarter: "price_s", StripePricePro: "price_p", StripePriceEnterprise: "price_e"}
	cases := map[string]string{
		"price_s": "starter",
		"price_p": "pro",
		"price_e": "enterprise",
		"price_x": "",
		"":        "",
	}
	for price, want := range cases {
		if got := cfg.PlanForPrice(price); got != want {
			t.Fatalf("PlanForPrice(%q) = %q, want %q", price, got, want)
		}
	}
}
