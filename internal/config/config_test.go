package config

import "testing"

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "production", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "billing", SSLMode: ""},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret", JWTIssuer: "iss", JWTAudience: "aud"},
		Payments: PaymentsConfig{WebhookSecret: "whsec"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "billing", SSLMode: ""},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Payments: PaymentsConfig{WebhookSecret: "whsec"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Billing.DefaultRatePerMinuteMinor != 16 {
		t.Fatalf("expected default rate 16, got %d", c.Billing.DefaultRatePerMinuteMinor)
	}
	if c.Billing.LowBalanceThresholdMinor != 500 {
		t.Fatalf("expected default threshold 500, got %d", c.Billing.LowBalanceThresholdMinor)
	}
	if c.Billing.NegativeBalance != NegativeBalanceAllow {
		t.Fatalf("expected allow policy default, got %q", c.Billing.NegativeBalance)
	}
}

func TestValidate_RejectsUnknownNegativeBalancePolicy(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "billing"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Billing:  BillingConfig{NegativeBalance: "forgive"},
		Payments: PaymentsConfig{WebhookSecret: "whsec"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestValidate_RequiresPaymentsSecret(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "billing"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing payments secret")
	}
}
