package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Billing  BillingConfig
	Payments PaymentsConfig
	Email    EmailConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// NegativeBalancePolicy decides what happens when a call charge drives a
// client balance below zero.
type NegativeBalancePolicy string

const (
	// NegativeBalanceAllow bills the call and lets the balance go negative.
	NegativeBalanceAllow NegativeBalancePolicy = "allow"
	// NegativeBalanceSuspend bills the call and additionally marks the client
	// suspended in the same transaction.
	NegativeBalanceSuspend NegativeBalancePolicy = "suspend"
)

type BillingConfig struct {
	// DefaultRatePerMinuteMinor applies to clients without a per-client rate.
	DefaultRatePerMinuteMinor int64

	// Currency is the platform billing currency (ISO 4217).
	Currency string

	// LowBalanceThresholdMinor is the alert threshold; crossing it downward
	// emits a single low-balance notification.
	LowBalanceThresholdMinor int64

	NegativeBalance NegativeBalancePolicy
}

type PaymentsConfig struct {
	// WebhookSecret signs payment-provider webhook payloads (HMAC-SHA256).
	WebhookSecret string

	// SignatureTolerance bounds the accepted webhook timestamp skew.
	SignatureTolerance time.Duration
}

type EmailConfig struct {
	// SMTPHost empty disables email sending entirely (in-app notifications
	// and realtime pushes still work).
	SMTPHost string
	SMTPPort int
	From     string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optionalDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optionalDuration("JWT_REFRESH_TTL")

	c.Billing.DefaultRatePerMinuteMinor = optionalInt64("BILLING_RATE_PER_MINUTE_MINOR")
	c.Billing.Currency = strings.TrimSpace(os.Getenv("BILLING_CURRENCY"))
	c.Billing.LowBalanceThresholdMinor = optionalInt64("BILLING_LOW_BALANCE_THRESHOLD_MINOR")
	c.Billing.NegativeBalance = NegativeBalancePolicy(strings.TrimSpace(os.Getenv("BILLING_NEGATIVE_BALANCE_POLICY")))

	c.Payments.WebhookSecret = os.Getenv("PAYMENTS_WEBHOOK_SECRET")
	c.Payments.SignatureTolerance = optionalDuration("PAYMENTS_SIGNATURE_TOLERANCE")

	c.Email.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.Email.SMTPPort = optionalInt("SMTP_PORT")
	c.Email.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Billing.DefaultRatePerMinuteMinor <= 0 {
		// Platform default rate: 0.16 per started minute.
		c.Billing.DefaultRatePerMinuteMinor = 16
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = "USD"
	}
	if len(c.Billing.Currency) != 3 {
		errs = append(errs, fmt.Errorf("BILLING_CURRENCY must be a 3-letter code, got %q", c.Billing.Currency))
	}
	if c.Billing.LowBalanceThresholdMinor <= 0 {
		// Platform default alert threshold: 5.00.
		c.Billing.LowBalanceThresholdMinor = 500
	}
	switch c.Billing.NegativeBalance {
	case "":
		c.Billing.NegativeBalance = NegativeBalanceAllow
	case NegativeBalanceAllow, NegativeBalanceSuspend:
	default:
		errs = append(errs, fmt.Errorf("BILLING_NEGATIVE_BALANCE_POLICY must be allow or suspend, got %q", c.Billing.NegativeBalance))
	}

	if c.Payments.WebhookSecret == "" {
		errs = append(errs, errors.New("PAYMENTS_WEBHOOK_SECRET is required"))
	}
	if c.Payments.SignatureTolerance <= 0 {
		c.Payments.SignatureTolerance = 5 * time.Minute
	}

	if c.Email.SMTPHost != "" {
		if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.Email.SMTPPort))
		}
		if c.Email.From == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) EmailEnabled() bool {
	return c.Email.SMTPHost != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Email.SMTPHost, c.Email.SMTPPort)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optionalInt64(key string) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func optionalDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
