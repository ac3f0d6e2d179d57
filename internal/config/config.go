package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port           string
	Mode           string
	MetricsEnabled bool

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Database configuration
	DatabaseURL string
	SQLitePath  string

	// Redis configuration (optional, enables cross-instance key locks)
	RedisURL string
	LockTTL  time.Duration
	LockWait time.Duration

	Payme PaymeConfig
	Click ClickConfig

	// Admin API
	AdminAPIKey string

	// Merchant backend webhook
	MerchantWebhookURL    string
	MerchantWebhookSecret string

	// Brevo email configuration
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string
	NotifyEmail    string

	// Kafka event stream
	KafkaBroker string
	KafkaTopic  string
}

// PaymeConfig holds the JSON-RPC provider settings
type PaymeConfig struct {
	Enabled        bool
	MerchantID     string
	SecretKey      string
	AccountField   string
	OneTimePayment bool
}

// ClickConfig holds the form/action provider settings
type ClickConfig struct {
	Enabled           bool
	ServiceID         string
	SecretKey         string
	CommissionPercent decimal.Decimal
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file, a missing file is fine
	_ = godotenv.Load()

	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Mode:           getEnv("GIN_MODE", "debug"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "payment-webhooks.db"),
		RedisURL:       getEnv("REDIS_URL", ""),
		Payme: PaymeConfig{
			Enabled:        getEnvBool("PAYME_ENABLED", true),
			MerchantID:     getEnv("PAYME_MERCHANT_ID", ""),
			SecretKey:      getEnv("PAYME_SECRET_KEY", ""),
			AccountField:   getEnv("PAYME_ACCOUNT_FIELD", "order_id"),
			OneTimePayment: getEnvBool("PAYME_ONE_TIME_PAYMENT", true),
		},
		Click: ClickConfig{
			Enabled:   getEnvBool("CLICK_ENABLED", true),
			ServiceID: getEnv("CLICK_SERVICE_ID", ""),
			SecretKey: getEnv("CLICK_SECRET_KEY", ""),
		},
		AdminAPIKey:           getEnv("ADMIN_API_KEY", ""),
		MerchantWebhookURL:    getEnv("MERCHANT_WEBHOOK_URL", ""),
		MerchantWebhookSecret: getEnv("MERCHANT_WEBHOOK_SECRET", ""),
		BrevoAPIKey:           getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:        getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:         getEnv("BREVO_FROM_NAME", "Payments"),
		NotifyEmail:           getEnv("NOTIFY_EMAIL", ""),
		KafkaBroker:           getEnv("KAFKA_BROKER", ""),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "payment.transactions"),
	}

	var err error
	if cfg.LockTTL, err = getEnvDuration("LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockWait, err = getEnvDuration("LOCK_WAIT", 5*time.Second); err != nil {
		return nil, err
	}

	commission := getEnv("CLICK_COMMISSION_PERCENT", "0")
	cfg.Click.CommissionPercent, err = decimal.NewFromString(commission)
	if err != nil {
		return nil, fmt.Errorf("invalid CLICK_COMMISSION_PERCENT %q: %w", commission, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every enabled provider has its credentials
func (c *Config) Validate() error {
	var errs []error
	if c.Payme.Enabled {
		if c.Payme.SecretKey == "" {
			errs = append(errs, errors.New("PAYME_SECRET_KEY is required when Payme is enabled"))
		}
		if c.Payme.AccountField == "" {
			errs = append(errs, errors.New("PAYME_ACCOUNT_FIELD must not be empty"))
		}
	}
	if c.Click.Enabled {
		if c.Click.ServiceID == "" {
			errs = append(errs, errors.New("CLICK_SERVICE_ID is required when Click is enabled"))
		}
		if c.Click.SecretKey == "" {
			errs = append(errs, errors.New("CLICK_SECRET_KEY is required when Click is enabled"))
		}
		if c.Click.CommissionPercent.IsNegative() {
			errs = append(errs, errors.New("CLICK_COMMISSION_PERCENT must not be negative"))
		}
	}
	if c.LockTTL <= 0 || c.LockWait <= 0 {
		errs = append(errs, errors.New("LOCK_TTL and LOCK_WAIT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
