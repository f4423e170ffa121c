// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	AWS           AWSConfig
	Blockchain    BlockchainConfig
	Payment       PaymentConfig
	Inventory     InventoryConfig
	DomainActions DomainActionConfig
	RateLimit     RateLimitConfig
	I18n          I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	AllowOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
	// Signs transfer authorization tokens handed to receivers.
	TransferSecretKey string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	ArchivePrefix   string
}

type BlockchainConfig struct {
	Network string
	RPC_URL string
	Timeout int // in seconds
}

type PaymentConfig struct {
	PrimaryCurrency      string
	StripeSecretKey      string
	StripePublishableKey string
	GlobeeAPIKey         string
	GlobeeBaseURL        string
	GlobeeNotifyURL      string
	GlobeeSuccessURL     string
	GlobeeCancelURL      string
	RequestTTLMinutes    int
}

type InventoryConfig struct {
	SweepEnabled      bool
	HoldWindowMinutes int
	SweepInterval     int // in seconds
	SweepBatchSize    int
}

type DomainActionConfig struct {
	Enabled           bool
	PollInterval      int // in seconds
	VisibilityTimeout int // in seconds
	BatchSize         int
	IPNExpiryDays     int
	IPNMaxAttempts    int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			AllowOrigins: getEnvAsSlice("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "ticketing"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		JWT: JWTConfig{
			SecretKey:         getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:    getEnvAsInt("JWT_ACCESS_TTL", 24),
			TransferSecretKey: getEnv("TRANSFER_TOKEN_SECRET", "transfer-secret-change-in-production"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			ArchivePrefix:   getEnv("AWS_ARCHIVE_PREFIX", "ipns"),
		},
		Blockchain: BlockchainConfig{
			Network: getEnv("BLOCKCHAIN_NETWORK", "tari"),
			RPC_URL: getEnv("BLOCKCHAIN_RPC_URL", ""),
			Timeout: getEnvAsInt("BLOCKCHAIN_TIMEOUT", 30),
		},
		Payment: PaymentConfig{
			PrimaryCurrency:      strings.ToLower(getEnv("PRIMARY_CURRENCY", "usd")),
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			GlobeeAPIKey:         getEnv("GLOBEE_API_KEY", ""),
			GlobeeBaseURL:        getEnv("GLOBEE_BASE_URL", "https://globee.com/payment-api/v1/"),
			GlobeeNotifyURL:      getEnv("GLOBEE_NOTIFY_URL", ""),
			GlobeeSuccessURL:     getEnv("GLOBEE_SUCCESS_URL", ""),
			GlobeeCancelURL:      getEnv("GLOBEE_CANCEL_URL", ""),
			RequestTTLMinutes:    getEnvAsInt("PAYMENT_REQUEST_TTL_MINUTES", 30),
		},
		Inventory: InventoryConfig{
			SweepEnabled:      getEnvAsBool("INVENTORY_SWEEP_ENABLED", true),
			HoldWindowMinutes: getEnvAsInt("INVENTORY_HOLD_MINUTES", 15),
			SweepInterval:     getEnvAsInt("INVENTORY_SWEEP_INTERVAL", 30),
			SweepBatchSize:    getEnvAsInt("INVENTORY_SWEEP_BATCH_SIZE", 500),
		},
		DomainActions: DomainActionConfig{
			Enabled:           getEnvAsBool("DOMAIN_ACTION_WORKER_ENABLED", true),
			PollInterval:      getEnvAsInt("DOMAIN_ACTION_POLL_INTERVAL", 5),
			VisibilityTimeout: getEnvAsInt("DOMAIN_ACTION_VISIBILITY_TIMEOUT", 60),
			BatchSize:         getEnvAsInt("DOMAIN_ACTION_BATCH_SIZE", 20),
			IPNExpiryDays:     getEnvAsInt("IPN_EXPIRY_DAYS", 30),
			IPNMaxAttempts:    getEnvAsInt("IPN_MAX_ATTEMPTS", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.JWT.TransferSecretKey == "transfer-secret-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("transfer token secret must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if len(c.Payment.PrimaryCurrency) != 3 {
		return fmt.Errorf("PRIMARY_CURRENCY must be a three letter code, got %q", c.Payment.PrimaryCurrency)
	}

	if c.Payment.RequestTTLMinutes <= 0 {
		return fmt.Errorf("PAYMENT_REQUEST_TTL_MINUTES must be positive")
	}

	if c.Inventory.HoldWindowMinutes <= 0 {
		return fmt.Errorf("INVENTORY_HOLD_MINUTES must be positive")
	}

	if c.DomainActions.IPNMaxAttempts <= 0 {
		return fmt.Errorf("IPN_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// RequestTTL is how long a hosted payment request keeps its tickets held.
func (p PaymentConfig) RequestTTL() time.Duration {
	return time.Duration(p.RequestTTLMinutes) * time.Minute
}

func (i InventoryConfig) HoldWindow() time.Duration {
	return time.Duration(i.HoldWindowMinutes) * time.Minute
}

func (i InventoryConfig) SweepEvery() time.Duration {
	return time.Duration(i.SweepInterval) * time.Second
}

func (d DomainActionConfig) PollEvery() time.Duration {
	return time.Duration(d.PollInterval) * time.Second
}

func (d DomainActionConfig) Visibility() time.Duration {
	return time.Duration(d.VisibilityTimeout) * time.Second
}

func (d DomainActionConfig) IPNExpiry() time.Duration {
	return time.Duration(d.IPNExpiryDays) * 24 * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
