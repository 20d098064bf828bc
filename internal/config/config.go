// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Clamp bounds for the quote cache TTL. Anything outside this band either
// hammers the upstream API or serves visibly stale prices.
const (
	MinQuoteTTL = 10 * time.Second
	MaxQuoteTTL = 120 * time.Second
)

// CheckoutPolicy controls what happens when an item cannot be priced during
// checkout.
type CheckoutPolicy string

const (
	// CheckoutSkip drops the unpriceable item, reports it in the summary and
	// continues with the rest of the cart.
	CheckoutSkip CheckoutPolicy = "skip"
	// CheckoutAbort fails the whole checkout without mutating anything.
	CheckoutAbort CheckoutPolicy = "abort"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	UpstreamURL    string        // Market data API base URL
	FeedURL        string        // Upstream price stream websocket URL (empty disables the feed)
	QuoteTTL       time.Duration // Quote cache TTL, clamped to [MinQuoteTTL, MaxQuoteTTL]
	PriceTimeout   time.Duration // Bound on a single upstream price fetch
	CheckoutPolicy CheckoutPolicy
	Backup         BackupConfig
}

// BackupConfig holds offsite backup configuration. Backups are disabled
// unless Bucket and Endpoint are both set.
type BackupConfig struct {
	Endpoint  string // S3-compatible endpoint (e.g. Cloudflare R2)
	Bucket    string
	AccessKey string
	SecretKey string
	Keep      int // Number of remote backups to retain
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COINCART_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir to absolute path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		UpstreamURL:    getEnv("MARKET_API_URL", "https://api.coingecko.com/api/v3"),
		FeedURL:        getEnv("PRICE_FEED_URL", ""),
		QuoteTTL:       getEnvAsDuration("QUOTE_TTL", 30*time.Second),
		PriceTimeout:   getEnvAsDuration("PRICE_TIMEOUT", 5*time.Second),
		CheckoutPolicy: CheckoutPolicy(getEnv("CHECKOUT_POLICY", string(CheckoutSkip))),
		Backup: BackupConfig{
			Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
			AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
			Keep:      getEnvAsInt("BACKUP_KEEP", 7),
		},
	}

	// Clamp the quote TTL rather than erroring; an out-of-band value is a
	// tuning mistake, not a reason to refuse to start.
	if cfg.QuoteTTL < MinQuoteTTL {
		cfg.QuoteTTL = MinQuoteTTL
	}
	if cfg.QuoteTTL > MaxQuoteTTL {
		cfg.QuoteTTL = MaxQuoteTTL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("COINCART_DATA_DIR is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1-65535, got %d", c.Port)
	}
	switch c.CheckoutPolicy {
	case CheckoutSkip, CheckoutAbort:
	default:
		return fmt.Errorf("CHECKOUT_POLICY must be %q or %q, got %q", CheckoutSkip, CheckoutAbort, c.CheckoutPolicy)
	}
	return nil
}

// BackupEnabled reports whether offsite backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.Backup.Bucket != "" && c.Backup.Endpoint != ""
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
