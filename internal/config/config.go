package config

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values.
type Config struct {
	Env               string
	Secret            string
	DatabaseDSN       string
	HTTPPort          string
	JWTTTL            time.Duration
	LogLevel          string
	LogFormat         string
	CatalogCSV        string
	LowStockThreshold int
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables with reasonable defaults.
// A .env file, when present, is expected to have been loaded by the caller.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SECRET", "dev_secret")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DSN", "file:medledger.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("CATALOG_CSV", "")
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	cfg := Config{
		Env:               v.GetString("APP_ENV"),
		Secret:            v.GetString("SECRET"),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		HTTPPort:          v.GetString("HTTP_PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		CatalogCSV:        v.GetString("CATALOG_CSV"),
		LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
	}

	ttl, err := time.ParseDuration(v.GetString("JWT_TTL"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	cfg.JWTTTL = ttl

	shutdown, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout = shutdown

	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.Env == "production" {
			cfg.LogFormat = "json"
		}
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}

	if cfg.Env == "production" && cfg.Secret == "dev_secret" {
		return Config{}, fmt.Errorf("SECRET must be set in production")
	}

	return cfg, nil
}
