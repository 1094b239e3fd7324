package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("uses defaults when nothing is set", func(t *testing.T) {
		t.Setenv("APP_ENV", "")
		t.Setenv("HTTP_PORT", "")
		t.Setenv("SECRET", "")
		t.Setenv("JWT_TTL", "")
		t.Setenv("LOG_FORMAT", "")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
		assert.Equal(t, 10, cfg.LowStockThreshold)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		assert.Contains(t, cfg.DatabaseDSN, "foreign_keys(1)")
	})

	t.Run("reads environment overrides", func(t *testing.T) {
		t.Setenv("APP_ENV", "staging")
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("SECRET", "s3cret")
		t.Setenv("JWT_TTL", "2h")
		t.Setenv("LOW_STOCK_THRESHOLD", "25")
		t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/med?sslmode=disable")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "staging", cfg.Env)
		assert.Equal(t, "9090", cfg.HTTPPort)
		assert.Equal(t, "s3cret", cfg.Secret)
		assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
		assert.Equal(t, 25, cfg.LowStockThreshold)
		assert.Equal(t, "postgres://u:p@localhost:5432/med?sslmode=disable", cfg.DatabaseDSN)
	})

	t.Run("falls back to 8080 for a non numeric port", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "eighty")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.HTTPPort)
	})

	t.Run("production defaults to json logs", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("SECRET", "prod-secret")
		t.Setenv("LOG_FORMAT", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("production refuses the development secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("SECRET", "dev_secret")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects an invalid token ttl", func(t *testing.T) {
		t.Setenv("APP_ENV", "development")
		t.Setenv("JWT_TTL", "forever")

		_, err := Load()
		assert.Error(t, err)
	})
}
