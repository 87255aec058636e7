package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORDERS_JWT_SECRET", "segredo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "segredo", cfg.JWTSecret)
	assert.Equal(t, "firestore", cfg.Storage.Mode)
	assert.Equal(t, "analise-sped-db", cfg.Storage.ProjectID)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "sem-prefixo")
	t.Setenv("ORDERS_STORAGE_MODE", "memory")
	t.Setenv("ORDERS_CACHE_BACKEND", "redis")
	t.Setenv("ORDERS_CACHE_REDIS_ADDR", "redis:6379")
	t.Setenv("ORDERS_CACHE_TTL", "30s")
	t.Setenv("ORDERS_RATE_LIMIT_RPS", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sem-prefixo", cfg.JWTSecret)
	assert.Equal(t, "memory", cfg.Storage.Mode)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 0.5, cfg.RateLimit.RPS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ORDERS_JWT_SECRET", "segredo")

	t.Run("storage mode", func(t *testing.T) {
		t.Setenv("ORDERS_STORAGE_MODE", "postgres")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("cache ttl", func(t *testing.T) {
		t.Setenv("ORDERS_CACHE_TTL", "0s")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("ORDERS_LOG_LEVEL", "verbose")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comentário\nORDERS_TEST_A=1\nexport ORDERS_TEST_B=\"dois\"\nORDERS_TEST_C=arquivo\nlinha sem igual\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ORDERS_TEST_C", "ambiente")
	t.Cleanup(func() {
		os.Unsetenv("ORDERS_TEST_A")
		os.Unsetenv("ORDERS_TEST_B")
	})

	found, err := LoadEnv(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", os.Getenv("ORDERS_TEST_A"))
	assert.Equal(t, "dois", os.Getenv("ORDERS_TEST_B"))
	assert.Equal(t, "ambiente", os.Getenv("ORDERS_TEST_C"))

	found, err = LoadEnv(filepath.Join(t.TempDir(), "nada.env"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, logger)
	}
	_, err := NewLogger("verbose")
	assert.Error(t, err)
}
