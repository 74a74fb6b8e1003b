package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 10, cfg.PageSize)
		assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, "file", cfg.Session.TokenStore)
		assert.Equal(t, devTokenSecret, cfg.Session.TokenSecret)
		assert.Equal(t, "milkadmin:session", cfg.Redis.KeyPrefix)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("BACKEND_BASE_URL", "https://shop.example/api/v1/")
		t.Setenv("PAGE_SIZE", "25")
		t.Setenv("TOKEN_STORE", "memory")
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.0.0/16")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "https://shop.example/api/v1/", cfg.Backend.BaseURL)
		assert.Equal(t, 25, cfg.PageSize)
		assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.TrustedProxyList())
	})

	t.Run("production requires token secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")

		_, err := Load()
		assert.ErrorContains(t, err, "TOKEN_SECRET")
	})

	t.Run("redis store requires url", func(t *testing.T) {
		t.Setenv("TOKEN_STORE", "redis")

		_, err := Load()
		assert.ErrorContains(t, err, "REDIS_URL")
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("TOKEN_STORE", "s3")

		_, err := Load()
		assert.Error(t, err)
	})
}
