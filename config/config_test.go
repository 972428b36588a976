package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 20, cfg.LoginRatePerMin)
	assert.Equal(t, "receipts", cfg.CloudinaryFolder)
	assert.False(t, cfg.IsProduction())

	err = cfg.RequireServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL, JWT_SECRET")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("ENV", "Production")
	t.Setenv("DATABASE_URL", "postgres://localhost/qurbani")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.NoError(t, cfg.RequireServer())
}
