package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	v.Set("JWT_SECRET_KEY", "secret")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 60, cfg.HTTP.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.HTTP.RateLimitWindow)
	assert.Equal(t, 4*1024*1024, cfg.HTTP.BodyLimitBytes)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.True(t, cfg.Shop.TaxRate.IsZero())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Storage.Enabled())
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("JWT_SECRET", "fallback")
	v.Set("TAX_RATE", "0.2")
	v.Set("BODY_LIMIT_BYTES", 1024)
	v.Set("CURRENCY", "eur")
	v.Set("REDIS_ADDR", "localhost:6379")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "fallback", cfg.JWT.Secret)
	assert.Equal(t, "0.2", cfg.Shop.TaxRate.String())
	assert.Equal(t, 1024, cfg.HTTP.BodyLimitBytes)
	assert.Equal(t, "EUR", cfg.Shop.Currency)
	assert.True(t, cfg.Redis.Enabled())
}

func TestFromViper_Invalid(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET_KEY", "")
		t.Setenv("JWT_SECRET", "")
		_, err := FromViper(viper.New())
		assert.ErrorContains(t, err, "JWT secret")
	})

	t.Run("bad tax rate", func(t *testing.T) {
		v := viper.New()
		v.Set("JWT_SECRET_KEY", "secret")
		v.Set("TAX_RATE", "abc")
		_, err := FromViper(v)
		assert.ErrorContains(t, err, "TAX_RATE")
	})

	t.Run("negative tax rate", func(t *testing.T) {
		v := viper.New()
		v.Set("JWT_SECRET_KEY", "secret")
		v.Set("TAX_RATE", "-0.1")
		_, err := FromViper(v)
		assert.ErrorContains(t, err, "must not be negative")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "shop", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db user=u password=p dbname=shop port=5432 sslmode=disable TimeZone=UTC", d.DSN())
}
