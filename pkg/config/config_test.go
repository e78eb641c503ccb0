package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "BASE_URL", "DATABASE_URL", "TIMEZONE", "RATE_LIMIT_BURST", "RATE_LIMIT_PERIOD", "ADMIN_EMAILS", "TRUST_PROXY"} {
		t.Setenv(key, "")
	}
	// t.Setenv with "" still counts as set; the typed getters fall back on bad values.
	cfg := Load()

	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, 6*time.Second, cfg.RateLimitPeriod)
	assert.False(t, cfg.TrustProxy)
	assert.Empty(t, cfg.AdminEmails)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("BASE_URL", "https://qr.example.com/")
	t.Setenv("DATABASE_URL", "sqlite:/data/db/qr.db")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_PERIOD", "1m")
	t.Setenv("ADMIN_EMAILS", " Ops@Example.com, ,dev@example.com")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "https://qr.example.com", cfg.BaseURL)
	assert.Equal(t, "sqlite:/data/db/qr.db", cfg.DatabaseURL)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, 3, cfg.RateLimitBurst)
	assert.Equal(t, time.Minute, cfg.RateLimitPeriod)
	assert.Equal(t, []string{"ops@example.com", "dev@example.com"}, cfg.AdminEmails)
	assert.True(t, cfg.IsProduction())
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "America/Cancun"}
	loc := cfg.Location()
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -5*3600, offset)

	cfg.Timezone = "Mars/Olympus_Mons"
	assert.Equal(t, time.UTC, cfg.Location())
}
