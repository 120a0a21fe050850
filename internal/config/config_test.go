package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AREAS", "")
	t.Setenv("CLEANUP_INTERVAL", "")

	cfg := Load()
	require.Equal(t, DefaultAreas, cfg.Areas)
	require.Equal(t, time.Hour, cfg.CleanupInterval)
	require.Equal(t, time.Duration(0), cfg.SessionIdleTimeout)
	require.Equal(t, "TON", cfg.CostCurrency)
	require.Equal(t, "8080", cfg.ServerPort)
	require.True(t, cfg.HTTPEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AREAS", " Central , Mong Kok,,Airport ")
	t.Setenv("CLEANUP_INTERVAL", "15m")
	t.Setenv("SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("TELEGRAM_DEBUG", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()
	require.Equal(t, []string{"Central", "Mong Kok", "Airport"}, cfg.Areas)
	require.Equal(t, 15*time.Minute, cfg.CleanupInterval)
	require.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	require.Equal(t, 25, cfg.DBMaxOpenConns)
	require.True(t, cfg.TelegramDebug)
	require.Equal(t, 60, cfg.RateLimitRequests)
}

func TestLoad_DefaultAreasAreCopied(t *testing.T) {
	t.Setenv("AREAS", "")
	cfg := Load()
	cfg.Areas[0] = "changed"
	require.Equal(t, "Admiralty", DefaultAreas[0])
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Areas: []string{"Central"}, CleanupInterval: time.Hour, Timezone: "UTC"}
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "no areas", mutate: func(c *Config) { c.Areas = nil }, errMsg: "at least one area"},
		{name: "duplicate area", mutate: func(c *Config) { c.Areas = []string{"Central", "Central"} }, errMsg: "duplicate"},
		{name: "reserved area", mutate: func(c *Config) { c.Areas = []string{"Host"} }, errMsg: "collides"},
		{name: "zero interval", mutate: func(c *Config) { c.CleanupInterval = 0 }, errMsg: "CLEANUP_INTERVAL"},
		{name: "negative idle", mutate: func(c *Config) { c.SessionIdleTimeout = -time.Second }, errMsg: "SESSION_IDLE_TIMEOUT"},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, errMsg: "TIMEZONE"},
	}

	require.NoError(t, valid().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLocation_Local(t *testing.T) {
	cfg := &Config{Timezone: "Local"}
	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.Local, loc)
}
