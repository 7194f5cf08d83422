package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "risklock/internal/errors"
)

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Dashboard.PollInterval)
	assert.False(t, cfg.Dashboard.StickyErrors)
	assert.Equal(t, filepath.Join(dir, "session.db"), cfg.Dashboard.SessionDB)
	assert.Equal(t, dir, cfg.Dir)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	// The template itself must load cleanly.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.API, again.API)
	assert.Equal(t, "risk_only", again.Notifications.Level)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[api]
base_url = "https://risk.example.com/api"
timeout = "20s"

[dashboard]
poll_interval = "2s"
sticky_errors = true

[notifications]
enabled = true
level = "all"
nats_url = "nats://127.0.0.1:4222"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	t.Setenv("RISKLOCK_API_TOKEN", "secret-token")
	t.Setenv("RISKLOCK_DASHBOARD_TRADES_POLL_INTERVAL", "7s")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://risk.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Dashboard.PollInterval)
	assert.Equal(t, 7*time.Second, cfg.Dashboard.TradesPollInterval)
	assert.True(t, cfg.Dashboard.StickyErrors)
	assert.Equal(t, "secret-token", cfg.API.Token)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Notifications.NATSURL)
	assert.Equal(t, "risklock.dashboard", cfg.Notifications.NATSSubject)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[dashboard]\npoll_interval = \"0s\"\n"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:       APIConfig{BaseURL: "http://localhost:8000/api", Timeout: 15 * time.Second},
			Dashboard: DashboardConfig{PollInterval: 5 * time.Second, TradesPollInterval: 5 * time.Second},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"relative url", func(c *Config) { c.API.BaseURL = "/api" }, true},
		{"ftp url", func(c *Config) { c.API.BaseURL = "ftp://risk.example.com" }, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"zero poll interval", func(c *Config) { c.Dashboard.PollInterval = 0 }, true},
		{"negative trades interval", func(c *Config) { c.Dashboard.TradesPollInterval = -time.Second }, true},
		{"unknown level", func(c *Config) { c.Notifications.Level = "trades_only" }, true},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
