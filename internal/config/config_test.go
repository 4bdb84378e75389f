package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("BALANCER_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "http://localhost:9002", cfg.BrokerServiceURL)
	assert.Equal(t, "RUB", cfg.ReportingCurrency)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, "0 0 13 * * MON-FRI", cfg.Monitor.Schedule)
	assert.Equal(t, "0 0 3 * * *", cfg.Monitor.CleanupSchedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BALANCER_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("REPORTING_CURRENCY", "usd")
	t.Setenv("MONITOR_ENABLED", "false")
	t.Setenv("BUCKETS_FILE", "/etc/balancer/buckets.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "USD", cfg.ReportingCurrency)
	assert.False(t, cfg.Monitor.Enabled)
	assert.Equal(t, "/etc/balancer/buckets.toml", cfg.BucketsFile)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BALANCER_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "eighty")
	t.Setenv("MONITOR_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.True(t, cfg.Monitor.Enabled)
}

func validConfig() *Config {
	return &Config{
		Port:              8001,
		BrokerServiceURL:  "http://localhost:9002",
		ReportingCurrency: "RUB",
		Monitor: MonitorConfig{
			Enabled:         true,
			Schedule:        "0 0 13 * * MON-FRI",
			CleanupSchedule: "@daily",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"relative broker url", func(c *Config) { c.BrokerServiceURL = "localhost:9002" }},
		{"bad currency", func(c *Config) { c.ReportingCurrency = "RUBLE" }},
		{"bad monitor schedule", func(c *Config) { c.Monitor.Schedule = "0 13 * * *" }},
		{"bad cleanup schedule", func(c *Config) { c.Monitor.CleanupSchedule = "sometimes" }},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidate_DisabledMonitorSkipsSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Monitor.Enabled = false
	cfg.Monitor.Schedule = "garbage"
	assert.NoError(t, cfg.Validate())
}
