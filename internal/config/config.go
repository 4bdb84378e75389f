// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	DataDir           string // Base directory for all databases, always absolute
	BrokerServiceURL  string
	OpenFIGIAPIKey    string // Optional, raises the OpenFIGI rate limit
	ReportingCurrency string
	BucketsFile       string // Optional TOML bucket table replacing the stored one
	LogLevel          string
	Port              int
	DevMode           bool
	Monitor           MonitorConfig
}

// MonitorConfig holds the background job schedules (cron with seconds)
type MonitorConfig struct {
	Enabled         bool
	Schedule        string
	CleanupSchedule string
}

// Load reads configuration from environment variables, after loading a
// .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("BALANCER_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("GO_PORT", 8001),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		BrokerServiceURL:  getEnv("BROKER_SERVICE_URL", "http://localhost:9002"),
		OpenFIGIAPIKey:    getEnv("OPENFIGI_API_KEY", ""),
		ReportingCurrency: strings.ToUpper(getEnv("REPORTING_CURRENCY", "RUB")),
		BucketsFile:       getEnv("BUCKETS_FILE", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Monitor: MonitorConfig{
			Enabled:         getEnvAsBool("MONITOR_ENABLED", true),
			Schedule:        getEnv("MONITOR_SCHEDULE", "0 0 13 * * MON-FRI"),
			CleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}

	u, err := url.Parse(c.BrokerServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: broker service url %q", ErrInvalidConfig, c.BrokerServiceURL)
	}

	if len(c.ReportingCurrency) != 3 {
		return fmt.Errorf("%w: reporting currency %q", ErrInvalidConfig, c.ReportingCurrency)
	}

	if c.Monitor.Enabled {
		if _, err := scheduleParser.Parse(c.Monitor.Schedule); err != nil {
			return fmt.Errorf("%w: monitor schedule %q: %v", ErrInvalidConfig, c.Monitor.Schedule, err)
		}
	}
	if _, err := scheduleParser.Parse(c.Monitor.CleanupSchedule); err != nil {
		return fmt.Errorf("%w: cleanup schedule %q: %v", ErrInvalidConfig, c.Monitor.CleanupSchedule, err)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
