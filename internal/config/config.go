// Package config provides configuration management for the tableau worker.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/connector/http"
	"github.com/nucleus/tableau-worker/internal/connector/tableau"
)

// Config holds all configuration for the tableau worker.
type Config struct {
	// Temporal settings
	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string

	// Connection store settings
	DefaultConnectionID    string
	ConnectionsFile        string
	ConnectionsDatabaseURL string

	// HTTP client settings
	HTTPTimeout    time.Duration
	HTTPMaxRetries int
	HTTPRateLimit  float64
	HTTPRateBurst  int

	// Job wait settings
	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	PollMultiplier      float64
	PollJitter          float64
	PollFailureBudget   int

	// WaitDeadline bounds a blocking refresh end to end; zero waits
	// indefinitely and leaves the deadline to the host platform.
	WaitDeadline time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace: getEnv("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue: getEnv("TABLEAU_TASK_QUEUE", "tableau"),

		DefaultConnectionID:    getEnv("TABLEAU_DEFAULT_CONNECTION_ID", connection.DefaultConnectionID),
		ConnectionsFile:        getEnv("TABLEAU_CONNECTIONS_FILE", ""),
		ConnectionsDatabaseURL: getEnv("TABLEAU_CONNECTIONS_DATABASE_URL", ""),

		HTTPTimeout:    getEnvDuration("TABLEAU_HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxRetries: getEnvInt("TABLEAU_HTTP_MAX_RETRIES", 3),
		HTTPRateLimit:  getEnvFloat("TABLEAU_HTTP_RATE_LIMIT", 10.0),
		HTTPRateBurst:  getEnvInt("TABLEAU_HTTP_RATE_BURST", 5),

		PollInitialInterval: getEnvDuration("TABLEAU_POLL_INITIAL_INTERVAL", tableau.DefaultPollInitialInterval),
		PollMaxInterval:     getEnvDuration("TABLEAU_POLL_MAX_INTERVAL", tableau.DefaultPollMaxInterval),
		PollMultiplier:      getEnvFloat("TABLEAU_POLL_MULTIPLIER", tableau.DefaultPollMultiplier),
		PollJitter:          getEnvFloat("TABLEAU_POLL_JITTER", 0),
		PollFailureBudget:   getEnvInt("TABLEAU_POLL_FAILURE_BUDGET", tableau.DefaultPollFailureBudget),

		WaitDeadline: getEnvDuration("TABLEAU_WAIT_DEADLINE", 0),
	}
}

// HTTPClient returns the HTTP client tuning applied to every Tableau session.
func (c *Config) HTTPClient() *http.ClientConfig {
	cfg := http.DefaultClientConfig()
	cfg.Timeout = c.HTTPTimeout
	cfg.MaxRetries = c.HTTPMaxRetries
	cfg.RateLimit = c.HTTPRateLimit
	cfg.RateBurst = c.HTTPRateBurst
	return cfg
}

// WaitOptions returns the job wait tuning for blocking refreshes.
func (c *Config) WaitOptions() tableau.WaitOptions {
	return tableau.WaitOptions{
		InitialInterval: c.PollInitialInterval,
		MaxInterval:     c.PollMaxInterval,
		Multiplier:      c.PollMultiplier,
		Jitter:          c.PollJitter,
		FailureBudget:   c.PollFailureBudget,
		Deadline:        c.WaitDeadline,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
