package config

import (
	"testing"
	"time"

	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/connector/tableau"
)

// clearEnv blanks every variable Load reads so a developer's shell cannot
// leak into the assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"TEMPORAL_ADDRESS", "TEMPORAL_NAMESPACE", "TABLEAU_TASK_QUEUE",
		"TABLEAU_DEFAULT_CONNECTION_ID", "TABLEAU_CONNECTIONS_FILE", "TABLEAU_CONNECTIONS_DATABASE_URL",
		"TABLEAU_HTTP_TIMEOUT", "TABLEAU_HTTP_MAX_RETRIES", "TABLEAU_HTTP_RATE_LIMIT", "TABLEAU_HTTP_RATE_BURST",
		"TABLEAU_POLL_INITIAL_INTERVAL", "TABLEAU_POLL_MAX_INTERVAL", "TABLEAU_POLL_MULTIPLIER",
		"TABLEAU_POLL_JITTER", "TABLEAU_POLL_FAILURE_BUDGET", "TABLEAU_WAIT_DEADLINE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.TemporalAddress != "localhost:7233" {
		t.Errorf("TemporalAddress = %q, want %q", cfg.TemporalAddress, "localhost:7233")
	}
	if cfg.TemporalNamespace != "default" {
		t.Errorf("TemporalNamespace = %q, want %q", cfg.TemporalNamespace, "default")
	}
	if cfg.TemporalTaskQueue != "tableau" {
		t.Errorf("TemporalTaskQueue = %q, want %q", cfg.TemporalTaskQueue, "tableau")
	}
	if cfg.DefaultConnectionID != connection.DefaultConnectionID {
		t.Errorf("DefaultConnectionID = %q, want %q", cfg.DefaultConnectionID, connection.DefaultConnectionID)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.HTTPMaxRetries != 3 {
		t.Errorf("HTTPMaxRetries = %d, want 3", cfg.HTTPMaxRetries)
	}
	if cfg.PollInitialInterval != tableau.DefaultPollInitialInterval {
		t.Errorf("PollInitialInterval = %v, want %v", cfg.PollInitialInterval, tableau.DefaultPollInitialInterval)
	}
	if cfg.PollMaxInterval != tableau.DefaultPollMaxInterval {
		t.Errorf("PollMaxInterval = %v, want %v", cfg.PollMaxInterval, tableau.DefaultPollMaxInterval)
	}
	if cfg.PollMultiplier != tableau.DefaultPollMultiplier {
		t.Errorf("PollMultiplier = %v, want %v", cfg.PollMultiplier, tableau.DefaultPollMultiplier)
	}
	if cfg.PollFailureBudget != tableau.DefaultPollFailureBudget {
		t.Errorf("PollFailureBudget = %d, want %d", cfg.PollFailureBudget, tableau.DefaultPollFailureBudget)
	}
	if cfg.WaitDeadline != 0 {
		t.Errorf("WaitDeadline = %v, want 0 (unbounded)", cfg.WaitDeadline)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEMPORAL_ADDRESS", "temporal.internal:7233")
	t.Setenv("TEMPORAL_NAMESPACE", "analytics")
	t.Setenv("TABLEAU_TASK_QUEUE", "tableau-eu")
	t.Setenv("TABLEAU_DEFAULT_CONNECTION_ID", "tableau_eu")
	t.Setenv("TABLEAU_CONNECTIONS_FILE", "/etc/tableau/connections.yaml")
	t.Setenv("TABLEAU_HTTP_TIMEOUT", "45s")
	t.Setenv("TABLEAU_HTTP_MAX_RETRIES", "7")
	t.Setenv("TABLEAU_HTTP_RATE_LIMIT", "25.5")
	t.Setenv("TABLEAU_HTTP_RATE_BURST", "12")
	t.Setenv("TABLEAU_POLL_INITIAL_INTERVAL", "250ms")
	t.Setenv("TABLEAU_POLL_MAX_INTERVAL", "1m")
	t.Setenv("TABLEAU_POLL_MULTIPLIER", "1.5")
	t.Setenv("TABLEAU_POLL_JITTER", "0.2")
	t.Setenv("TABLEAU_POLL_FAILURE_BUDGET", "5")
	t.Setenv("TABLEAU_WAIT_DEADLINE", "2h")

	cfg := Load()

	if cfg.TemporalAddress != "temporal.internal:7233" {
		t.Errorf("TemporalAddress = %q", cfg.TemporalAddress)
	}
	if cfg.TemporalNamespace != "analytics" {
		t.Errorf("TemporalNamespace = %q", cfg.TemporalNamespace)
	}
	if cfg.TemporalTaskQueue != "tableau-eu" {
		t.Errorf("TemporalTaskQueue = %q", cfg.TemporalTaskQueue)
	}
	if cfg.DefaultConnectionID != "tableau_eu" {
		t.Errorf("DefaultConnectionID = %q", cfg.DefaultConnectionID)
	}
	if cfg.ConnectionsFile != "/etc/tableau/connections.yaml" {
		t.Errorf("ConnectionsFile = %q", cfg.ConnectionsFile)
	}
	if cfg.HTTPTimeout != 45*time.Second {
		t.Errorf("HTTPTimeout = %v, want 45s", cfg.HTTPTimeout)
	}
	if cfg.HTTPMaxRetries != 7 {
		t.Errorf("HTTPMaxRetries = %d, want 7", cfg.HTTPMaxRetries)
	}
	if cfg.HTTPRateLimit != 25.5 {
		t.Errorf("HTTPRateLimit = %v, want 25.5", cfg.HTTPRateLimit)
	}
	if cfg.HTTPRateBurst != 12 {
		t.Errorf("HTTPRateBurst = %d, want 12", cfg.HTTPRateBurst)
	}
	if cfg.PollInitialInterval != 250*time.Millisecond {
		t.Errorf("PollInitialInterval = %v, want 250ms", cfg.PollInitialInterval)
	}
	if cfg.PollMaxInterval != time.Minute {
		t.Errorf("PollMaxInterval = %v, want 1m", cfg.PollMaxInterval)
	}
	if cfg.PollMultiplier != 1.5 {
		t.Errorf("PollMultiplier = %v, want 1.5", cfg.PollMultiplier)
	}
	if cfg.PollJitter != 0.2 {
		t.Errorf("PollJitter = %v, want 0.2", cfg.PollJitter)
	}
	if cfg.PollFailureBudget != 5 {
		t.Errorf("PollFailureBudget = %d, want 5", cfg.PollFailureBudget)
	}
	if cfg.WaitDeadline != 2*time.Hour {
		t.Errorf("WaitDeadline = %v, want 2h", cfg.WaitDeadline)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TABLEAU_HTTP_MAX_RETRIES", "many")
	t.Setenv("TABLEAU_POLL_MULTIPLIER", "double")
	t.Setenv("TABLEAU_HTTP_TIMEOUT", "soon")

	cfg := Load()
	if cfg.HTTPMaxRetries != 3 {
		t.Errorf("HTTPMaxRetries = %d, want the default 3", cfg.HTTPMaxRetries)
	}
	if cfg.PollMultiplier != tableau.DefaultPollMultiplier {
		t.Errorf("PollMultiplier = %v, want the default %v", cfg.PollMultiplier, tableau.DefaultPollMultiplier)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want the default 30s", cfg.HTTPTimeout)
	}
}

func TestHTTPClientMapping(t *testing.T) {
	cfg := &Config{
		HTTPTimeout:    5 * time.Second,
		HTTPMaxRetries: 9,
		HTTPRateLimit:  2.5,
		HTTPRateBurst:  4,
	}

	hc := cfg.HTTPClient()
	if hc.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", hc.Timeout)
	}
	if hc.MaxRetries != 9 {
		t.Errorf("MaxRetries = %d, want 9", hc.MaxRetries)
	}
	if hc.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", hc.RateLimit)
	}
	if hc.RateBurst != 4 {
		t.Errorf("RateBurst = %d, want 4", hc.RateBurst)
	}
	if hc.UserAgent == "" {
		t.Error("expected the connector's default user agent to survive")
	}
}

func TestWaitOptionsMapping(t *testing.T) {
	cfg := &Config{
		PollInitialInterval: 100 * time.Millisecond,
		PollMaxInterval:     10 * time.Second,
		PollMultiplier:      3.0,
		PollJitter:          0.1,
		PollFailureBudget:   4,
		WaitDeadline:        time.Hour,
	}

	opts := cfg.WaitOptions()
	if opts.InitialInterval != 100*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 100ms", opts.InitialInterval)
	}
	if opts.MaxInterval != 10*time.Second {
		t.Errorf("MaxInterval = %v, want 10s", opts.MaxInterval)
	}
	if opts.Multiplier != 3.0 {
		t.Errorf("Multiplier = %v, want 3.0", opts.Multiplier)
	}
	if opts.Jitter != 0.1 {
		t.Errorf("Jitter = %v, want 0.1", opts.Jitter)
	}
	if opts.FailureBudget != 4 {
		t.Errorf("FailureBudget = %d, want 4", opts.FailureBudget)
	}
	if opts.Deadline != time.Hour {
		t.Errorf("Deadline = %v, want 1h", opts.Deadline)
	}
}
