package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	InstanceRunning    time.Duration `env:"QUICKHOST_TIMEOUT_INSTANCE_RUNNING" envDefault:"10m"`    // Wait for a launched batch to run
	InstanceTerminated time.Duration `env:"QUICKHOST_TIMEOUT_INSTANCE_TERMINATED" envDefault:"10m"` // Wait for a batch to terminate
	Network            time.Duration `env:"QUICKHOST_TIMEOUT_NETWORK" envDefault:"2m"`              // Wait for the VPC to become available
	Delete             time.Duration `env:"QUICKHOST_TIMEOUT_DELETE" envDefault:"5m"`               // Per-resource delete including retries
	PollInterval       time.Duration `env:"QUICKHOST_POLL_INTERVAL" envDefault:"1s"`                // Convergence polling interval
	NetworkCacheTTL    time.Duration `env:"QUICKHOST_NETWORK_CACHE_TTL" envDefault:"5m"`            // Memoized network describe lifetime
	RetryMaxAttempts   int           `env:"QUICKHOST_RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryInitialDelay  time.Duration `env:"QUICKHOST_RETRY_INITIAL_DELAY" envDefault:"2s"`
}

// LoadTimeouts loads timeout configuration from environment variables.
// Invalid values fall back to the defaults.
func LoadTimeouts() *Timeouts {
	t := &Timeouts{}
	if err := env.Parse(t); err != nil {
		return DefaultTimeouts()
	}
	return t
}

// DefaultTimeouts returns the built-in values without consulting the environment.
func DefaultTimeouts() *Timeouts {
	t := &Timeouts{}
	_ = env.ParseWithOptions(t, env.Options{Environment: map[string]string{}})
	return t
}

// TestTimeouts returns short timeouts suitable for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		InstanceRunning:    2 * time.Second,
		InstanceTerminated: 2 * time.Second,
		Network:            time.Second,
		Delete:             2 * time.Second,
		PollInterval:       time.Millisecond,
		NetworkCacheTTL:    time.Minute,
		RetryMaxAttempts:   3,
		RetryInitialDelay:  time.Millisecond,
	}
}
