package sessionkit

import (
	"fmt"
	"time"
)

// Config defines the coordinator's tunables. Zero values are filled from
// [DefaultConfig] during Build.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Config struct {
	HTTP     HTTPConfig
	Refresh  RefreshConfig
	Notifier NotifierConfig
	Identity IdentityConfig
	Events   EventsConfig
	Metrics  MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig configures the backend transport.
type HTTPConfig struct {
	// BaseURL is the backend origin, e.g. "https://api.mindwell.example".
	// Required.
	BaseURL string
	// Timeout bounds every request. Default 10s.
	Timeout time.Duration
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes the refresh guard. One cooldown per trigger type: the
// source application used inconsistent magic numbers per call site, so the
// policy here is explicit and configurable instead.
type RefreshConfig struct {
	// AuthErrorCooldown throttles refreshes triggered by a 401/403. Default 10s.
	AuthErrorCooldown time.Duration
	// BackgroundCooldown throttles the periodic background path. Default 30s.
	BackgroundCooldown time.Duration
	// MaxConsecutive is the circuit-breaker ceiling on refresh attempts
	// without an intervening success. Default 5.
	MaxConsecutive int
	// RequestTimeout bounds the identity lookup inside one refresh. Default 10s.
	RequestTimeout time.Duration
}

/*
====================================
NOTIFIER CONFIG
====================================
*/

// NotifierConfig configures the periodic role-change check.
type NotifierConfig struct {
	Enabled bool
	// Interval between background refresh ticks. Default 120s.
	Interval time.Duration
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig configures claim interpretation.
type IdentityConfig struct {
	// DefaultRole is assumed when the credential carries no role claim under
	// either supported name. Default "employee".
	DefaultRole string
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

// EventsConfig configures the lifecycle event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking the emitter when the
	// buffer is full. Dropped events are counted.
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults. BaseURL must still be set by
// the caller.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
		},
		Refresh: RefreshConfig{
			AuthErrorCooldown:  10 * time.Second,
			BackgroundCooldown: 30 * time.Second,
			MaxConsecutive:     5,
			RequestTimeout:     10 * time.Second,
		},
		Notifier: NotifierConfig{
			Enabled:  true,
			Interval: 120 * time.Second,
		},
		Identity: IdentityConfig{
			DefaultRole: "employee",
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) normalize() {
	defaults := DefaultConfig()
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if c.Refresh.AuthErrorCooldown <= 0 {
		c.Refresh.AuthErrorCooldown = defaults.Refresh.AuthErrorCooldown
	}
	if c.Refresh.BackgroundCooldown <= 0 {
		c.Refresh.BackgroundCooldown = defaults.Refresh.BackgroundCooldown
	}
	if c.Refresh.MaxConsecutive <= 0 {
		c.Refresh.MaxConsecutive = defaults.Refresh.MaxConsecutive
	}
	if c.Refresh.RequestTimeout <= 0 {
		c.Refresh.RequestTimeout = defaults.Refresh.RequestTimeout
	}
	if c.Notifier.Interval <= 0 {
		c.Notifier.Interval = defaults.Notifier.Interval
	}
	if c.Identity.DefaultRole == "" {
		c.Identity.DefaultRole = defaults.Identity.DefaultRole
	}
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = defaults.Events.BufferSize
	}
}

func (c *Config) validate() error {
	if c.HTTP.BaseURL == "" {
		return fmt.Errorf("%w: HTTP.BaseURL is required", ErrConfigInvalid)
	}
	return nil
}

// cooldownFor maps a trigger to its configured cooldown window. Manual
// triggers are forced and never consult a cooldown.
func (c *Config) cooldownFor(trigger RefreshTrigger) time.Duration {
	switch trigger {
	case TriggerBackground:
		return c.Refresh.BackgroundCooldown
	default:
		return c.Refresh.AuthErrorCooldown
	}
}
