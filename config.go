package herald

import "time"

// Config holds the configuration for a Herald instance.
type Config struct {
	// DedupTTL is how long an event key suppresses redeliveries.
	DedupTTL time.Duration

	// SweepInterval is how often expired dedup entries and stale trigger
	// claims are evicted.
	SweepInterval time.Duration

	// DuplicateWindow is the lookback of the durable recent-trigger check.
	DuplicateWindow time.Duration

	// ReleaseOnError drops a dedup key when processing fails so the same
	// event may be replayed. Diagnostic use only.
	ReleaseOnError bool

	// MaxAttempts is the total attempt budget per outbound messaging call.
	MaxAttempts int

	// BaseDelay is the first retry backoff; each later delay doubles.
	BaseDelay time.Duration

	// RequestTimeout bounds each outbound messaging attempt.
	RequestTimeout time.Duration

	// MaxResponseLength caps AI-generated responses, in runes.
	MaxResponseLength int

	// NewFollowerWindow is how long after following an actor counts as new.
	NewFollowerWindow time.Duration

	// ClaimRetention is how long trigger claims are kept before purging.
	ClaimRetention time.Duration

	// ShutdownTimeout is the maximum time Stop waits for background loops.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DedupTTL:          5 * time.Minute,
		SweepInterval:     1 * time.Minute,
		DuplicateWindow:   5 * time.Minute,
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		RequestTimeout:    10 * time.Second,
		MaxResponseLength: 800,
		NewFollowerWindow: 7 * 24 * time.Hour,
		ClaimRetention:    1 * time.Hour,
		ShutdownTimeout:   30 * time.Second,
	}
}

// withDefaults fills every non-positive duration and count from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DedupTTL <= 0 {
		c.DedupTTL = def.DedupTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = def.DuplicateWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.MaxResponseLength <= 0 {
		c.MaxResponseLength = def.MaxResponseLength
	}
	if c.NewFollowerWindow <= 0 {
		c.NewFollowerWindow = def.NewFollowerWindow
	}
	if c.ClaimRetention <= 0 {
		c.ClaimRetention = def.ClaimRetention
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}
