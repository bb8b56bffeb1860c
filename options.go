package herald

import (
	"log/slog"
	"time"

	"github.com/xraph/herald/ai"
	"github.com/xraph/herald/dedup"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/observability"
	"github.com/xraph/herald/store"
)

// Option configures a Herald instance.
type Option func(*Herald) error

// WithStore sets the persistence backend for the Herald instance.
func WithStore(s store.Store) Option {
	return func(h *Herald) error {
		h.store = s
		return nil
	}
}

// WithMessaging sets the outbound Instagram messaging client.
func WithMessaging(c messaging.Client) Option {
	return func(h *Herald) error {
		h.messenger = c
		return nil
	}
}

// WithCompleter sets the AI completion provider used by ai_generated rules.
func WithCompleter(c ai.Completer) Option {
	return func(h *Herald) error {
		h.completer = c
		return nil
	}
}

// WithDedupCache replaces the in-process dedup cache, e.g. with a Redis
// cache shared by several instances.
func WithDedupCache(c dedup.Cache) Option {
	return func(h *Herald) error {
		h.cache = c
		return nil
	}
}

// WithLogger sets the structured logger for the Herald instance.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Herald) error {
		h.logger = logger
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Herald) error {
		h.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(h *Herald) error {
		h.tracer = t
		return nil
	}
}

// WithConfig replaces the whole configuration. Non-positive durations and
// counts fall back to DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(h *Herald) error {
		h.config = cfg
		return nil
	}
}

// WithDedupTTL sets how long an event key suppresses redeliveries.
func WithDedupTTL(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.DedupTTL = d
		return nil
	}
}

// WithMaxAttempts sets the attempt budget per outbound messaging call.
func WithMaxAttempts(n int) Option {
	return func(h *Herald) error {
		h.config.MaxAttempts = n
		return nil
	}
}

// WithBaseDelay sets the first retry backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.BaseDelay = d
		return nil
	}
}

// WithRequestTimeout sets the per-attempt timeout of outbound calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.RequestTimeout = d
		return nil
	}
}

// WithNewFollowerWindow sets how long after following an actor counts as new.
func WithNewFollowerWindow(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.NewFollowerWindow = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time Stop waits for background loops.
func WithShutdownTimeout(d time.Duration) Option {
	return func(h *Herald) error {
		h.config.ShutdownTimeout = d
		return nil
	}
}
