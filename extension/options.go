package extension

import (
	"log/slog"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/herald"
	"github.com/xraph/herald/ai"
	"github.com/xraph/herald/dedup"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/store"
)

// ExtOption configures the Herald extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.store = s
	}
}

// WithMessaging replaces the Graph API client.
func WithMessaging(c messaging.Client) ExtOption {
	return func(e *Extension) {
		e.messenger = c
	}
}

// WithCompleter replaces the Gemini completer.
func WithCompleter(c ai.Completer) ExtOption {
	return func(e *Extension) {
		e.completer = c
	}
}

// WithDedupCache sets the dedup cache, overriding one provided by the store.
func WithDedupCache(c dedup.Cache) ExtOption {
	return func(e *Extension) {
		e.cache = c
	}
}

// WithMetricFactory enables metrics, e.g. with fapp.Metrics() from Forge.
func WithMetricFactory(f gu.MetricFactory) ExtOption {
	return func(e *Extension) {
		e.factory = f
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithBasePath sets the URL prefix for all Herald routes.
func WithBasePath(prefix string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = prefix
	}
}

// WithHeraldOption appends a raw herald.Option, applied after the
// options derived from Config.
func WithHeraldOption(opt herald.Option) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, opt)
	}
}

// WithDisableRoutes disables Forge route registration.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables store migration on Start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
