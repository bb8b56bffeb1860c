// Package extension assembles a production Herald from configuration and
// mounts it into a Forge application:
//   - builds the Graph messaging client, Gemini completer and metrics
//   - runs store migrations on Start
//   - serves webhook ingress through Handler
//   - mounts admin API routes with OpenAPI metadata on a Forge router
//   - reports health via store.Ping
package extension

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/forge"
	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/herald"
	"github.com/xraph/herald/ai"
	"github.com/xraph/herald/api"
	"github.com/xraph/herald/dedup"
	"github.com/xraph/herald/messaging"
	"github.com/xraph/herald/observability"
	"github.com/xraph/herald/ratelimit"
	"github.com/xraph/herald/signature"
	"github.com/xraph/herald/store"
)

// Extension wires a Herald instance into a host application.
type Extension struct {
	config    Config
	store     store.Store
	messenger messaging.Client
	completer ai.Completer
	cache     dedup.Cache
	factory   gu.MetricFactory
	logger    *slog.Logger
	opts      []herald.Option

	herald  *herald.Herald
	handler *api.Handler
}

// dedupCacheProvider is implemented by stores that can host the shared
// dedup cache, such as the Redis store.
type dedupCacheProvider interface {
	DedupCache() dedup.Cache
}

// New builds the extension and its Herald instance. A store is required;
// the messenger defaults to the Graph API client and AI responses are
// enabled when a Gemini key is configured. A store that provides a dedup
// cache shares it across instances unless WithDedupCache overrides it.
func New(ctx context.Context, cfg Config, opts ...ExtOption) (*Extension, error) {
	e := &Extension{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("herald extension: %w", err)
	}
	if e.store == nil {
		return nil, herald.ErrNoStore
	}

	if e.config.VerifyToken == "" {
		e.config.VerifyToken = signature.GenerateVerifyToken()
		e.logger.Info("herald generated a webhook verify token; read it from Extension.VerifyToken")
	}

	if e.messenger == nil {
		e.messenger = messaging.NewGraphClient(messaging.GraphConfig{
			BaseURL: e.config.GraphBaseURL,
			Timeout: e.config.RequestTimeout,
			Budget: ratelimit.Budget{
				Calls:  e.config.GraphCallsPerHour,
				Period: time.Hour,
			},
		})
	}

	if e.completer == nil && e.config.GeminiAPIKey != "" {
		g, err := ai.NewGemini(ctx, e.config.GeminiAPIKey, e.config.GeminiModels...)
		if err != nil {
			return nil, fmt.Errorf("herald extension: %w", err)
		}
		e.completer = g
	}

	if e.cache == nil {
		if p, ok := e.store.(dedupCacheProvider); ok {
			e.cache = p.DedupCache()
		}
	}

	hopts := []herald.Option{
		herald.WithConfig(e.config.HeraldConfig()),
		herald.WithStore(e.store),
		herald.WithMessaging(e.messenger),
		herald.WithLogger(e.logger),
		herald.WithTracer(observability.NewTracer()),
	}
	if e.completer != nil {
		hopts = append(hopts, herald.WithCompleter(e.completer))
	}
	if e.cache != nil {
		hopts = append(hopts, herald.WithDedupCache(e.cache))
	}
	if e.factory != nil {
		hopts = append(hopts, herald.WithMetrics(observability.NewMetrics(e.factory)))
	}
	hopts = append(hopts, e.opts...)

	h, err := herald.New(hopts...)
	if err != nil {
		return nil, fmt.Errorf("herald extension: %w", err)
	}
	e.herald = h

	e.handler = api.NewHandler(h, api.Config{
		AppSecret:   e.config.AppSecret,
		VerifyToken: e.config.VerifyToken,
		BasePath:    e.config.BasePath,
		Logger:      e.logger,
	})
	return e, nil
}

// Herald returns the underlying pipeline.
func (e *Extension) Herald() *herald.Herald { return e.herald }

// Handler returns the net/http handler serving webhook ingress and the
// admin API under the configured base path.
func (e *Extension) Handler() http.Handler { return e.handler }

// VerifyToken returns the token the subscription handshake expects.
func (e *Extension) VerifyToken() string { return e.config.VerifyToken }

// BasePath returns the configured URL prefix.
func (e *Extension) BasePath() string { return e.config.BasePath }

// RegisterRoutes mounts the admin API on a Forge router under the base path.
// Webhook ingress stays on Handler because signature checks need the raw body.
func (e *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if e.config.DisableRoutes {
		return
	}
	api.NewForgeAPI(e.herald, log).RegisterRoutes(router.Group(e.config.BasePath))
}

// Start runs migrations and launches Herald's background loops.
func (e *Extension) Start(ctx context.Context) error {
	if !e.config.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("herald extension: migrate: %w", err)
		}
	}
	e.herald.Start(ctx)
	return nil
}

// Stop drains Herald and closes the store.
func (e *Extension) Stop(ctx context.Context) error {
	e.herald.Stop(ctx)
	return e.store.Close()
}

// Health reports whether the store is reachable.
func (e *Extension) Health(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("herald extension: store unreachable: %w", err)
	}
	return nil
}
