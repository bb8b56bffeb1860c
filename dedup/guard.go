package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/herald/event"
)

// DefaultTTL is how long a reserved key suppresses redeliveries.
const DefaultTTL = 5 * time.Minute

// Config holds guard configuration.
type Config struct {
	// TTL is the suppression window for a key.
	TTL time.Duration

	// SweepInterval is how often expired entries are evicted.
	SweepInterval time.Duration

	// ReleaseOnError drops a key instead of marking it errored when
	// downstream processing fails, so the same event can be replayed.
	// Diagnostic use only.
	ReleaseOnError bool
}

// Reservation is the result of CheckAndReserve.
type Reservation struct {
	Key   string
	Fresh bool
}

// Guard gives the "first time" or "already seen" verdict for an event.
type Guard struct {
	cache  Cache
	config Config
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGuard creates a guard over cache.
func NewGuard(cache Cache, cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Guard{
		cache:  cache,
		config: cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the guard's time source.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// CheckAndReserve atomically reserves the event's key. Fresh is false when an
// unexpired entry already exists; the caller must then stop with no further
// side effects.
func (g *Guard) CheckAndReserve(ctx context.Context, evt *event.InboundEvent) (Reservation, error) {
	key := Key(evt)
	ok, err := g.cache.Reserve(ctx, key, Record{Outcome: OutcomeInFlight, At: g.now()}, g.config.TTL)
	if err != nil {
		return Reservation{Key: key}, err
	}
	return Reservation{Key: key, Fresh: ok}, nil
}

// Complete records the processing outcome for a reserved key. A failed
// event stays blocked for the rest of the TTL as errored, unless
// ReleaseOnError is set.
func (g *Guard) Complete(ctx context.Context, key string, procErr error) error {
	if procErr == nil {
		return g.cache.Mark(ctx, key, Record{Outcome: OutcomeHandled, At: g.now()})
	}
	if g.config.ReleaseOnError {
		g.logger.DebugContext(ctx, "dedup key released after error", "key", key, "error", procErr)
		return g.cache.Release(ctx, key)
	}
	return g.cache.Mark(ctx, key, Record{Outcome: OutcomeErrored, At: g.now()})
}

// Release drops a reserved key.
func (g *Guard) Release(ctx context.Context, key string) error {
	return g.cache.Release(ctx, key)
}

// Sweep evicts expired entries once.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	return g.cache.Sweep(ctx, g.now())
}

// Len returns the number of entries held by the cache.
func (g *Guard) Len(ctx context.Context) (int, error) {
	return g.cache.Len(ctx)
}

// Start launches the background sweep loop.
func (g *Guard) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.sweepLoop(ctx)
	}()
}

// Stop cancels the sweep loop and waits for it to exit.
func (g *Guard) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

func (g *Guard) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(g.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := g.Sweep(ctx)
			if err != nil {
				g.logger.WarnContext(ctx, "dedup sweep failed", "error", err)
				continue
			}
			if n > 0 {
				g.logger.DebugContext(ctx, "dedup sweep", "evicted", n)
			}
		}
	}
}
