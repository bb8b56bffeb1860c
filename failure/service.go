package failure

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
)

// Service manages failure records.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new failure service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Record assigns identity and timestamps to f and persists it.
func (svc *Service) Record(ctx context.Context, f *Failure) error {
	f.Entity = entity.New()
	f.ID = id.NewFailureID()
	if f.FailedAt.IsZero() {
		f.FailedAt = time.Now().UTC()
	}

	if err := svc.store.PushFailure(ctx, f); err != nil {
		return err
	}

	svc.logger.WarnContext(ctx, "response delivery failed",
		"failure_id", f.ID,
		"automation_id", f.AutomationID,
		"action", string(f.Action),
		"attempts", f.AttemptCount,
		"error", f.Error,
	)
	return nil
}

// List returns failures matching opts.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Failure, error) {
	return svc.store.ListFailures(ctx, opts)
}

// Get returns a failure by ID.
func (svc *Service) Get(ctx context.Context, failureID id.ID) (*Failure, error) {
	return svc.store.GetFailure(ctx, failureID)
}

// Count returns the number of failure records.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountFailures(ctx)
}

// Purge removes failures older than the given threshold.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	count, err := svc.store.PurgeFailures(ctx, before)
	if err != nil {
		return 0, err
	}

	svc.logger.InfoContext(ctx, "failures purged", "count", count, "before", before)
	return count, nil
}
