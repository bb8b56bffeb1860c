package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/herald"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/trigger"
)

// ClaimTrigger inserts a claim. The unique key index rejects a second claim.
func (s *Store) ClaimTrigger(ctx context.Context, c *trigger.Claim) error {
	m := toClaimModel(c)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return herald.ErrDuplicateTrigger
		}

		return fmt.Errorf("herald/mongo: claim trigger: %w", err)
	}

	return nil
}

// ReleaseClaim deletes a claim so the trigger can fire again.
func (s *Store) ReleaseClaim(ctx context.Context, key string) error {
	_, err := s.mdb.NewDelete((*claimModel)(nil)).
		Filter(bson.M{"key": key}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: release claim: %w", err)
	}

	return nil
}

// PurgeClaims deletes claims older than before.
func (s *Store) PurgeClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*claimModel)(nil)).
		Many().
		Filter(bson.M{"claimed_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/mongo: purge claims: %w", err)
	}

	return res.DeletedCount(), nil
}

// CreateTriggerLog persists a trigger log.
func (s *Store) CreateTriggerLog(ctx context.Context, l *trigger.TriggerLog) error {
	m := toTriggerLogModel(l)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: create trigger log: %w", err)
	}

	return nil
}

// HasRecentTrigger reports whether the same text fired the rule for the
// actor since the given time.
func (s *Store) HasRecentTrigger(ctx context.Context, automationID id.ID, actorID, text string, since time.Time) (bool, error) {
	count, err := s.mdb.NewFind((*triggerLogModel)(nil)).
		Filter(bson.M{
			"automation_id": automationID.String(),
			"actor_id":      actorID,
			"trigger_text":  text,
			"triggered_at":  bson.M{"$gte": since},
		}).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("herald/mongo: recent trigger: %w", err)
	}

	return count > 0, nil
}

// ListTriggerLogs returns trigger logs, newest first.
func (s *Store) ListTriggerLogs(ctx context.Context, opts trigger.ListOpts) ([]*trigger.TriggerLog, error) {
	var models []triggerLogModel

	q := s.mdb.NewFind(&models).
		Filter(triggerLogFilter(opts)).
		Sort(bson.D{{Key: "triggered_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/mongo: list trigger logs: %w", err)
	}

	result := make([]*trigger.TriggerLog, 0, len(models))

	for i := range models {
		l, err := fromTriggerLogModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, l)
	}

	return result, nil
}

// CountTriggerLogs returns the number of trigger logs matching opts.
func (s *Store) CountTriggerLogs(ctx context.Context, opts trigger.ListOpts) (int64, error) {
	count, err := s.mdb.NewFind((*triggerLogModel)(nil)).
		Filter(triggerLogFilter(opts)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/mongo: count trigger logs: %w", err)
	}

	return count, nil
}

func triggerLogFilter(opts trigger.ListOpts) bson.M {
	filter := bson.M{}
	if opts.AutomationID != nil {
		filter["automation_id"] = opts.AutomationID.String()
	}

	if opts.ActorID != "" {
		filter["actor_id"] = opts.ActorID
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["triggered_at"] = dateFilter
	}

	return filter
}
