package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/herald"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
)

// PushFailure records a response that exhausted its retries.
func (s *Store) PushFailure(ctx context.Context, f *failure.Failure) error {
	m := toFailureModel(f)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/mongo: push failure: %w", err)
	}

	return nil
}

// GetFailure returns a failure record by ID.
func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Failure, error) {
	var m failureModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": failureID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, herald.ErrFailureNotFound
		}

		return nil, fmt.Errorf("herald/mongo: get failure: %w", err)
	}

	return fromFailureModel(&m)
}

// ListFailures returns failure records, newest first.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Failure, error) {
	var models []failureModel

	filter := bson.M{}
	if opts.OwnerUserID != "" {
		filter["owner_user_id"] = opts.OwnerUserID
	}

	if opts.AutomationID != nil {
		filter["automation_id"] = opts.AutomationID.String()
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["failed_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "failed_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/mongo: list failures: %w", err)
	}

	result := make([]*failure.Failure, 0, len(models))

	for i := range models {
		f, err := fromFailureModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, f)
	}

	return result, nil
}

// CountFailures returns the total number of failure records.
func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*failureModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/mongo: count failures: %w", err)
	}

	return count, nil
}

// PurgeFailures deletes failures older than before.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*failureModel)(nil)).
		Many().
		Filter(bson.M{"failed_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/mongo: purge failures: %w", err)
	}

	return res.DeletedCount(), nil
}
