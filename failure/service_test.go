package failure_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/store/memory"
)

func TestServiceRecordAndGet(t *testing.T) {
	ctx := context.Background()
	svc := failure.NewService(memory.New(), nil)

	f := &failure.Failure{
		AutomationID: id.NewRuleID(),
		OwnerUserID:  "user-1",
		EventKind:    "comment",
		ActorID:      "A1",
		Action:       failure.ActionCommentReply,
		Message:      "thanks!",
		Error:        "graph: 500",
		AttemptCount: 3,
	}
	if err := svc.Record(ctx, f); err != nil {
		t.Fatal(err)
	}
	if f.ID.String() == "" {
		t.Fatal("Record must assign an ID")
	}
	if f.FailedAt.IsZero() {
		t.Fatal("Record must stamp FailedAt")
	}

	got, err := svc.Get(ctx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != failure.ActionCommentReply || got.AttemptCount != 3 {
		t.Fatalf("got %+v", got)
	}

	if _, err := svc.Get(ctx, id.NewFailureID()); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("Get(unknown) err = %v, want ErrNotFound", err)
	}
}

func TestServiceListCountPurge(t *testing.T) {
	ctx := context.Background()
	svc := failure.NewService(memory.New(), nil)
	now := time.Now().UTC()

	for i, owner := range []string{"user-1", "user-1", "user-2"} {
		f := &failure.Failure{
			AutomationID: id.NewRuleID(),
			OwnerUserID:  owner,
			Action:       failure.ActionDirectMessage,
			FailedAt:     now.Add(-time.Duration(i) * time.Hour),
		}
		if err := svc.Record(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	all, err := svc.List(ctx, failure.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].FailedAt.Before(all[1].FailedAt) {
		t.Fatal("failures must be listed newest first")
	}

	owned, err := svc.List(ctx, failure.ListOpts{OwnerUserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 {
		t.Fatalf("len(owned) = %d, want 2", len(owned))
	}

	purged, err := svc.Purge(ctx, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 2 {
		t.Fatalf("purged = %d, want 2", purged)
	}

	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
