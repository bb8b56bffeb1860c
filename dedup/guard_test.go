package dedup_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/herald/dedup"
	"github.com/xraph/herald/event"
)

func ctx() context.Context { return context.Background() }

func sampleEvent() *event.InboundEvent {
	return &event.InboundEvent{
		Kind:               event.KindComment,
		EventID:            "C1",
		ActorID:            "U1",
		RecipientAccountID: "ACC1",
		Text:               "no thanks",
		PostID:             "P1",
	}
}

func TestCheckAndReserveFirstThenDuplicate(t *testing.T) {
	g := dedup.NewGuard(dedup.NewMemoryCache(), dedup.Config{}, nil)

	first, err := g.CheckAndReserve(ctx(), sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if !first.Fresh {
		t.Fatal("first delivery must be fresh")
	}

	second, err := g.CheckAndReserve(ctx(), sampleEvent())
	if err != nil {
		t.Fatal(err)
	}
	if second.Fresh {
		t.Fatal("redelivery inside the TTL must not be fresh")
	}
	if first.Key != second.Key {
		t.Fatalf("keys differ: %q vs %q", first.Key, second.Key)
	}
}

func TestCheckAndReserveConcurrent(t *testing.T) {
	g := dedup.NewGuard(dedup.NewMemoryCache(), dedup.Config{}, nil)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.CheckAndReserve(ctx(), sampleEvent())
			if err != nil {
				t.Error(err)
				return
			}
			if res.Fresh {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := fresh.Load(); got != 1 {
		t.Fatalf("expected exactly one fresh reservation, got %d", got)
	}
}

func TestReservationExpires(t *testing.T) {
	cache := dedup.NewMemoryCache()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	g := dedup.NewGuard(cache, dedup.Config{TTL: 5 * time.Minute}, nil)

	if res, _ := g.CheckAndReserve(ctx(), sampleEvent()); !res.Fresh {
		t.Fatal("expected fresh")
	}

	now = now.Add(4 * time.Minute)
	if res, _ := g.CheckAndReserve(ctx(), sampleEvent()); res.Fresh {
		t.Fatal("expected duplicate inside the window")
	}

	now = now.Add(2 * time.Minute)
	if res, _ := g.CheckAndReserve(ctx(), sampleEvent()); !res.Fresh {
		t.Fatal("expected fresh after the window elapsed")
	}
}

func TestCompleteMarksOutcome(t *testing.T) {
	cache := dedup.NewMemoryCache()
	g := dedup.NewGuard(cache, dedup.Config{}, nil)

	res, _ := g.CheckAndReserve(ctx(), sampleEvent())
	if rec, ok := cache.Get(res.Key); !ok || rec.Outcome != dedup.OutcomeInFlight {
		t.Fatalf("expected in-flight record, got %+v", rec)
	}

	if err := g.Complete(ctx(), res.Key, errors.New("send failed")); err != nil {
		t.Fatal(err)
	}
	rec, ok := cache.Get(res.Key)
	if !ok || rec.Outcome != dedup.OutcomeErrored {
		t.Fatalf("expected errored record, got %+v", rec)
	}

	// An errored key still blocks redelivery.
	if again, _ := g.CheckAndReserve(ctx(), sampleEvent()); again.Fresh {
		t.Fatal("errored key must keep blocking")
	}
}

func TestReleaseOnError(t *testing.T) {
	g := dedup.NewGuard(dedup.NewMemoryCache(), dedup.Config{ReleaseOnError: true}, nil)

	res, _ := g.CheckAndReserve(ctx(), sampleEvent())
	if err := g.Complete(ctx(), res.Key, errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	if again, _ := g.CheckAndReserve(ctx(), sampleEvent()); !again.Fresh {
		t.Fatal("released key must be reservable again")
	}
}

func TestSweepEvictsExpired(t *testing.T) {
	cache := dedup.NewMemoryCache()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return base })

	for _, k := range []string{"a", "b"} {
		if _, err := cache.Reserve(ctx(), k, dedup.Record{Outcome: dedup.OutcomeInFlight}, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := cache.Reserve(ctx(), "c", dedup.Record{Outcome: dedup.OutcomeInFlight}, time.Hour); err != nil {
		t.Fatal(err)
	}

	n, err := cache.Sweep(ctx(), base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("evicted %d, want 2", n)
	}
	if l, _ := cache.Len(ctx()); l != 1 {
		t.Fatalf("Len = %d, want 1", l)
	}
}

func TestKey(t *testing.T) {
	withID := sampleEvent()
	if got := dedup.Key(withID); got != "comment:C1" {
		t.Errorf("Key = %q", got)
	}

	a := sampleEvent()
	a.EventID = ""
	b := sampleEvent()
	b.EventID = ""
	b.ReceivedAt = time.Now()
	if dedup.Key(a) != dedup.Key(b) {
		t.Error("fingerprint must be stable across identical redeliveries")
	}

	c := sampleEvent()
	c.EventID = ""
	c.Text = "yes please"
	if dedup.Key(a) == dedup.Key(c) {
		t.Error("different text must produce a different fingerprint")
	}

	dm := sampleEvent()
	dm.Kind = event.KindDirectMessage
	if dedup.Key(dm) == dedup.Key(withID) {
		t.Error("kind must be part of the key")
	}
}

func TestGuardSweepUsesGuardClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base

	cache := dedup.NewMemoryCache()
	cache.SetClock(func() time.Time { return now })
	g := dedup.NewGuard(cache, dedup.Config{TTL: time.Minute}, nil)
	g.SetClock(func() time.Time { return now })

	if _, err := g.CheckAndReserve(ctx(), sampleEvent()); err != nil {
		t.Fatal(err)
	}

	now = base.Add(30 * time.Second)
	if n, err := g.Sweep(ctx()); err != nil || n != 0 {
		t.Fatalf("Sweep before expiry = %d, %v; want 0", n, err)
	}

	now = base.Add(2 * time.Minute)
	n, err := g.Sweep(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Sweep after expiry = %d, want 1", n)
	}
}
