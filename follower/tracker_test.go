package follower_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/store/memory"
)

func TestStateNext(t *testing.T) {
	tests := []struct {
		in   follower.State
		want follower.State
	}{
		{follower.StateUnknown, follower.StateFirstCommenter},
		{"", follower.StateFirstCommenter},
		{follower.StateFirstCommenter, follower.StateTrusted},
		{follower.StateTrusted, follower.StateTrusted},
	}
	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Errorf("%q.Next() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsNewFollower(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		followed  *time.Duration // ago
		commented bool
		want      bool
	}{
		{name: "unknown actor", want: false},
		{name: "followed an hour ago", followed: ptr(time.Hour), want: true},
		{name: "followed at the window edge", followed: ptr(7 * 24 * time.Hour), want: true},
		{name: "followed before the window", followed: ptr(8 * 24 * time.Hour), want: false},
		{name: "already commented", followed: ptr(time.Hour), commented: true, want: false},
		{name: "commented but never followed", commented: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			tr := follower.NewTracker(s, 0)
			tr.SetClock(func() time.Time { return now })

			if tt.followed != nil {
				at := now.Add(-*tt.followed)
				if err := s.RecordFollow(ctx, &follower.Follower{OwnerUserID: "o", ActorID: "a", FollowedAt: &at}); err != nil {
					t.Fatal(err)
				}
			}
			if tt.commented {
				if err := tr.MarkCommented(ctx, "o", "a"); err != nil {
					t.Fatal(err)
				}
			}

			got, err := tr.IsNewFollower(ctx, "o", "a")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("IsNewFollower = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerAdvance(t *testing.T) {
	ctx := context.Background()
	tr := follower.NewTracker(memory.New(), time.Hour)

	first, err := tr.Advance(ctx, "o", "a")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := tr.Advance(ctx, "o", "a")
	if first != follower.StateFirstCommenter || second != follower.StateTrusted {
		t.Fatalf("got %q then %q", first, second)
	}
}

func ptr(d time.Duration) *time.Duration { return &d }
