package trigger_test

import (
	"testing"
	"time"

	"github.com/xraph/herald/id"
	"github.com/xraph/herald/trigger"
)

func TestNewClaimNaturalKey(t *testing.T) {
	ruleID := id.NewRuleID()
	at := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	a := trigger.NewClaim(ruleID, "U1", "no thanks", at)
	b := trigger.NewClaim(ruleID, "U1", "no thanks", at.Add(3*time.Minute))
	if a.Key != b.Key {
		t.Fatalf("same bucket should share a key: %q vs %q", a.Key, b.Key)
	}
	if a.ID.String() == b.ID.String() {
		t.Fatal("claim IDs must be unique")
	}

	tests := []struct {
		name  string
		claim *trigger.Claim
	}{
		{"other actor", trigger.NewClaim(ruleID, "U2", "no thanks", at)},
		{"other text", trigger.NewClaim(ruleID, "U1", "no thank you", at)},
		{"other rule", trigger.NewClaim(id.NewRuleID(), "U1", "no thanks", at)},
		{"next bucket", trigger.NewClaim(ruleID, "U1", "no thanks", at.Add(5*time.Minute))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.claim.Key == a.Key {
				t.Errorf("expected a distinct key, got %q", tt.claim.Key)
			}
		})
	}
}

func TestBucket(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if trigger.Bucket(start) != trigger.Bucket(start.Add(4*time.Minute+59*time.Second)) {
		t.Error("times inside one five-minute window must share a bucket")
	}
	if trigger.Bucket(start) == trigger.Bucket(start.Add(5*time.Minute)) {
		t.Error("the next window must be a different bucket")
	}
}

func TestClaimKeySplitsAcrossBucketBoundary(t *testing.T) {
	ruleID := id.NewRuleID()
	boundary := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)

	before := trigger.NewClaim(ruleID, "U1", "price?", boundary.Add(-time.Second))
	after := trigger.NewClaim(ruleID, "U1", "price?", boundary)
	if before.Key == after.Key {
		t.Fatal("firings one second apart across a boundary must claim different keys")
	}
	if after.ClaimedAt.Sub(before.ClaimedAt) >= trigger.BucketWidth {
		t.Fatal("both firings must fall inside the recent-trigger lookback")
	}
}
