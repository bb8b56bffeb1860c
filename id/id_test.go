package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/herald/id"
)

func TestNewHasPrefix(t *testing.T) {
	tests := []struct {
		name string
		gen  func() id.ID
		want string
	}{
		{"rule", id.NewRuleID, "rule_"},
		{"account", id.NewAccountID, "acct_"},
		{"follower", id.NewFollowerID, "flw_"},
		{"trigger", id.NewTriggerID, "trig_"},
		{"claim", id.NewClaimID, "claim_"},
		{"failure", id.NewFailureID, "fail_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gen().String()
			if !strings.HasPrefix(got, tt.want) {
				t.Fatalf("ID %q does not start with %q", got, tt.want)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	ruleID := id.NewRuleID()

	parsed, err := id.ParseRuleID(ruleID.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.String() != ruleID.String() {
		t.Fatalf("round trip: got %s, want %s", parsed, ruleID)
	}

	if _, err := id.ParseFailureID(ruleID.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
	for _, bad := range []string{"", "rule", "not an id"} {
		if _, err := id.ParseRuleID(bad); err == nil {
			t.Errorf("ParseRuleID(%q) expected error", bad)
		}
	}
}

func TestJSONAndScan(t *testing.T) {
	type doc struct {
		ID       id.ID `json:"id"`
		Optional id.ID `json:"optional"`
	}
	in := doc{ID: id.NewTriggerID()}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out doc
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID.String() != in.ID.String() || !out.Optional.IsNil() {
		t.Fatalf("unexpected round trip: %+v", out)
	}

	var scanned id.ID
	if err := scanned.Scan([]byte(in.ID.String())); err != nil {
		t.Fatal(err)
	}
	if scanned.String() != in.ID.String() {
		t.Fatalf("Scan: got %s", scanned)
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Fatalf("Scan(nil) = %v, nil=%v", err, scanned.IsNil())
	}
	if v, err := id.Nil.Value(); err != nil || v != nil {
		t.Fatalf("Nil.Value() = %v, %v", v, err)
	}
}
