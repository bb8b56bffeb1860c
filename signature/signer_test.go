package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/xraph/herald/signature"
)

func TestSignKnownVector(t *testing.T) {
	signer := signature.NewSigner("app-secret")
	payload := []byte(`{"object":"instagram","entry":[]}`)

	got := signer.Sign(payload)

	// Compute expected HMAC-SHA256 independently.
	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := signature.NewSigner("roundtrip")
	payload := []byte(`{"object":"instagram"}`)

	sig := signer.Sign(payload)
	if !signer.Verify(payload, sig) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"object":"instagram"}`)
	good := signature.Sign(payload, "secret")

	tests := []struct {
		name   string
		body   []byte
		secret string
		sig    string
		want   bool
	}{
		{"valid", payload, "secret", good, true},
		{"uppercase hex", payload, "secret", "sha256=" + strings.ToUpper(good[len("sha256="):]), true},
		{"uppercase tag", payload, "secret", "SHA256=" + good[len("sha256="):], true},
		{"tampered payload", []byte(`{"object":"page"}`), "secret", good, false},
		{"wrong secret", payload, "other", good, false},
		{"empty secret", payload, "", signature.Sign(payload, ""), false},
		{"missing tag", payload, "secret", good[len("sha256="):], false},
		{"sha1 tag", payload, "secret", "sha1=" + good[len("sha256="):], false},
		{"empty", payload, "secret", "", false},
		{"tag only", payload, "secret", "sha256=", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signature.Verify(tt.body, tt.secret, tt.sig); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyToken(t *testing.T) {
	tests := []struct {
		expected string
		got      string
		want     bool
	}{
		{"token", "token", true},
		{"token", "Token", false},
		{"token", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := signature.VerifyToken(tt.expected, tt.got); got != tt.want {
			t.Errorf("VerifyToken(%q, %q) = %v, want %v", tt.expected, tt.got, got, tt.want)
		}
	}
}
