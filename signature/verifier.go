package signature

import (
	"crypto/hmac"
	"crypto/subtle"
	"strings"
)

// Verify checks the header value against the payload signed with the
// Signer's app secret.
func (s *Signer) Verify(payload []byte, sig string) bool {
	return Verify(payload, s.appSecret, sig)
}

// Verify checks whether sig matches the expected signature for payload and
// secret. The algorithm tag is case-insensitive; an empty secret never
// verifies.
func Verify(payload []byte, secret, sig string) bool {
	if secret == "" || len(sig) <= len(prefix) || !strings.EqualFold(sig[:len(prefix)], prefix) {
		return false
	}
	expected := Sign(payload, secret)
	got := prefix + strings.ToLower(sig[len(prefix):])
	return hmac.Equal([]byte(expected), []byte(got))
}

// VerifyToken compares the hub.verify_token of a subscription handshake in
// constant time. An empty expected token never verifies.
func VerifyToken(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
