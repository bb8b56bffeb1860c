// Package signature verifies the X-Hub-Signature-256 header Meta attaches to
// webhook deliveries and the verify token of the subscription handshake.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the request header carrying the payload signature.
const Header = "X-Hub-Signature-256"

// prefix is the algorithm tag preceding the hex digest.
const prefix = "sha256="

// Signer computes HMAC-SHA256 signatures for webhook payloads.
type Signer struct {
	appSecret string
}

// NewSigner returns a Signer keyed by the app secret.
func NewSigner(appSecret string) *Signer {
	return &Signer{appSecret: appSecret}
}

// Sign generates the signature for payload in the format "sha256=<hex>".
func (s *Signer) Sign(payload []byte) string {
	return Sign(payload, s.appSecret)
}

// Sign generates the HMAC-SHA256 of the raw payload bytes keyed by secret.
// Returns the header value in the format "sha256=<hex>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}
