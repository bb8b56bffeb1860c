package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateVerifyToken creates a random subscription verify token.
// Format: "hvt_" + 24 bytes hex = 52 characters total.
func GenerateVerifyToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic("herald: failed to generate random verify token: " + err.Error())
	}
	return "hvt_" + hex.EncodeToString(b)
}
