// Package webhook authenticates inbound commerce-platform deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Authenticator verifies webhook payloads against a shared secret.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator builds an Authenticator for the given shared secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify reports whether signatureHeader matches the base64-encoded
// HMAC-SHA256 of rawBody. It never returns an error; a missing or malformed
// header simply fails verification. Comparison is constant-time.
func (a *Authenticator) Verify(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
