package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printmill/printmill/internal/webhook"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	auth := webhook.NewAuthenticator("shpss_secret")
	body := []byte(`{"id":100,"order_number":"#100"}`)

	assert.True(t, auth.Verify(body, sign("shpss_secret", body)))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	auth := webhook.NewAuthenticator("shpss_secret")
	body := []byte(`{"id":100}`)

	assert.False(t, auth.Verify(body, sign("other_secret", body)))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	auth := webhook.NewAuthenticator("shpss_secret")
	sig := sign("shpss_secret", []byte(`{"id":100}`))

	assert.False(t, auth.Verify([]byte(`{"id":101}`), sig))
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	auth := webhook.NewAuthenticator("shpss_secret")

	assert.False(t, auth.Verify([]byte(`{}`), ""))
}

func TestVerifyRejectsGarbageHeader(t *testing.T) {
	auth := webhook.NewAuthenticator("shpss_secret")

	assert.False(t, auth.Verify([]byte(`{}`), "not-base64-at-all"))
}
