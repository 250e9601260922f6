package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"subscription.created"}`)
	secret := "whsec_test"
	digest := sign(payload, secret)

	assert.True(t, VerifyWebhookSignature(payload, "sha256="+digest, secret))
	assert.True(t, VerifyWebhookSignature(payload, digest, secret), "bare hex digest accepted")
	assert.True(t, VerifyWebhookSignature(payload, "SHA256="+digest, secret), "algorithm prefix is case insensitive")
}

func TestVerifyWebhookSignatureRejects(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	digest := sign(payload, secret)

	tests := []struct {
		name   string
		body   []byte
		header string
		secret string
	}{
		{name: "missing header", body: payload, header: "", secret: secret},
		{name: "missing secret", body: payload, header: "sha256=" + digest, secret: ""},
		{name: "wrong secret", body: payload, header: "sha256=" + sign(payload, "other"), secret: secret},
		{name: "tampered body", body: []byte(`{"id":"evt_2"}`), header: "sha256=" + digest, secret: secret},
		{name: "wrong algorithm", body: payload, header: "sha1=" + digest, secret: secret},
		{name: "not hex", body: payload, header: "sha256=zzzz", secret: secret},
		{name: "truncated digest", body: payload, header: "sha256=" + digest[:32], secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyWebhookSignature(tt.body, tt.header, tt.secret))
		})
	}
}
