package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxWebhookBodyBytes is the fixed ceiling for inbound webhook payloads.
const MaxWebhookBodyBytes = 1 << 20

// VerifyWebhookSignature checks an HMAC-SHA256 signature over the raw,
// unparsed request body. The header carries "sha256=<hex-digest>"; a bare
// hex digest is accepted too. Comparison is constant time. Missing
// header, missing secret or malformed hex all fail closed.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	if algo, digest, ok := strings.Cut(sig, "="); ok {
		if !strings.EqualFold(strings.TrimSpace(algo), "sha256") {
			return false
		}
		sig = strings.TrimSpace(digest)
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
