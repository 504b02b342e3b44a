package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the webhook signature header value for a payload:
// sha256=<hex HMAC-SHA256 of body under secret>.
func SignPayload(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifyPayload checks a received signature header against the expected value
// in constant time. Receivers use this to authenticate inbound webhooks.
func VerifyPayload(secret string, body []byte, header string) bool {
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}
