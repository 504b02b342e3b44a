package security

import (
	"crypto/rand"
	"encoding/base64"
)

// EndpointSecretPrefix marks server-generated webhook secrets so they are
// recognizable in receiver configuration.
const EndpointSecretPrefix = "whsec_"

// NewEndpointSecret generates a webhook signing secret with 32 bytes of
// entropy, base64url-encoded.
func NewEndpointSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return EndpointSecretPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// Last4 returns the trailing four characters of a secret, the only part that
// is ever exposed after creation.
func Last4(secret string) string {
	if len(secret) <= 4 {
		return secret
	}
	return secret[len(secret)-4:]
}
