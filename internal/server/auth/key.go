// Package auth resolves bearer credentials to channel identities and decides
// who may finalize a capture session.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/dmitrijs2005/dropbox/internal/common"
)

// KeyPrefix marks relay API keys so they are recognizable in configs and logs.
const KeyPrefix = "sk-"

const bearerScheme = "Bearer "

// HashKey returns the stored digest of a bearer secret: base64(SHA-256(key)).
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// NewAPIKey mints a plaintext key: the prefix plus 32 random bytes in hex.
func NewAPIKey() (string, error) {
	s, err := common.MakeRandHexString(32)
	if err != nil {
		return "", err
	}
	return KeyPrefix + s, nil
}

// BearerToken extracts the secret from an Authorization header value. It
// reports false for a missing header, another scheme or an empty secret.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerScheme) {
		return "", false
	}
	token := header[len(bearerScheme):]
	if token == "" {
		return "", false
	}
	return token, true
}
