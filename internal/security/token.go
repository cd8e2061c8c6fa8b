package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const tokenEntropyBytes = 32

// NewOpaqueToken returns a hex-encoded random token with 256 bits of
// entropy. Used for refresh tokens, reset tokens, login links and trusted
// device tokens alike.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken derives the storage representation of an opaque token. Tokens
// are random, so an unsalted SHA-256 suffices and keeps lookups a point
// query.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
