package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// NewSessionID returns a time-ordered UUIDv7 string. Its 74 random bits plus the
// millisecond prefix make it unique per issued token.
func NewSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSecret returns n random bytes, base64url encoded without padding.
func NewSecret(n int) (string, error) {
	if n < 16 {
		return "", errors.New("secret must be at least 16 bytes")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
