package csrf

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// HeaderName carries the submitted token on state-changing requests.
	HeaderName = "X-CSRF-Token"
	// CookieName carries the issued token. It matches the header name.
	CookieName = HeaderName

	tokenBytes = 32
)

// Result is the outcome of a double-submit check.
type Result uint8

const (
	Pass Result = iota
	// RejectMissing means the cookie or the header was absent.
	RejectMissing
	// RejectMismatch means both were present and differed.
	RejectMismatch
)

func (r Result) String() string {
	switch r {
	case Pass:
		return "pass"
	case RejectMissing:
		return "missing"
	case RejectMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Exempt reports whether method is safe and bypasses the check.
func Exempt(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Verify compares the cookie and header tokens for a request with the given method.
// Values are compared by exact bytes in constant time.
func Verify(cookie, header, method string) Result {
	if Exempt(method) {
		return Pass
	}
	if cookie == "" || header == "" {
		return RejectMissing
	}
	if !Equal(cookie, header) {
		return RejectMismatch
	}
	return Pass
}

// Equal compares a and b in time independent of where they differ and of their lengths.
func Equal(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// NewToken returns a fresh random token, base64url encoded without padding.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash is the form in which a token is bound to a session.
func Hash(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// MatchesBinding reports whether token hashes to binding. A zero binding never matches.
func MatchesBinding(token string, binding [32]byte) bool {
	var zero [32]byte
	if binding == zero || token == "" {
		return false
	}
	h := Hash(token)
	return subtle.ConstantTimeCompare(h[:], binding[:]) == 1
}
