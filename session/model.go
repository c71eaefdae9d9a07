package session

import (
	"crypto/sha256"
	"time"
)

// Fingerprint holds hashed device attributes recorded at session creation.
// Raw user-agent and address values are never stored.
type Fingerprint struct {
	UserAgentHash [32]byte
	IPHash        [32]byte
}

// Session is the server-side record that keeps a bearer token valid.
//
// TokenHash is SHA-256 of the bearer token and is the lookup key. ExpiresAt slides
// forward on activity but never past AbsoluteExpiresAt.
type Session struct {
	TokenHash         [32]byte
	SessionID         string
	UserID            string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	AbsoluteExpiresAt time.Time
	LastActiveAt      time.Time
	Fingerprint       Fingerprint
	CSRFHash          [32]byte
	Revoked           bool
}

// HashToken returns the lookup key for a bearer token.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// Expired reports whether the idle or absolute deadline has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt) || now.After(s.AbsoluteExpiresAt)
}

// NextExpiry returns the sliding deadline for activity at now, capped at AbsoluteExpiresAt.
func (s *Session) NextExpiry(now time.Time, idle time.Duration) time.Time {
	next := now.Add(idle)
	if next.After(s.AbsoluteExpiresAt) {
		return s.AbsoluteExpiresAt
	}
	return next
}
