package session

import (
	"crypto/subtle"

	"github.com/MrEthical07/goGate/internal"
)

const (
	userAgentWeight = 0.6
	ipWeight        = 0.4
)

// NewFingerprint hashes the device attributes observed on a request. Empty values
// stay as the zero hash.
func NewFingerprint(userAgent, ip string) Fingerprint {
	var fp Fingerprint
	if userAgent != "" {
		fp.UserAgentHash = internal.HashBindingValue(userAgent)
	}
	if ip != "" {
		fp.IPHash = internal.HashBindingValue(ip)
	}
	return fp
}

// TrustScore compares the fingerprint recorded at creation with the current one and
// returns a confidence in [0, 1]. 1 means every recorded attribute still matches.
// An attribute missing on either side counts as half a match.
//
// The score is advisory. It feeds logging, metrics and audit; it only rejects
// requests when the engine runs in strict device mode.
func TrustScore(recorded, current Fingerprint) float64 {
	return userAgentWeight*attributeScore(recorded.UserAgentHash, current.UserAgentHash) +
		ipWeight*attributeScore(recorded.IPHash, current.IPHash)
}

func attributeScore(recorded, current [32]byte) float64 {
	recordedPresent := !isZeroHash(recorded)
	currentPresent := !isZeroHash(current)
	switch {
	case !recordedPresent && !currentPresent:
		return 1
	case !recordedPresent || !currentPresent:
		return 0.5
	case subtle.ConstantTimeCompare(recorded[:], current[:]) == 1:
		return 1
	default:
		return 0
	}
}

func isZeroHash(h [32]byte) bool {
	var zero [32]byte
	return subtle.ConstantTimeCompare(h[:], zero[:]) == 1
}
