package internal

import "crypto/sha256"

// HashBindingValue hashes a device attribute so raw user agents and addresses are
// never persisted.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}
