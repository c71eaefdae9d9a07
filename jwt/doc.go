// Package jwt signs and verifies bearer tokens under a single-algorithm allow-list.
// Verification failures are reported as one opaque error.
package jwt
