package rate

import "errors"

var (
	// ErrCounterUnavailable wraps counter store failures, including timeouts.
	ErrCounterUnavailable = errors.New("rate counter store unavailable")
	// ErrInvalidPolicy is returned for non-positive limits or windows.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
