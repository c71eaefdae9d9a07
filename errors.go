package goGate

import (
	"errors"
	"net/http"
)

// ErrorKind classifies an Error and fixes its HTTP status.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindAuthentication
	KindAuthorization
	KindRateLimit
	KindValidation
	KindConflict
)

// Status returns the HTTP status code rendered for the kind.
func (k ErrorKind) Status() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindRateLimit:
		return "rate_limit"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Code is the machine-readable error code rendered in the JSON envelope.
type Code string

const (
	CodeAuthentication          Code = "AUTHENTICATION_ERROR"
	CodeTokenExpired            Code = "TOKEN_EXPIRED"
	CodeInvalidToken            Code = "INVALID_TOKEN"
	CodeSessionExpired          Code = "SESSION_EXPIRED"
	CodeSessionRevoked          Code = "SESSION_REVOKED"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeAccessDenied            Code = "ACCESS_DENIED"
	CodeRateLimitExceeded       Code = "RATE_LIMIT_EXCEEDED"
	CodeCSRFMissing             Code = "CSRF_TOKEN_MISSING"
	CodeCSRFMismatch            Code = "CSRF_TOKEN_MISMATCH"
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeConflict                Code = "CONFLICT"
	CodeInternal                Code = "INTERNAL_ERROR"
)

// Error is the single error type returned by Engine operations. Message is safe
// to render to clients; it never names a user, email or role. The underlying
// cause is kept for logging and is reachable through errors.Unwrap.
type Error struct {
	Kind    ErrorKind
	Code    Code
	Message string
	// RetryAfter is set in seconds on rate limit errors.
	RetryAfter int

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors of the same kind, code and message, so errors.Is works
// against the sentinels below even after a cause or RetryAfter is attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && e.Message == t.Message
}

// Status returns the HTTP status for e.
func (e *Error) Status() int {
	return e.Kind.Status()
}

func newError(kind ErrorKind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	// ErrAuthentication is the generic 401: missing credentials or an unavailable session store.
	ErrAuthentication = newError(KindAuthentication, CodeAuthentication, "authentication required")
	// ErrInvalidCredentials is returned by Login for any identifier or password mismatch.
	ErrInvalidCredentials = newError(KindAuthentication, CodeAuthentication, "invalid credentials")
	// ErrUserInactive is returned when the principal is no longer active.
	ErrUserInactive = newError(KindAuthentication, CodeAuthentication, "account inactive")
	// ErrDeviceRejected is returned in strict device mode when the trust score is too low.
	ErrDeviceRejected = newError(KindAuthentication, CodeAuthentication, "device not recognized")
	// ErrTokenExpired is reserved. Expired tokens currently map to ErrInvalidToken.
	ErrTokenExpired = newError(KindAuthentication, CodeTokenExpired, "token expired")
	// ErrInvalidToken is returned for every token that fails verification or has no session.
	ErrInvalidToken = newError(KindAuthentication, CodeInvalidToken, "invalid token")
	// ErrSessionExpired is returned when the idle or absolute deadline has passed.
	ErrSessionExpired = newError(KindAuthentication, CodeSessionExpired, "session expired")
	// ErrSessionRevoked is returned for sessions that were explicitly revoked.
	ErrSessionRevoked = newError(KindAuthentication, CodeSessionRevoked, "session revoked")

	// ErrInsufficientPermissions is returned when the principal lacks a permission.
	ErrInsufficientPermissions = newError(KindAuthorization, CodeInsufficientPermissions, "insufficient permissions")
	// ErrAccessDenied is returned for resource-scoped denials. A missing resource and
	// a resource owned by someone else produce this same value.
	ErrAccessDenied = newError(KindAuthorization, CodeAccessDenied, "access denied")
	// ErrCSRFMissing is returned when the cookie or header token is absent.
	ErrCSRFMissing = newError(KindAuthorization, CodeCSRFMissing, "csrf token missing")
	// ErrCSRFMismatch is returned when the tokens differ or do not match the session.
	ErrCSRFMismatch = newError(KindAuthorization, CodeCSRFMismatch, "csrf token mismatch")

	// ErrRateLimited is returned when the request budget is spent.
	ErrRateLimited = newError(KindRateLimit, CodeRateLimitExceeded, "rate limit exceeded")

	// ErrValidation is returned for malformed input.
	ErrValidation = newError(KindValidation, CodeValidation, "invalid request")
	// ErrOverrideReasonRequired is returned by AuthorizeOverride for an empty reason.
	ErrOverrideReasonRequired = newError(KindValidation, CodeValidation, "override reason required")

	// ErrConflict is returned when a token hash was already used.
	ErrConflict = newError(KindConflict, CodeConflict, "conflict")

	// ErrInternal is the generic 500. The cause is logged, never rendered.
	ErrInternal = newError(KindInternal, CodeInternal, "internal error")

	// ErrEngineNotReady is returned when Engine methods are called on a nil engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// withCause returns a copy of base carrying cause.
func withCause(base *Error, cause error) *Error {
	out := *base
	out.cause = cause
	return &out
}

func rateLimited(retryAfter int) *Error {
	out := *ErrRateLimited
	out.RetryAfter = retryAfter
	return &out
}

// AsError converts err into an *Error. Anything that is not already an *Error
// becomes ErrInternal with err as its cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return withCause(ErrInternal, err)
}
