// Package csrf implements double-submit cookie verification.
//
// A token is issued at login, set as a cookie and bound to the session as a SHA-256
// hash. State-changing requests must echo it in the X-CSRF-Token header. GET, HEAD and
// OPTIONS bypass the check. Tokens are random and never derived from the bearer token.
package csrf
