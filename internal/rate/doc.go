// Package rate implements fixed-window request limiting over a shared counter store.
//
// # Window semantics
//
// One Lua script increments the counter and sets its expiry when absent, so concurrent
// first hits cannot both see count=1. Keys are "<prefix>:<class>:user:<id>" for
// authenticated principals and "<prefix>:<class>:ip:<addr>" otherwise.
//
// # Failure mode
//
// A counter store failure or timeout lets the request through and flags the decision
// as degraded. Callers log and count degraded decisions.
package rate
