// Package internal contains helpers that are private to goGate: identifier and
// secret generation and device attribute hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - db: Postgres pool construction and embedded migrations
//   - metrics: lock-free counters and the gate latency histogram
//   - rate: fixed-window rate limiting over a shared counter store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGate API.
//   - Be imported by any package outside the goGate module.
package internal
