// Package middleware adapts [goGate.Engine] to net/http.
//
// [Protect], [ProtectResource] and [Public] translate a request into a
// [goGate.GateRequest], run [goGate.Engine.Check] and either call the next
// handler with the principal and session in its context or write the JSON
// error envelope. [RequestID] and [Logger] supply request correlation and
// access logging.
//
// # Architecture boundaries
//
// This package reads HTTP and writes HTTP. Every decision is made by the
// engine.
//
// # What this package must NOT do
//
//   - Trust X-Forwarded-For or X-Real-IP for the client address.
//   - Parse or verify tokens itself.
//   - Render error causes to clients.
package middleware
