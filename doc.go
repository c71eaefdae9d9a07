// Package goGate is the authentication, session and access-control core of a
// media-request service.
//
// An [Engine] is assembled with [Builder] and composes five components: the
// bearer token codec (jwt), the session store (session), the fixed-window rate
// limiter (internal/rate), the RBAC resolver (permission) and the CSRF guard
// (csrf). [Engine.Check] runs them as a request gate in a fixed order:
//
//	CSRF -> token verify -> session validate -> rate limit -> authorize
//
// A failing stage ends the pipeline. Errors are always [*Error] values whose
// Kind fixes the HTTP status and whose Code is stable for clients.
//
// # Architecture boundaries
//
// Shared state lives only in the injected stores: a [session.Repository], a
// [CounterStore], a [CredentialStore] and a permission.GrantStore. The engine
// keeps no process-wide singletons and takes no locks on the request path.
//
// # What this package must NOT do
//
//   - Cache principals beyond one request.
//   - Render error causes, user ids, emails or roles to clients.
//   - Trust forwarded headers for client addresses.
package goGate
