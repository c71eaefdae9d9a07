// Package session provides session persistence for the gate: the [Session] model, a
// compact binary encoding of its immutable fields, and [Repository] implementations.
//
// # Repositories
//
//   - [RedisRepository] keeps sessions as Redis hashes and mutates them only through
//     Lua scripts, so create-if-absent, revoke and revoke-all are atomic.
//   - [PostgresRepository] is the durable store; every mutation is one SQL statement.
//   - [CachedRepository] puts a RedisRepository in front of a durable one. Revocations
//     leave tombstones in the cache so a racing fill can never reinstate a session.
//
// # Architecture boundaries
//
// This package does NOT interpret tokens, evaluate permissions, or enforce
// authentication policy. Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goGate, jwt, or permission (no upward imports).
//   - Store raw bearer tokens, CSRF tokens, user agents or addresses.
package session
