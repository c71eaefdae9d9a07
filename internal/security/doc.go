// Package security derives a read-only posture report from resolved engine
// settings and flags weak combinations.
//
// # What this package must NOT do
//
//   - See key material. Only key lengths are reported.
package security
