// Package db opens the Postgres pool backing the durable session and grant
// stores and applies the embedded schema migrations.
package db
