package internal

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewSessionIDIsUniqueUUIDv7(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("new session id: %v", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("parse %q: %v", id, err)
		}
		if parsed.Version() != 7 {
			t.Fatalf("expected version 7, got %d", parsed.Version())
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewSecret(t *testing.T) {
	if _, err := NewSecret(8); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
	s, err := NewSecret(32)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	if len(s) != 43 {
		t.Fatalf("expected 43 chars, got %d", len(s))
	}
}

func TestHashBindingValueIsStable(t *testing.T) {
	if HashBindingValue("ua") != HashBindingValue("ua") {
		t.Fatal("hash must be deterministic")
	}
	if HashBindingValue("ua") == HashBindingValue("ub") {
		t.Fatal("different inputs must hash differently")
	}
}
