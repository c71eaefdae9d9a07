package session

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeKeepsImmutableFields(t *testing.T) {
	now := time.UnixMilli(time.Now().UnixMilli())
	in := &Session{
		SessionID:         "0190d7f4-8a1c-7c3e-9f00-1234567890ab",
		UserID:            "user-7",
		IssuedAt:          now,
		AbsoluteExpiresAt: now.Add(12 * time.Hour),
		Fingerprint:       NewFingerprint("curl/8.0", "198.51.100.2"),
	}

	blob, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.SessionID != in.SessionID || out.UserID != in.UserID {
		t.Fatalf("identifiers changed: %+v", out)
	}
	if !out.IssuedAt.Equal(in.IssuedAt) || !out.AbsoluteExpiresAt.Equal(in.AbsoluteExpiresAt) {
		t.Fatalf("deadlines changed: %v %v", out.IssuedAt, out.AbsoluteExpiresAt)
	}
	if out.Fingerprint != in.Fingerprint {
		t.Fatal("fingerprint changed")
	}
}

func TestDecodeRejectsUnknownVersionAndTrailingBytes(t *testing.T) {
	if _, err := Decode([]byte{99}); err == nil || !strings.Contains(err.Error(), "invalid session version") {
		t.Fatalf("expected version error, got %v", err)
	}

	blob, err := Encode(&Session{SessionID: "s", UserID: "u"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(append(blob, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
}

func TestEncodeRejectsOversizedIdentifiers(t *testing.T) {
	if _, err := Encode(&Session{SessionID: strings.Repeat("x", 256), UserID: "u"}); err == nil {
		t.Fatal("expected oversized session id to fail")
	}
	if _, err := Encode(&Session{SessionID: "s", UserID: strings.Repeat("x", 256)}); err == nil {
		t.Fatal("expected oversized user id to fail")
	}
}
