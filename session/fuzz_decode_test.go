package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics and round-trip stability for anything that decodes.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{
		SessionID:         "sid-fuzz",
		UserID:            "user1",
		IssuedAt:          time.UnixMilli(1700000000000),
		AbsoluteExpiresAt: time.UnixMilli(1700003600000),
		Fingerprint:       NewFingerprint("Mozilla/5.0", "203.0.113.7"),
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}
	if len(encoded) > 30 {
		f.Add(encoded[:30])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if s == nil {
			t.Fatal("Decode returned nil session without error")
		}
		again, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if string(again) != string(data) {
			t.Fatal("decode/encode is not stable")
		}
	})
}
