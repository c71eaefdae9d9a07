package session

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTrustScore(t *testing.T) {
	recorded := NewFingerprint("Mozilla/5.0 (X11)", "203.0.113.7")

	cases := []struct {
		name    string
		current Fingerprint
		want    float64
	}{
		{"same device", NewFingerprint("Mozilla/5.0 (X11)", "203.0.113.7"), 1},
		{"new address", NewFingerprint("Mozilla/5.0 (X11)", "198.51.100.1"), 0.6},
		{"new agent", NewFingerprint("curl/8.0", "203.0.113.7"), 0.4},
		{"everything changed", NewFingerprint("curl/8.0", "198.51.100.1"), 0},
		{"agent missing", NewFingerprint("", "203.0.113.7"), 0.7},
	}
	for _, tc := range cases {
		got := TrustScore(recorded, tc.current)
		if !approx(got, tc.want) {
			t.Fatalf("%s: expected %.2f, got %.4f", tc.name, tc.want, got)
		}
		if got < 0 || got > 1 {
			t.Fatalf("%s: score out of range: %f", tc.name, got)
		}
	}

	if !approx(TrustScore(Fingerprint{}, Fingerprint{}), 1) {
		t.Fatal("two empty fingerprints must be fully trusted")
	}
}
