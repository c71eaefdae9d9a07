package goGate

import (
	"strings"
	"testing"
)

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t, nil)
	r := env.engine.SecurityReport()

	if r.SigningAlgorithm != "hs256" || r.SigningKeyBytes != 32 {
		t.Fatalf("unexpected signing summary %+v", r)
	}
	if !r.RateLimitingActive || !r.CSRFActive || !r.CSRFSessionBound {
		t.Fatalf("expected gate defaults active, got %+v", r)
	}
	if len(r.Findings) != 1 || !strings.Contains(r.Findings[0], "argon2id memory") {
		t.Fatalf("expected only the reduced test argon2 memory flagged, got %v", r.Findings)
	}
}

func TestSecurityReportFlagsDisabledGuards(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.CSRF.Enabled = false
		c.RateLimit.Enabled = false
	})
	r := env.engine.SecurityReport()
	if r.CSRFActive || r.RateLimitingActive || len(r.Findings) != 3 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	if r := e.SecurityReport(); r.SigningAlgorithm != "" || r.Findings != nil {
		t.Fatalf("expected zero report, got %+v", r)
	}
}
