package security

import (
	"fmt"
	"time"
)

// Argon2 floor below which a finding is raised.
const (
	minArgonMemoryKiB = 19 * 1024
	minHMACKeyBytes   = 32
	maxAbsoluteTTL    = 7 * 24 * time.Hour
)

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	SigningAlgorithm   string
	SigningKeyBytes    int
	IdleTimeout        time.Duration
	AbsoluteLifetime   time.Duration
	StrictDeviceTrust  bool
	RateLimitingActive bool
	CSRFActive         bool
	CSRFSessionBound   bool
	AuditActive        bool
	Argon2             PasswordReport
	// Findings lists weak settings in a stable order. Empty means none were found.
	Findings []string
}

type ReportInput struct {
	SigningAlgorithm  string
	SigningKeyBytes   int
	IdleTimeout       time.Duration
	AbsoluteLifetime  time.Duration
	StrictDeviceTrust bool
	RateLimitEnabled  bool
	CSRFEnabled       bool
	CSRFBindToSession bool
	AuditEnabled      bool
	Password          PasswordReport
}

func BuildReport(input ReportInput) Report {
	var findings []string
	if input.SigningAlgorithm == "hs256" && input.SigningKeyBytes < minHMACKeyBytes {
		findings = append(findings, fmt.Sprintf("hs256 signing key is %d bytes, want at least %d", input.SigningKeyBytes, minHMACKeyBytes))
	}
	if input.AbsoluteLifetime > maxAbsoluteTTL {
		findings = append(findings, fmt.Sprintf("absolute session lifetime %s exceeds %s", input.AbsoluteLifetime, maxAbsoluteTTL))
	}
	if !input.RateLimitEnabled {
		findings = append(findings, "rate limiting disabled")
	}
	if !input.CSRFEnabled {
		findings = append(findings, "csrf double-submit check disabled")
	}
	if input.Password.Memory < minArgonMemoryKiB {
		findings = append(findings, fmt.Sprintf("argon2id memory %d KiB below %d KiB", input.Password.Memory, minArgonMemoryKiB))
	}

	return Report{
		SigningAlgorithm:   input.SigningAlgorithm,
		SigningKeyBytes:    input.SigningKeyBytes,
		IdleTimeout:        input.IdleTimeout,
		AbsoluteLifetime:   input.AbsoluteLifetime,
		StrictDeviceTrust:  input.StrictDeviceTrust,
		RateLimitingActive: input.RateLimitEnabled,
		CSRFActive:         input.CSRFEnabled,
		CSRFSessionBound:   input.CSRFEnabled && input.CSRFBindToSession,
		AuditActive:        input.AuditEnabled,
		Argon2:             input.Password,
		Findings:           findings,
	}
}
