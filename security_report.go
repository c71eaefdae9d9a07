package goGate

import (
	"github.com/MrEthical07/goGate/internal/security"
	"github.com/MrEthical07/goGate/jwt"
)

type (
	SecurityReport       = security.Report
	PasswordConfigReport = security.PasswordReport
)

// SecurityReport summarizes the resolved configuration and lists weak settings.
// Key material is never included.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	keyBytes := 0
	if e.config.Token.SigningMethod == string(jwt.MethodHS256) {
		keyBytes = len(e.config.Token.PrivateKey)
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:  e.config.Token.SigningMethod,
		SigningKeyBytes:   keyBytes,
		IdleTimeout:       e.config.Session.IdleTimeout,
		AbsoluteLifetime:  e.config.Session.AbsoluteLifetime,
		StrictDeviceTrust: e.config.Session.StrictDeviceTrust,
		RateLimitEnabled:  e.config.RateLimit.Enabled,
		CSRFEnabled:       e.config.CSRF.Enabled,
		CSRFBindToSession: e.config.CSRF.BindToSession,
		AuditEnabled:      e.config.Audit.Enabled,
		Password: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
	})
}
