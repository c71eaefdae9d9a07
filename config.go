package goGate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
)

// Config is the complete engine configuration. It is cloned by Builder.Build and
// never read from the caller's copy afterwards.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Timeouts  TimeoutConfig
	Password  PasswordConfig
	CSRF      CSRFConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the bearer token codec.
type TokenConfig struct {
	// SigningMethod is "hs256" or "ed25519". Exactly one algorithm is accepted on verify.
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes and device trust.
type SessionConfig struct {
	// IdleTimeout is how far each validated request pushes ExpiresAt forward.
	IdleTimeout time.Duration
	// AbsoluteLifetime caps a session regardless of activity.
	AbsoluteLifetime time.Duration
	RedisPrefix      string
	// TombstoneTTL bounds how long revocation markers stay in the cache.
	TombstoneTTL time.Duration

	// AnomalyThreshold is the trust score below which a device anomaly is logged and audited.
	AnomalyThreshold float64
	// StrictDeviceTrust rejects requests whose trust score is below MinTrustScore.
	StrictDeviceTrust bool
	MinTrustScore     float64
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the request gate limiter.
type RateLimitConfig struct {
	Enabled     bool
	RedisPrefix string
	Policies    rate.Policies
}

/*
====================================
TIMEOUTS
====================================
*/

// TimeoutConfig bounds every external store call.
type TimeoutConfig struct {
	SessionStore    time.Duration
	CounterStore    time.Duration
	CredentialStore time.Duration
	GrantStore      time.Duration
	// Purge bounds PurgeExpired, which runs off the request path as a bulk delete.
	Purge time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for Login.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

/*
====================================
CSRF / AUDIT / METRICS
====================================
*/

// CSRFConfig controls the double-submit check of the gate.
type CSRFConfig struct {
	Enabled bool
	// BindToSession also requires the header token to match the session's CSRF binding.
	BindToSession bool
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every field except the signing
// keys set to a production value.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Token: TokenConfig{
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        "gogate",
			Audience:      "gogate-api",
		},
		Session: SessionConfig{
			IdleTimeout:      30 * time.Minute,
			AbsoluteLifetime: 24 * time.Hour,
			RedisPrefix:      "gs",
			TombstoneTTL:     24 * time.Hour,
			AnomalyThreshold: 0.5,
			MinTrustScore:    0.4,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			RedisPrefix: "rl",
			Policies:    rate.DefaultPolicies(),
		},
		Timeouts: TimeoutConfig{
			SessionStore:    150 * time.Millisecond,
			CounterStore:    50 * time.Millisecond,
			CredentialStore: 200 * time.Millisecond,
			GrantStore:      200 * time.Millisecond,
			Purge:           30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
		},
		CSRF: CSRFConfig{
			Enabled:       true,
			BindToSession: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

func (c Config) codecConfig() jwt.Config {
	return jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.Token.SigningMethod)),
		PrivateKey:    c.Token.PrivateKey,
		PublicKey:     c.Token.PublicKey,
		Issuer:        c.Token.Issuer,
		Audience:      c.Token.Audience,
		Leeway:        c.Token.Leeway,
		KeyID:         c.Token.KeyID,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	// Token
	switch jwt.SigningMethod(strings.ToLower(c.Token.SigningMethod)) {
	case jwt.MethodHS256, jwt.MethodEd25519:
	default:
		return errors.New("unsupported token signing method")
	}
	if len(c.Token.PrivateKey) == 0 {
		return errors.New("token PrivateKey is required")
	}
	if strings.TrimSpace(c.Token.Issuer) == "" || strings.TrimSpace(c.Token.Audience) == "" {
		return errors.New("token Issuer and Audience are required")
	}

	// Session
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.AbsoluteLifetime < c.Session.IdleTimeout {
		return errors.New("Session AbsoluteLifetime must be >= IdleTimeout")
	}
	if c.Session.TombstoneTTL != 0 && c.Session.TombstoneTTL < c.Session.AbsoluteLifetime {
		return errors.New("Session TombstoneTTL must cover AbsoluteLifetime")
	}
	if c.Session.AnomalyThreshold < 0 || c.Session.AnomalyThreshold > 1 {
		return errors.New("Session AnomalyThreshold must be within [0, 1]")
	}
	if c.Session.MinTrustScore < 0 || c.Session.MinTrustScore > 1 {
		return errors.New("Session MinTrustScore must be within [0, 1]")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if err := c.RateLimit.Policies.Validate(); err != nil {
			return fmt.Errorf("RateLimit: %w", err)
		}
	}

	// Timeouts
	if c.Timeouts.SessionStore <= 0 || c.Timeouts.CounterStore <= 0 ||
		c.Timeouts.CredentialStore <= 0 || c.Timeouts.GrantStore <= 0 ||
		c.Timeouts.Purge <= 0 {
		return errors.New("Timeouts must all be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
