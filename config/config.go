// Package config loads the gogated process configuration from GOGATE_*
// environment variables and converts it into a [goGate.Config].
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	goGate "github.com/MrEthical07/goGate"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "GOGATE_"

var (
	// ErrNoSigningKey is returned when neither an inline key nor a key file is set.
	ErrNoSigningKey = errors.New("config: token signing key is required")
	// ErrUnknownLogLevel is returned for log levels slog cannot parse.
	ErrUnknownLogLevel = errors.New("config: unknown log level")
)

// Config is the process configuration. Engine converts the engine part.
type Config struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL,unset"`
	// PurgeSchedule is a cron expression for deleting expired durable sessions.
	PurgeSchedule string `env:"PURGE_SCHEDULE" envDefault:"@every 15m"`

	Token     TokenEnv     `envPrefix:"TOKEN_"`
	Session   SessionEnv   `envPrefix:"SESSION_"`
	RateLimit RateLimitEnv `envPrefix:"RATE_LIMIT_"`
	CSRF      CSRFEnv      `envPrefix:"CSRF_"`
	Audit     AuditEnv     `envPrefix:"AUDIT_"`
	Metrics   MetricsEnv   `envPrefix:"METRICS_"`
}

// TokenEnv configures the token codec. Key material is read inline or from a
// file; inline secrets are removed from the environment once read.
type TokenEnv struct {
	SigningMethod string        `env:"SIGNING_METHOD" envDefault:"hs256"`
	SigningKey    string        `env:"SIGNING_KEY,unset"`
	SigningKeyPEM string        `env:"SIGNING_KEY_FILE,file"`
	PublicKeyPEM  string        `env:"PUBLIC_KEY_FILE,file"`
	Issuer        string        `env:"ISSUER" envDefault:"gogate"`
	Audience      string        `env:"AUDIENCE" envDefault:"gogate-api"`
	Leeway        time.Duration `env:"LEEWAY" envDefault:"0s"`
	KeyID         string        `env:"KEY_ID"`
}

type SessionEnv struct {
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	AbsoluteLifetime  time.Duration `env:"ABSOLUTE_LIFETIME" envDefault:"24h"`
	StrictDeviceTrust bool          `env:"STRICT_DEVICE_TRUST" envDefault:"false"`
	MinTrustScore     float64       `env:"MIN_TRUST_SCORE" envDefault:"0.4"`
	AnomalyThreshold  float64       `env:"ANOMALY_THRESHOLD" envDefault:"0.5"`
}

type RateLimitEnv struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	APILimit    int           `env:"API_LIMIT" envDefault:"100"`
	APIWindow   time.Duration `env:"API_WINDOW" envDefault:"1m"`
	AuthLimit   int           `env:"AUTH_LIMIT" envDefault:"5"`
	AuthWindow  time.Duration `env:"AUTH_WINDOW" envDefault:"15m"`
	AdminLimit  int           `env:"ADMIN_LIMIT" envDefault:"60"`
	AdminWindow time.Duration `env:"ADMIN_WINDOW" envDefault:"1m"`
	AdminExempt bool          `env:"ADMIN_EXEMPT" envDefault:"true"`
}

type CSRFEnv struct {
	Enabled       bool `env:"ENABLED" envDefault:"true"`
	BindToSession bool `env:"BIND_TO_SESSION" envDefault:"true"`
}

type AuditEnv struct {
	Enabled    bool `env:"ENABLED" envDefault:"true"`
	BufferSize int  `env:"BUFFER_SIZE" envDefault:"1024"`
}

type MetricsEnv struct {
	Enabled           bool `env:"ENABLED" envDefault:"true"`
	LatencyHistograms bool `env:"LATENCY_HISTOGRAMS" envDefault:"true"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom parses environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// Engine builds the engine configuration. Values not exposed through the
// environment keep goGate.DefaultConfig settings. The result is validated.
func (c *Config) Engine() (goGate.Config, error) {
	cfg := goGate.DefaultConfig()

	cfg.Token.SigningMethod = strings.ToLower(strings.TrimSpace(c.Token.SigningMethod))
	switch {
	case c.Token.SigningKey != "":
		cfg.Token.PrivateKey = []byte(c.Token.SigningKey)
	case c.Token.SigningKeyPEM != "":
		cfg.Token.PrivateKey = []byte(c.Token.SigningKeyPEM)
	default:
		return goGate.Config{}, ErrNoSigningKey
	}
	if c.Token.PublicKeyPEM != "" {
		cfg.Token.PublicKey = []byte(c.Token.PublicKeyPEM)
	}
	cfg.Token.Issuer = c.Token.Issuer
	cfg.Token.Audience = c.Token.Audience
	cfg.Token.Leeway = c.Token.Leeway
	cfg.Token.KeyID = c.Token.KeyID

	cfg.Session.IdleTimeout = c.Session.IdleTimeout
	cfg.Session.AbsoluteLifetime = c.Session.AbsoluteLifetime
	cfg.Session.StrictDeviceTrust = c.Session.StrictDeviceTrust
	cfg.Session.MinTrustScore = c.Session.MinTrustScore
	cfg.Session.AnomalyThreshold = c.Session.AnomalyThreshold
	if cfg.Session.TombstoneTTL < cfg.Session.AbsoluteLifetime {
		cfg.Session.TombstoneTTL = cfg.Session.AbsoluteLifetime
	}

	cfg.RateLimit.Enabled = c.RateLimit.Enabled
	cfg.RateLimit.Policies[goGate.RouteAPI] = goGate.RatePolicy{
		Limit:      c.RateLimit.APILimit,
		Window:     c.RateLimit.APIWindow,
		AdminLimit: cfg.RateLimit.Policies[goGate.RouteAPI].AdminLimit,
	}
	cfg.RateLimit.Policies[goGate.RouteAuth] = goGate.RatePolicy{
		Limit:  c.RateLimit.AuthLimit,
		Window: c.RateLimit.AuthWindow,
	}
	cfg.RateLimit.Policies[goGate.RouteAdmin] = goGate.RatePolicy{
		Limit:       c.RateLimit.AdminLimit,
		Window:      c.RateLimit.AdminWindow,
		AdminExempt: c.RateLimit.AdminExempt,
	}

	cfg.CSRF.Enabled = c.CSRF.Enabled
	cfg.CSRF.BindToSession = c.CSRF.BindToSession
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return goGate.Config{}, err
	}
	return cfg, nil
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLogLevel, c.LogLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}
