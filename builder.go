package goGate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

// dummyPassword is hashed once at build so Login spends the same work on
// unknown identifiers as on known ones.
const dummyPassword = "gogate-timing-equalizer"

// Builder assembles an Engine. Collaborators are injected; the engine never
// creates process-wide singletons.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessions    session.Repository
	counters    rate.CounterStore
	credentials CredentialStore
	grants      permission.GrantStore
	ownership   permission.OwnershipResolver
	auditSink   AuditSink
	logger      *slog.Logger

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client backing the default session repository and
// counter store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionRepository overrides the session repository, for example with a
// session.CachedRepository over Postgres.
func (b *Builder) WithSessionRepository(repo session.Repository) *Builder {
	b.sessions = repo
	return b
}

// WithCounterStore overrides the rate limiter's counter store.
func (b *Builder) WithCounterStore(store CounterStore) *Builder {
	b.counters = store
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithGrantStore sets the source of explicit permission grants. Without one,
// only ownership and role defaults apply.
func (b *Builder) WithGrantStore(store permission.GrantStore) *Builder {
	b.grants = store
	return b
}

func (b *Builder) WithOwnershipResolver(r permission.OwnershipResolver) *Builder {
	b.ownership = r
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the gate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, resolves keys and wires the engine. A
// Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.sessions == nil && b.redis == nil {
		return nil, errors.New("session repository or redis client required")
	}
	if cfg.RateLimit.Enabled && b.counters == nil && b.redis == nil {
		return nil, errors.New("rate limiting requires a counter store or redis client")
	}

	codec, err := jwt.NewCodec(cfg.codecConfig())
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions := b.sessions
	if sessions == nil {
		sessions = session.NewRedisRepository(b.redis, session.RedisOptions{
			Prefix:       cfg.Session.RedisPrefix,
			TombstoneTTL: cfg.Session.TombstoneTTL,
		})
	}

	grants := b.grants
	if grants == nil {
		grants = permission.NewMemoryGrantStore()
	}

	e := &Engine{
		config:      cfg,
		codec:       codec,
		sessions:    sessions,
		credentials: b.credentials,
		grants:      grants,
		ownership:   b.ownership,
		hasher:      hasher,
		dummyHash:   dummyHash,
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
		degradedLog: &xrate.Sometimes{Interval: 10 * time.Second},
		now:         time.Now,
	}

	if cfg.RateLimit.Enabled {
		counters := b.counters
		if counters == nil {
			counters = rate.NewRedisCounterStore(b.redis, cfg.RateLimit.RedisPrefix)
		}
		e.limiter = rate.New(counters, cfg.Timeouts.CounterStore, e.onLimiterDegraded)
	}

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		RequestID:  RequestIDFromContext,
		Now:        e.now,
	}, sink)

	b.built = true
	return e, nil
}
