package goGate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	internalmetrics "github.com/MrEthical07/goGate/internal/metrics"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
)

// Status is the lifecycle state of a principal.
type Status uint8

const (
	StatusActive Status = iota
	StatusInactive
	StatusLocked
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Principal is the authenticated actor as the credential store knows it. The
// engine reads it on every request and never caches it.
type Principal struct {
	UserID       string
	Identifier   string
	Role         permission.Role
	Status       Status
	Groups       []string
	PasswordHash string
}

// Active reports whether the principal may hold sessions.
func (p *Principal) Active() bool {
	return p != nil && p.Status == StatusActive
}

func (p *Principal) subject() permission.Subject {
	return permission.Subject{UserID: p.UserID, Role: p.Role, Groups: p.Groups}
}

// ErrPrincipalNotFound is returned by CredentialStore lookups for unknown users.
var ErrPrincipalNotFound = errors.New("principal not found")

// CredentialStore is the source of truth for principals. Implementations live
// outside this module; MemoryCredentialStore is provided for tests and demos.
type CredentialStore interface {
	GetPrincipal(ctx context.Context, userID string) (*Principal, error)
	GetPrincipalByIdentifier(ctx context.Context, identifier string) (*Principal, error)
}

// StatusUpdater is implemented by credential stores that can change a
// principal's status. DeactivateUser uses it when available.
type StatusUpdater interface {
	SetStatus(ctx context.Context, userID string, status Status) error
}

// MemoryCredentialStore is an in-process CredentialStore.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	byID    map[string]Principal
	byIdent map[string]string
}

// NewMemoryCredentialStore returns a store seeded with principals.
func NewMemoryCredentialStore(principals ...Principal) *MemoryCredentialStore {
	s := &MemoryCredentialStore{
		byID:    make(map[string]Principal, len(principals)),
		byIdent: make(map[string]string, len(principals)),
	}
	for _, p := range principals {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces p.
func (s *MemoryCredentialStore) Put(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Groups = append([]string(nil), p.Groups...)
	s.byID[p.UserID] = p
	if p.Identifier != "" {
		s.byIdent[strings.ToLower(p.Identifier)] = p.UserID
	}
}

func (s *MemoryCredentialStore) GetPrincipal(_ context.Context, userID string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[userID]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	p.Groups = append([]string(nil), p.Groups...)
	return &p, nil
}

func (s *MemoryCredentialStore) GetPrincipalByIdentifier(ctx context.Context, identifier string) (*Principal, error) {
	s.mu.RLock()
	id, ok := s.byIdent[strings.ToLower(identifier)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return s.GetPrincipal(ctx, id)
}

func (s *MemoryCredentialStore) SetStatus(_ context.Context, userID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[userID]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.Status = status
	s.byID[userID] = p
	return nil
}

func (s *MemoryCredentialStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[userID]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.PasswordHash = hash
	s.byID[userID] = p
	return nil
}

// Issued is the result of creating a session. Token and CSRFToken are shown to
// the client once; only their hashes are stored.
type Issued struct {
	Token     string
	CSRFToken string
	Session   *session.Session
}

// GateRequest is the transport-independent view of one request passing the gate.
type GateRequest struct {
	Method     string
	Token      string
	CSRFCookie string
	CSRFHeader string
	// ClientAddr is the verified peer address. Forwarded headers must not be used.
	ClientAddr string
	Class      RouteClass
	// Anonymous routes skip authentication and are rate limited by address.
	Anonymous   bool
	Permissions []permission.Permission
	Resource    *permission.Resource
}

// GateResult carries what the gate learned about the request. It is returned
// alongside rate limit errors so transports can still render headers.
type GateResult struct {
	Principal *Principal
	Session   *session.Session
	RateLimit RateDecision
}

// RouteClass selects the rate limit budget of a route.
type RouteClass = rate.RouteClass

const (
	RouteAPI   = rate.RouteAPI
	RouteAuth  = rate.RouteAuth
	RouteAdmin = rate.RouteAdmin
)

// RatePolicy and RatePolicies configure per-class budgets.
type (
	RatePolicy   = rate.Policy
	RatePolicies = rate.Policies
	RateDecision = rate.Decision
)

// CounterStore performs the limiter's atomic bookkeeping.
type CounterStore = rate.CounterStore

// DefaultRatePolicies returns the built-in per-class budgets.
func DefaultRatePolicies() RatePolicies {
	return rate.DefaultPolicies()
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes events through a structured logger.
type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies one in-process counter.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess       = internalmetrics.MetricLoginSuccess
	MetricLoginFailure       = internalmetrics.MetricLoginFailure
	MetricSessionCreated     = internalmetrics.MetricSessionCreated
	MetricSessionConflict    = internalmetrics.MetricSessionConflict
	MetricSessionRevoked     = internalmetrics.MetricSessionRevoked
	MetricSessionRevokeAll   = internalmetrics.MetricSessionRevokeAll
	MetricSessionValidated   = internalmetrics.MetricSessionValidated
	MetricSessionRejected    = internalmetrics.MetricSessionRejected
	MetricSessionTouchFailed = internalmetrics.MetricSessionTouchFailed
	MetricSessionsPurged     = internalmetrics.MetricSessionsPurged
	MetricTokenInvalid       = internalmetrics.MetricTokenInvalid
	MetricDeviceAnomaly      = internalmetrics.MetricDeviceAnomaly
	MetricDeviceRejected     = internalmetrics.MetricDeviceRejected
	MetricRateLimitHit       = internalmetrics.MetricRateLimitHit
	MetricRateLimitDegraded  = internalmetrics.MetricRateLimitDegraded
	MetricCSRFRejected       = internalmetrics.MetricCSRFRejected
	MetricAuthzAllowed       = internalmetrics.MetricAuthzAllowed
	MetricAuthzDenied        = internalmetrics.MetricAuthzDenied
	MetricAuthzOverride      = internalmetrics.MetricAuthzOverride
	MetricGateLatency        = internalmetrics.MetricGateLatency

	MetricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and the optional gate latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a Metrics instance. When cfg.Enabled is false every write is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
