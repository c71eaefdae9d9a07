package goGate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	xrate "golang.org/x/time/rate"
)

// Engine is the authentication, session and access-control core. It is safe
// for concurrent use; all shared mutable state lives behind the injected stores.
type Engine struct {
	config      Config
	codec       *jwt.Codec
	sessions    session.Repository
	credentials CredentialStore
	grants      permission.GrantStore
	ownership   permission.OwnershipResolver
	limiter     *rate.Limiter
	hasher      *password.Argon2
	dummyHash   string
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	degradedLog *xrate.Sometimes
	now         func() time.Time

	// closeMu orders touches.Add against Close so no touch starts after Wait.
	closeMu sync.RWMutex
	closed  bool
	touches sync.WaitGroup
}

// PasswordUpdater is implemented by credential stores that accept rehashed
// passwords. Login uses it to upgrade hashes made with weaker parameters.
type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// Close waits for in-flight session touches and drains the audit dispatcher.
// Sessions validated after Close are still served, but their activity is not
// persisted.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeMu.Lock()
	e.closed = true
	e.closeMu.Unlock()

	e.touches.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer or
// abandoned by a cancelled context.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Logger returns the engine's structured logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) loadPrincipal(ctx context.Context, userID string) (*Principal, error) {
	cctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.CredentialStore)
	defer cancel()
	return e.credentials.GetPrincipal(cctx, userID)
}

// Login checks identifier and password against the credential store and
// opens a session. Unknown identifiers cost the same Argon2 work as wrong
// passwords and return the same error. Device attributes come from ctx.
func (e *Engine) Login(ctx context.Context, identifier, pw string) (*Issued, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if identifier == "" || pw == "" {
		return nil, ErrValidation
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.CredentialStore)
	p, err := e.credentials.GetPrincipalByIdentifier(cctx, identifier)
	cancel()
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			_, _ = e.hasher.Verify(pw, e.dummyHash)
			e.loginFailed(ctx, "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		e.logger.ErrorContext(ctx, "credential store lookup failed", "error", err)
		return nil, withCause(ErrAuthentication, err)
	}

	ok, err := e.hasher.Verify(pw, p.PasswordHash)
	if err != nil || !ok {
		e.loginFailed(ctx, p.UserID, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}
	if !p.Active() {
		e.loginFailed(ctx, p.UserID, ErrUserInactive)
		return nil, ErrUserInactive
	}

	e.upgradePasswordHash(ctx, p, pw)

	issued, err := e.createSession(ctx, p, FingerprintFromContext(ctx))
	if err != nil {
		e.loginFailed(ctx, p.UserID, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, p.UserID, issued.Session.SessionID, true, nil, nil)
	return issued, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID string, err error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, userID, "", false, err, nil)
}

func (e *Engine) upgradePasswordHash(ctx context.Context, p *Principal, pw string) {
	updater, ok := e.credentials.(PasswordUpdater)
	if !ok {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(p.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.CredentialStore)
	defer cancel()
	if err := updater.UpdatePasswordHash(cctx, p.UserID, hash); err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade failed", "error", err)
	}
}

// HashPassword hashes pw with the engine's Argon2 parameters, for credential
// stores provisioning principals.
func (e *Engine) HashPassword(pw string) (string, error) {
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		return "", withCause(ErrValidation, err)
	}
	return hash, nil
}

// Logout revokes the session behind token.
func (e *Engine) Logout(ctx context.Context, token string) error {
	return e.Revoke(ctx, token)
}

// LogoutAll validates token and revokes every session of its owner.
func (e *Engine) LogoutAll(ctx context.Context, token string) (int, error) {
	sess, _, err := e.ValidateSession(ctx, token)
	if err != nil {
		return 0, err
	}
	return e.RevokeAllForUser(ctx, sess.UserID)
}
