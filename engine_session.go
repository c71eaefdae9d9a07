package goGate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/session"
)

// CreateSession opens a session for an active principal. The returned token
// and CSRF token are not stored anywhere in clear.
func (e *Engine) CreateSession(ctx context.Context, userID string, fp session.Fingerprint) (*Issued, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	p, err := e.loadPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrUserInactive
		}
		return nil, withCause(ErrAuthentication, err)
	}
	if !p.Active() {
		return nil, ErrUserInactive
	}
	return e.createSession(ctx, p, fp)
}

func (e *Engine) createSession(ctx context.Context, p *Principal, fp session.Fingerprint) (*Issued, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, withCause(ErrInternal, err)
	}

	now := e.now()
	absolute := now.Add(e.config.Session.AbsoluteLifetime)
	token, err := e.codec.Issue(p.UserID, p.Role.String(), sid, now, absolute)
	if err != nil {
		return nil, withCause(ErrInternal, err)
	}
	csrfToken, err := csrf.NewToken()
	if err != nil {
		return nil, withCause(ErrInternal, err)
	}

	sess := &session.Session{
		TokenHash:         session.HashToken(token),
		SessionID:         sid,
		UserID:            p.UserID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(e.config.Session.IdleTimeout),
		AbsoluteExpiresAt: absolute,
		LastActiveAt:      now,
		Fingerprint:       fp,
		CSRFHash:          csrf.Hash(csrfToken),
	}

	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.SessionStore)
	defer cancel()
	if err := e.sessions.Create(sctx, sess); err != nil {
		if errors.Is(err, session.ErrConflict) {
			e.metricInc(MetricSessionConflict)
			return nil, ErrConflict
		}
		e.logger.ErrorContext(ctx, "session create failed", "error", err)
		return nil, withCause(ErrInternal, err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, p.UserID, sid, true, nil, nil)

	return &Issued{Token: token, CSRFToken: csrfToken, Session: sess}, nil
}

// ValidateSession verifies token, loads its session and the owning principal,
// and slides the idle deadline in the background.
//
// Checks run in order: token signature and claims, session lookup, revocation,
// expiry, principal status, device trust. Revocation is reported ahead of
// expiry when both apply.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*session.Session, *Principal, error) {
	if e == nil {
		return nil, nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, nil, ErrAuthentication
	}

	claims, err := e.codec.Verify(token)
	if err != nil {
		e.metricInc(MetricTokenInvalid)
		return nil, nil, ErrInvalidToken
	}

	sess, err := e.getSession(ctx, session.HashToken(token))
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, nil, err
	}
	if sess.SessionID != claims.SID || sess.UserID != claims.UID {
		e.metricInc(MetricSessionRejected)
		return nil, nil, ErrInvalidToken
	}

	now := e.now()
	if sess.Revoked {
		e.metricInc(MetricSessionRejected)
		return nil, nil, ErrSessionRevoked
	}
	if sess.Expired(now) {
		e.metricInc(MetricSessionRejected)
		return nil, nil, ErrSessionExpired
	}

	p, err := e.loadPrincipal(ctx, sess.UserID)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, nil, ErrUserInactive
		}
		e.logger.ErrorContext(ctx, "credential store lookup failed", "error", err)
		return nil, nil, withCause(ErrAuthentication, err)
	}
	if !p.Active() {
		e.metricInc(MetricSessionRejected)
		return nil, nil, ErrUserInactive
	}

	if err := e.checkDevice(ctx, sess); err != nil {
		return nil, nil, err
	}

	e.touch(ctx, sess, now)
	e.metricInc(MetricSessionValidated)
	return sess, p, nil
}

func (e *Engine) getSession(ctx context.Context, hash [32]byte) (*session.Session, error) {
	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.SessionStore)
	defer cancel()

	sess, err := e.sessions.Get(sctx, hash)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrNotFound):
		return nil, ErrInvalidToken
	default:
		e.logger.ErrorContext(ctx, "session lookup failed", "error", err)
		return nil, withCause(ErrAuthentication, err)
	}
}

func (e *Engine) checkDevice(ctx context.Context, sess *session.Session) error {
	score := session.TrustScore(sess.Fingerprint, FingerprintFromContext(ctx))
	// Strict rejection is independent of the anomaly threshold.
	reject := e.config.Session.StrictDeviceTrust && score < e.config.Session.MinTrustScore
	if score >= e.config.Session.AnomalyThreshold && !reject {
		return nil
	}

	e.metricInc(MetricDeviceAnomaly)
	e.logger.WarnContext(ctx, "device anomaly", "session_id", sess.SessionID, "trust_score", score, "rejected", reject)
	e.emitAudit(ctx, auditEventDeviceAnomaly, sess.UserID, sess.SessionID, false, nil, map[string]string{
		"trust_score": strconv.FormatFloat(score, 'f', 2, 64),
	})

	if reject {
		e.metricInc(MetricDeviceRejected)
		return ErrDeviceRejected
	}
	return nil
}

// touch records activity without delaying the request. Failures are counted
// and logged; the next request retries.
func (e *Engine) touch(ctx context.Context, sess *session.Session, now time.Time) {
	next := sess.NextExpiry(now, e.config.Session.IdleTimeout)
	hash := sess.TokenHash
	sess.LastActiveAt = now
	if next.After(sess.ExpiresAt) {
		sess.ExpiresAt = next
	}

	e.closeMu.RLock()
	if e.closed {
		e.closeMu.RUnlock()
		return
	}
	e.touches.Add(1)
	e.closeMu.RUnlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer e.touches.Done()
		tctx, cancel := context.WithTimeout(bg, e.config.Timeouts.SessionStore)
		defer cancel()
		if err := e.sessions.Touch(tctx, hash, now, next); err != nil {
			e.metricInc(MetricSessionTouchFailed)
			e.logger.WarnContext(bg, "session touch failed", "error", err)
		}
	}()
}

// Revoke invalidates the session behind token. Unknown and already revoked
// tokens succeed. Once Revoke returns, no ValidateSession accepts the token.
func (e *Engine) Revoke(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrValidation
	}

	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.SessionStore)
	defer cancel()
	if err := e.sessions.Revoke(sctx, session.HashToken(token)); err != nil {
		e.logger.ErrorContext(ctx, "session revoke failed", "error", err)
		return withCause(ErrInternal, err)
	}

	var userID, sid string
	if claims, err := e.codec.Verify(token); err == nil {
		userID, sid = claims.UID, claims.SID
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, userID, sid, true, nil, nil)
	return nil
}

// RevokeAllForUser revokes every live session of userID in one store
// operation and returns how many were revoked.
func (e *Engine) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, ErrValidation
	}

	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.SessionStore)
	defer cancel()
	hashes, err := e.sessions.RevokeAllForUser(sctx, userID)
	if err != nil {
		e.logger.ErrorContext(ctx, "session revoke-all failed", "error", err)
		return 0, withCause(ErrInternal, err)
	}

	e.metricInc(MetricSessionRevokeAll)
	e.emitAudit(ctx, auditEventSessionRevokeAll, userID, "", true, nil, map[string]string{
		"revoked": strconv.Itoa(len(hashes)),
	})
	return len(hashes), nil
}

// OnPasswordChanged must be called after a principal's password changes. It
// ends every existing session of the user.
func (e *Engine) OnPasswordChanged(ctx context.Context, userID string) error {
	_, err := e.RevokeAllForUser(ctx, userID)
	return err
}

// DeactivateUser marks the principal inactive when the credential store
// supports it, then ends every session of the user. Sessions are rejected
// by status even if the store cannot be updated here.
func (e *Engine) DeactivateUser(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if updater, ok := e.credentials.(StatusUpdater); ok {
		cctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.CredentialStore)
		err := updater.SetStatus(cctx, userID, StatusInactive)
		cancel()
		if err != nil && !errors.Is(err, ErrPrincipalNotFound) {
			return withCause(ErrInternal, err)
		}
	}
	_, err := e.RevokeAllForUser(ctx, userID)
	return err
}

// ListSessions returns the live sessions of userID.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.SessionStore)
	defer cancel()
	out, err := e.sessions.ListForUser(sctx, userID, e.now())
	if err != nil {
		return nil, withCause(ErrInternal, err)
	}
	return out, nil
}

// RotateCSRF issues a new CSRF token for the session behind token and
// invalidates the previous one.
func (e *Engine) RotateCSRF(ctx context.Context, token string) (string, error) {
	sess, _, err := e.ValidateSession(ctx, token)
	if err != nil {
		return "", err
	}
	csrfToken, err := csrf.NewToken()
	if err != nil {
		return "", withCause(ErrInternal, err)
	}

	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.SessionStore)
	defer cancel()
	if err := e.sessions.SetCSRF(sctx, sess.TokenHash, csrf.Hash(csrfToken)); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", withCause(ErrInternal, err)
	}
	return csrfToken, nil
}

// PurgeExpired physically deletes sessions past their absolute deadline from
// the durable store.
func (e *Engine) PurgeExpired(ctx context.Context) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	sctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.Purge)
	defer cancel()
	n, err := e.sessions.PurgeExpired(sctx, e.now())
	if err != nil {
		return 0, withCause(ErrInternal, err)
	}
	if n > 0 {
		e.metrics.Add(MetricSessionsPurged, uint64(n))
	}
	return n, nil
}
