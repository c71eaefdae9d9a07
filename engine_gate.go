package goGate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/permission"
)

// Check runs the request gate: CSRF, token and session validation, rate
// limiting, then authorization of every requested permission. The first
// failing stage ends the pipeline and no later stage runs.
//
// The result is non-nil whenever the rate limit stage ran, including when it
// rejected the request, so transports can render limit headers.
func (e *Engine) Check(ctx context.Context, req GateRequest) (*GateResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricGateLatency, time.Since(start)) }()
	}

	res := &GateResult{}

	csrfRequired := e.config.CSRF.Enabled && !csrf.Exempt(req.Method) &&
		(!req.Anonymous || req.CSRFCookie != "")
	if csrfRequired {
		if err := e.checkCSRF(ctx, req.CSRFCookie, req.CSRFHeader, req.Method); err != nil {
			return nil, err
		}
	}

	if req.Anonymous {
		if err := e.checkRate(ctx, res, req.Class, rate.AddrKey(req.Class, req.ClientAddr), false); err != nil {
			return res, err
		}
		return res, nil
	}

	if req.Token == "" {
		return nil, ErrAuthentication
	}
	sess, p, err := e.ValidateSession(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	res.Session = sess
	res.Principal = p

	if csrfRequired && e.config.CSRF.BindToSession && !csrf.MatchesBinding(req.CSRFHeader, sess.CSRFHash) {
		e.csrfRejected(ctx, p.UserID, ErrCSRFMismatch)
		return nil, ErrCSRFMismatch
	}

	admin := p.Role == permission.RoleAdmin
	if err := e.checkRate(ctx, res, req.Class, rate.UserKey(req.Class, p.UserID), admin); err != nil {
		return res, err
	}

	for _, perm := range req.Permissions {
		if _, err := e.authorize(ctx, p, perm, req.Resource); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (e *Engine) checkCSRF(ctx context.Context, cookie, header, method string) error {
	switch csrf.Verify(cookie, header, method) {
	case csrf.RejectMissing:
		e.csrfRejected(ctx, "", ErrCSRFMissing)
		return ErrCSRFMissing
	case csrf.RejectMismatch:
		e.csrfRejected(ctx, "", ErrCSRFMismatch)
		return ErrCSRFMismatch
	}
	return nil
}

func (e *Engine) csrfRejected(ctx context.Context, userID string, err *Error) {
	e.metricInc(MetricCSRFRejected)
	e.emitAudit(ctx, auditEventCSRFRejected, userID, "", false, err, nil)
}

func (e *Engine) checkRate(ctx context.Context, res *GateResult, class RouteClass, key string, admin bool) error {
	if e.limiter == nil {
		return nil
	}
	limit, window, exempt := e.config.RateLimit.Policies.Resolve(class, admin)
	if exempt {
		return nil
	}

	d, err := e.limiter.Check(ctx, key, limit, window)
	if err != nil {
		return withCause(ErrInternal, err)
	}
	res.RateLimit = d
	if d.Allowed {
		return nil
	}

	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, "", "", false, ErrRateLimited, map[string]string{
		"route_class": class.String(),
	})
	return rateLimited(d.RetryAfter)
}

// onLimiterDegraded is the limiter's fail-open hook. Warnings are sampled so an
// outage does not flood the log.
func (e *Engine) onLimiterDegraded(ctx context.Context, key string, err error) {
	e.metricInc(MetricRateLimitDegraded)
	e.degradedLog.Do(func() {
		e.logger.WarnContext(ctx, "rate limiter degraded, failing open", "error", err)
	})
	if errors.Is(err, context.Canceled) {
		return
	}
	e.emitAudit(ctx, auditEventRateLimitDegraded, "", "", false, err, nil)
}
