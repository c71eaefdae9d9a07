package goGate

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goGate/permission"
)

// Authorize decides whether userID may perform perm, optionally on resource.
// The principal is read from the credential store on every call.
//
// Denials on a resource return ErrAccessDenied whether the resource is missing
// or belongs to someone else. Other denials return ErrInsufficientPermissions.
func (e *Engine) Authorize(ctx context.Context, userID string, perm permission.Permission, resource *permission.Resource) error {
	if e == nil {
		return ErrEngineNotReady
	}
	p, err := e.authzPrincipal(ctx, userID)
	if err != nil {
		return err
	}
	_, err = e.authorize(ctx, p, perm, resource)
	return err
}

// AuthorizeOverride lets a principal holding admin:override bypass ownership
// and grants for one action. An explicit deny on the principal still wins.
// Every attempt is audited with the reason.
func (e *Engine) AuthorizeOverride(ctx context.Context, userID string, perm permission.Permission, resource *permission.Resource, reason string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrOverrideReasonRequired
	}
	p, err := e.authzPrincipal(ctx, userID)
	if err != nil {
		return err
	}

	grants, err := e.grantsFor(ctx, p)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"permission": perm.String(),
		"reason":     reason,
	}
	if resource != nil {
		meta["resource_kind"] = resource.Kind
		meta["resource_id"] = resource.ID
	}

	now := e.now()
	holder := permission.Resolve(permission.Input{
		Subject:    p.subject(),
		Permission: permission.AdminOverride,
		Grants:     grants,
		Now:        now,
	})
	if !holder.Allowed() {
		e.metricInc(MetricAuthzDenied)
		e.emitAudit(ctx, auditEventAuthzOverride, p.UserID, "", false, ErrInsufficientPermissions, meta)
		return ErrInsufficientPermissions
	}

	decision := permission.ResolveOverride(permission.Input{
		Subject:    p.subject(),
		Permission: perm,
		Grants:     grants,
		Now:        now,
	})
	if !decision.Allowed() {
		e.metricInc(MetricAuthzDenied)
		e.emitAudit(ctx, auditEventAuthzOverride, p.UserID, "", false, ErrInsufficientPermissions, meta)
		return ErrInsufficientPermissions
	}

	e.metricInc(MetricAuthzOverride)
	e.emitAudit(ctx, auditEventAuthzOverride, p.UserID, "", true, nil, meta)
	return nil
}

func (e *Engine) authzPrincipal(ctx context.Context, userID string) (*Principal, error) {
	p, err := e.loadPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil, ErrAuthentication
		}
		e.logger.ErrorContext(ctx, "credential store lookup failed", "error", err)
		return nil, withCause(ErrInternal, err)
	}
	if !p.Active() {
		return nil, ErrUserInactive
	}
	return p, nil
}

func (e *Engine) grantsFor(ctx context.Context, p *Principal) ([]permission.Grant, error) {
	gctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.GrantStore)
	defer cancel()
	grants, err := e.grants.GrantsFor(gctx, p.subject().SubjectIDs())
	if err != nil {
		e.logger.ErrorContext(ctx, "grant lookup failed", "error", err)
		return nil, withCause(ErrInternal, err)
	}
	return grants, nil
}

// authorize resolves one permission for an already loaded principal.
func (e *Engine) authorize(ctx context.Context, p *Principal, perm permission.Permission, resource *permission.Resource) (permission.Decision, error) {
	grants, err := e.grantsFor(ctx, p)
	if err != nil {
		return permission.Denied, err
	}

	var owner, missing bool
	if resource != nil && e.ownership != nil {
		octx, cancel := context.WithTimeout(ctx, e.config.Timeouts.GrantStore)
		ownerID, err := e.ownership.OwnerOf(octx, *resource)
		cancel()
		switch {
		case errors.Is(err, permission.ErrResourceNotFound):
			missing = true
		case err != nil:
			e.logger.ErrorContext(ctx, "ownership lookup failed", "error", err)
			return permission.Denied, withCause(ErrInternal, err)
		default:
			owner = ownerID == p.UserID
		}
	}

	decision := permission.Resolve(permission.Input{
		Subject:    p.subject(),
		Permission: perm,
		Grants:     grants,
		Owner:      owner,
		Now:        e.now(),
	})

	if missing || !decision.Allowed() {
		e.metricInc(MetricAuthzDenied)
		e.emitAudit(ctx, auditEventAuthzDenied, p.UserID, "", false, nil, map[string]string{
			"permission": perm.String(),
			"decision":   decision.String(),
		})
		if resource != nil {
			return decision, ErrAccessDenied
		}
		return decision, ErrInsufficientPermissions
	}

	e.metricInc(MetricAuthzAllowed)
	return decision, nil
}
