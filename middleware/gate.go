package middleware

import (
	"context"
	"net/http"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
)

// ResourceFunc extracts the resource a request targets, or nil when the
// request targets none.
type ResourceFunc func(r *http.Request) *permission.Resource

type principalContextKey struct{}
type sessionContextKey struct{}

// Protect requires a valid session and every permission in perms.
func Protect(engine *goGate.Engine, class goGate.RouteClass, perms ...permission.Permission) func(http.Handler) http.Handler {
	return ProtectResource(engine, class, nil, perms...)
}

// ProtectResource is Protect with permissions evaluated against the resource
// returned by resource.
func ProtectResource(engine *goGate.Engine, class goGate.RouteClass, resource ResourceFunc, perms ...permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestContext(r)
			req := gateRequest(r, class)
			req.Token = TokenFromRequest(r)
			req.Permissions = perms
			if resource != nil {
				req.Resource = resource(r)
			}

			res, err := engine.Check(ctx, req)
			if res != nil {
				setRateHeaders(w, res.RateLimit)
			}
			if err != nil {
				WriteError(w, r.WithContext(ctx), engine.Logger(), err)
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, res.Principal)
			ctx = context.WithValue(ctx, sessionContextKey{}, res.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Public gates an anonymous route. Only CSRF and the per-address rate limit
// apply.
func Public(engine *goGate.Engine, class goGate.RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestContext(r)
			req := gateRequest(r, class)
			req.Anonymous = true

			res, err := engine.Check(ctx, req)
			if res != nil {
				setRateHeaders(w, res.RateLimit)
			}
			if err != nil {
				WriteError(w, r.WithContext(ctx), engine.Logger(), err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal admitted by Protect.
func PrincipalFromContext(ctx context.Context) (*goGate.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*goGate.Principal)
	return p, ok && p != nil
}

// SessionFromContext returns the session admitted by Protect.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return s, ok && s != nil
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	ctx = goGate.WithClientIP(ctx, clientIP(r))
	ctx = goGate.WithUserAgent(ctx, r.UserAgent())
	return ctx
}

func gateRequest(r *http.Request, class goGate.RouteClass) goGate.GateRequest {
	req := goGate.GateRequest{
		Method:     r.Method,
		CSRFHeader: r.Header.Get(csrf.HeaderName),
		ClientAddr: clientIP(r),
		Class:      class,
	}
	if c, err := r.Cookie(csrf.CookieName); err == nil {
		req.CSRFCookie = c.Value
	}
	return req
}
