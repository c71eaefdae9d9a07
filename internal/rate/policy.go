package rate

import (
	"fmt"
	"time"
)

// RouteClass groups endpoints that share a request budget.
type RouteClass uint8

const (
	// RouteAPI is the default class for authenticated API traffic.
	RouteAPI RouteClass = iota
	// RouteAuth covers login and other credential endpoints.
	RouteAuth
	// RouteAdmin covers administrative endpoints.
	RouteAdmin
	routeClassCount
)

func (c RouteClass) String() string {
	switch c {
	case RouteAPI:
		return "api"
	case RouteAuth:
		return "auth"
	case RouteAdmin:
		return "admin"
	default:
		return fmt.Sprintf("route(%d)", uint8(c))
	}
}

// Policy is the budget of one route class.
type Policy struct {
	Limit  int
	Window time.Duration
	// AdminExempt skips limiting for administrators.
	AdminExempt bool
	// AdminLimit, when positive, replaces Limit for administrators.
	AdminLimit int
}

// Policies maps every route class to its budget.
type Policies [routeClassCount]Policy

// DefaultPolicies returns a small long-window budget for credential endpoints and a
// larger short-window budget for general API traffic.
func DefaultPolicies() Policies {
	return Policies{
		RouteAPI:   {Limit: 100, Window: time.Minute, AdminLimit: 1000},
		RouteAuth:  {Limit: 5, Window: 15 * time.Minute},
		RouteAdmin: {Limit: 60, Window: time.Minute, AdminExempt: true},
	}
}

// Validate checks every class has a usable budget.
func (p Policies) Validate() error {
	for i, pol := range p {
		if pol.Limit <= 0 || pol.Window < time.Second || pol.AdminLimit < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidPolicy, RouteClass(i))
		}
	}
	return nil
}

// Resolve returns the limit and window for a request. exempt reports that no check
// should run at all.
func (p Policies) Resolve(class RouteClass, admin bool) (limit int, window time.Duration, exempt bool) {
	if class >= routeClassCount {
		class = RouteAPI
	}
	pol := p[class]
	if admin {
		if pol.AdminExempt {
			return 0, 0, true
		}
		if pol.AdminLimit > 0 {
			return pol.AdminLimit, pol.Window, false
		}
	}
	return pol.Limit, pol.Window, false
}

// UserKey keys a budget on an authenticated user.
func UserKey(class RouteClass, userID string) string {
	return class.String() + ":user:" + userID
}

// AddrKey keys a budget on a verified client network address.
func AddrKey(class RouteClass, addr string) string {
	return class.String() + ":ip:" + addr
}
