package flows

import (
	"context"
	"fmt"
)

// Authorization decision kinds.
const (
	DecisionAllow = iota
	DecisionRedirect
	DecisionDeny
)

// RouteRule maps one capability to the routes it unlocks.
type RouteRule struct {
	Capability string
	Routes     []string
}

// RouteDecision is the flow-local authorization outcome.
type RouteDecision struct {
	Kind  int
	Route string
}

// AuthorizeMetrics carries metric IDs needed by route authorization.
type AuthorizeMetrics struct {
	Allow    int
	Redirect int
	Deny     int
}

// AuthorizeEvents carries audit event names used by route authorization.
type AuthorizeEvents struct {
	Redirect string
	Deny     string
}

// AuthorizeErrors carries host-level sentinel errors.
type AuthorizeErrors struct {
	EngineNotReady        error
	CapabilityUnavailable error
	PreferenceUnavailable error
}

// AuthorizeDeps captures route authorization dependencies.
type AuthorizeDeps struct {
	Rules        []RouteRule
	ReportsRoute string
	ClockRoute   string
	ManualRoute  string

	HasCapability     func(context.Context, string, string) (bool, error)
	CapturePreference func(context.Context, string) (string, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, principalID, sessionID, reason string, err error, metadata func() map[string]string)
	Error     func(string, ...any)

	Metrics AuthorizeMetrics
	Events  AuthorizeEvents
	Errors  AuthorizeErrors
}

func normalizeAuthorizeDeps(deps *AuthorizeDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.Error == nil {
		deps.Error = func(string, ...any) {}
	}
}

// RunAllowedRoutes walks the rule table in order and collects the routes of every
// capability the principal holds, without duplicates. The reports route is
// appended when the result is non-empty.
func RunAllowedRoutes(ctx context.Context, principalID string, deps AuthorizeDeps) ([]string, error) {
	normalizeAuthorizeDeps(&deps)
	if deps.HasCapability == nil {
		return nil, deps.Errors.EngineNotReady
	}

	routes := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(r string) {
		if r == "" {
			return
		}
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		routes = append(routes, r)
	}

	checked := make(map[string]bool, len(deps.Rules))
	for _, rule := range deps.Rules {
		has, ok := checked[rule.Capability]
		if !ok {
			var err error
			has, err = deps.HasCapability(ctx, principalID, rule.Capability)
			if err != nil {
				deps.Error("capability lookup failed", "principal_id", principalID, "capability", rule.Capability, "error", err)
				return nil, fmt.Errorf("%w: %v", deps.Errors.CapabilityUnavailable, err)
			}
			checked[rule.Capability] = has
		}
		if !has {
			continue
		}
		for _, r := range rule.Routes {
			add(r)
		}
	}

	if len(routes) > 0 {
		add(deps.ReportsRoute)
	}
	return routes, nil
}

// RunAuthorize decides whether principalID may reach requested. An empty request
// or a route outside the allow-list redirects to the first allowed route; with no
// allowed routes at all the request is denied.
func RunAuthorize(ctx context.Context, principalID, requested string, deps AuthorizeDeps) (RouteDecision, []string, error) {
	normalizeAuthorizeDeps(&deps)

	allowed, err := RunAllowedRoutes(ctx, principalID, deps)
	if err != nil {
		return RouteDecision{Kind: DecisionDeny}, nil, err
	}

	if len(allowed) == 0 {
		deps.MetricInc(deps.Metrics.Deny)
		deps.EmitAudit(ctx, deps.Events.Deny, false, principalID, "", "no_access", nil, func() map[string]string {
			return map[string]string{"requested_route": requested}
		})
		return RouteDecision{Kind: DecisionDeny}, allowed, nil
	}

	if requested != "" {
		for _, r := range allowed {
			if r == requested {
				deps.MetricInc(deps.Metrics.Allow)
				return RouteDecision{Kind: DecisionAllow, Route: requested}, allowed, nil
			}
		}
	}

	target := allowed[0]
	deps.MetricInc(deps.Metrics.Redirect)
	deps.EmitAudit(ctx, deps.Events.Redirect, false, principalID, "", "not_allowed", nil, func() map[string]string {
		return map[string]string{"requested_route": requested, "redirect_route": target}
	})
	return RouteDecision{Kind: DecisionRedirect, Route: target}, allowed, nil
}

// RunCaptureRoute applies the time-entry capture preference: a request for the
// clock route by a principal preferring manual entry is redirected to the manual
// route, and vice versa. Every other request is allowed unchanged. This is a UX
// default, not an access check.
func RunCaptureRoute(ctx context.Context, principalID, requested string, deps AuthorizeDeps) (RouteDecision, error) {
	normalizeAuthorizeDeps(&deps)

	allow := RouteDecision{Kind: DecisionAllow, Route: requested}
	if deps.CapturePreference == nil || deps.ClockRoute == "" || deps.ManualRoute == "" {
		return allow, nil
	}
	if requested != deps.ClockRoute && requested != deps.ManualRoute {
		return allow, nil
	}

	pref, err := deps.CapturePreference(ctx, principalID)
	if err != nil {
		deps.Error("capture preference lookup failed", "principal_id", principalID, "error", err)
		return allow, fmt.Errorf("%w: %v", deps.Errors.PreferenceUnavailable, err)
	}

	switch {
	case requested == deps.ClockRoute && pref == "manual":
		return RouteDecision{Kind: DecisionRedirect, Route: deps.ManualRoute}, nil
	case requested == deps.ManualRoute && pref == "clock":
		return RouteDecision{Kind: DecisionRedirect, Route: deps.ClockRoute}, nil
	default:
		return allow, nil
	}
}
