package pinauth

import (
	"context"

	"github.com/MrEthical07/pinauth/internal/flows"
)

// AllowedRoutes returns the routes principalID may reach in a restricted session,
// in rule order, de-duplicated, with the reports route appended when the list is
// non-empty.
func (e *Engine) AllowedRoutes(ctx context.Context, principalID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.flow.AllowedRoutes(ctx, principalID)
}

// Authorize decides a restricted-session request for requested. A route in the
// allow-list is allowed; anything else, including an empty request, redirects to
// the first allowed route. With no allowed route at all the request is denied.
func (e *Engine) Authorize(ctx context.Context, principalID, requested string) (Decision, error) {
	d, _, err := e.AuthorizeWithRoutes(ctx, principalID, requested)
	return d, err
}

// AuthorizeWithRoutes is Authorize that also returns the allow-list it decided
// against, so callers can avoid a second capability lookup.
func (e *Engine) AuthorizeWithRoutes(ctx context.Context, principalID, requested string) (Decision, []string, error) {
	if !e.ready() {
		return Decision{Kind: DecisionDeny}, nil, ErrEngineNotReady
	}
	d, allowed, err := e.flow.Authorize(ctx, principalID, requested)
	if err != nil {
		return Decision{Kind: DecisionDeny, Message: "Access check unavailable. Try again later."}, nil, err
	}
	return toDecision(d), allowed, nil
}

// CaptureRoute applies the principal's time-entry capture preference: a request
// for the clock route by a principal preferring manual entry redirects to the
// manual route, and vice versa. It is a convenience default, not an access check;
// run it after Authorize.
func (e *Engine) CaptureRoute(ctx context.Context, principalID, requested string) (Decision, error) {
	if !e.ready() {
		return Decision{Kind: DecisionAllow, Route: requested}, ErrEngineNotReady
	}
	d, err := e.flow.CaptureRoute(ctx, principalID, requested)
	if err != nil {
		return Decision{Kind: DecisionAllow, Route: requested}, err
	}
	return toDecision(d), nil
}

func toDecision(d flows.RouteDecision) Decision {
	switch d.Kind {
	case flows.DecisionAllow:
		return Decision{Kind: DecisionAllow, Route: d.Route}
	case flows.DecisionRedirect:
		return Decision{Kind: DecisionRedirect, Route: d.Route}
	default:
		return Decision{Kind: DecisionDeny, Message: "No features are enabled for this account."}
	}
}
