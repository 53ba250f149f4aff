package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.VerifyPIN.GetCredential != nil
}

func (s Service) VerifyPIN(ctx context.Context, principalID, pin string) (*VerifyPINResult, error) {
	return RunVerifyPIN(ctx, principalID, pin, s.deps.VerifyPIN)
}

func (s Service) SecondFactorRequired(ctx context.Context, principalID string) (bool, error) {
	return RunSecondFactorRequired(ctx, principalID, s.deps.SecondFactor)
}

func (s Service) VerifySecondFactor(ctx context.Context, principalID, code string) (*SecondFactorResult, error) {
	return RunVerifySecondFactor(ctx, principalID, code, s.deps.SecondFactor)
}

func (s Service) AllowedRoutes(ctx context.Context, principalID string) ([]string, error) {
	return RunAllowedRoutes(ctx, principalID, s.deps.Authorize)
}

func (s Service) Authorize(ctx context.Context, principalID, requested string) (RouteDecision, []string, error) {
	return RunAuthorize(ctx, principalID, requested, s.deps.Authorize)
}

func (s Service) CaptureRoute(ctx context.Context, principalID, requested string) (RouteDecision, error) {
	return RunCaptureRoute(ctx, principalID, requested, s.deps.Authorize)
}
