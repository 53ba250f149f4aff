package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = pinauth.New
	_ = pinauth.DefaultConfig
	_ = pinauth.HighSecurityConfig
	_ = pinauth.Restricted

	var _ *pinauth.Engine
	var _ pinauth.Config
	var _ pinauth.VerifyResult
	var _ pinauth.LoginResult
	var _ pinauth.SecondFactorLoginResult
	var _ pinauth.Session
	var _ pinauth.SessionInfo
	var _ pinauth.Decision
	var _ pinauth.CredentialStatus
	var _ pinauth.SecurityReport
	var _ pinauth.LintResult
	var _ pinauth.CredentialStore
	var _ pinauth.CapabilityProvider
	var _ pinauth.SecondFactorProvider
	var _ pinauth.PreferenceStore
	var _ pinauth.PlatformSession
	var _ pinauth.AuditSink

	var _ error = pinauth.ErrEngineNotReady
	var _ error = pinauth.ErrInvalidPINFormat
	var _ error = pinauth.ErrCredentialNotFound
	var _ error = pinauth.ErrStoreUnavailable
	var _ error = pinauth.ErrThrottled
	var _ error = pinauth.ErrSessionInvalid
	var _ error = pinauth.ErrSecondFactorChallengeInvalid
	var _ error = pinauth.ErrCapabilityUnavailable

	var _ func(*pinauth.Engine) func(http.Handler) http.Handler = middleware.RequireSession
	var _ func(*pinauth.Engine, middleware.RouteFunc, middleware.RedirectFunc) func(http.Handler) http.Handler = middleware.RestrictRoutes
	var _ func(*pinauth.Engine, middleware.RouteFunc, middleware.RedirectFunc) func(http.Handler) http.Handler = middleware.CaptureRedirect

	var _ func(*pinauth.Engine, context.Context, string, string) (*pinauth.VerifyResult, error) = (*pinauth.Engine).VerifyPIN
	var _ func(*pinauth.Engine, context.Context, string, string) (*pinauth.LoginResult, error) = (*pinauth.Engine).Login
	var _ func(*pinauth.Engine, context.Context, string, string) (*pinauth.SecondFactorLoginResult, error) = (*pinauth.Engine).CompleteSecondFactor
	var _ func(*pinauth.Engine, context.Context, string) (*pinauth.SessionInfo, error) = (*pinauth.Engine).ValidateSession
	var _ func(*pinauth.Engine, context.Context, string) error = (*pinauth.Engine).DestroySession
	var _ func(*pinauth.Engine, context.Context, string) error = (*pinauth.Engine).UnlockCredential
	var _ func(*pinauth.Engine, context.Context, string) (*pinauth.CredentialStatus, error) = (*pinauth.Engine).CredentialStatus
	var _ func(*pinauth.Engine, context.Context, string, string) (pinauth.Decision, error) = (*pinauth.Engine).Authorize
}
