package flows

import (
	"context"
	"fmt"
	"strings"
)

// Second-factor method and reason codes.
const (
	MethodTOTP                = "totp"
	MethodBackupCode          = "backup_code"
	ReasonInvalidSecondFactor = "invalid_second_factor"
)

// SecondFactorResult is the flow-local gate outcome.
type SecondFactorResult struct {
	Success bool
	Method  string
	Reason  string
}

// SecondFactorMetrics carries metric IDs needed by the gate.
type SecondFactorMetrics struct {
	Required       int
	TOTPSuccess    int
	BackupCodeUsed int
	Failure        int
}

// SecondFactorEvents carries audit event names used by the gate.
type SecondFactorEvents struct {
	Success string
	Failure string
}

// SecondFactorErrors carries host-level sentinel errors.
type SecondFactorErrors struct {
	Unavailable error
}

// SecondFactorDeps captures gate dependencies. A nil provider function set means
// no second factor is configured and the gate is never required.
type SecondFactorDeps struct {
	OptedIn           func(context.Context, string) (bool, error)
	HasEnrolledFactor func(context.Context, string) (bool, error)
	TOTPSecret        func(context.Context, string) (string, error)
	VerifyTOTP        func(secret, code string) bool
	// ConsumeTOTP, when set, replaces VerifyTOTP and burns the matched time step.
	ConsumeTOTP       func(ctx context.Context, principalID, secret, code string) (bool, error)
	ConsumeBackupCode func(context.Context, string, string) (bool, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, principalID, sessionID, reason string, err error, metadata func() map[string]string)
	Error     func(string, ...any)

	Metrics SecondFactorMetrics
	Events  SecondFactorEvents
	Errors  SecondFactorErrors
}

func normalizeSecondFactorDeps(deps *SecondFactorDeps) {
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

// RunSecondFactorRequired reports whether principalID must pass the gate: the
// principal opted in AND the provider has an enrolled factor. Opting in without an
// enrolled factor does not require the gate, so a misconfigured opt-in can never
// lock a principal out.
func RunSecondFactorRequired(ctx context.Context, principalID string, deps SecondFactorDeps) (bool, error) {
	normalizeSecondFactorDeps(&deps)

	if deps.OptedIn == nil || deps.HasEnrolledFactor == nil {
		return false, nil
	}

	optedIn, err := deps.OptedIn(ctx, principalID)
	if err != nil {
		deps.Error("second factor opt-in lookup failed", "principal_id", principalID, "error", err)
		return false, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	if !optedIn {
		return false, nil
	}

	enrolled, err := deps.HasEnrolledFactor(ctx, principalID)
	if err != nil {
		deps.Error("second factor enrollment lookup failed", "principal_id", principalID, "error", err)
		return false, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}
	if enrolled {
		deps.MetricInc(deps.Metrics.Required)
	}
	return enrolled, nil
}

// RunVerifySecondFactor tries code as a TOTP first and then as a backup code. A
// matching backup code is consumed by the provider before this returns. Wrong
// codes are results, not errors. The PIN failure counter is never touched.
func RunVerifySecondFactor(ctx context.Context, principalID, code string, deps SecondFactorDeps) (*SecondFactorResult, error) {
	normalizeSecondFactorDeps(&deps)

	fail := func() (*SecondFactorResult, error) {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", ReasonInvalidSecondFactor, nil, nil)
		return &SecondFactorResult{Reason: ReasonInvalidSecondFactor}, nil
	}
	unavailable := func(op string, err error) (*SecondFactorResult, error) {
		deps.Error("second factor provider failure", "op", op, "principal_id", principalID, "error", err)
		return nil, fmt.Errorf("%w: %v", deps.Errors.Unavailable, err)
	}

	code = strings.TrimSpace(code)
	if principalID == "" || code == "" {
		return fail()
	}

	if deps.TOTPSecret != nil && (deps.VerifyTOTP != nil || deps.ConsumeTOTP != nil) {
		secret, err := deps.TOTPSecret(ctx, principalID)
		if err != nil {
			return unavailable("totp_secret", err)
		}
		var ok bool
		switch {
		case secret == "":
		case deps.ConsumeTOTP != nil:
			ok, err = deps.ConsumeTOTP(ctx, principalID, secret, code)
			if err != nil {
				return unavailable("consume_totp", err)
			}
		default:
			ok = deps.VerifyTOTP(secret, code)
		}
		if ok {
			deps.MetricInc(deps.Metrics.TOTPSuccess)
			deps.EmitAudit(ctx, deps.Events.Success, true, principalID, "", "", nil, func() map[string]string {
				return map[string]string{"method": MethodTOTP}
			})
			return &SecondFactorResult{Success: true, Method: MethodTOTP}, nil
		}
	}

	if deps.ConsumeBackupCode != nil {
		ok, err := deps.ConsumeBackupCode(ctx, principalID, code)
		if err != nil {
			return unavailable("consume_backup_code", err)
		}
		if ok {
			deps.MetricInc(deps.Metrics.BackupCodeUsed)
			deps.EmitAudit(ctx, deps.Events.Success, true, principalID, "", "", nil, func() map[string]string {
				return map[string]string{"method": MethodBackupCode}
			})
			return &SecondFactorResult{Success: true, Method: MethodBackupCode}, nil
		}
	}

	return fail()
}
