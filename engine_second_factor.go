package pinauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/pinauth/internal/rate"
	"github.com/MrEthical07/pinauth/token"
)

// SecondFactorRequired reports whether principalID must pass the second-factor
// gate: the principal opted in AND the provider reports an enrolled factor. An
// opt-in without enrollment is not required, so a misconfigured preference can
// never lock a principal out.
func (e *Engine) SecondFactorRequired(ctx context.Context, principalID string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	return e.flow.SecondFactorRequired(ctx, principalID)
}

// VerifySecondFactor checks code as a TOTP first and then as a backup code. A
// matching backup code is consumed immediately, whatever happens next in the
// login. A wrong code is a result, not an error; the PIN failure counter is not
// touched.
func (e *Engine) VerifySecondFactor(ctx context.Context, principalID, code string) (*SecondFactorResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.secondFactor == nil {
		return nil, ErrSecondFactorUnavailable
	}

	res, err := e.flow.VerifySecondFactor(ctx, principalID, code)
	if err != nil {
		return nil, err
	}

	out := &SecondFactorResult{
		Success: res.Success,
		Method:  SecondFactorMethod(res.Method),
		Reason:  FailureReason(res.Reason),
	}
	if out.Success {
		out.Message = "Verification code accepted."
	} else {
		out.Message = "Invalid verification code."
	}
	return out, nil
}

// Login runs the whole PIN login: VerifyPIN, then the second-factor gate, then
// IssueSession with the restricted marker. When a second factor is required no
// session is issued; the result carries a short-lived challenge to pass to
// [Engine.CompleteSecondFactor] together with the code.
func (e *Engine) Login(ctx context.Context, principalID, pin string) (*LoginResult, error) {
	verify, err := e.VerifyPIN(ctx, principalID, pin)
	if err != nil {
		return nil, err
	}
	if !verify.Success {
		return &LoginResult{Verify: verify}, nil
	}

	required, err := e.SecondFactorRequired(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if required {
		challenge, claims, err := e.tokens.Issue(principalID, token.PurposeSecondFactor, e.config.SecondFactor.ChallengeTTL, true, "")
		if err != nil {
			e.sugar.Errorw("second factor challenge signing failed", "principal_id", principalID, "error", err)
			return nil, ErrSessionCreationFailed
		}
		e.emitAudit(ctx, auditEventSecondFactorRequired, true, principalID, "", "", nil, nil)
		return &LoginResult{
			Verify:               verify,
			SecondFactorRequired: true,
			Challenge:            challenge,
			ChallengeExpiresAt:   claims.ExpiresAt.Time,
		}, nil
	}

	sess, err := e.IssueSession(ctx, principalID, Restricted())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Verify: verify, Session: sess}, nil
}

// CompleteSecondFactor finishes a Login that returned a challenge. An expired or
// forged challenge returns [ErrSecondFactorChallengeInvalid]; a wrong code is
// reported in the result and the same challenge may be retried until it expires
// or, with a Redis client configured, until the principal's attempt budget is
// spent ([ErrThrottled]).
func (e *Engine) CompleteSecondFactor(ctx context.Context, challenge, code string) (*SecondFactorLoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.Parse(challenge, token.PurposeSecondFactor)
	if err != nil {
		return nil, ErrSecondFactorChallengeInvalid
	}
	principalID := claims.Subject

	if err := e.factorThrottle.Check(ctx, principalID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricSecondFactorThrottled)
			e.emitAudit(ctx, auditEventSecondFactorThrottled, false, principalID, "", "", ErrThrottled, nil)
			return nil, ErrThrottled
		}
		e.sugar.Warnw("second factor attempt budget check failed", "principal_id", principalID, "error", err)
	}

	res, err := e.VerifySecondFactor(ctx, principalID, code)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		if err := e.factorThrottle.Increment(ctx, principalID); err != nil {
			e.sugar.Warnw("second factor attempt budget increment failed", "principal_id", principalID, "error", err)
		}
		return &SecondFactorLoginResult{SecondFactor: res}, nil
	}
	if err := e.factorThrottle.Reset(ctx, principalID); err != nil {
		e.sugar.Warnw("second factor attempt budget reset failed", "principal_id", principalID, "error", err)
	}

	sess, err := e.IssueSession(ctx, principalID, Restricted())
	if err != nil {
		return nil, err
	}
	return &SecondFactorLoginResult{SecondFactor: res, Session: sess}, nil
}

// ChallengeTTL returns the configured lifetime of second-factor challenges.
func (e *Engine) ChallengeTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.SecondFactor.ChallengeTTL
}
