package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/pinauth/internal"
	"github.com/MrEthical07/pinauth/internal/limiters"
)

// Verification outcome codes. The root package maps them to its FailureReason.
const (
	ReasonNone          = ""
	ReasonInvalidFormat = "invalid_format"
	ReasonNotEnrolled   = "not_enrolled"
	ReasonDisabled      = "disabled"
	ReasonLocked        = "locked"
	ReasonInvalidPIN    = "invalid_pin"
)

// PinCredentialRecord is the flow-local view of a credential row.
type PinCredentialRecord struct {
	Salt           string
	Hash           string
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
}

// VerifyPINResult is the flow-local verification outcome.
type VerifyPINResult struct {
	Success           bool
	Reason            string
	RemainingAttempts int
	LockedUntil       *time.Time
	RetryAfter        time.Duration
}

// VerifyPINMetrics carries metric IDs needed by the verify flow.
type VerifyPINMetrics struct {
	Success       int
	InvalidFormat int
	NotEnrolled   int
	Disabled      int
	Locked        int
	LockTriggered int
	InvalidPIN    int
	Throttled     int
	StoreFailure  int
}

// VerifyPINEvents carries audit event names used by the verify flow.
type VerifyPINEvents struct {
	Success   string
	Failure   string
	Locked    string
	Throttled string
}

// VerifyPINErrors carries host-level sentinel errors.
type VerifyPINErrors struct {
	EngineNotReady   error
	StoreUnavailable error
	Throttled        error
}

// VerifyPINDeps captures verify dependencies.
type VerifyPINDeps struct {
	Lockout limiters.Lockout

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	// LockPrincipal serializes the credential read-modify-write per principal and
	// returns the unlock func.
	LockPrincipal func(string) func()

	// GetCredential returns (nil, nil) when the principal has no row.
	GetCredential func(context.Context, string) (*PinCredentialRecord, error)
	ResetAttempts func(context.Context, string) error
	RecordFailure func(ctx context.Context, principalID string, maxAttempts int, lockUntil time.Time) (int, bool, error)
	RecordSuccess func(context.Context, string, time.Time) error
	HashPIN       func(pin, salt string) (string, error)
	EqualDigest   func(a, b string) bool

	CheckThrottle     func(context.Context, string) error
	IncrementThrottle func(context.Context, string) error
	IsThrottled       func(error) bool

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, principalID, sessionID, reason string, err error, metadata func() map[string]string)
	Warn      func(string, ...any)
	Error     func(string, ...any)

	Metrics VerifyPINMetrics
	Events  VerifyPINEvents
	Errors  VerifyPINErrors
}

func normalizeVerifyPINDeps(deps *VerifyPINDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.LockPrincipal == nil {
		deps.LockPrincipal = func(string) func() { return func() {} }
	}
	if deps.IsThrottled == nil {
		deps.IsThrottled = func(error) bool { return false }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.Error == nil {
		deps.Error = func(string, ...any) {}
	}
}

// RunVerifyPIN checks pin for principalID and applies the lockout policy. Expected
// outcomes are reported in the result; the error is non-nil only for store and
// throttle faults, or a throttled caller.
func RunVerifyPIN(ctx context.Context, principalID, pin string, deps VerifyPINDeps) (*VerifyPINResult, error) {
	normalizeVerifyPINDeps(&deps)

	if deps.GetCredential == nil ||
		deps.ResetAttempts == nil ||
		deps.RecordFailure == nil ||
		deps.RecordSuccess == nil ||
		deps.HashPIN == nil ||
		deps.EqualDigest == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if principalID == "" || !internal.ValidPINFormat(pin) {
		deps.MetricInc(deps.Metrics.InvalidFormat)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", ReasonInvalidFormat, nil, nil)
		return &VerifyPINResult{Reason: ReasonInvalidFormat}, nil
	}
	pin = internal.NormalizePIN(pin)
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, ip); err != nil {
			if deps.IsThrottled(err) {
				deps.MetricInc(deps.Metrics.Throttled)
				deps.EmitAudit(ctx, deps.Events.Throttled, false, principalID, "", "", deps.Errors.Throttled, nil)
				return nil, deps.Errors.Throttled
			}
			deps.Warn("pin throttle check failed", "principal_id", principalID, "error", err)
		}
	}

	unlock := deps.LockPrincipal(principalID)
	defer unlock()

	storeFault := func(op string, err error) (*VerifyPINResult, error) {
		deps.MetricInc(deps.Metrics.StoreFailure)
		deps.Error("credential store failure", "op", op, "principal_id", principalID, "error", err)
		wrapped := fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", "", wrapped, func() map[string]string {
			return map[string]string{"op": op}
		})
		return nil, wrapped
	}

	cred, err := deps.GetCredential(ctx, principalID)
	if err != nil {
		return storeFault("get", err)
	}
	if cred == nil {
		deps.MetricInc(deps.Metrics.NotEnrolled)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", ReasonNotEnrolled, nil, nil)
		return &VerifyPINResult{Reason: ReasonNotEnrolled}, nil
	}
	if !cred.Active {
		deps.MetricInc(deps.Metrics.Disabled)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", ReasonDisabled, nil, nil)
		return &VerifyPINResult{Reason: ReasonDisabled}, nil
	}

	now := deps.Now()
	switch state, left := deps.Lockout.State(cred.LockedUntil, now); state {
	case limiters.Locked:
		until := *cred.LockedUntil
		deps.MetricInc(deps.Metrics.Locked)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", ReasonLocked, nil, func() map[string]string {
			return map[string]string{"locked_until": until.UTC().Format(time.RFC3339)}
		})
		return &VerifyPINResult{Reason: ReasonLocked, LockedUntil: &until, RetryAfter: left}, nil
	case limiters.LockExpired:
		if err := deps.ResetAttempts(ctx, principalID); err != nil {
			return storeFault("reset_expired_lock", err)
		}
		cred.FailedAttempts = 0
		cred.LockedUntil = nil
	}

	computed, err := deps.HashPIN(pin, cred.Salt)
	if err != nil {
		// An unhashable row (e.g. empty salt) is corrupt store state.
		return storeFault("hash", err)
	}

	if deps.EqualDigest(computed, cred.Hash) {
		if err := deps.RecordSuccess(ctx, principalID, now); err != nil {
			return storeFault("record_success", err)
		}
		deps.MetricInc(deps.Metrics.Success)
		deps.EmitAudit(ctx, deps.Events.Success, true, principalID, "", "", nil, nil)
		return &VerifyPINResult{Success: true, RemainingAttempts: deps.Lockout.MaxAttempts()}, nil
	}

	lockUntil := deps.Lockout.LockUntil(now)
	count, locked, err := deps.RecordFailure(ctx, principalID, deps.Lockout.MaxAttempts(), lockUntil)
	if err != nil {
		return storeFault("record_failure", err)
	}
	if deps.IncrementThrottle != nil {
		if err := deps.IncrementThrottle(ctx, ip); err != nil && !errors.Is(err, deps.Errors.Throttled) {
			deps.Warn("pin throttle increment failed", "principal_id", principalID, "error", err)
		}
	}

	if locked || deps.Lockout.Reached(count) {
		deps.MetricInc(deps.Metrics.LockTriggered)
		deps.Warn("pin credential locked", "principal_id", principalID, "failed_attempts", count, "locked_until", lockUntil)
		deps.EmitAudit(ctx, deps.Events.Locked, false, principalID, "", ReasonLocked, nil, func() map[string]string {
			return map[string]string{
				"failed_attempts": fmt.Sprint(count),
				"locked_until":    lockUntil.UTC().Format(time.RFC3339),
			}
		})
		return &VerifyPINResult{
			Reason:      ReasonLocked,
			LockedUntil: &lockUntil,
			RetryAfter:  lockUntil.Sub(now),
		}, nil
	}

	remaining := deps.Lockout.Remaining(count)
	deps.MetricInc(deps.Metrics.InvalidPIN)
	deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, "", ReasonInvalidPIN, nil, func() map[string]string {
		return map[string]string{"remaining_attempts": fmt.Sprint(remaining)}
	})
	return &VerifyPINResult{Reason: ReasonInvalidPIN, RemainingAttempts: remaining}, nil
}

// RunIsLocked is the pure lock query: an expired lock reads as unlocked and nothing
// is written.
func RunIsLocked(ctx context.Context, principalID string, lockout limiters.Lockout, now time.Time, get func(context.Context, string) (*PinCredentialRecord, error)) (bool, error) {
	cred, err := get(ctx, principalID)
	if err != nil {
		return false, err
	}
	if cred == nil {
		return false, nil
	}
	state, _ := lockout.State(cred.LockedUntil, now)
	return state == limiters.Locked, nil
}
