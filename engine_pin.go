package pinauth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MrEthical07/pinauth/internal"
	"github.com/MrEthical07/pinauth/internal/flows"
)

// GeneratePIN returns a fresh six-character PIN drawn uniformly from the
// unambiguous alphabet (no I, O, 0 or 1). The PIN is not stored; pass it to
// [Engine.CreateOrReplaceCredential] and deliver it out of band.
func (e *Engine) GeneratePIN() (string, error) {
	return internal.NewPIN()
}

// CreateOrReplaceCredential hashes pin under a fresh salt and atomically replaces
// the principal's credential. The new row is active with its failure counter and
// lock cleared. A malformed PIN is rejected before any store access.
func (e *Engine) CreateOrReplaceCredential(ctx context.Context, principalID, pin string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" {
		return ErrInvalidPrincipal
	}
	if !internal.ValidPINFormat(pin) {
		return ErrInvalidPINFormat
	}
	pin = internal.NormalizePIN(pin)

	salt, err := internal.NewSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	hash, err := e.hasher.Hash(pin, salt)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	unlock := e.locks.Lock(principalID)
	defer unlock()

	if err := e.credentials.Upsert(ctx, principalID, salt, hash); err != nil {
		e.metricInc(MetricStoreFailure)
		e.sugar.Errorw("credential upsert failed", "principal_id", principalID, "error", err)
		wrapped := fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		e.emitAudit(ctx, auditEventCredentialIssued, false, principalID, "", "", wrapped, nil)
		return wrapped
	}

	e.metricInc(MetricCredentialIssued)
	e.emitAudit(ctx, auditEventCredentialIssued, true, principalID, "", "", nil, func() map[string]string {
		return map[string]string{"hash_algorithm": e.hasher.Algorithm()}
	})
	return nil
}

// DeactivateCredential disables PIN access for principalID. The row is kept so
// that a later CreateOrReplaceCredential can reactivate it. Deactivating a
// principal with no credential returns [ErrCredentialNotFound].
func (e *Engine) DeactivateCredential(ctx context.Context, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" {
		return ErrInvalidPrincipal
	}

	unlock := e.locks.Lock(principalID)
	defer unlock()

	if err := e.credentials.Deactivate(ctx, principalID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		e.metricInc(MetricStoreFailure)
		e.sugar.Errorw("credential deactivate failed", "principal_id", principalID, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricCredentialDeactivated)
	e.emitAudit(ctx, auditEventCredentialDeactivated, true, principalID, "", "", nil, nil)
	return nil
}

// UnlockCredential clears the failure counter and any lock on principalID's
// credential without touching the PIN. It is the administrative override for a
// lockout; an unknown principal returns [ErrCredentialNotFound].
func (e *Engine) UnlockCredential(ctx context.Context, principalID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if principalID == "" {
		return ErrInvalidPrincipal
	}

	unlock := e.locks.Lock(principalID)
	defer unlock()

	if err := e.credentials.ResetAttempts(ctx, principalID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		e.metricInc(MetricStoreFailure)
		e.sugar.Errorw("credential unlock failed", "principal_id", principalID, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricCredentialUnlocked)
	e.sugar.Infow("pin credential unlocked", "principal_id", principalID)
	e.emitAudit(ctx, auditEventCredentialUnlocked, true, principalID, "", "", nil, nil)
	return nil
}

// VerifyPIN checks pin for principalID and applies the lockout policy. Wrong,
// malformed, unknown, disabled and locked attempts are reported in the result.
// The error is non-nil only for store faults ([ErrStoreUnavailable]) and, when the
// per-IP throttle is enabled, [ErrThrottled].
func (e *Engine) VerifyPIN(ctx context.Context, principalID, pin string) (*VerifyResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	res, err := e.flow.VerifyPIN(ctx, principalID, pin)

	if !start.IsZero() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return toVerifyResult(res), nil
}

// IsLocked reports whether principalID is inside a lockout window. It never
// writes: an expired lock reads as unlocked and is cleared by the next VerifyPIN.
func (e *Engine) IsLocked(ctx context.Context, principalID string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	locked, err := flows.RunIsLocked(ctx, principalID, e.lockout, e.now(), e.getCredentialRecord)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return locked, nil
}

func toVerifyResult(res *flows.VerifyPINResult) *VerifyResult {
	out := &VerifyResult{
		Success:           res.Success,
		Reason:            FailureReason(res.Reason),
		RemainingAttempts: res.RemainingAttempts,
		LockedUntil:       res.LockedUntil,
		RetryAfter:        res.RetryAfter,
	}
	out.Message = verifyMessage(out)
	return out
}

func verifyMessage(r *VerifyResult) string {
	switch r.Reason {
	case ReasonNone:
		if r.Success {
			return "PIN accepted."
		}
		return ""
	case ReasonInvalidFormat:
		return "PIN must be 6 letters or digits."
	case ReasonNotEnrolled:
		return "PIN access is not enabled for this account."
	case ReasonDisabled:
		return "PIN access has been disabled for this account."
	case ReasonLocked:
		minutes := int(math.Ceil(r.RetryAfter.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("Too many failed attempts. Try again in %d %s.", minutes, plural(minutes, "minute"))
	case ReasonInvalidPIN:
		return fmt.Sprintf("Incorrect PIN. %d %s remaining.", r.RemainingAttempts, plural(r.RemainingAttempts, "attempt"))
	default:
		return strings.ReplaceAll(string(r.Reason), "_", " ")
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
