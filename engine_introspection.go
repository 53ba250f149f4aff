package pinauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/pinauth/internal/limiters"
)

// CredentialStatus is the safe introspection view of a credential row. It never
// carries the salt or the digest.
type CredentialStatus struct {
	PrincipalID       string
	Enrolled          bool
	Active            bool
	FailedAttempts    int
	RemainingAttempts int
	Locked            bool
	LockedUntil       *time.Time
	LastSuccessAt     *time.Time
}

// CredentialStatus reports the lockout state of principalID for support and
// administration screens. It is read-only: an expired lock reads as unlocked
// with its stale counter, exactly as the next VerifyPIN will see it before the
// reset. A principal without a row reports Enrolled false.
func (e *Engine) CredentialStatus(ctx context.Context, principalID string) (*CredentialStatus, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrInvalidPrincipal
	}

	cred, err := e.credentials.Get(ctx, principalID)
	if errors.Is(err, ErrCredentialNotFound) || (err == nil && cred == nil) {
		return &CredentialStatus{PrincipalID: principalID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	state, _ := e.lockout.State(cred.LockedUntil, e.now())
	out := &CredentialStatus{
		PrincipalID:       principalID,
		Enrolled:          true,
		Active:            cred.Active,
		FailedAttempts:    cred.FailedAttempts,
		RemainingAttempts: e.lockout.Remaining(cred.FailedAttempts),
		Locked:            state == limiters.Locked,
		LastSuccessAt:     copyTime(cred.LastSuccessAt),
	}
	if out.Locked {
		out.LockedUntil = copyTime(cred.LockedUntil)
		out.RemainingAttempts = 0
	}
	if state == limiters.LockExpired {
		out.RemainingAttempts = e.lockout.MaxAttempts()
	}
	return out, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
