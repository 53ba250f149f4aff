package limiters

import (
	"errors"
	"time"
)

// LockoutConfig holds the PIN brute-force policy.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// ErrInvalidLockoutConfig is returned by NewLockout for a non-positive threshold or
// duration.
var ErrInvalidLockoutConfig = errors.New("invalid lockout configuration")

// LockoutState is the lockout view of one credential at a point in time.
type LockoutState uint8

const (
	// Unlocked means no lock is recorded.
	Unlocked LockoutState = iota
	// Locked means the lock is still in force.
	Locked
	// LockExpired means a lock was recorded but has passed; the counter must be reset
	// before the attempt continues.
	LockExpired
)

// Lockout evaluates failed-attempt counts against a fixed threshold. The counter
// itself lives on the credential row; Lockout only does the arithmetic.
type Lockout struct {
	config LockoutConfig
}

// NewLockout validates cfg and returns a policy.
func NewLockout(cfg LockoutConfig) (Lockout, error) {
	if cfg.MaxAttempts <= 0 || cfg.Duration <= 0 {
		return Lockout{}, ErrInvalidLockoutConfig
	}
	return Lockout{config: cfg}, nil
}

// MaxAttempts returns the configured threshold.
func (l Lockout) MaxAttempts() int {
	return l.config.MaxAttempts
}

// State classifies lockedUntil relative to now. The returned duration is the time
// left in the lockout window when the state is Locked.
func (l Lockout) State(lockedUntil *time.Time, now time.Time) (LockoutState, time.Duration) {
	if lockedUntil == nil || lockedUntil.IsZero() {
		return Unlocked, 0
	}
	if now.Before(*lockedUntil) {
		return Locked, lockedUntil.Sub(now)
	}
	return LockExpired, 0
}

// Reached reports whether count has hit the threshold.
func (l Lockout) Reached(count int) bool {
	return count >= l.config.MaxAttempts
}

// Remaining returns how many failures are left before lockout, never negative.
func (l Lockout) Remaining(count int) int {
	if r := l.config.MaxAttempts - count; r > 0 {
		return r
	}
	return 0
}

// LockUntil returns the end of a lockout window that starts at now.
func (l Lockout) LockUntil(now time.Time) time.Time {
	return now.Add(l.config.Duration)
}
