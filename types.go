package pinauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/pinauth/internal/audit"
)

// PinCredential is the persisted PIN row for one principal. Salt and Hash are
// fixed-length hex strings; FailedAttempts and LockedUntil are only mutated by
// verification.
type PinCredential struct {
	PrincipalID    string
	Salt           string
	Hash           string
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	LastSuccessAt  *time.Time
}

// LockedAt reports whether the credential refuses attempts at now.
func (c *PinCredential) LockedAt(now time.Time) bool {
	return c != nil && c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// CredentialStore persists [PinCredential] rows. Get returns [ErrCredentialNotFound]
// when the principal has no row. Upsert replaces salt and hash in a single atomic
// write, marks the row active and clears FailedAttempts and LockedUntil. ResetAttempts
// clears both FailedAttempts and LockedUntil.
//
//	Implementations: store/memory, store/redisstore, store/sqlitestore
type CredentialStore interface {
	Get(ctx context.Context, principalID string) (*PinCredential, error)
	Upsert(ctx context.Context, principalID, salt, hash string) error
	IncrementFailedAttempts(ctx context.Context, principalID string) (int, error)
	SetLock(ctx context.Context, principalID string, until time.Time) error
	ResetAttempts(ctx context.Context, principalID string) error
	SetLastSuccess(ctx context.Context, principalID string, when time.Time) error
	Deactivate(ctx context.Context, principalID string) error
}

// AtomicFailureRecorder is an optional [CredentialStore] extension that increments
// the failure counter and, when the new count reaches maxAttempts, writes lockUntil
// in one atomic store operation.
type AtomicFailureRecorder interface {
	RecordFailure(ctx context.Context, principalID string, maxAttempts int, lockUntil time.Time) (count int, locked bool, err error)
}

// SuccessRecorder is an optional [CredentialStore] extension that resets the
// failure counter and stamps the last success time in one write.
type SuccessRecorder interface {
	RecordSuccess(ctx context.Context, principalID string, when time.Time) error
}

// CapabilityProvider answers whether a principal holds a named capability.
type CapabilityProvider interface {
	HasCapability(ctx context.Context, principalID, capability string) (bool, error)
}

// CapabilityFunc adapts a plain function to [CapabilityProvider].
type CapabilityFunc func(ctx context.Context, principalID, capability string) (bool, error)

// HasCapability calls f.
func (f CapabilityFunc) HasCapability(ctx context.Context, principalID, capability string) (bool, error) {
	return f(ctx, principalID, capability)
}

// SecondFactorProvider is the external TOTP and backup-code backend. TOTPSecret
// returns an empty string when the principal has no TOTP secret. ConsumeBackupCode
// must invalidate a matching code before returning true.
type SecondFactorProvider interface {
	HasEnrolledFactor(ctx context.Context, principalID string) (bool, error)
	TOTPSecret(ctx context.Context, principalID string) (string, error)
	VerifyTOTP(secret, code string) bool
	ConsumeBackupCode(ctx context.Context, principalID, code string) (bool, error)
}

// TOTPConsumer is an optional [SecondFactorProvider] extension. ConsumeTOTP
// verifies code for principalID and records the time step it matched; the same
// step, or any earlier one, is rejected afterwards. When the provider implements
// it the Engine uses it instead of VerifyTOTP, so an observed code cannot be
// replayed inside the skew window.
type TOTPConsumer interface {
	ConsumeTOTP(ctx context.Context, principalID, secret, code string) (bool, error)
}

// PlatformSession establishes and clears the host platform's own login session.
// Establish returns an opaque handle that is embedded in the session token so that
// Clear can find the platform session again. Clear must be idempotent.
type PlatformSession interface {
	Establish(ctx context.Context, principalID string) (string, error)
	Clear(ctx context.Context, handle string) error
}

// CaptureMode is a principal's preferred time-entry capture route.
type CaptureMode string

const (
	// CaptureUnset means no preference is stored.
	CaptureUnset CaptureMode = ""
	// CaptureClock prefers the clock-in/clock-out route.
	CaptureClock CaptureMode = "clock"
	// CaptureManual prefers the manual time-entry route.
	CaptureManual CaptureMode = "manual"
)

// PreferenceStore holds per-principal preferences consulted by the engine.
type PreferenceStore interface {
	SecondFactorOptIn(ctx context.Context, principalID string) (bool, error)
	CapturePreference(ctx context.Context, principalID string) (CaptureMode, error)
}

// FailureReason is the machine-readable outcome of a failed verification.
type FailureReason string

const (
	// ReasonNone marks a successful result.
	ReasonNone FailureReason = ""
	// ReasonInvalidFormat means the PIN is not six alphanumeric characters.
	ReasonInvalidFormat FailureReason = "invalid_format"
	// ReasonNotEnrolled means the principal never had PIN access enabled.
	ReasonNotEnrolled FailureReason = "not_enrolled"
	// ReasonDisabled means the credential was deactivated.
	ReasonDisabled FailureReason = "disabled"
	// ReasonLocked means the credential is inside its lockout window.
	ReasonLocked FailureReason = "locked"
	// ReasonInvalidPIN means the PIN did not match.
	ReasonInvalidPIN FailureReason = "invalid_pin"
	// ReasonInvalidSecondFactor means neither the TOTP nor a backup code matched.
	ReasonInvalidSecondFactor FailureReason = "invalid_second_factor"
)

// VerifyResult is returned by [Engine.VerifyPIN]. Expected failures are reported
// here, never as errors. RemainingAttempts is set for invalid_pin; LockedUntil and
// RetryAfter are set for locked.
type VerifyResult struct {
	Success           bool
	Reason            FailureReason
	Message           string
	RemainingAttempts int
	LockedUntil       *time.Time
	RetryAfter        time.Duration
}

// SecondFactorMethod names the factor that satisfied the gate.
type SecondFactorMethod string

const (
	// MethodTOTP is a time-based one-time code.
	MethodTOTP SecondFactorMethod = "totp"
	// MethodBackupCode is a single-use recovery code.
	MethodBackupCode SecondFactorMethod = "backup_code"
)

// SecondFactorResult is returned by [Engine.VerifySecondFactor].
type SecondFactorResult struct {
	Success bool
	Method  SecondFactorMethod
	Reason  FailureReason
	Message string
}

// Session is a freshly issued session token together with its decoded fields.
type Session struct {
	Token          string
	ID             string
	PrincipalID    string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Restricted     bool
	PlatformHandle string
}

// SessionInfo is the verified content of a session token, returned by
// [Engine.ValidateSession].
type SessionInfo struct {
	ID             string
	PrincipalID    string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Restricted     bool
	PlatformHandle string
}

// LoginResult is returned by [Engine.Login]. Exactly one of the following holds:
// PIN verification failed (Verify.Success is false), a second factor is required
// (SecondFactorRequired with a Challenge), or a Session was issued.
type LoginResult struct {
	Verify               *VerifyResult
	SecondFactorRequired bool
	Challenge            string
	ChallengeExpiresAt   time.Time
	Session              *Session
}

// SecondFactorLoginResult is returned by [Engine.CompleteSecondFactor].
type SecondFactorLoginResult struct {
	SecondFactor *SecondFactorResult
	Session      *Session
}

// DecisionKind is the outcome of a route authorization check.
type DecisionKind uint8

const (
	// DecisionAllow lets the request through.
	DecisionAllow DecisionKind = iota
	// DecisionRedirect sends the caller to Decision.Route.
	DecisionRedirect
	// DecisionDeny refuses the request outright.
	DecisionDeny
)

// String returns the lower-case decision name.
func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	case DecisionDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Decision is returned by [Engine.Authorize] and [Engine.CaptureRoute].
type Decision struct {
	Kind    DecisionKind
	Route   string
	Message string
}

// AuditEvent is an alias for the internal audit event type.
//
//	Docs: internal/audit
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel. Useful in tests and for
// custom fan-out.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line to an io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans each event out to every sink in order.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
