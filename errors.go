package pinauth

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called on a nil or
	// partially constructed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidPINFormat is returned by CreateOrReplaceCredential for a PIN that is not
	// six alphanumeric characters.
	ErrInvalidPINFormat = errors.New("invalid pin format")
	// ErrInvalidPrincipal is returned for an empty principal identifier.
	ErrInvalidPrincipal = errors.New("invalid principal id")
	// ErrCredentialNotFound is returned by a CredentialStore when no row exists for the
	// principal. The engine turns it into a not_enrolled result.
	ErrCredentialNotFound = errors.New("pin credential not found")
	// ErrStoreUnavailable wraps every credential store fault. Callers should surface a
	// generic "try again later" message.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrThrottled is returned when the optional per-IP throttle rejects a PIN
	// attempt, or a principal has used up its second-factor attempt budget.
	ErrThrottled = errors.New("pin attempts throttled")
	// ErrSessionInvalid covers malformed, expired and tampered session tokens alike.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionCreationFailed is returned when a session token cannot be signed or
	// the platform session cannot be established.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSecondFactorUnavailable wraps second-factor provider and preference faults.
	ErrSecondFactorUnavailable = errors.New("second factor provider unavailable")
	// ErrSecondFactorChallengeInvalid is returned for an expired or forged challenge.
	ErrSecondFactorChallengeInvalid = errors.New("second factor challenge invalid")
	// ErrCapabilityUnavailable wraps capability lookup faults.
	ErrCapabilityUnavailable = errors.New("capability provider unavailable")
	// ErrPreferenceUnavailable wraps preference store faults.
	ErrPreferenceUnavailable = errors.New("preference store unavailable")
)
