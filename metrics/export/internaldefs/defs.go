package internaldefs

import (
	"github.com/MrEthical07/pinauth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   pinauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   pinauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: pinauth.MetricPINVerifySuccess, Name: "pinauth_pin_verify_success_total", Help: "Successful PIN verifications."},
	{ID: pinauth.MetricPINInvalid, Name: "pinauth_pin_invalid_total", Help: "Wrong PINs that did not trigger a lock."},
	{ID: pinauth.MetricPINInvalidFormat, Name: "pinauth_pin_invalid_format_total", Help: "PIN attempts rejected for format before any store access."},
	{ID: pinauth.MetricPINNotEnrolled, Name: "pinauth_pin_not_enrolled_total", Help: "PIN attempts for principals without a credential."},
	{ID: pinauth.MetricPINDisabled, Name: "pinauth_pin_disabled_total", Help: "PIN attempts against deactivated credentials."},
	{ID: pinauth.MetricPINLocked, Name: "pinauth_pin_locked_total", Help: "PIN attempts refused inside a lockout window."},
	{ID: pinauth.MetricPINLockTriggered, Name: "pinauth_pin_lock_triggered_total", Help: "Failures that started a lockout window."},
	{ID: pinauth.MetricPINThrottled, Name: "pinauth_pin_throttled_total", Help: "PIN attempts refused by the per-IP throttle."},
	{ID: pinauth.MetricStoreFailure, Name: "pinauth_store_failure_total", Help: "Credential store faults."},
	{ID: pinauth.MetricCredentialIssued, Name: "pinauth_credential_issued_total", Help: "PIN credentials created or replaced."},
	{ID: pinauth.MetricCredentialDeactivated, Name: "pinauth_credential_deactivated_total", Help: "PIN credentials deactivated."},
	{ID: pinauth.MetricCredentialUnlocked, Name: "pinauth_credential_unlocked_total", Help: "PIN credentials unlocked by an administrator."},
	{ID: pinauth.MetricSessionIssued, Name: "pinauth_session_issued_total", Help: "Issued session tokens."},
	{ID: pinauth.MetricSessionInvalid, Name: "pinauth_session_invalid_total", Help: "Rejected session tokens."},
	{ID: pinauth.MetricSessionDestroyed, Name: "pinauth_session_destroyed_total", Help: "Destroyed sessions."},
	{ID: pinauth.MetricSecondFactorRequired, Name: "pinauth_second_factor_required_total", Help: "Logins that required a second factor."},
	{ID: pinauth.MetricSecondFactorTOTPSuccess, Name: "pinauth_second_factor_totp_success_total", Help: "Second-factor gates passed with a TOTP."},
	{ID: pinauth.MetricSecondFactorBackupCodeUsed, Name: "pinauth_second_factor_backup_code_used_total", Help: "Second-factor gates passed with a backup code."},
	{ID: pinauth.MetricSecondFactorFailure, Name: "pinauth_second_factor_failure_total", Help: "Rejected second-factor codes."},
	{ID: pinauth.MetricSecondFactorThrottled, Name: "pinauth_second_factor_throttled_total", Help: "Second-factor challenges refused for a spent attempt budget."},
	{ID: pinauth.MetricRouteAllow, Name: "pinauth_route_allow_total", Help: "Allowed restricted-session route checks."},
	{ID: pinauth.MetricRouteRedirect, Name: "pinauth_route_redirect_total", Help: "Restricted-session route checks answered with a redirect."},
	{ID: pinauth.MetricRouteDeny, Name: "pinauth_route_deny_total", Help: "Restricted-session route checks denied."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: pinauth.MetricVerifyLatency, Name: "pinauth_verify_latency_seconds", Help: "VerifyPIN latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds, in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "pinauth_audit_dropped_total"

// HistogramBoundSuffix names per-bucket OTel gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
