package pinauth

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/pinauth/internal/audit"
	"github.com/MrEthical07/pinauth/internal/flows"
	"github.com/MrEthical07/pinauth/internal/keylock"
	"github.com/MrEthical07/pinauth/internal/limiters"
	"github.com/MrEthical07/pinauth/internal/rate"
	"github.com/MrEthical07/pinauth/pinhash"
	"github.com/MrEthical07/pinauth/token"
	"go.uber.org/zap"
)

// Engine is the PIN authentication engine. It is safe for concurrent use once
// built; all collaborators are fixed at Build time.
type Engine struct {
	config Config

	credentials  CredentialStore
	capabilities CapabilityProvider
	secondFactor SecondFactorProvider
	preferences  PreferenceStore
	platform     PlatformSession

	hasher   pinhash.Hasher
	lockout  limiters.Lockout
	tokens   *token.Manager
	locks    *keylock.Striped
	throttle *rate.Limiter

	factorThrottle *rate.Limiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *zap.Logger
	sugar   *zap.SugaredLogger
	now     func() time.Time

	flow flows.Service
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.credentials != nil && e.tokens != nil && e.flow.Initialized()
}

func (e *Engine) initFlows() {
	emit := func(ctx context.Context, event string, success bool, principalID, sessionID, reason string, err error, metadata func() map[string]string) {
		e.emitAudit(ctx, event, success, principalID, sessionID, reason, err, metadata)
	}
	inc := func(id int) { e.metricInc(MetricID(id)) }

	verify := flows.VerifyPINDeps{
		Lockout:             e.lockout,
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		LockPrincipal:       e.locks.Lock,
		GetCredential:       e.getCredentialRecord,
		ResetAttempts:       e.credentials.ResetAttempts,
		RecordFailure:       e.recordFailure,
		RecordSuccess:       e.recordSuccess,
		HashPIN:             e.hasher.Hash,
		EqualDigest:         pinhash.Equal,
		MetricInc:           inc,
		EmitAudit:           emit,
		Warn:                e.sugar.Warnw,
		Error:               e.sugar.Errorw,
		Metrics: flows.VerifyPINMetrics{
			Success:       int(MetricPINVerifySuccess),
			InvalidFormat: int(MetricPINInvalidFormat),
			NotEnrolled:   int(MetricPINNotEnrolled),
			Disabled:      int(MetricPINDisabled),
			Locked:        int(MetricPINLocked),
			LockTriggered: int(MetricPINLockTriggered),
			InvalidPIN:    int(MetricPINInvalid),
			Throttled:     int(MetricPINThrottled),
			StoreFailure:  int(MetricStoreFailure),
		},
		Events: flows.VerifyPINEvents{
			Success:   auditEventPINVerifySuccess,
			Failure:   auditEventPINVerifyFailure,
			Locked:    auditEventPINLocked,
			Throttled: auditEventPINThrottled,
		},
		Errors: flows.VerifyPINErrors{
			EngineNotReady:   ErrEngineNotReady,
			StoreUnavailable: ErrStoreUnavailable,
			Throttled:        ErrThrottled,
		},
	}
	if e.throttle != nil {
		verify.CheckThrottle = e.throttle.Check
		verify.IncrementThrottle = e.throttle.Increment
		verify.IsThrottled = func(err error) bool { return errors.Is(err, rate.ErrRateLimited) }
	}

	secondFactor := flows.SecondFactorDeps{
		MetricInc: inc,
		EmitAudit: emit,
		Error:     e.sugar.Errorw,
		Metrics: flows.SecondFactorMetrics{
			Required:       int(MetricSecondFactorRequired),
			TOTPSuccess:    int(MetricSecondFactorTOTPSuccess),
			BackupCodeUsed: int(MetricSecondFactorBackupCodeUsed),
			Failure:        int(MetricSecondFactorFailure),
		},
		Events: flows.SecondFactorEvents{
			Success: auditEventSecondFactorSuccess,
			Failure: auditEventSecondFactorFailure,
		},
		Errors: flows.SecondFactorErrors{Unavailable: ErrSecondFactorUnavailable},
	}
	if e.secondFactor != nil {
		secondFactor.HasEnrolledFactor = e.secondFactor.HasEnrolledFactor
		secondFactor.TOTPSecret = e.secondFactor.TOTPSecret
		secondFactor.VerifyTOTP = e.secondFactor.VerifyTOTP
		if c, ok := e.secondFactor.(TOTPConsumer); ok {
			secondFactor.ConsumeTOTP = c.ConsumeTOTP
		}
		secondFactor.ConsumeBackupCode = e.secondFactor.ConsumeBackupCode
		if e.preferences != nil {
			secondFactor.OptedIn = e.preferences.SecondFactorOptIn
		}
	}

	rules := make([]flows.RouteRule, 0, len(e.config.Routes.Rules))
	for _, r := range e.config.Routes.Rules {
		rules = append(rules, flows.RouteRule{Capability: r.Capability, Routes: r.Routes})
	}
	authorize := flows.AuthorizeDeps{
		Rules:         rules,
		ReportsRoute:  e.config.Routes.ReportsRoute,
		ClockRoute:    e.config.Routes.ClockRoute,
		ManualRoute:   e.config.Routes.ManualRoute,
		HasCapability: e.capabilities.HasCapability,
		MetricInc:     inc,
		EmitAudit:     emit,
		Error:         e.sugar.Errorw,
		Metrics: flows.AuthorizeMetrics{
			Allow:    int(MetricRouteAllow),
			Redirect: int(MetricRouteRedirect),
			Deny:     int(MetricRouteDeny),
		},
		Events: flows.AuthorizeEvents{
			Redirect: auditEventRouteRedirect,
			Deny:     auditEventRouteDenied,
		},
		Errors: flows.AuthorizeErrors{
			EngineNotReady:        ErrEngineNotReady,
			CapabilityUnavailable: ErrCapabilityUnavailable,
			PreferenceUnavailable: ErrPreferenceUnavailable,
		},
	}
	if e.preferences != nil {
		authorize.CapturePreference = func(ctx context.Context, principalID string) (string, error) {
			mode, err := e.preferences.CapturePreference(ctx, principalID)
			return string(mode), err
		}
	}

	e.flow = flows.New(flows.Deps{
		VerifyPIN:    verify,
		SecondFactor: secondFactor,
		Authorize:    authorize,
	})
}

func (e *Engine) getCredentialRecord(ctx context.Context, principalID string) (*flows.PinCredentialRecord, error) {
	cred, err := e.credentials.Get(ctx, principalID)
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}
	return &flows.PinCredentialRecord{
		Salt:           cred.Salt,
		Hash:           cred.Hash,
		Active:         cred.Active,
		FailedAttempts: cred.FailedAttempts,
		LockedUntil:    cred.LockedUntil,
	}, nil
}

func (e *Engine) recordFailure(ctx context.Context, principalID string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	if rec, ok := e.credentials.(AtomicFailureRecorder); ok {
		return rec.RecordFailure(ctx, principalID, maxAttempts, lockUntil)
	}

	count, err := e.credentials.IncrementFailedAttempts(ctx, principalID)
	if err != nil {
		return 0, false, err
	}
	if count < maxAttempts {
		return count, false, nil
	}
	if err := e.credentials.SetLock(ctx, principalID, lockUntil); err != nil {
		return count, false, err
	}
	return count, true, nil
}

func (e *Engine) recordSuccess(ctx context.Context, principalID string, when time.Time) error {
	if rec, ok := e.credentials.(SuccessRecorder); ok {
		return rec.RecordSuccess(ctx, principalID, when)
	}
	if err := e.credentials.ResetAttempts(ctx, principalID); err != nil {
		return err
	}
	return e.credentials.SetLastSuccess(ctx, principalID, when)
}
