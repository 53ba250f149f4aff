package pinauth

import (
	"time"

	"github.com/MrEthical07/pinauth/internal/security"
)

// SecurityReport summarizes the effective security posture of a built engine.
// It never contains key material.
type SecurityReport struct {
	ProductionMode         bool
	SigningAlgorithm       string
	SessionTTL             time.Duration
	ChallengeTTL           time.Duration
	PINHash                PINHashReport
	LockoutMaxAttempts     int
	LockoutDuration        time.Duration
	SecondFactorConfigured bool
	SecondFactorBudget     bool
	PlatformSession        bool
	IPThrottleActive       bool
	CapabilityCacheTTL     time.Duration
	AuditActive            bool
	SecureCookies          bool
}

// PINHashReport names the PIN digest and, for argon2id, its cost parameters.
type PINHashReport struct {
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

// SecurityReport returns the posture of e. A zero report is returned for a nil
// engine.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	r := security.BuildReport(security.ReportInput{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.Session.SigningMethod,
		SessionTTL:       e.config.Session.TTL,
		ChallengeTTL:     e.config.SecondFactor.ChallengeTTL,
		Hash: security.HashReport{
			Algorithm:         e.config.PIN.HashAlgorithm,
			Argon2Memory:      e.config.PIN.Argon2.Memory,
			Argon2Time:        e.config.PIN.Argon2.Time,
			Argon2Parallelism: e.config.PIN.Argon2.Parallelism,
		},
		LockoutMaxAttempts:   e.config.Lockout.MaxAttempts,
		LockoutDuration:      e.config.Lockout.Duration,
		HasSecondFactor:      e.secondFactor != nil,
		HasFactorThrottle:    e.factorThrottle != nil,
		HasPlatformSession:   e.platform != nil,
		HasIPThrottle:        e.throttle != nil,
		CapabilityCacheOn:    e.config.Capability.CacheEnabled,
		CapabilityCacheTTL:   e.config.Capability.CacheTTL,
		AuditEnabled:         e.config.Audit.Enabled,
		HasAuditSink:         e.audit != nil,
		RequireSecureCookies: e.config.Security.RequireSecureCookies,
	})

	return SecurityReport{
		ProductionMode:   r.ProductionMode,
		SigningAlgorithm: r.SigningAlgorithm,
		SessionTTL:       r.SessionTTL,
		ChallengeTTL:     r.ChallengeTTL,
		PINHash: PINHashReport{
			Algorithm:   r.Hash.Algorithm,
			Memory:      r.Hash.Argon2Memory,
			Time:        r.Hash.Argon2Time,
			Parallelism: r.Hash.Argon2Parallelism,
		},
		LockoutMaxAttempts:     r.LockoutMaxAttempts,
		LockoutDuration:        r.LockoutDuration,
		SecondFactorConfigured: r.SecondFactorConfigured,
		SecondFactorBudget:     r.SecondFactorBudget,
		PlatformSession:        r.PlatformSession,
		IPThrottleActive:       r.IPThrottleActive,
		CapabilityCacheTTL:     r.CapabilityCacheTTL,
		AuditActive:            r.AuditActive,
		SecureCookies:          r.SecureCookies,
	}
}
