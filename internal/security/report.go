package security

import "time"

// HashReport describes the PIN digest in use.
type HashReport struct {
	Algorithm         string
	Argon2Memory      uint32
	Argon2Time        uint32
	Argon2Parallelism uint8
}

// Report is the flattened security posture.
type Report struct {
	ProductionMode         bool
	SigningAlgorithm       string
	SessionTTL             time.Duration
	ChallengeTTL           time.Duration
	Hash                   HashReport
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

// ReportInput is the raw material for [BuildReport].
type ReportInput struct {
	ProductionMode       bool
	SigningAlgorithm     string
	SessionTTL           time.Duration
	ChallengeTTL         time.Duration
	Hash                 HashReport
	LockoutMaxAttempts   int
	LockoutDuration      time.Duration
	HasSecondFactor      bool
	HasFactorThrottle    bool
	HasPlatformSession   bool
	HasIPThrottle        bool
	CapabilityCacheOn    bool
	CapabilityCacheTTL   time.Duration
	AuditEnabled         bool
	HasAuditSink         bool
	RequireSecureCookies bool
}

// BuildReport derives the report. Features count as active only when both the
// switch and the backing collaborator are present.
func BuildReport(input ReportInput) Report {
	hash := input.Hash
	if hash.Algorithm != "argon2id" {
		hash.Argon2Memory, hash.Argon2Time, hash.Argon2Parallelism = 0, 0, 0
	}

	var cacheTTL time.Duration
	if input.CapabilityCacheOn {
		cacheTTL = input.CapabilityCacheTTL
	}

	return Report{
		ProductionMode:         input.ProductionMode,
		SigningAlgorithm:       input.SigningAlgorithm,
		SessionTTL:             input.SessionTTL,
		ChallengeTTL:           input.ChallengeTTL,
		Hash:                   hash,
		LockoutMaxAttempts:     input.LockoutMaxAttempts,
		LockoutDuration:        input.LockoutDuration,
		SecondFactorConfigured: input.HasSecondFactor,
		SecondFactorBudget:     input.HasSecondFactor && input.HasFactorThrottle,
		PlatformSession:        input.HasPlatformSession,
		IPThrottleActive:       input.HasIPThrottle,
		CapabilityCacheTTL:     cacheTTL,
		AuditActive:            input.AuditEnabled && input.HasAuditSink,
		SecureCookies:          input.RequireSecureCookies,
	}
}
