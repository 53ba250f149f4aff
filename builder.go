package pinauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/pinauth/capability"
	internalaudit "github.com/MrEthical07/pinauth/internal/audit"
	"github.com/MrEthical07/pinauth/internal/keylock"
	"github.com/MrEthical07/pinauth/internal/limiters"
	"github.com/MrEthical07/pinauth/internal/rate"
	"github.com/MrEthical07/pinauth/pinhash"
	"github.com/MrEthical07/pinauth/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Each Builder may be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials  CredentialStore
	capabilities CapabilityProvider
	secondFactor SecondFactorProvider
	preferences  PreferenceStore
	platform     PlatformSession

	auditSink AuditSink
	logger    *zap.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the PIN credential store. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithCapabilityProvider sets the capability source used by route authorization.
// Required.
func (b *Builder) WithCapabilityProvider(p CapabilityProvider) *Builder {
	b.capabilities = p
	return b
}

// WithSecondFactorProvider enables the second-factor gate.
func (b *Builder) WithSecondFactorProvider(p SecondFactorProvider) *Builder {
	b.secondFactor = p
	return b
}

// WithPreferenceStore sets the per-principal opt-in and capture preference source.
// Without it no principal is ever asked for a second factor and CaptureRoute
// always allows.
func (b *Builder) WithPreferenceStore(p PreferenceStore) *Builder {
	b.preferences = p
	return b
}

// WithPlatformSession makes IssueSession establish, and DestroySession clear, a
// host platform session.
func (b *Builder) WithPlatformSession(p PlatformSession) *Builder {
	b.platform = p
	return b
}

// WithRedis supplies the client for the optional per-IP throttle and the
// second-factor attempt budget.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination of audit events. Audit must also be enabled
// in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the VerifyPIN latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.capabilities == nil {
		return nil, errors.New("capability provider required")
	}
	if cfg.Security.EnableIPThrottle && b.redis == nil {
		return nil, errors.New("IP throttle requires redis client")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- PIN HASHING --------
	hasher, err := pinhash.New(cfg.PIN.HashAlgorithm, cfg.PIN.Argon2)
	if err != nil {
		return nil, err
	}

	lockout, err := limiters.NewLockout(limiters.LockoutConfig{
		MaxAttempts: cfg.Lockout.MaxAttempts,
		Duration:    cfg.Lockout.Duration,
	})
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	tokens, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    cfg.Session.PrivateKey,
		PublicKey:     cfg.Session.PublicKey,
		Issuer:        cfg.Session.Issuer,
		Leeway:        cfg.Session.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("session token manager: %w", err)
	}

	// -------- CAPABILITIES --------
	var capabilities CapabilityProvider = b.capabilities
	if cfg.Capability.CacheEnabled {
		capabilities = capability.NewCached(b.capabilities, cfg.Capability.CacheSize, cfg.Capability.CacheTTL)
	}

	e := &Engine{
		config:       cfg,
		credentials:  b.credentials,
		capabilities: capabilities,
		secondFactor: b.secondFactor,
		preferences:  b.preferences,
		platform:     b.platform,
		hasher:       hasher,
		lockout:      lockout,
		tokens:       tokens,
		locks:        keylock.New(0),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		sugar:   logger.Sugar(),
		now:     now,
	}

	if cfg.Security.EnableIPThrottle {
		e.throttle = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.Security.MaxAttemptsPerIP,
			Window:      cfg.Security.IPThrottleWindow,
			KeyPrefix:   cfg.Security.IPThrottlePrefix,
		})
	}
	if b.redis != nil && b.secondFactor != nil && cfg.SecondFactor.MaxAttempts > 0 {
		e.factorThrottle = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.SecondFactor.MaxAttempts,
			Window:      cfg.SecondFactor.AttemptWindow,
			KeyPrefix:   cfg.SecondFactor.AttemptPrefix,
		})
	}

	e.initFlows()

	b.built = true
	return e, nil
}
