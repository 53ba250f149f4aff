package pinauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/pinauth/pinhash"
	"github.com/MrEthical07/pinauth/token"
)

// Config is the complete engine configuration. Obtain a populated value with
// [DefaultConfig], adjust it, and pass it to [Builder.WithConfig].
type Config struct {
	PIN          PINConfig
	Lockout      LockoutConfig
	Session      SessionConfig
	SecondFactor SecondFactorConfig
	Routes       RoutesConfig
	Capability   CapabilityConfig
	Security     SecurityConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
PIN CONFIG
====================================
*/

// PINConfig selects the one-way PIN digest.
type PINConfig struct {
	HashAlgorithm string // "sha256" (default) or "argon2id"
	Argon2        pinhash.Argon2Config
}

// LockoutConfig is the per-principal brute-force policy.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session and challenge token signing.
type SessionConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	CookieName    string
}

// SecondFactorConfig controls the two-step login challenge. MaxAttempts wrong
// codes per principal within AttemptWindow throttle CompleteSecondFactor; the
// budget needs a Redis client and is off when MaxAttempts is zero.
type SecondFactorConfig struct {
	ChallengeTTL  time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
	AttemptPrefix string
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RouteRule maps a capability to the routes it unlocks, in display order.
type RouteRule struct {
	Capability string
	Routes     []string
}

// RoutesConfig is the static capability to route table used for restricted
// sessions.
type RoutesConfig struct {
	Rules        []RouteRule
	ReportsRoute string
	ClockRoute   string
	ManualRoute  string
}

// CapabilityConfig enables the expirable capability cache in front of the
// configured CapabilityProvider.
type CapabilityConfig struct {
	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds hardening switches.
type SecurityConfig struct {
	ProductionMode       bool
	EnableIPThrottle     bool
	MaxAttemptsPerIP     int
	IPThrottleWindow     time.Duration
	IPThrottlePrefix     string
	RequireSecureCookies bool
	SameSitePolicy       http.SameSite
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults: five attempts, a fifteen minute
// lockout, eight hour HS256 sessions and the time-tracking/expense route table.
// A signing key still has to be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		PIN: PINConfig{
			HashAlgorithm: pinhash.AlgorithmSHA256,
			Argon2: pinhash.Argon2Config{
				Memory:      64 * 1024,
				Time:        2,
				Parallelism: 2,
			},
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		Session: SessionConfig{
			TTL:           8 * time.Hour,
			SigningMethod: string(token.MethodHS256),
			Issuer:        "pinauth",
			CookieName:    "pin_session",
		},
		SecondFactor: SecondFactorConfig{
			ChallengeTTL:  5 * time.Minute,
			MaxAttempts:   5,
			AttemptWindow: 15 * time.Minute,
			AttemptPrefix: "psfa:",
		},
		Routes: RoutesConfig{
			Rules: []RouteRule{
				{Capability: "time-tracking", Routes: []string{"clock", "manual-entry"}},
				{Capability: "expense", Routes: []string{"expense"}},
			},
			ReportsRoute: "reports",
			ClockRoute:   "clock",
			ManualRoute:  "manual-entry",
		},
		Capability: CapabilityConfig{
			CacheEnabled: false,
			CacheSize:    4096,
			CacheTTL:     time.Minute,
		},
		Security: SecurityConfig{
			ProductionMode:       false,
			EnableIPThrottle:     false,
			MaxAttemptsPerIP:     50,
			IPThrottleWindow:     15 * time.Minute,
			IPThrottlePrefix:     "pip:",
			RequireSecureCookies: true,
			SameSitePolicy:       http.SameSiteStrictMode,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	if cfg.Routes.Rules != nil {
		out.Routes.Rules = make([]RouteRule, len(cfg.Routes.Rules))
		for i, r := range cfg.Routes.Rules {
			out.Routes.Rules[i] = RouteRule{
				Capability: r.Capability,
				Routes:     append([]string(nil), r.Routes...),
			}
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks c for internal consistency. ProductionMode adds tighter bounds
// on session lifetime, lockout policy and digest strength.
func (c *Config) Validate() error {
	// PIN
	switch c.PIN.HashAlgorithm {
	case pinhash.AlgorithmSHA256:
	case pinhash.AlgorithmArgon2id:
		if c.PIN.Argon2.Memory < 8*1024 {
			return errors.New("PIN Argon2 Memory must be >= 8192 KB")
		}
		if c.PIN.Argon2.Time < 1 {
			return errors.New("PIN Argon2 Time must be >= 1")
		}
		if c.PIN.Argon2.Parallelism < 1 {
			return errors.New("PIN Argon2 Parallelism must be >= 1")
		}
	default:
		return errors.New("PIN HashAlgorithm must be 'sha256' or 'argon2id'")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.Leeway < 0 {
		return errors.New("Session Leeway must be >= 0")
	}
	switch token.SigningMethod(c.Session.SigningMethod) {
	case token.MethodHS256:
		if len(c.Session.PrivateKey) < token.MinHMACKeyLength {
			return errors.New("hs256 requires PrivateKey of at least 32 bytes")
		}
	case token.MethodEd25519:
		if len(c.Session.PrivateKey) == 0 || len(c.Session.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported Session SigningMethod")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName is required")
	}

	// Second factor
	if c.SecondFactor.ChallengeTTL <= 0 {
		return errors.New("SecondFactor ChallengeTTL must be > 0")
	}
	if c.SecondFactor.MaxAttempts < 0 {
		return errors.New("SecondFactor MaxAttempts must be >= 0")
	}
	if c.SecondFactor.MaxAttempts > 0 && c.SecondFactor.AttemptWindow <= 0 {
		return errors.New("SecondFactor AttemptWindow must be > 0 when MaxAttempts is set")
	}

	// Routes
	seen := make(map[string]struct{}, len(c.Routes.Rules))
	for _, rule := range c.Routes.Rules {
		if rule.Capability == "" {
			return errors.New("Routes rule Capability is required")
		}
		if _, dup := seen[rule.Capability]; dup {
			return errors.New("Routes rule Capability must be unique: " + rule.Capability)
		}
		seen[rule.Capability] = struct{}{}
		for _, r := range rule.Routes {
			if strings.TrimSpace(r) == "" {
				return errors.New("Routes rule contains an empty route")
			}
		}
	}
	if (c.Routes.ClockRoute == "") != (c.Routes.ManualRoute == "") {
		return errors.New("Routes ClockRoute and ManualRoute must be set together")
	}

	// Capability cache
	if c.Capability.CacheEnabled {
		if c.Capability.CacheSize <= 0 {
			return errors.New("Capability CacheSize must be > 0 when the cache is enabled")
		}
		if c.Capability.CacheTTL <= 0 {
			return errors.New("Capability CacheTTL must be > 0 when the cache is enabled")
		}
	}

	// Security
	if c.Security.EnableIPThrottle {
		if c.Security.MaxAttemptsPerIP <= 0 {
			return errors.New("Security MaxAttemptsPerIP must be > 0 when IP throttle is enabled")
		}
		if c.Security.IPThrottleWindow <= 0 {
			return errors.New("Security IPThrottleWindow must be > 0 when IP throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Session.TTL > 12*time.Hour {
			return errors.New("ProductionMode requires Session TTL <= 12h")
		}
		if c.Session.Leeway > time.Minute {
			return errors.New("ProductionMode requires Session Leeway <= 1m")
		}
		if c.Lockout.MaxAttempts > 10 {
			return errors.New("ProductionMode requires Lockout MaxAttempts <= 10")
		}
		if c.Lockout.Duration < 5*time.Minute {
			return errors.New("ProductionMode requires Lockout Duration >= 5m")
		}
		if c.SecondFactor.ChallengeTTL > 10*time.Minute {
			return errors.New("ProductionMode requires SecondFactor ChallengeTTL <= 10m")
		}
		if !c.Security.RequireSecureCookies {
			return errors.New("ProductionMode requires secure cookies")
		}
	}

	return nil
}
