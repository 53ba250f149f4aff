package pinauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/pinauth/pinhash"
	"github.com/MrEthical07/pinauth/token"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one advisory finding. Codes are stable and safe to match on.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of findings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(hits))
	for _, w := range hits {
		msgs = append(msgs, w.Severity.String()+" "+w.Code+": "+w.Message)
	}
	return errors.New("pinauth config lint: " + strings.Join(msgs, "; "))
}

// Lint reports settings that pass [Config.Validate] but weaken the posture.
// It never fails a build on its own.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Lockout.MaxAttempts > 10 {
		add("lockout_permissive", LintHigh, "more than 10 PIN attempts before lockout")
	}
	if c.Lockout.Duration > 0 && c.Lockout.Duration < 5*time.Minute {
		add("lockout_short", LintWarn, "lockout shorter than 5m")
	}

	switch c.PIN.HashAlgorithm {
	case pinhash.AlgorithmSHA256:
		if c.Security.ProductionMode {
			add("pin_hash_fast_production", LintHigh, "salted SHA-256 makes a leaked PIN table cheap to brute force; set PIN.HashAlgorithm to argon2id")
		} else {
			add("pin_hash_fast", LintInfo, "salted SHA-256 is fast to brute force offline; consider argon2id")
		}
	case pinhash.AlgorithmArgon2id:
		if c.PIN.Argon2.Memory < 64*1024 {
			add("argon2_memory_low", LintWarn, "argon2id memory below 64 MB")
		}
	}

	if c.Session.TTL > 12*time.Hour {
		add("session_ttl_long", LintWarn, "restricted sessions live longer than a shift")
	}
	if c.Session.Leeway > time.Minute {
		add("leeway_large", LintWarn, "token leeway above 1m")
	}
	if token.SigningMethod(c.Session.SigningMethod) == token.MethodHS256 {
		add("signing_hs256", LintInfo, "hs256 shares the signing key with every verifier")
	}

	if c.SecondFactor.ChallengeTTL > 10*time.Minute {
		add("challenge_ttl_long", LintWarn, "second-factor challenge outlives 10m")
	}
	if c.SecondFactor.ChallengeTTL >= c.Session.TTL {
		add("challenge_outlives_session", LintWarn, "challenge TTL is not shorter than the session TTL")
	}
	if c.SecondFactor.MaxAttempts == 0 {
		add("second_factor_budget_disabled", LintHigh, "second-factor codes can be guessed until the challenge expires")
	}

	if !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "no per-IP throttle in front of PIN verification")
	}
	if !c.Security.RequireSecureCookies {
		add("insecure_cookies", LintHigh, "session cookie may travel over plain HTTP")
	}
	if c.Security.SameSitePolicy == http.SameSiteNoneMode {
		add("samesite_none", LintWarn, "session cookie is sent on cross-site requests")
	}

	if c.Capability.CacheEnabled && c.Capability.CacheTTL > 5*time.Minute {
		add("capability_cache_stale", LintWarn, "revoked capabilities stay cached for more than 5m")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "no audit trail for PIN and session events")
	}

	return ws
}

// HighSecurityConfig returns [DefaultConfig] tightened for production: argon2id
// digests, four hour sessions, a thirty minute lockout, the per-IP throttle and
// audit. The IP throttle needs a Redis client at Build time.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Security.ProductionMode = true
	cfg.Security.EnableIPThrottle = true
	cfg.PIN.HashAlgorithm = pinhash.AlgorithmArgon2id
	cfg.PIN.Argon2.Memory = 64 * 1024
	cfg.Session.TTL = 4 * time.Hour
	cfg.Session.SigningMethod = string(token.MethodEd25519)
	cfg.Lockout.Duration = 30 * time.Minute
	cfg.SecondFactor.ChallengeTTL = 3 * time.Minute
	cfg.SecondFactor.MaxAttempts = 3
	cfg.Audit.Enabled = true
	return cfg
}
