// Package pinauth provides a PIN-based authentication engine for mobile-only users:
// PIN credential issuance and verification, brute-force lockout, signed session
// tokens, an optional second-factor gate, and a route allow-list for sessions that
// originated from a PIN login.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// pinauth is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator interfaces ([CredentialStore], [CapabilityProvider],
// [SecondFactorProvider], [PlatformSession], [PreferenceStore]) and result types.
// Flow orchestration, PIN formatting, per-principal locking, rate limiting and audit
// dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Log or return PIN values, salts, hashes, second-factor codes or session tokens.
//   - Treat an unreachable credential store as anything other than a failure
//     ([ErrStoreUnavailable]). Verification fails closed.
//   - Distinguish a tampered session token from an expired one to the caller.
//   - Import any sub-package that re-imports pinauth (no import cycles).
//
// # Performance contract
//
// ValidateSession is the hot path. It performs no store round-trips and takes no locks.
// VerifyPIN performs one credential read plus one outcome write per call, and one extra
// reset when it finds an expired lock.
package pinauth
