// Package rate provides Redis-backed fixed-window attempt budgets: the optional
// per-IP throttle for PIN attempts and the per-principal budget for
// second-factor codes.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Keys are KeyPrefix + key (default
// prefix "pip:").
//
// # What this package must NOT do
//
//   - Count per-principal PIN failures (those live on the credential row).
//   - Be imported outside the pinauth module.
package rate
