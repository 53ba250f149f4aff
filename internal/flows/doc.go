// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow function (RunVerifyPIN, RunVerifySecondFactor, RunAuthorize, etc.)
// accepts a typed dependency struct and returns results without side-effects beyond
// those dependencies. This keeps the Engine type thin and lets every branch be
// tested with plain function fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, per-principal lock,
// lockout policy, throttle, second-factor provider, capability lookup, audit
// dispatcher and metrics. They do NOT own any of these resources; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import pinauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
