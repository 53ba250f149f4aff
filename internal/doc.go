// Package internal contains helper utilities that are intentionally private to pinauth:
// PIN and salt generation, PIN format checks and random code drawing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for Engine operations
//   - keylock: striped per-principal mutexes for the verification critical section
//   - limiters: lockout policy arithmetic shared by the flows and stores
//   - logging: zap logger construction for binaries
//   - rate: Redis-backed attempt budgets (per-IP PIN throttle, per-principal second factor)
//   - security: security posture report assembly
//   - server: chi HTTP surface used by cmd/pinauth-server
//
// # What this package must NOT do
//
//   - Export types that appear in the public pinauth API.
//   - Be imported by any package outside the pinauth module.
package internal
