// Package security assembles the engine's security posture report from its
// effective configuration and the collaborators present at Build time.
//
// # What this package must NOT do
//
//   - Read secrets. The report carries algorithm names and durations only.
//   - Be imported by any package outside the pinauth module.
package security
