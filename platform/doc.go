// Package platform provides a Redis-backed host platform session store that
// satisfies pinauth.PlatformSession.
//
// # Binary encoding
//
// Records are stored as a compact binary blob (schema version 1): principal
// length-prefixed bytes followed by created/expires Unix seconds. Decode rejects
// unknown versions.
//
// # Key layout
//
//	<prefix>:<handle>        record blob, TTL = session lifetime
//	<prefix>u:<principal>    set of live handles for the principal
//
// # What this package must NOT do
//
//   - Import pinauth (no upward imports).
//   - Interpret session tokens or make authorization decisions.
package platform
