// Package secondfactor provides a TOTP and backup-code backend that satisfies
// pinauth.SecondFactorProvider, plus the enrollment operations around it.
//
// # Storage
//
// TOTP secrets are sealed with XChaCha20-Poly1305 before they reach Redis.
// Backup codes are never stored in clear: each is kept as
// hex(SHA-256(principal || 0x00 || canonical code)) in a Redis set, so
// consumption is a single atomic SREM.
//
// # Enrollment lifecycle
//
//	Enroll -> Confirm(code) -> enrolled
//	GenerateBackupCodes       replaces every previous code
//	Disable                   removes secret and codes
//
// An unconfirmed secret does not count as an enrolled factor.
package secondfactor
