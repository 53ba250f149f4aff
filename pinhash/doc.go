// Package pinhash computes the salted one-way digest stored on a PIN credential.
//
// # Output format
//
// Every [Hasher] returns a 64-character lower-case hex string, so the persisted
// hash column has a fixed width regardless of algorithm:
//
//	sha256:   hex(SHA-256(pin ∥ salt))
//	argon2id: hex(Argon2id(pin, salt, t, m, p, 32))
//
// Argon2id parameters are not encoded in the digest. Changing them invalidates
// existing credentials, which must then be reissued.
//
// # Architecture boundaries
//
// This package owns hashing and comparison only. PIN format rules and normalization
// are enforced by the Engine before hashing.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; callers supply the PIN and salt.
//   - Import any other pinauth package.
//   - Log PINs, salts or digests.
package pinhash
