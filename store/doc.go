// Package store groups the pinauth.CredentialStore implementations:
//
//	memory       in-process map, for tests and single-node tools
//	redisstore   Redis hashes with Lua-scripted atomic counters
//	sqlitestore  SQLite table through modernc.org/sqlite
//
// Every implementation returns pinauth.ErrCredentialNotFound for unknown
// principals and implements the atomic AtomicFailureRecorder and
// SuccessRecorder extensions.
package store
