// Package audit implements async event dispatching for PIN logins, lockouts, session
// issuance and route decisions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Redact]: strips metadata keys that name secret material before delivery.
//   - [Event]: structured audit record with timestamp, type, principal, session, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Engine and flow functions.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import pinauth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
