// Package limiters holds the PIN lockout policy.
//
// # Limiters
//
//   - [Lockout]: failed-attempt threshold and lockout window arithmetic.
//
// # Architecture boundaries
//
// The failure counter and lock timestamp are stored on the credential row, so this
// package never talks to a store. Flow functions combine the policy with the atomic
// store operations.
//
// # What this package must NOT do
//
//   - Import pinauth or any sibling internal package.
//   - Decide what happens on lockout beyond the arithmetic (flows decide consequences).
package limiters
