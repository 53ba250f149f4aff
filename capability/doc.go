// Package capability resolves which named capabilities a principal holds.
//
// # Building blocks
//
//   - [Registry] assigns each capability name a bit in a 64-bit [Mask].
//   - [Roles] composes registered capabilities into named role masks.
//   - [RoleProvider] answers HasCapability by resolving a principal's roles
//     through a caller-supplied lookup.
//   - [Static] is a fixed principal to capability table.
//   - [Cached] wraps any [Provider] with an expirable LRU.
//
// Every provider here satisfies pinauth.CapabilityProvider.
//
// # What this package must NOT do
//
//   - Import pinauth or any sibling package.
//   - Cache lookup errors.
package capability
