// Package session owns the authenticated session record and the rules for
// creating, impersonating, and validating it.
//
// # Architecture boundaries
//
// The package does not talk to a database. Persistence is supplied by the
// caller through [Writer] and [Reader], so a session write can join the
// transaction that provisions its user. Tokens are produced through
// [TokenSigner] and are never trusted on the read path: [Manager.Validate]
// always re-reads the stored record.
//
// # What this package must NOT do
//
//   - Import sessionauth or any store implementation (no upward imports).
//   - Cache validation results.
//   - Decide who may impersonate whom; that is an Engine concern.
package session
