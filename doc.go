// Package sessionauth turns a username and password, or a credential still
// living in the legacy account service, into a durable, role-bearing session.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionauth is the public surface. It exposes [Engine], [Builder], [Config], the
// persistence contracts [Store] and [StoreTx], and value types ([User], [LoginResult],
// [Identity]). Rate limiting lives in internal/rate; session lifecycle in session;
// legacy account migration in legacy. The postgres package implements [Store].
//
// # Request flow
//
// Login and Register consult the rate limiter first, then the store, then either the
// password verifier or the legacy client. A user that is provisioned on the way is
// written in the same store transaction as its first session. ValidateSession always
// re-reads the persisted session.
//
// # What this package must NOT do
//
//   - Reveal to callers why a credential was rejected.
//   - Trust a bearer token without the stored session behind it.
//   - Import the postgres package or any sub-package that re-imports sessionauth.
package sessionauth
