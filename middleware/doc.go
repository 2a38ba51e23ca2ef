// Package middleware adapts sessionauth.Engine to net/http.
//
// # Guards
//
//   - [RequireSession] reads the session cookie, calls Engine.ValidateSession
//     on every request, and attaches the resulting identity to the context.
//   - [RequestMeta] copies the client IP, user agent, and anonymous limiter
//     cookie into the context for the rate limiter and audit trail.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// the Engine.
package middleware
