// Package rate implements the fixed-window abuse limiter that guards the
// login and register forms before any identity is known.
//
// # Window semantics
//
// Every attempt increments one counter per dimension. A counter's window
// opens on its first hit and closes when the window elapses; the next hit
// opens a fresh window. Keys look like
//
//	rl:<scope>:<dimension>:<digest>
//
// where the digest is a SHA-256 prefix of the identifier, so raw IP
// addresses and user agents never land in Redis.
//
// # Dimensions
//
//   - ip      coarse ceiling, long window
//   - ip_ua   tight ceiling, short window
//   - cookie  anonymous id handed out by [Limiter.Preflight]
//
// # What this package must NOT do
//
//   - Look up users or sessions. It must work before identity exists.
//   - Share one bucket between identifiers.
package rate
