// Package jwt issues and verifies the bearer tokens attached to sessions.
//
// A token embeds {userId, sessionId, role} plus issuer, audience, and
// subject constants, and expires together with its session. Tokens are a
// convenience for downstream services; the persisted session record stays
// authoritative.
package jwt
