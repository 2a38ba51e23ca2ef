// Package role defines the closed role set carried by users, sessions, and
// bearer tokens.
//
// # Encoding
//
// A [Set] is a small bitmask. Bit positions are fixed by the [Role]
// constants and are persisted verbatim by stores, so they must never be
// renumbered.
//
// # What this package must NOT do
//
//   - Access databases, Redis, or the network.
//   - Import sessionauth, session, or jwt.
//   - Accept role names outside the closed set.
package role
