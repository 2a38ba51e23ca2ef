// Package password provides bcrypt hashing and verification for stored
// credentials.
//
// # Cost
//
// The work factor is fixed per [Bcrypt] instance (default 10). Hashes
// produced with a different cost still verify, since bcrypt encodes its
// cost in the hash.
//
// # What this package must NOT do
//
//   - Log, persist, or normalize plaintext passwords.
//   - Return an error from Verify: a malformed hash is a non-match.
package password
