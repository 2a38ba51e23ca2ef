// Package legacy talks to the predecessor account service during one-time
// account migration.
//
// A username unknown to the local store is forwarded, with its password,
// to the legacy login endpoint. A successful answer yields the account's
// legacy id, its role, and optionally its store preference; the caller then
// provisions a local user and never consults this package for that user
// again.
//
// Every failure surfaces as [ErrLegacyRejected]. Callers must not tell a
// network failure apart from a wrong password.
package legacy
