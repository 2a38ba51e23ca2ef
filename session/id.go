package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const idSize = 32

var errInvalidID = errors.New("invalid session id")

// NewSessionID returns 32 bytes from crypto/rand, base64url encoded
// without padding.
func NewSessionID() (string, error) {
	var raw [idSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, cookie safe
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidID reports whether id has the shape NewSessionID produces. Callers use
// it to reject garbage before touching storage.
func ValidID(id string) bool {
	return parseID(id) == nil
}

func parseID(id string) error {
	if base64.RawURLEncoding.EncodedLen(idSize) != len(id) {
		return errInvalidID
	}
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil || len(raw) != idSize {
		return errInvalidID
	}
	return nil
}
