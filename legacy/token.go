package legacy

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

const legacyIDClaim = "oid"

// UserIDFromToken reads the "oid" claim from a legacy access token WITHOUT
// verifying its signature.
//
// Reviewed exception: the token is the body of a response this service
// just received from the legacy endpoint it called itself over TLS, and
// this service holds no key to verify it with. Never call this on a token
// that arrived from a client.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	oid, _ := claims[legacyIDClaim].(string)
	if oid == "" {
		return "", errors.New("legacy token has no oid claim")
	}
	return oid, nil
}
