package rate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const cookieIDSize = 18

type cookieSigner struct {
	key []byte
}

func (s cookieSigner) mint() (string, error) {
	var raw [cookieIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	id := base64.RawURLEncoding.EncodeToString(raw[:])
	return id + "." + s.sign(id), nil
}

func (s cookieSigner) sign(id string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify returns the id part of a signed value.
func (s cookieSigner) verify(value string) (string, error) {
	if len(s.key) == 0 {
		return "", ErrInvalidCookie
	}
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" || sig == "" {
		return "", ErrInvalidCookie
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return "", ErrInvalidCookie
	}
	return id, nil
}
