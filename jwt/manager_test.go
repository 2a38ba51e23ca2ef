package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"reflect"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("test-secret-test-secret")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAccessEmbedsSessionClaims(t *testing.T) {
	m := newHSManager(t)
	now := time.Now().Truncate(time.Second)
	expires := now.Add(7 * 24 * time.Hour)

	token, err := m.CreateAccess("u-1", "s-1", []string{"USER", "POINTS"}, now, expires)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "u-1" || claims.SessionID != "s-1" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if !reflect.DeepEqual(claims.Roles, []string{"USER", "POINTS"}) {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.Issuer != DefaultIssuer || claims.Subject != DefaultSubject {
		t.Fatalf("unexpected issuer/subject: %q %q", claims.Issuer, claims.Subject)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != DefaultAudience {
		t.Fatalf("unexpected audience: %v", claims.Audience)
	}
	if !claims.ExpiresAt.Time.Equal(expires) {
		t.Fatalf("expected exp %v, got %v", expires, claims.ExpiresAt.Time)
	}
}

func TestCreateAccessRejectsInvertedWindow(t *testing.T) {
	m := newHSManager(t)
	now := time.Now()
	if _, err := m.CreateAccess("u", "s", nil, now, now); err == nil {
		t.Fatal("expected zero-length token lifetime to be rejected")
	}
	if _, err := m.CreateAccess("", "s", nil, now, now.Add(time.Hour)); err == nil {
		t.Fatal("expected missing user id to be rejected")
	}
}

func TestParseAccessRejectsExpiredToken(t *testing.T) {
	m := newHSManager(t)
	past := time.Now().Add(-2 * time.Hour)
	token, err := m.CreateAccess("u", "s", nil, past, past.Add(time.Hour))
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UserID: "u", SessionID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessIssuerAudienceSubject(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	now := time.Now()
	access, err := m.CreateAccess("u", "s1", []string{"USER"}, now, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(access); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	base := gjwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   DefaultSubject,
		Audience:  gjwt.ClaimStrings{DefaultAudience},
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(now),
	}

	wrongIssuer := base
	wrongIssuer.Issuer = "other"
	wrongAudience := base
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}
	wrongSubject := base
	wrongSubject.Subject = "other"

	for name, rc := range map[string]gjwt.RegisteredClaims{
		"issuer":   wrongIssuer,
		"audience": wrongAudience,
		"subject":  wrongSubject,
	} {
		tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, AccessClaims{UserID: "u", SessionID: "s1", RegisteredClaims: rc})
		signed, err := tok.SignedString(priv)
		if err != nil {
			t.Fatalf("sign %s token: %v", name, err)
		}
		if _, err := m.ParseAccess(signed); err == nil {
			t.Fatalf("expected wrong %s to fail", name)
		}
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected hs256 without key to fail")
	}
	if _, err := NewManager(Config{SigningMethod: "rs512", PrivateKey: []byte("x")}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("x"), Leeway: time.Hour}); err == nil {
		t.Fatal("expected oversized leeway to fail")
	}
}
