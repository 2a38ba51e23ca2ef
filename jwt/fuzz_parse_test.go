package jwt

import (
	"testing"
	"time"
)

// FuzzJWTParseAccess exercises the JWT parser with arbitrary token strings.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzJWTParseAccess(f *testing.F) {
	mgr, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("fuzz-secret-fuzz-secret"),
		Leeway:        30 * time.Second,
	})
	if err != nil {
		f.Fatal(err)
	}

	now := time.Now()
	validToken, err := mgr.CreateAccess("uid1", "sid1", []string{"USER"}, now, now.Add(time.Hour))
	if err != nil {
		f.Fatal(err)
	}

	f.Add(validToken)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJ1aWQiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ParseAccess(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("ParseAccess returned nil claims without error")
		}
	})
}
