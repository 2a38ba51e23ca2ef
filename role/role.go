package role

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned when a name does not belong to the closed role set.
var ErrUnknownRole = errors.New("unknown role")

// Role is one member of the closed set USER | POINTS | ADMIN.
type Role uint8

const (
	// User is the default role for every account.
	User Role = iota
	// Points grants access to loyalty-points features.
	Points
	// Admin grants user management, impersonation, and limiter administration.
	Admin

	roleCount
)

var names = [roleCount]string{
	User:   "USER",
	Points: "POINTS",
	Admin:  "ADMIN",
}

// String returns the canonical upper-case name.
func (r Role) String() string {
	if r >= roleCount {
		return "UNKNOWN"
	}
	return names[r]
}

// Valid reports whether r is a member of the closed set.
func (r Role) Valid() bool {
	return r < roleCount
}

// Parse maps a case-insensitive role name to its Role.
func Parse(name string) (Role, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range names {
		if n == upper {
			return Role(i), nil
		}
	}
	return 0, ErrUnknownRole
}

// All returns every role in bit order.
func All() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}
