package legacy

import (
	"fmt"

	"github.com/maccas-one/sessionauth/role"
)

// Legacy role names as returned by the login endpoint.
const (
	RoleNone       = "none"
	RolePrivileged = "privileged"
	RoleAdmin      = "admin"
)

// MapRole translates a legacy role name into the local role set.
func MapRole(legacyRole string) (role.Role, error) {
	switch legacyRole {
	case RoleNone:
		return role.User, nil
	case RolePrivileged:
		return role.Points, nil
	case RoleAdmin:
		return role.Admin, nil
	default:
		return 0, fmt.Errorf("%w: legacy role %q", role.ErrUnknownRole, legacyRole)
	}
}
