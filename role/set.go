package role

import "fmt"

// Set is a bitmask of roles. The zero value is the empty set.
type Set uint8

const validBits = Set(1<<roleCount) - 1

// NewSet builds a Set from the given roles; invalid roles are ignored.
func NewSet(roles ...Role) Set {
	var s Set
	for _, r := range roles {
		s.Add(r)
	}
	return s
}

// Has reports whether r is in the set.
func (s Set) Has(r Role) bool {
	if !r.Valid() {
		return false
	}
	return s&(1<<r) != 0
}

// Add inserts r.
func (s *Set) Add(r Role) {
	if !r.Valid() {
		return
	}
	*s |= 1 << r
}

// Remove deletes r.
func (s *Set) Remove(r Role) {
	if !r.Valid() {
		return
	}
	*s &^= 1 << r
}

// Union returns the roles present in either set.
func (s Set) Union(other Set) Set {
	return (s | other) & validBits
}

// Empty reports whether no role is set.
func (s Set) Empty() bool {
	return s&validBits == 0
}

// Roles lists the members in bit order, which keeps token claims deterministic.
func (s Set) Roles() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Names lists the canonical member names in bit order.
func (s Set) Names() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}

// ParseNames builds a Set from role names, failing on the first unknown name.
func ParseNames(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		r, err := Parse(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", err, n)
		}
		s.Add(r)
	}
	return s, nil
}

// Raw returns the persisted bitmask.
func (s Set) Raw() uint8 {
	return uint8(s)
}

// FromRaw decodes a persisted bitmask, rejecting bits outside the closed set.
func FromRaw(raw uint8) (Set, error) {
	s := Set(raw)
	if s&^validBits != 0 {
		return 0, fmt.Errorf("%w: mask %#x", ErrUnknownRole, raw)
	}
	return s, nil
}
