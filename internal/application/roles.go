package application

import "strings"

// Role is a permission level. Higher ranks satisfy every lower requirement.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

var roleRanks = map[Role]int{
	RoleMember: 1,
	RoleAdmin:  2,
}

// ParseRole normalises a role name and reports whether it is known.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	_, ok := roleRanks[role]
	return role, ok
}

// Rank returns the numeric level of the role, or 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Satisfies reports whether r meets the required minimum role.
func (r Role) Satisfies(required Role) bool {
	rank := r.Rank()
	return rank > 0 && rank >= required.Rank()
}

// Authorize checks that the principal holds at least the required role.
func Authorize(principal Principal, required Role) error {
	if principal.Role == "" {
		return ErrUnauthenticated
	}
	if !principal.Role.Satisfies(required) {
		return ErrForbidden
	}
	return nil
}
