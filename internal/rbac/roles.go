package rbac

import "strings"

// Role names carried in the operator credential's "role" claim.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// IsAdmin reports whether role may manage board settings: categories and
// the team-lead roster.
func IsAdmin(role string) bool { return strings.EqualFold(role, RoleAdmin) }
