package auth

// Role is the authorization role of a principal
type Role string

const (
	// RoleUser is the default role for registered users
	RoleUser Role = "user"
	// RoleModerator can review user accounts
	RoleModerator Role = "moderator"
	// RoleAdmin can manage user accounts
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether r is one of roles
func (r Role) In(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleModerator,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
