package auth

// AdminPrincipalID is the sentinel id embedded in admin tokens. It never
// matches a stored user id.
const AdminPrincipalID = "admin"

// Principal is the authenticated identity attached to a request. It is either
// a RegularPrincipal or an AdminPrincipal.
type Principal interface {
	ID() string
	Email() string
	Role() Role
	principal()
}

// RegularPrincipal is a principal backed by a stored user record
type RegularPrincipal struct {
	User *User
}

func (p RegularPrincipal) ID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID.String()
}

func (p RegularPrincipal) Email() string {
	if p.User == nil {
		return ""
	}
	return p.User.Email
}

func (p RegularPrincipal) Role() Role {
	if p.User == nil || p.User.Role == "" {
		return RoleUser
	}
	return p.User.Role
}

func (RegularPrincipal) principal() {}

// AdminPrincipal is the static, config driven administrator. It has no
// stored record.
type AdminPrincipal struct {
	AdminEmail string
}

func (p AdminPrincipal) ID() string {
	return AdminPrincipalID
}

func (p AdminPrincipal) Email() string {
	return p.AdminEmail
}

func (p AdminPrincipal) Role() Role {
	return RoleAdmin
}

func (AdminPrincipal) principal() {}

// PrincipalUser returns the stored user behind p, if any
func PrincipalUser(p Principal) (*User, bool) {
	switch v := p.(type) {
	case RegularPrincipal:
		return v.User, v.User != nil
	case *RegularPrincipal:
		if v == nil || v.User == nil {
			return nil, false
		}
		return v.User, true
	default:
		return nil, false
	}
}

// IsAdminPrincipal reports whether p is the static admin
func IsAdminPrincipal(p Principal) bool {
	switch p.(type) {
	case AdminPrincipal, *AdminPrincipal:
		return true
	default:
		return false
	}
}
