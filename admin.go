package auth

// AdminResolver materializes the static admin principal from configuration.
// It never touches the Users store and has no stored password hash.
type AdminResolver struct {
	email    string
	password string
}

// NewAdminResolver copies the admin secrets out of settings
func NewAdminResolver(settings Settings) *AdminResolver {
	return &AdminResolver{
		email:    settings.AdminEmail,
		password: settings.AdminPassword,
	}
}

// Configured reports whether both admin secrets are present
func (r *AdminResolver) Configured() bool {
	return r != nil && r.email != "" && r.password != ""
}

// Resolve compares email and password against the configured secrets using
// plain equality. Any mismatch yields the same generic error.
func (r *AdminResolver) Resolve(email, password string) (AdminPrincipal, error) {
	if !r.Configured() {
		return AdminPrincipal{}, ErrAdminNotConfigured
	}

	emailOK := email == r.email
	passwordOK := password == r.password

	if !emailOK || !passwordOK {
		return AdminPrincipal{}, ErrInvalidAdminCredentials
	}

	return AdminPrincipal{AdminEmail: r.email}, nil
}
