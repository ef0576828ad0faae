package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// SignupInput is the payload accepted by Signup
type SignupInput struct {
	Email       string     `json:"email"`
	Phone       string     `json:"phoneNumber"`
	Password    string     `json:"password"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      Gender     `json:"gender"`
	Address     *Address   `json:"address"`
}

// UnmarshalJSON accepts camelCase and snake_case keys
func (in *SignupInput) UnmarshalJSON(data []byte) error {
	type plain SignupInput
	return unmarshalAliased(data, (*plain)(in))
}

// Auther runs the signup, login and request authentication flows
type Auther struct {
	users        Users
	hasher       PasswordHasher
	tokens       *TokenService
	validator    *IdentityValidator
	admin        *AdminResolver
	logger       Logger
	activitySink ActivitySink
	now          Clock
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users Users, settings Settings) *Auther {
	return &Auther{
		users:        users,
		hasher:       BcryptHasher{},
		tokens:       NewTokenService(settings),
		validator:    NewIdentityValidator(time.Now),
		admin:        NewAdminResolver(settings),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokens.logger = logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordHasher replaces the bcrypt hasher
func (s *Auther) WithPasswordHasher(hasher PasswordHasher) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithTokenService replaces the token service, e.g. one with a test clock
func (s *Auther) WithTokenService(tokens *TokenService) *Auther {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// WithClock sets the clock used for validation and login timestamps
func (s *Auther) WithClock(clock Clock) *Auther {
	if clock != nil {
		s.now = clock
		s.validator = NewIdentityValidator(clock)
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Validator returns the identity validator
func (s *Auther) Validator() *IdentityValidator {
	return s.validator
}

// Signup validates the input, rejects duplicates, stores the new user and
// issues a session token for it.
func (s *Auther) Signup(ctx context.Context, in SignupInput) (user *User, token string, err error) {
	defer func() { observeAuthAttempt(flowSignup, err) }()

	identity, err := s.validator.ValidateIdentityFields(IdentityInput{
		Email:       in.Email,
		Phone:       in.Phone,
		Password:    in.Password,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
	})
	if err != nil {
		return nil, "", err
	}

	if err = s.ensureAvailable(ctx, identity.Email, identity.Phone, ""); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.HashPassword(identity.Password)
	if err != nil {
		return nil, "", err
	}

	record := &User{
		Email:        identity.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateOfBirth:  identity.DateOfBirth,
		Gender:       in.Gender,
		Address:      in.Address,
		IsActive:     true,
		Role:         RoleUser,
	}
	if identity.Phone != "" {
		phone := identity.Phone
		record.Phone = &phone
		record.PhoneRegion = identity.PhoneRegion
	}

	user, err = s.users.Create(ctx, record)
	if err != nil {
		s.logger.Warn("signup create user error: %v", err)
		return nil, "", err
	}

	token, err = s.tokens.IssueUserToken(user.ID.String())
	if err != nil {
		return nil, "", err
	}

	s.emit(ctx, ActivityEventSignup, user.ID.String(), user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return user, token, nil
}

// Login verifies email and password. Unknown emails and wrong passwords
// produce the same error.
func (s *Auther) Login(ctx context.Context, email, password string) (user *User, token string, err error) {
	defer func() { observeAuthAttempt(flowLogin, err) }()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", NewValidationError([]string{"email and password are required"})
	}

	user, err = s.users.FindOne(ctx, UserFilter{Email: email})
	if err != nil {
		if IsNotFoundError(err) {
			s.loginFailed(ctx, email, "", err)
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err = s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.loginFailed(ctx, email, user.ID.String(), err)
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsActive {
		s.loginFailed(ctx, email, user.ID.String(), ErrAccountInactive)
		return nil, "", ErrAccountInactive
	}

	now := s.now()
	user, err = s.users.UpdateByID(ctx, user.ID.String(), func(u *User) {
		u.LastLoginAt = &now
	})
	if err != nil {
		return nil, "", err
	}

	token, err = s.tokens.IssueUserToken(user.ID.String())
	if err != nil {
		return nil, "", err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), user.ID.String(), map[string]any{
		"email": user.Email,
	})

	return user, token, nil
}

// AdminLogin resolves the static admin principal and issues an admin token
func (s *Auther) AdminLogin(ctx context.Context, email, password string) (principal AdminPrincipal, token string, err error) {
	defer func() { observeAuthAttempt(flowAdminLogin, err) }()

	principal, err = s.admin.Resolve(email, password)
	if err != nil {
		if errors.Is(err, ErrAdminNotConfigured) {
			s.logger.Error("admin login attempted but admin credentials are not configured")
		}
		s.emit(ctx, ActivityEventAdminLoginFailure, "", "", map[string]any{
			"error": err.Error(),
		})
		return AdminPrincipal{}, "", err
	}

	token, err = s.tokens.IssueAdminToken(principal.Email())
	if err != nil {
		return AdminPrincipal{}, "", err
	}

	s.emit(ctx, ActivityEventAdminLoginSuccess, AdminPrincipalID, "", nil)

	return principal, token, nil
}

// Authenticate verifies a token and resolves the principal it names. Regular
// users are looked up fresh on every call, so deleted or deactivated users
// are rejected even while their token is unexpired.
func (s *Auther) Authenticate(ctx context.Context, token string) (principal Principal, err error) {
	defer func() { observeAuthAttempt(flowAuthenticate, err) }()

	if token == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	if claims.IsAdmin() {
		if claims.Role() != string(RoleAdmin) {
			return nil, ErrTokenInvalid
		}
		return AdminPrincipal{AdminEmail: claims.Email}, nil
	}

	user, err := s.users.FindByID(ctx, claims.PrincipalID())
	if err != nil {
		if IsNotFoundError(err) {
			return nil, ErrPrincipalInactive
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrPrincipalInactive
	}

	return RegularPrincipal{User: user}, nil
}

// Authorize checks that the principal holds one of the roles. An empty
// role list allows any authenticated principal.
func (s *Auther) Authorize(principal Principal, roles ...Role) error {
	if principal == nil {
		return ErrMissingToken
	}

	if len(roles) == 0 {
		return nil
	}

	if principal.Role().In(roles...) {
		return nil
	}

	return ErrForbidden
}

// Logout is a no-op, tokens stay valid until they expire
func (s *Auther) Logout(ctx context.Context, principal Principal) error {
	if principal != nil {
		s.logger.Debug("logout principal=%s", principal.ID())
	}
	return nil
}

func (s *Auther) ensureAvailable(ctx context.Context, email, phone, excludeID string) error {
	return ensureIdentityAvailable(ctx, s.users, email, phone, excludeID)
}

func ensureIdentityAvailable(ctx context.Context, users Users, email, phone, excludeID string) error {
	if email != "" {
		_, err := users.FindOne(ctx, UserFilter{Email: email, ExcludeID: excludeID})
		switch {
		case err == nil:
			return ErrDuplicateEmail
		case !IsNotFoundError(err):
			return err
		}
	}

	if phone != "" {
		_, err := users.FindOne(ctx, UserFilter{Phone: phone, ExcludeID: excludeID})
		switch {
		case err == nil:
			return ErrDuplicatePhone
		case !IsNotFoundError(err):
			return err
		}
	}

	return nil
}

func (s *Auther) loginFailed(ctx context.Context, email, userID string, cause error) {
	s.logger.Debug("login failed for %s: %v", email, cause)
	s.emit(ctx, ActivityEventLoginFailure, userID, userID, map[string]any{
		"email": email,
		"error": cause.Error(),
	})
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, actorID, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		ActorID:    actorID,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	})
}
