package auth

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-errors"
)

// AccountService implements the profile and user management operations
// behind the HTTP controllers
type AccountService struct {
	users        Users
	hasher       PasswordHasher
	validator    *IdentityValidator
	uploader     MediaUploader
	logger       Logger
	activitySink ActivitySink
	now          Clock
}

// AccountOption configures an AccountService
type AccountOption func(*AccountService)

// WithAccountLogger sets the logger
func WithAccountLogger(logger Logger) AccountOption {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMediaUploader sets the media uploader used for profile pictures
func WithMediaUploader(uploader MediaUploader) AccountOption {
	return func(s *AccountService) {
		s.uploader = uploader
	}
}

// WithAccountActivitySink sets the sink for account events
func WithAccountActivitySink(sink ActivitySink) AccountOption {
	return func(s *AccountService) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithAccountClock sets the clock used for validation
func WithAccountClock(clock Clock) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAccountHasher replaces the bcrypt hasher
func WithAccountHasher(hasher PasswordHasher) AccountOption {
	return func(s *AccountService) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// NewAccountService returns a new AccountService
func NewAccountService(users Users, opts ...AccountOption) *AccountService {
	s := &AccountService{
		users:        users,
		hasher:       BcryptHasher{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.validator = NewIdentityValidator(s.now)

	return s
}

// Profile returns the stored user
func (s *AccountService) Profile(ctx context.Context, id string) (*User, error) {
	if id == AdminPrincipalID {
		return nil, ErrUserNotFound
	}
	return s.users.FindByID(ctx, id)
}

// UpdateProfile validates and applies a profile patch. A phone number
// already owned by another user is rejected.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, patch UserPatch) (*User, error) {
	if id == AdminPrincipalID {
		return nil, ErrUserNotFound
	}

	if err := s.validator.ValidateProfilePatch(&patch); err != nil {
		return nil, err
	}

	if patch.Phone != nil && *patch.Phone != "" {
		if err := ensureIdentityAvailable(ctx, s.users, "", *patch.Phone, id); err != nil {
			return nil, err
		}
	}

	user, err := s.users.UpdateByID(ctx, id, patch.Apply)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventUserUpdated, id, id, nil)

	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AccountService) ChangePassword(ctx context.Context, id, current, next string) error {
	if id == AdminPrincipalID {
		return ErrUserNotFound
	}

	if current == "" {
		return NewValidationError([]string{"current password is required"})
	}

	if err := s.validator.ValidatePassword(next); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.hasher.ComparePasswordAndHash(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return err
	}

	if _, err := s.users.UpdateByID(ctx, id, func(u *User) {
		u.PasswordHash = hash
	}); err != nil {
		return err
	}

	s.emit(ctx, ActivityEventPasswordChanged, id, id, nil)

	return nil
}

// UpdateProfilePicture uploads the image and stores the resulting URL
func (s *AccountService) UpdateProfilePicture(ctx context.Context, id string, r io.Reader, filename string) (*User, error) {
	if id == AdminPrincipalID {
		return nil, ErrUserNotFound
	}

	if s.uploader == nil {
		return nil, ErrUploadNotConfigured
	}

	if _, err := s.users.FindByID(ctx, id); err != nil {
		return nil, err
	}

	image, err := s.uploader.UploadImage(ctx, r, filename)
	if err != nil {
		s.logger.Error("profile picture upload failed for %s: %v", id, err)
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "image upload failed").
			WithTextCode(TextCodeUploadFailed).
			WithCode(ErrUploadFailed.Code)
	}

	user, err := s.users.UpdateByID(ctx, id, func(u *User) {
		u.ProfilePicture = image.URL
	})
	if err != nil {
		s.discardUpload(ctx, id, image)
		return nil, err
	}

	return user, nil
}

// discardUpload removes an asset that could not be attached to its user
func (s *AccountService) discardUpload(ctx context.Context, userID string, image *UploadedImage) {
	if err := s.uploader.DeleteImage(context.WithoutCancel(ctx), image.ID); err != nil {
		s.logger.Warn("orphaned profile picture %s (%s) for user %s: %v", image.ID, image.URL, userID, err)
	}
}

// DeleteAccount removes the caller's own record
func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	return s.DeleteUser(ctx, id)
}

// ListUsers returns every stored user
func (s *AccountService) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// GetUser returns a single user by id
func (s *AccountService) GetUser(ctx context.Context, id string) (*User, error) {
	return s.Profile(ctx, id)
}

// AdminUpdateUser applies a patch including role and status fields
func (s *AccountService) AdminUpdateUser(ctx context.Context, id string, patch AdminUserPatch) (*User, error) {
	if id == AdminPrincipalID {
		return nil, ErrUserNotFound
	}

	if err := s.validator.ValidateProfilePatch(&patch.UserPatch); err != nil {
		return nil, err
	}

	if patch.Role != nil && !patch.Role.IsValid() {
		return nil, NewValidationError([]string{"role must be one of user, moderator, admin"})
	}

	if patch.Phone != nil && *patch.Phone != "" {
		if err := ensureIdentityAvailable(ctx, s.users, "", *patch.Phone, id); err != nil {
			return nil, err
		}
	}

	user, err := s.users.UpdateByID(ctx, id, patch.Apply)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventUserUpdated, actorFromContext(ctx), id, map[string]any{
		"admin": true,
	})

	return user, nil
}

// DeleteUser removes a user by id
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	if id == AdminPrincipalID {
		return ErrUserNotFound
	}

	if err := s.users.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.emit(ctx, ActivityEventUserDeleted, actorFromContext(ctx), id, nil)

	return nil
}

func (s *AccountService) emit(ctx context.Context, eventType ActivityEventType, actorID, userID string, metadata map[string]any) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:  eventType,
		ActorID:    actorID,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	})
}

func actorFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.ID()
	}
	return ""
}
