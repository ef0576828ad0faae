package auth_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/goliatone/go-auth-accounts"
)

// MockUploader implements auth.MediaUploader
type MockUploader struct {
	mock.Mock
	received []byte
}

func (m *MockUploader) UploadImage(ctx context.Context, r io.Reader, filename string) (*auth.UploadedImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.received = data
	args := m.Called(ctx, filename)
	img, _ := args.Get(0).(*auth.UploadedImage)
	return img, args.Error(1)
}

func (m *MockUploader) DeleteImage(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func uploaded(url, id string) *auth.UploadedImage {
	return &auth.UploadedImage{URL: url, ID: id}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, testSettings())
	ctx := context.Background()

	user, _ := env.signup(t, "jane@example.com", "+911234567890")

	first := "Janet"
	phone := "+1 415 555 0000"
	gender := auth.GenderOther
	links := map[string]string{"site": "https://jane.dev"}

	updated, err := env.accounts.UpdateProfile(ctx, user.ID.String(), auth.UserPatch{
		FirstName:   &first,
		Phone:       &phone,
		Gender:      &gender,
		SocialLinks: &links,
	})
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "Doe", updated.LastName)
	assert.Equal(t, "+14155550000", updated.PhoneNumber())
	assert.Equal(t, auth.GenderOther, updated.Gender)
	assert.Equal(t, "https://jane.dev", updated.SocialLinks["site"])

	assert.Contains(t, env.events.Types(), auth.ActivityEventUserUpdated)
}

func TestUpdateProfileKeepsOwnPhone(t *testing.T) {
	env := newTestEnv(t, testSettings())
	ctx := context.Background()

	user, _ := env.signup(t, "jane@example.com", "+911234567890")

	same := "+911234567890"
	_, err := env.accounts.UpdateProfile(ctx, user.ID.String(), auth.UserPatch{Phone: &same})
	assert.NoError(t, err)
}

func TestUpdateProfileRejectsTakenPhone(t *testing.T) {
	env := newTestEnv(t, testSettings())
	ctx := context.Background()

	env.signup(t, "john@example.com", "+911234567890")
	user, _ := env.signup(t, "jane@example.com", "")

	taken := "+91 12345 67890"
	_, err := env.accounts.UpdateProfile(ctx, user.ID.String(), auth.UserPatch{Phone: &taken})
	assert.ErrorIs(t, err, auth.ErrDuplicatePhone)
	assert.Equal(t, 400, auth.StatusFromError(err))
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newTestEnv(t, testSettings())
	user, _ := env.signup(t, "jane@example.com", "")

	bad := "12345"
	_, err := env.accounts.UpdateProfile(context.Background(), user.ID.String(), auth.UserPatch{Phone: &bad})
	assert.True(t, auth.IsValidationError(err))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, testSettings())
	ctx := context.Background()

	user, _ := env.signup(t, "jane@example.com", "")
	id := user.ID.String()

	err := env.accounts.ChangePassword(ctx, id, "wrong-current", "new-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	err = env.accounts.ChangePassword(ctx, id, "password123", "abc")
	assert.True(t, auth.IsValidationError(err))

	err = env.accounts.ChangePassword(ctx, id, "password123", strings.Repeat("x", auth.MaxPasswordLength+1))
	assert.True(t, auth.IsValidationError(err))
	assert.Equal(t, 400, auth.StatusFromError(err))

	err = env.accounts.ChangePassword(ctx, id, "password123", "new-password")
	require.NoError(t, err)

	_, _, err = env.auther.Login(ctx, "jane@example.com", "password123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = env.auther.Login(ctx, "jane@example.com", "new-password")
	assert.NoError(t, err)
}

func TestUpdateProfilePicture(t *testing.T) {
	uploader := new(MockUploader)
	env := newTestEnv(t, testSettings(), auth.WithMediaUploader(uploader))
	ctx := context.Background()

	user, _ := env.signup(t, "jane@example.com", "")

	uploader.On("UploadImage", mock.Anything, "me.png").
		Return(uploaded("https://res.cloudinary.com/demo/image/upload/profile_pictures/abc.png", "profile_pictures/abc"), nil)

	updated, err := env.accounts.UpdateProfilePicture(ctx, user.ID.String(), strings.NewReader("png-bytes"), "me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/profile_pictures/abc.png", updated.ProfilePicture)
	assert.Equal(t, []byte("png-bytes"), uploader.received)
	uploader.AssertExpectations(t)
	uploader.AssertNotCalled(t, "DeleteImage", mock.Anything, mock.Anything)
}

func TestUpdateProfilePictureFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no uploader", func(t *testing.T) {
		env := newTestEnv(t, testSettings())
		user, _ := env.signup(t, "jane@example.com", "")

		_, err := env.accounts.UpdateProfilePicture(ctx, user.ID.String(), strings.NewReader("x"), "x.png")
		assert.ErrorIs(t, err, auth.ErrUploadNotConfigured)
	})

	t.Run("upstream failure", func(t *testing.T) {
		uploader := new(MockUploader)
		env := newTestEnv(t, testSettings(), auth.WithMediaUploader(uploader))
		user, _ := env.signup(t, "jane@example.com", "")

		uploader.On("UploadImage", mock.Anything, "x.png").Return(nil, assert.AnError)

		_, err := env.accounts.UpdateProfilePicture(ctx, user.ID.String(), strings.NewReader("x"), "x.png")
		require.Error(t, err)
		assert.Equal(t, 502, auth.StatusFromError(err))

		stored, err := env.users.FindByID(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Empty(t, stored.ProfilePicture)
	})

	t.Run("store failure removes the uploaded asset", func(t *testing.T) {
		uploader := new(MockUploader)
		users := new(MockUsers)
		accounts := auth.NewAccountService(users, auth.WithMediaUploader(uploader))
		id := uuid.NewString()

		users.On("FindByID", mock.Anything, id).Return(&auth.User{ID: uuid.MustParse(id)}, nil)
		users.On("UpdateByID", mock.Anything, id, mock.Anything).Return(nil, assert.AnError)
		uploader.On("UploadImage", mock.Anything, "x.png").
			Return(uploaded("https://res.cloudinary.com/demo/image/upload/profile_pictures/x.png", "profile_pictures/x"), nil)
		uploader.On("DeleteImage", mock.Anything, "profile_pictures/x").Return(nil)

		_, err := accounts.UpdateProfilePicture(ctx, id, strings.NewReader("x"), "x.png")
		assert.ErrorIs(t, err, assert.AnError)
		uploader.AssertExpectations(t)
	})

	t.Run("failed removal is logged", func(t *testing.T) {
		uploader := new(MockUploader)
		users := new(MockUsers)
		core, logs := observer.New(zap.WarnLevel)
		accounts := auth.NewAccountService(users,
			auth.WithMediaUploader(uploader),
			auth.WithAccountLogger(auth.NewZapLogger(zap.New(core))),
		)
		id := uuid.NewString()

		users.On("FindByID", mock.Anything, id).Return(&auth.User{ID: uuid.MustParse(id)}, nil)
		users.On("UpdateByID", mock.Anything, id, mock.Anything).Return(nil, assert.AnError)
		uploader.On("UploadImage", mock.Anything, "x.png").
			Return(uploaded("https://res.cloudinary.com/demo/image/upload/profile_pictures/x.png", "profile_pictures/x"), nil)
		uploader.On("DeleteImage", mock.Anything, "profile_pictures/x").Return(assert.AnError)

		_, err := accounts.UpdateProfilePicture(ctx, id, strings.NewReader("x"), "x.png")
		require.Error(t, err)

		entries := logs.FilterMessageSnippet("orphaned profile picture").All()
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Message, "profile_pictures/x")
	})
}

func TestAdminAccountOperations(t *testing.T) {
	env := newTestEnv(t, testSettings())
	ctx := context.Background()

	jane, _ := env.signup(t, "jane@example.com", "")
	env.signup(t, "john@example.com", "")

	users, err := env.accounts.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	got, err := env.accounts.GetUser(ctx, jane.ID.String())
	require.NoError(t, err)
	assert.Equal(t, jane.Email, got.Email)

	role := auth.RoleModerator
	verified := true
	active := false
	updated, err := env.accounts.AdminUpdateUser(ctx, jane.ID.String(), auth.AdminUserPatch{
		Role:       &role,
		IsVerified: &verified,
		IsActive:   &active,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleModerator, updated.Role)
	assert.True(t, updated.IsVerified)
	assert.False(t, updated.IsActive)

	badRole := auth.Role("owner")
	_, err = env.accounts.AdminUpdateUser(ctx, jane.ID.String(), auth.AdminUserPatch{Role: &badRole})
	assert.True(t, auth.IsValidationError(err))

	adminCtx := auth.WithPrincipal(ctx, auth.AdminPrincipal{AdminEmail: testAdminEmail})
	require.NoError(t, env.accounts.DeleteUser(adminCtx, jane.ID.String()))

	_, err = env.accounts.GetUser(ctx, jane.ID.String())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestAdminSentinelIsNeverATarget(t *testing.T) {
	env := newTestEnv(t, testSettings())
	ctx := context.Background()

	_, err := env.accounts.GetUser(ctx, auth.AdminPrincipalID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = env.accounts.AdminUpdateUser(ctx, auth.AdminPrincipalID, auth.AdminUserPatch{})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	err = env.accounts.DeleteUser(ctx, auth.AdminPrincipalID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	err = env.accounts.DeleteUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
