package auth

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// MaxAvatarSize is the largest accepted profile picture upload
const MaxAvatarSize = 5 << 20

const avatarField = "image"

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type AuthControllerRoutes struct {
	Signup     string
	Login      string
	AdminLogin string
	Logout     string
	Me         string
	Password   string
	Avatar     string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Auther   *Auther
	Accounts *AccountService
	Routes   *AuthControllerRoutes
	// TempDir is where avatar uploads are spooled, defaults to os.TempDir
	TempDir      string
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Logger = logger
		return ac
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

func WithControllerTempDir(dir string) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.TempDir = dir
		return ac
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.ErrorHandler = handler
		return ac
	}
}

func NewAuthController(auther *Auther, accounts *AccountService, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Auther:   auther,
		Accounts: accounts,
		Routes: &AuthControllerRoutes{
			Signup:     "/api/auth/signup",
			Login:      "/api/auth/login",
			AdminLogin: "/api/auth/admin/login",
			Logout:     "/api/auth/logout",
			Me:         "/api/users/me",
			Password:   "/api/users/me/password",
			Avatar:     "/api/users/me/avatar",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger, c.Debug)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if c.Accounts == nil {
		panic("Missing AccountService in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the auth and self service routes on app
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	protected := Protected(controller.Auther, MiddlewareConfig{
		ErrorHandler: controller.ErrorHandler,
		Logger:       controller.Logger,
	})
	ownRecord := Chain(protected, requireRegularPrincipal(controller.ErrorHandler))

	app.Post(controller.Routes.Signup, controller.Signup).SetName("auth.signup")
	app.Post(controller.Routes.Login, controller.Login).SetName("auth.login")
	app.Post(controller.Routes.AdminLogin, controller.AdminLogin).SetName("auth.admin-login")
	app.Post(controller.Routes.Logout, controller.Logout, protected).SetName("auth.logout")

	app.Get(controller.Routes.Me, controller.Me, protected).SetName("users.me.get")
	app.Patch(controller.Routes.Me, controller.UpdateMe, ownRecord).SetName("users.me.patch")
	app.Delete(controller.Routes.Me, controller.DeleteMe, ownRecord).SetName("users.me.delete")
	app.Put(controller.Routes.Password, controller.ChangePassword, ownRecord).SetName("users.me.password")
	app.Post(controller.Routes.Avatar, controller.UploadAvatar, ownRecord).SetName("users.me.avatar")
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UnmarshalJSON accepts camelCase and snake_case keys
func (r *ChangePasswordRequest) UnmarshalJSON(data []byte) error {
	type plain ChangePasswordRequest
	return unmarshalAliased(data, (*plain)(r))
}

func (a *AuthController) Signup(ctx router.Context) error {
	payload := SignupInput{}
	if err := a.parseBody(ctx, &payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, token, err := a.Auther.Signup(ctx.Context(), payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusCreated, "user registered successfully", TokenResponse{
		Token: token,
		User:  user,
	})
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := LoginRequest{}
	if err := a.parseBody(ctx, &payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, token, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusOK, "login successful", TokenResponse{
		Token: token,
		User:  user,
	})
}

func (a *AuthController) AdminLogin(ctx router.Context) error {
	payload := LoginRequest{}
	if err := a.parseBody(ctx, &payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal, token, err := a.Auther.AdminLogin(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusOK, "admin login successful", TokenResponse{
		Token: token,
		User:  principalView(principal),
	})
}

func (a *AuthController) Logout(ctx router.Context) error {
	principal, _ := PrincipalFromRouter(ctx)
	if err := a.Auther.Logout(ctx.Context(), principal); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return respond(ctx, http.StatusOK, "logged out successfully", nil)
}

func (a *AuthController) Me(ctx router.Context) error {
	principal, ok := PrincipalFromRouter(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	if user, ok := PrincipalUser(principal); ok {
		return respond(ctx, http.StatusOK, "profile retrieved", user)
	}

	return respond(ctx, http.StatusOK, "profile retrieved", principalView(principal))
}

func (a *AuthController) UpdateMe(ctx router.Context) error {
	patch := UserPatch{}
	if err := a.parseBody(ctx, &patch); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal, _ := PrincipalFromRouter(ctx)
	user, err := a.Accounts.UpdateProfile(ctx.Context(), principal.ID(), patch)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusOK, "profile updated", user)
}

func (a *AuthController) ChangePassword(ctx router.Context) error {
	payload := ChangePasswordRequest{}
	if err := a.parseBody(ctx, &payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal, _ := PrincipalFromRouter(ctx)
	if err := a.Accounts.ChangePassword(ctx.Context(), principal.ID(), payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusOK, "password updated", nil)
}

func (a *AuthController) DeleteMe(ctx router.Context) error {
	principal, _ := PrincipalFromRouter(ctx)
	if err := a.Accounts.DeleteAccount(ctx.Context(), principal.ID()); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return respond(ctx, http.StatusOK, "account deleted", nil)
}

// UploadAvatar spools the multipart "image" field to a temp file, hands it
// to the media host and stores the URL. The temp file is removed on every
// path.
func (a *AuthController) UploadAvatar(ctx router.Context) error {
	part, err := a.avatarPart(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	defer part.Close()

	contentType := strings.ToLower(part.Header.Get("Content-Type"))
	if !allowedImageTypes[contentType] {
		return a.ErrorHandler(ctx, NewValidationError([]string{"image must be a jpeg, png, gif or webp file"}))
	}

	tmp, err := os.CreateTemp(a.TempDir, "avatar-*")
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			a.Logger.Warn("failed to remove temp upload %s: %v", tmp.Name(), err)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(part, MaxAvatarSize+1))
	if err != nil {
		return a.ErrorHandler(ctx, NewValidationError([]string{"image upload is malformed"}))
	}

	if n > MaxAvatarSize {
		return a.ErrorHandler(ctx, NewValidationError([]string{
			fmt.Sprintf("image must be at most %d bytes", MaxAvatarSize),
		}))
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	principal, _ := PrincipalFromRouter(ctx)
	user, err := a.Accounts.UpdateProfilePicture(ctx.Context(), principal.ID(), tmp, part.FileName())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusOK, "profile picture updated", user)
}

// avatarPart returns the file part named "image" of a multipart body
func (a *AuthController) avatarPart(ctx router.Context) (*multipart.Part, error) {
	missing := NewValidationError([]string{"image file is required"})

	mediaType, params, err := mime.ParseMediaType(ctx.Header("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, missing
	}

	reader := multipart.NewReader(bytes.NewReader(ctx.Body()), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err != nil {
			if err != io.EOF {
				a.Logger.Debug("multipart parse error: %v", err)
			}
			return nil, missing
		}

		if part.FormName() == avatarField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func (a *AuthController) parseBody(ctx router.Context, out any) error {
	if err := ctx.Bind(out); err != nil {
		a.Logger.Debug("body parse error: %v", err)
		return NewValidationError([]string{"request body is invalid"})
	}

	if a.Debug {
		a.Logger.Debug("payload: %s", print.MaybePrettyJSON(out))
	}

	return nil
}

func principalView(p Principal) map[string]any {
	return map[string]any{
		"id":    p.ID(),
		"email": p.Email(),
		"role":  p.Role(),
	}
}

// requireRegularPrincipal rejects the admin principal on routes that operate
// on the caller's stored record
func requireRegularPrincipal(errorHandler router.ErrorHandler) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, ok := PrincipalFromRouter(ctx)
			if !ok {
				return errorHandler(ctx, ErrMissingToken)
			}
			if _, ok := PrincipalUser(principal); !ok {
				return errorHandler(ctx, ErrForbidden)
			}
			return next(ctx)
		}
	}
}
