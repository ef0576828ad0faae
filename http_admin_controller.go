package auth

import (
	"net/http"

	"github.com/goliatone/go-router"
)

type AdminControllerRoutes struct {
	Users string
	User  string
}

// AdminController exposes user management to admins and moderators
type AdminController struct {
	Logger       Logger
	Auther       *Auther
	Accounts     *AccountService
	Routes       *AdminControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AdminControllerOption func(*AdminController) *AdminController

func WithAdminControllerLogger(logger Logger) AdminControllerOption {
	return func(ac *AdminController) *AdminController {
		if logger != nil {
			ac.Logger = logger
		}
		return ac
	}
}

func WithAdminControllerErrorHandler(handler router.ErrorHandler) AdminControllerOption {
	return func(ac *AdminController) *AdminController {
		ac.ErrorHandler = handler
		return ac
	}
}

func NewAdminController(auther *Auther, accounts *AccountService, opts ...AdminControllerOption) *AdminController {
	c := &AdminController{
		Logger:   defLogger{},
		Auther:   auther,
		Accounts: accounts,
		Routes: &AdminControllerRoutes{
			Users: "/api/admin/users",
			User:  "/api/admin/users/:id",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger, false)
	}

	if c.Auther == nil {
		panic("Missing Auther in admin controller...")
	}

	if c.Accounts == nil {
		panic("Missing AccountService in admin controller...")
	}

	return c
}

// RegisterAdminRoutes mounts the user management routes. Reads are open to
// admins and moderators, writes to admins only.
func RegisterAdminRoutes[T any](app router.Router[T], controller *AdminController) {
	protected := Protected(controller.Auther, MiddlewareConfig{
		ErrorHandler: controller.ErrorHandler,
		Logger:       controller.Logger,
	})
	readers := Chain(protected, RequireRolesWithHandler(controller.Auther, controller.ErrorHandler, RoleAdmin, RoleModerator))
	writers := Chain(protected, RequireRolesWithHandler(controller.Auther, controller.ErrorHandler, RoleAdmin))

	app.Get(controller.Routes.Users, controller.List, readers).SetName("admin.users.list")
	app.Get(controller.Routes.User, controller.Get, readers).SetName("admin.users.get")
	app.Patch(controller.Routes.User, controller.Update, writers).SetName("admin.users.update")
	app.Delete(controller.Routes.User, controller.Delete, writers).SetName("admin.users.delete")
}

func (a *AdminController) List(ctx router.Context) error {
	users, err := a.Accounts.ListUsers(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, http.StatusOK, "users retrieved", map[string]any{
		"users": users,
		"count": len(users),
	})
}

func (a *AdminController) Get(ctx router.Context) error {
	user, err := a.Accounts.GetUser(ctx.Context(), ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return respond(ctx, http.StatusOK, "user retrieved", user)
}

func (a *AdminController) Update(ctx router.Context) error {
	patch := AdminUserPatch{}
	if err := ctx.Bind(&patch); err != nil {
		a.Logger.Debug("admin update body parse error: %v", err)
		return a.ErrorHandler(ctx, NewValidationError([]string{"request body is invalid"}))
	}

	id := ctx.Param("id", "")
	user, err := a.Accounts.AdminUpdateUser(ctx.Context(), id, patch)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("user %s updated by admin", id)
	return respond(ctx, http.StatusOK, "user updated", user)
}

func (a *AdminController) Delete(ctx router.Context) error {
	id := ctx.Param("id", "")
	if err := a.Accounts.DeleteUser(ctx.Context(), id); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("user %s deleted by admin", id)
	return respond(ctx, http.StatusOK, "user deleted", nil)
}
