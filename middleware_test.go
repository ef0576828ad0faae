package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-accounts"
)

// newRouterApp builds a fiber backed router, registers routes on it and
// returns the wrapped fiber app for in-memory requests
func newRouterApp(t *testing.T, register func(r router.Router[*fiber.App])) *fiber.App {
	t.Helper()

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			ErrorHandler: auth.NewFiberErrorHandler(nil, false),
			BodyLimit:    auth.MaxAvatarSize + 1<<20,
		})
	})
	register(srv.Router())

	return srv.WrappedRouter()
}

func newMiddlewareApp(t *testing.T, env *testEnv) *fiber.App {
	t.Helper()

	protected := auth.Protected(env.auther)

	return newRouterApp(t, func(r router.Router[*fiber.App]) {
		r.Get("/any", func(ctx router.Context) error {
			p, ok := auth.PrincipalFromRouter(ctx)
			if !ok {
				return ctx.Status(http.StatusTeapot).SendString("no principal")
			}
			ctxP, ok := auth.PrincipalFromContext(ctx.Context())
			if !ok || ctxP.ID() != p.ID() {
				return ctx.Status(http.StatusTeapot).SendString("context mismatch")
			}
			return ctx.JSON(http.StatusOK, map[string]any{"id": p.ID(), "role": p.Role()})
		}, protected)

		r.Get("/admin", func(ctx router.Context) error {
			return ctx.SendString("ok")
		}, auth.Chain(protected, auth.RequireRoles(env.auther, auth.RoleAdmin)))
	})
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string) (*http.Response, auth.Response) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	envelope := auth.Response{}
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &envelope))
	}
	return res, envelope
}

func TestProtectedMiddleware(t *testing.T) {
	env := newTestEnv(t, testSettings())
	app := newMiddlewareApp(t, env)

	user, token := env.signup(t, "jane@example.com", "")

	res, _ := doRequest(t, app, http.MethodGet, "/any", token)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "no header", header: "", message: "authentication token is missing or malformed"},
		{name: "wrong scheme", header: "Basic " + token, message: "authentication token is missing or malformed"},
		{name: "scheme only", header: "Bearer ", message: "authentication token is missing or malformed"},
		{name: "bad token", header: "Bearer nope", message: "invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/any", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			res, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

			envelope := auth.Response{}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
			assert.False(t, envelope.Success)
			assert.Equal(t, tt.message, envelope.Message)
		})
	}

	_, err := env.users.UpdateByID(context.Background(), user.ID.String(), func(u *auth.User) { u.IsActive = false })
	require.NoError(t, err)

	res, envelope := doRequest(t, app, http.MethodGet, "/any", token)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "user no longer exists or is inactive", envelope.Message)
}

func TestRequireRolesMiddleware(t *testing.T) {
	env := newTestEnv(t, testSettings())
	app := newMiddlewareApp(t, env)

	_, userToken := env.signup(t, "jane@example.com", "")
	_, adminToken, err := env.auther.AdminLogin(context.Background(), testAdminEmail, testAdminPassword)
	require.NoError(t, err)

	res, envelope := doRequest(t, app, http.MethodGet, "/admin", userToken)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "insufficient permissions", envelope.Message)

	res, _ = doRequest(t, app, http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = doRequest(t, app, http.MethodGet, "/admin", adminToken)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestChainRunsMiddlewareInOrder(t *testing.T) {
	var calls []string
	step := func(name string) router.MiddlewareFunc {
		return func(next router.HandlerFunc) router.HandlerFunc {
			return func(ctx router.Context) error {
				calls = append(calls, name)
				return next(ctx)
			}
		}
	}

	app := newRouterApp(t, func(r router.Router[*fiber.App]) {
		r.Get("/chain", func(ctx router.Context) error {
			calls = append(calls, "handler")
			return ctx.SendString("ok")
		}, auth.Chain(step("first"), nil, step("second")))
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/chain", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
}
