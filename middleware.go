package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"
)

const defaultAuthScheme = "Bearer"

// PrincipalAuthenticator resolves a bearer token into a Principal
type PrincipalAuthenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
	Authorize(principal Principal, roles ...Role) error
}

// MiddlewareConfig configures Protected
type MiddlewareConfig struct {
	// AuthScheme is the Authorization header scheme, defaults to Bearer
	AuthScheme   string
	ErrorHandler router.ErrorHandler
	Logger       Logger
}

// Protected rejects requests without a valid bearer token and stores the
// resolved Principal in the router locals and the request context.
func Protected(authenticator PrincipalAuthenticator, config ...MiddlewareConfig) router.MiddlewareFunc {
	cfg := makeMiddlewareConfig(config)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token, err := extractBearerToken(ctx.Header(router.HeaderAuthorization), cfg.AuthScheme)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			principal, err := authenticator.Authenticate(ctx.Context(), token)
			if err != nil {
				cfg.Logger.Debug("authenticate request %s %s: %v", ctx.Method(), ctx.Path(), err)
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(PrincipalLocalsKey, principal)
			ctx.SetContext(WithPrincipal(ctx.Context(), principal))

			return next(ctx)
		}
	}
}

// RequireRoles only lets through principals holding one of roles. It must
// run after Protected.
func RequireRoles(authenticator PrincipalAuthenticator, roles ...Role) router.MiddlewareFunc {
	return RequireRolesWithHandler(authenticator, ErrorHandler, roles...)
}

// RequireRolesWithHandler is RequireRoles with a custom error handler
func RequireRolesWithHandler(authenticator PrincipalAuthenticator, errorHandler router.ErrorHandler, roles ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, ok := PrincipalFromRouter(ctx)
			if !ok {
				return errorHandler(ctx, ErrMissingToken)
			}

			if err := authenticator.Authorize(principal, roles...); err != nil {
				return errorHandler(ctx, err)
			}

			return next(ctx)
		}
	}
}

// Chain composes middleware so that the first one runs first
func Chain(mws ...router.MiddlewareFunc) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				next = mws[i](next)
			}
		}
		return next
	}
}

func makeMiddlewareConfig(config []MiddlewareConfig) MiddlewareConfig {
	cfg := MiddlewareConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = defaultAuthScheme
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = ErrorHandler
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	return cfg
}

func extractBearerToken(header, scheme string) (string, error) {
	header = strings.TrimSpace(header)
	l := len(scheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], scheme) || header[l] != ' ' {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(header[l+1:])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
