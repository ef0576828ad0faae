package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// PrincipalLocalsKey is the router locals key the middleware stores the
// principal under
const PrincipalLocalsKey = "principal"

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the Principal in the context
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok && p != nil
}

// PrincipalFromRouter finds the Principal stored by the Protected middleware
func PrincipalFromRouter(ctx router.Context) (Principal, bool) {
	if p, ok := ctx.Locals(PrincipalLocalsKey).(Principal); ok && p != nil {
		return p, true
	}
	return PrincipalFromContext(ctx.Context())
}
