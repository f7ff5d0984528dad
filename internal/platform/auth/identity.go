package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated principal resolved by the upstream
// identity provider: a subject ID plus an admin flag. The order core never
// inspects raw credentials beyond the verified token claims.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

// CanAccessOrder reports whether the identity may read or act on an order
// owned by ownerID. Admins bypass the ownership check.
func (i *Identity) CanAccessOrder(ownerID string) bool {
	if i == nil {
		return false
	}
	if i.Admin {
		return true
	}
	return strings.TrimSpace(i.UserID) != "" && strings.EqualFold(strings.TrimSpace(i.UserID), strings.TrimSpace(ownerID))
}

type contextKey string

const identityContextKey contextKey = "github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/auth/identity"

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
