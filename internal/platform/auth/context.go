// Package auth carries the authenticated identity through request contexts
// and enforces role requirements on routes. Token verification is HS256 JWT;
// the session layer that issues tokens lives outside this service.
package auth

import (
	"context"

	"github.com/matricare/matricare/internal/domain/role"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller: user id plus canonical role.
type Identity struct {
	UserID string
	Role   role.Role
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity and whether one is present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
