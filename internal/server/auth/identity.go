package auth

import (
	"context"

	"github.com/dmitrijs2005/accounthub/internal/server/models"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	User   *models.PublicUser
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
