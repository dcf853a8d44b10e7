package actorctx

import (
	"context"

	"github.com/geocoder89/userapi/internal/domain/user"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated identity stored on ctx, if any.
func IdentityFrom(ctx context.Context) (*user.Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(user.Identity)
	if !ok || v.ID == 0 {
		return nil, false
	}

	return &v, true
}
