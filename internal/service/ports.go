package service

import (
	"context"

	"github.com/geocoder89/userapi/internal/domain/user"
)

// UserStore is the storage collaborator for single-record operations.
// FindByID and FindByEmail report absence with user.ErrNotFound; Create and
// Update report a duplicate email with user.ErrEmailTaken.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	Update(ctx context.Context, id int64, patch user.Patch) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

// PageQuerier runs the two halves of a filtered listing.
type PageQuerier interface {
	FindPage(ctx context.Context, pred user.Predicate, offset, limit int) ([]user.User, error)
	Count(ctx context.Context, pred user.Predicate) (int, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	Burn(plain string)
}

type TokenIssuer interface {
	Issue(id user.Identity) (string, error)
}
