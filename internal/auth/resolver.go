package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/userapi/internal/domain/user"
)

// Keep these small interfaces so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

type IdentityLookup interface {
	FindByID(ctx context.Context, id int64) (user.User, error)
}

// Resolver turns an Authorization header value into a live Identity.
type Resolver struct {
	tokens TokenVerifier
	users  IdentityLookup
	log    *slog.Logger
}

func NewResolver(tokens TokenVerifier, users IdentityLookup, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{tokens: tokens, users: users, log: log}
}

const bearerPrefix = "Bearer "

// ExtractBearer returns the token of a "Bearer <token>" header value.
func ExtractBearer(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrNoToken
	}

	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", ErrNoToken
	}

	return raw, nil
}

// Authenticate runs extract, verify, and lookup once. An unknown subject is
// reported exactly like a bad token.
func (r *Resolver) Authenticate(ctx context.Context, header string) (user.Identity, error) {
	raw, err := ExtractBearer(header)
	if err != nil {
		return user.Identity{}, err
	}

	claims, err := r.tokens.Verify(raw)
	if err != nil {
		r.log.DebugContext(ctx, "auth.token_rejected", "err", err)
		return user.Identity{}, ErrInvalidToken
	}

	u, err := r.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			r.log.DebugContext(ctx, "auth.unknown_subject", "user_id", claims.UserID)
			return user.Identity{}, ErrInvalidToken
		}

		r.log.ErrorContext(ctx, "auth.identity_lookup_failed", "user_id", claims.UserID, "err", err)
		return user.Identity{}, user.Storage("find_by_id", err)
	}

	return u.Identity(), nil
}
