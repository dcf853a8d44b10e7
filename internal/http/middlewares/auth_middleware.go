package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userapi/internal/actorctx"
	"github.com/geocoder89/userapi/internal/auth"
	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/geocoder89/userapi/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (user.Identity, error)
}

type AuthMiddleware struct {
	auth Authenticator
	prom *observability.Prom
	log  *slog.Logger
}

// NewAuthMiddleware accepts a nil prom.
func NewAuthMiddleware(a Authenticator, prom *observability.Prom, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{auth: a, prom: prom, log: log}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := m.auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			m.reject(c, err)
			return
		}

		// Stash the identity for handlers and for code that only sees a context.Context.
		c.Set(CtxIdentity, id)
		c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrNoToken):
		m.prom.ObserveAuthRejection("no_token")
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided.")
	case errors.Is(err, auth.ErrInvalidToken):
		m.prom.ObserveAuthRejection("invalid_token")
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid token")
	default:
		m.log.ErrorContext(c.Request.Context(), "auth.resolve_failed", "err", err, "request_id", RequestIDFrom(c))
		abortWithError(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// IdentityFromContext returns the identity RequireAuth stored, if any.
func IdentityFromContext(c *gin.Context) (user.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return user.Identity{}, false
	}
	id, ok := v.(user.Identity)
	return id, ok
}
