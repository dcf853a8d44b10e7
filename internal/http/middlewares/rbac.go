package middlewares

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/geocoder89/userapi/internal/auth"
	"github.com/geocoder89/userapi/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRoles admits identities holding one of roles; no roles admits any
// authenticated identity. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRoles(roles ...user.Role) gin.HandlerFunc {
	guard := auth.NewGuard(roles...)

	return func(c *gin.Context) {
		m.check(c, guard)
	}
}

// RequireSelfOrRoles also admits the user named by the path parameter param.
func (m *AuthMiddleware) RequireSelfOrRoles(param string, roles ...user.Role) gin.HandlerFunc {
	guard := auth.NewGuard(roles...)

	return func(c *gin.Context) {
		var overrides []auth.Override

		if target, err := strconv.ParseInt(c.Param(param), 10, 64); err == nil {
			overrides = append(overrides, auth.SelfOverride(target))
		}

		m.check(c, guard, overrides...)
	}
}

func (m *AuthMiddleware) check(c *gin.Context, guard *auth.Guard, overrides ...auth.Override) {
	var idp *user.Identity
	if id, ok := IdentityFromContext(c); ok {
		idp = &id
	}

	err := guard.Check(idp, overrides...)

	switch {
	case err == nil:
		c.Next()
	case errors.Is(err, auth.ErrUnauthenticated):
		m.prom.ObserveAuthRejection("unauthenticated")
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	default:
		m.prom.ObserveAuthRejection("forbidden")
		abortWithError(c, http.StatusForbidden, "forbidden", "Forbidden. You do not have permission to access this resource.")
	}
}
