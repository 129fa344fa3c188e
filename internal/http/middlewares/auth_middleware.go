package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/geocoder89/absencehub/internal/actorctx"
	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/service"
	"github.com/gin-gonic/gin"
)

// Keep these interfaces small so tests can fake them easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserLoader
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

const ctxUserKey = "auth.user"

const authFailedMessage = "Please authenticate"

// RequireAuth accepts a bearer access token whose subject still exists and
// stores that user on the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortWith(c, apperr.Unauthorized(authFailedMessage).WithReason(service.ReasonMissingBearer))
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortWith(c, apperr.Unauthorized(authFailedMessage).WithReason(service.ReasonMissingBearer))
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortWith(c, apperr.Unauthorized(authFailedMessage).WithCause(err).WithReason(service.ReasonOf(err)))
			return
		}

		u, err := m.users.GetUserByID(c.Request.Context(), claims.UserID())
		if err != nil {
			if apperr.Is(err, http.StatusNotFound) {
				abortWith(c, apperr.Unauthorized(authFailedMessage).WithCause(err).WithReason(service.ReasonUserNotFound))
				return
			}
			abortWith(c, err)
			return
		}

		c.Set(ctxUserKey, u)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))

		c.Next()
	}
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := CurrentUser(c)
	if !ok || u.ID == "" {
		return "", false
	}
	return u.ID, true
}

// abortWith hands err to the error boundary and stops the chain.
func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
