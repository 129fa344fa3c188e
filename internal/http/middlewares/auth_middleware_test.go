package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/absencehub/internal/actorctx"
	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/service"
	"github.com/gin-gonic/gin"
)

type fakeVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (f fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	return f.verifyFn(token)
}

type fakeUsers struct {
	users map[string]user.User
}

func (f fakeUsers) GetUserByID(_ context.Context, id string) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, apperr.NotFound("User not found")
	}
	return u, nil
}

func claimsFor(id string) *auth.Claims {
	c := &auth.Claims{}
	c.Subject = id
	return c
}

// statusRouter renders middleware errors as their bare status.
func statusRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		if last := c.Errors.Last(); last != nil && !c.Writer.Written() {
			c.AbortWithStatus(apperr.StatusOf(last.Err))
		}
	})
	handlers := append(mw, func(c *gin.Context) {
		if _, ok := actorctx.UserIDFrom(c.Request.Context()); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/users/:userId", handlers...)
	return r
}

func newTestAuth() *AuthMiddleware {
	verifier := fakeVerifier{verifyFn: func(token string) (*auth.Claims, error) {
		switch token {
		case "admin-token":
			return claimsFor("admin-1"), nil
		case "user-token":
			return claimsFor("user-1"), nil
		case "ghost-token":
			return claimsFor("deleted"), nil
		case "stale-token":
			return nil, auth.ErrExpired
		default:
			return nil, auth.ErrMalformed
		}
	}}

	users := fakeUsers{users: map[string]user.User{
		"admin-1": {ID: "admin-1", Role: user.RoleAdmin},
		"user-1":  {ID: "user-1", Role: user.RoleUser},
	}}

	return NewAuthMiddleware(verifier, users)
}

func TestRequireAuth(t *testing.T) {
	r := statusRouter(newTestAuth().RequireAuth())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"user deleted", "Bearer ghost-token", http.StatusUnauthorized},
		{"valid", "Bearer user-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireAuth_FailureReasons(t *testing.T) {
	var reason string
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		if last := c.Errors.Last(); last != nil {
			reason = apperr.From(last.Err).Reason
			c.AbortWithStatus(apperr.StatusOf(last.Err))
		}
	})
	r.GET("/me", newTestAuth().RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		header string
		want   string
	}{
		{"", service.ReasonMissingBearer},
		{"Bearer stale-token", service.ReasonTokenExpired},
		{"Bearer nope", service.ReasonTokenInvalid},
		{"Bearer ghost-token", service.ReasonUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			reason = ""
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			if reason != tt.want {
				t.Fatalf("got reason %q, want %q", reason, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	m := newTestAuth()
	rights := auth.DefaultRights()

	tests := []struct {
		name  string
		token string
		path  string
		perms []auth.Permission
		want  int
	}{
		{"admin holds manageUsers", "admin-token", "/users/user-1", []auth.Permission{auth.PermManageUsers}, http.StatusOK},
		{"user on own record", "user-token", "/users/user-1", []auth.Permission{auth.PermManageUsers}, http.StatusOK},
		{"user on someone else", "user-token", "/users/admin-1", []auth.Permission{auth.PermGetUsers}, http.StatusForbidden},
		{"no rights required", "user-token", "/users/admin-1", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := statusRouter(m.RequireAuth(), Authorize(rights, "userId", tt.perms...))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthorize_WithoutSubjectParam(t *testing.T) {
	m := newTestAuth()
	r := statusRouter(m.RequireAuth(), Authorize(auth.DefaultRights(), "", auth.PermGetUsers))

	req := httptest.NewRequest(http.MethodGet, "/users/user-1", nil)
	req.Header.Set("Authorization", "Bearer user-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403 when ownership is not considered", w.Code)
	}
}
