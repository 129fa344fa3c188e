package middlewares

import (
	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/gin-gonic/gin"
)

// Authorize requires the caller's role to grant every perm. When subjectParam
// names a path parameter, a caller acting on their own id is let through too.
func Authorize(rights auth.RoleRights, subjectParam string, perms ...auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			abortWith(c, apperr.Unauthorized(authFailedMessage))
			return
		}

		subjectID := ""
		if subjectParam != "" {
			subjectID = c.Param(subjectParam)
		}

		if !rights.Allowed(&u, subjectID, perms...) {
			abortWith(c, apperr.Forbidden("Forbidden"))
			return
		}

		c.Next()
	}
}
