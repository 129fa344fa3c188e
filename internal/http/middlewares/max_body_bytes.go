package middlewares

import (
	"net/http"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/gin-gonic/gin"
)

const DefaultMaxBodyBytes int64 = 1 << 20

func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > max {
			abortWith(ctx, apperr.New(http.StatusRequestEntityTooLarge, "Request body too large"))
			return
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)

		ctx.Next()
	}
}
