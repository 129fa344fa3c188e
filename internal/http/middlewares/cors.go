package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsMethods      = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}, ",")
	corsHeaders      = "Authorization,Content-Type,X-Request-Id,If-None-Match"
	corsExposed      = "ETag,X-Request-Id,Retry-After"
	corsPreflightTTL = strconv.Itoa(10 * 60)
)

// CORSMiddleware lets the listed browser origins call the API with bearer
// tokens. Responses name the origin back and vary on it; every OPTIONS
// request ends here with 204 so preflights never reach the auth chain.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(ctx *gin.Context) {
		ctx.Writer.Header().Add("Vary", "Origin")

		if origin := ctx.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := ctx.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Expose-Headers", corsExposed)
				if ctx.Request.Method == http.MethodOptions {
					h.Set("Access-Control-Max-Age", corsPreflightTTL)
				}
			}
		}

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
