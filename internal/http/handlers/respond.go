package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every error response. Code repeats the HTTP status.
type APIError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
	Stack     string `json:"stack,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondErr renders err and records it on the context for the error boundary.
func RespondErr(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	writeErr(ctx, err)
}

// writeErr maps err onto a response. Release mode hides unexpected failures
// behind a bare 500; debug mode adds the stack.
func writeErr(ctx *gin.Context, err error) {
	e := apperr.From(err)
	mode := gin.Mode()

	body := APIError{
		Code:      e.Status,
		Message:   e.Message,
		RequestID: requestIDFrom(ctx),
		Details:   e.Details,
	}

	if !e.Operational && mode == gin.ReleaseMode {
		body.Code = http.StatusInternalServerError
		body.Message = http.StatusText(http.StatusInternalServerError)
	}

	if mode == gin.DebugMode {
		body.Stack = e.Stack()
	}

	logErr(ctx, e, body.Code)

	ctx.AbortWithStatusJSON(body.Code, body)
}

func logErr(ctx *gin.Context, e *apperr.Error, status int) {
	log := slog.Default()
	reqCtx := ctx.Request.Context()

	attrs := []any{
		"status", status,
		"route", ctx.FullPath(),
		"err", e.Error(),
	}
	if e.Reason != "" {
		attrs = append(attrs, "reason", e.Reason)
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.ErrorContext(reqCtx, "request_failed", append(attrs, "stack", e.Stack())...)
	case e.Reason != "":
		log.WarnContext(reqCtx, "auth_failed", attrs...)
	case gin.Mode() == gin.DebugMode:
		log.DebugContext(reqCtx, "request_rejected", attrs...)
	}
}

// ErrorBoundary renders errors that middlewares attached with ctx.Error
// without writing a response, and counts collapsed token failures.
func ErrorBoundary(prom *observability.Prom) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		last := ctx.Errors.Last()
		if last == nil {
			return
		}

		if !ctx.Writer.Written() {
			writeErr(ctx, last.Err)
		}

		var e *apperr.Error
		if prom != nil && errors.As(last.Err, &e) && e.Reason != "" {
			route := ctx.FullPath()
			if route == "" {
				route = "unmatched"
			}
			prom.TokenFailures.WithLabelValues(route, e.Reason).Inc()
		}
	}
}

// Recover turns a panic into a 500 through the same error body.
func Recover() gin.HandlerFunc {
	return gin.CustomRecovery(func(ctx *gin.Context, recovered any) {
		RespondErr(ctx, apperr.Internal(fmt.Errorf("panic: %v", recovered)))
	})
}

// NotFound is the fallback for unknown routes.
func NotFound(ctx *gin.Context) {
	RespondErr(ctx, apperr.NotFound("Not found"))
}
