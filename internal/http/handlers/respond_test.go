package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

func withMode(t *testing.T, mode string) {
	t.Helper()
	prev := gin.Mode()
	gin.SetMode(mode)
	t.Cleanup(func() { gin.SetMode(prev) })
}

func errorRouter(err error) *gin.Engine {
	r := gin.New()
	r.Use(handlers.ErrorBoundary(nil))
	r.GET("/respond", func(ctx *gin.Context) {
		ctx.Set("request_id", "req-1")
		handlers.RespondErr(ctx, err)
	})
	r.GET("/abort", func(ctx *gin.Context) {
		_ = ctx.Error(err)
		ctx.Abort()
	})
	r.GET("/panic", handlers.Recover(), func(ctx *gin.Context) {
		panic("boom")
	})
	r.NoRoute(handlers.NotFound)
	return r
}

func getAPIError(t *testing.T, r http.Handler, path string) (int, handlers.APIError) {
	t.Helper()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body handlers.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
	}
	return w.Code, body
}

func TestRespondErr_OperationalKeepsStatusAndMessage(t *testing.T) {
	withMode(t, gin.ReleaseMode)

	status, body := getAPIError(t, errorRouter(apperr.NotFound("User not found")), "/respond")

	if status != http.StatusNotFound || body.Code != http.StatusNotFound {
		t.Fatalf("got status %d code %d, want 404", status, body.Code)
	}
	if body.Message != "User not found" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.RequestID != "req-1" {
		t.Fatalf("expected request id, got %q", body.RequestID)
	}
	if body.Stack != "" {
		t.Fatalf("release mode must not leak stacks")
	}
}

func TestRespondErr_ReleaseHidesUnexpectedErrors(t *testing.T) {
	withMode(t, gin.ReleaseMode)

	status, body := getAPIError(t, errorRouter(errors.New("pq: connection refused")), "/respond")

	if status != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", status)
	}
	if body.Message != "Internal Server Error" {
		t.Fatalf("internal detail leaked: %q", body.Message)
	}
}

func TestRespondErr_DebugIncludesStack(t *testing.T) {
	withMode(t, gin.DebugMode)

	_, body := getAPIError(t, errorRouter(errors.New("pq: connection refused")), "/respond")

	if body.Stack == "" {
		t.Fatalf("debug mode should include the stack")
	}
	if body.Message != "pq: connection refused" {
		t.Fatalf("debug mode should show the cause, got %q", body.Message)
	}
}

func TestErrorBoundary_RendersAbortedErrors(t *testing.T) {
	withMode(t, gin.TestMode)

	status, body := getAPIError(t, errorRouter(apperr.Forbidden("Forbidden")), "/abort")

	if status != http.StatusForbidden || body.Message != "Forbidden" {
		t.Fatalf("got %d %q, want 403 Forbidden", status, body.Message)
	}
}

func TestRecover_PanicsBecome500(t *testing.T) {
	withMode(t, gin.ReleaseMode)

	status, body := getAPIError(t, errorRouter(nil), "/panic")

	if status != http.StatusInternalServerError || body.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", status)
	}
}

func TestNotFound_UnknownRoute(t *testing.T) {
	withMode(t, gin.TestMode)

	status, body := getAPIError(t, errorRouter(nil), "/nope")

	if status != http.StatusNotFound || body.Message != "Not found" {
		t.Fatalf("got %d %q, want 404 Not found", status, body.Message)
	}
}
