package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFrom_TypedErrorPassesThrough(t *testing.T) {
	orig := NotFound("User not found")
	wrapped := fmt.Errorf("lookup: %w", orig)

	got := From(wrapped)
	if got != orig {
		t.Fatalf("expected the original *Error, got %#v", got)
	}
	if got.Status != http.StatusNotFound || !got.Operational {
		t.Fatalf("unexpected status/operational: %d %v", got.Status, got.Operational)
	}
}

func TestFrom_UntypedBecomesInternal(t *testing.T) {
	got := From(errors.New("connection reset"))

	if got.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got.Status)
	}
	if got.Operational {
		t.Fatalf("untyped errors must be non-operational")
	}
	if got.Stack() == "" {
		t.Fatalf("expected a captured stack")
	}
}

func TestWithCause_KeepsClientMessage(t *testing.T) {
	cause := errors.New("token expired")
	e := Unauthorized("Please authenticate").WithCause(cause).WithReason("token_expired")

	if e.Message != "Please authenticate" {
		t.Fatalf("message changed: %q", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Fatalf("expected cause to be reachable with errors.Is")
	}
	if e.Reason != "token_expired" {
		t.Fatalf("unexpected reason %q", e.Reason)
	}
}

func TestNew_DefaultMessage(t *testing.T) {
	e := New(http.StatusForbidden, "")
	if e.Message != "Forbidden" {
		t.Fatalf("expected status text, got %q", e.Message)
	}
}

func TestStatusOf(t *testing.T) {
	if StatusOf(nil) != http.StatusOK {
		t.Fatalf("nil should map to 200")
	}
	if StatusOf(BadRequest("x")) != http.StatusBadRequest {
		t.Fatalf("bad request should map to 400")
	}
	if !Is(Forbidden("no"), http.StatusForbidden) {
		t.Fatalf("Is should match status")
	}
}
