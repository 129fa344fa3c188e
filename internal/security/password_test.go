package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "password1" {
		t.Fatalf("hash must not equal the plain text")
	}

	if err := h.Check(hash, "password1"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}

	if err := h.Check(hash, "password2"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestNewHasher_ClampsCost(t *testing.T) {
	if NewHasher(0).cost != bcrypt.DefaultCost {
		t.Fatalf("out of range cost should fall back to default")
	}
	if NewHasher(bcrypt.MinCost).cost != bcrypt.MinCost {
		t.Fatalf("valid cost should be kept")
	}
}

func TestRandomPassword(t *testing.T) {
	a, err := RandomPassword()
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	b, _ := RandomPassword()
	if a == b {
		t.Fatalf("expected distinct passwords")
	}
	if len(a) < 8 {
		t.Fatalf("password too short: %q", a)
	}
}
