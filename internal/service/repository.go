// Package service holds the account, token and absence workflows. Storage is
// reached only through the repository interfaces declared here.
package service

import (
	"context"

	"github.com/geocoder89/absencehub/internal/domain/absence"
	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/pagination"
)

// UserRepository returns user.ErrNotFound for missing (or malformed) ids and
// user.ErrEmailTaken when a write hits the unique email constraint.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]user.User, error)
	IsEmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	Update(ctx context.Context, u *user.User) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, f user.Filter) (int64, error)
	List(ctx context.Context, f user.Filter, q pagination.Query) ([]user.User, error)
	FindIDs(ctx context.Context, f user.Filter) ([]string, error)
}

// TokenRepository stores refresh, reset-password and verify-email tokens by hash.
type TokenRepository interface {
	Create(ctx context.Context, t *token.Token) error
	// FindActive returns the non-blacklisted record or token.ErrNotFound.
	FindActive(ctx context.Context, hash string, typ token.Type) (token.Token, error)
	Delete(ctx context.Context, id string) error
	DeleteAllOfType(ctx context.Context, userID string, typ token.Type) (int64, error)
}

type AbsenceRepository interface {
	Create(ctx context.Context, a *absence.Absence) error
	GetByID(ctx context.Context, id string) (absence.Absence, error)
	Update(ctx context.Context, a *absence.Absence) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, f absence.Filter) (int64, error)
	List(ctx context.Context, f absence.Filter, q pagination.Query) ([]absence.Absence, error)
}

// Transactor runs fn so that every repository call made with the ctx it
// receives commits or rolls back together. Backends without transactions run
// fn directly.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mailer delivers the account emails.
type Mailer interface {
	SendResetPasswordEmail(ctx context.Context, to, token string) error
	SendVerificationEmail(ctx context.Context, to, token string) error
}
