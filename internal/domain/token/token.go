package token

import (
	"errors"
	"time"
)

type Type string

const (
	TypeAccess        Type = "access"
	TypeRefresh       Type = "refresh"
	TypeResetPassword Type = "resetPassword"
	TypeVerifyEmail   Type = "verifyEmail"
)

// IsPersisted reports whether tokens of this type are stored server-side.
// Access tokens are stateless.
func (t Type) IsPersisted() bool {
	switch t {
	case TypeRefresh, TypeResetPassword, TypeVerifyEmail:
		return true
	default:
		return false
	}
}

func (t Type) IsValid() bool {
	return t == TypeAccess || t.IsPersisted()
}

var ErrNotFound = errors.New("token not found")

// Token is a persisted refresh, reset-password or verify-email credential.
// TokenHash is the keyed digest of the signed token string; the raw string is never stored.
type Token struct {
	ID          string
	TokenHash   string
	UserID      string
	Type        Type
	ExpiresAt   time.Time
	Blacklisted bool
	CreatedAt   time.Time
}

// Issued is a signed token handed back to the client.
type Issued struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// AuthTokens is the access/refresh pair returned by login, register and refresh.
type AuthTokens struct {
	Access  Issued `json:"access"`
	Refresh Issued `json:"refresh"`
}
