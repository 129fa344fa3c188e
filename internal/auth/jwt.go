package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
	ErrWrongType        = errors.New("invalid token type")
)

// Claims is the signed payload: sub, iat, exp and jti live in the registered
// claims, the token type sits next to them.
type Claims struct {
	Type token.Type `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// Issue signs a token for subjectID of the given type that expires at expires.
func Issue(subjectID string, expires time.Time, typ token.Type, secret []byte) (string, error) {
	return sign(subjectID, time.Now().UTC(), expires, typ, secret)
}

// Verify checks signature and expiry and returns the embedded claims.
func Verify(raw string, secret []byte) (*Claims, error) {
	return parse(raw, secret, time.Now)
}

func sign(subjectID string, issuedAt, expires time.Time, typ token.Type, secret []byte) (string, error) {
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expires),
			// jti keeps two tokens issued in the same second distinct
			ID: uuid.NewString(),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func parse(raw string, secret []byte, now func() time.Time) (*Claims, error) {
	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

type TTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	ResetPassword time.Duration
	VerifyEmail   time.Duration
}

// Manager binds the codec to the configured secret and lifetimes.
type Manager struct {
	secret []byte
	ttls   TTLs
	now    func() time.Time
}

func NewManager(secret string, ttls TTLs) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttls:   ttls,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock swaps the time source; tests use it to move past expiry.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Now() time.Time { return m.now() }

func (m *Manager) TTL(typ token.Type) time.Duration {
	switch typ {
	case token.TypeAccess:
		return m.ttls.Access
	case token.TypeRefresh:
		return m.ttls.Refresh
	case token.TypeResetPassword:
		return m.ttls.ResetPassword
	case token.TypeVerifyEmail:
		return m.ttls.VerifyEmail
	default:
		return 0
	}
}

// Generate issues a token of typ for userID using the configured lifetime.
func (m *Manager) Generate(userID string, typ token.Type) (token.Issued, error) {
	if !typ.IsValid() {
		return token.Issued{}, ErrWrongType
	}

	now := m.now()
	expires := now.Add(m.TTL(typ))

	raw, err := sign(userID, now, expires, typ, m.secret)
	if err != nil {
		return token.Issued{}, err
	}

	return token.Issued{Token: raw, Expires: expires}, nil
}

// Verify checks the token and that it carries the expected type.
func (m *Manager) Verify(raw string, typ token.Type) (*Claims, error) {
	claims, err := parse(raw, m.secret, m.now)
	if err != nil {
		return nil, err
	}

	if claims.Type != typ {
		return nil, ErrWrongType
	}

	return claims, nil
}

func (m *Manager) VerifyAccessToken(raw string) (*Claims, error) {
	return m.Verify(raw, token.TypeAccess)
}

// HashToken is a deterministic HMAC of the raw token (server-side pepper = secret).
// Store this in the DB, never the raw token.
func (m *Manager) HashToken(raw string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
