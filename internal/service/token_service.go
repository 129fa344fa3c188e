package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/geocoder89/absencehub/internal/domain/user"
)

// Reasons recorded on collapsed auth failures. They label
// token_failures_total and reach logs, never clients.
const (
	ReasonMissingBearer    = "missing_bearer"
	ReasonTokenExpired     = "token_expired"
	ReasonTokenInvalid     = "token_invalid"
	ReasonTokenNotFound    = "token_not_found"
	ReasonUserNotFound     = "user_not_found"
	ReasonPasswordMismatch = "password_mismatch"
	ReasonStorage          = "storage"
)

// ReasonOf classifies an error raised somewhere in a token flow.
func ReasonOf(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return ReasonTokenExpired
	case errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrMalformed),
		errors.Is(err, auth.ErrWrongType):
		return ReasonTokenInvalid
	case errors.Is(err, token.ErrNotFound):
		return ReasonTokenNotFound
	case errors.Is(err, user.ErrNotFound):
		return ReasonUserNotFound
	default:
		return ReasonStorage
	}
}

// TokenService issues signed tokens and keeps the persisted ones.
type TokenService struct {
	tokens TokenRepository
	users  UserRepository
	jwt    *auth.Manager
}

func NewTokenService(tokens TokenRepository, users UserRepository, jwt *auth.Manager) *TokenService {
	return &TokenService{tokens: tokens, users: users, jwt: jwt}
}

// Save persists a token under its hash.
func (s *TokenService) Save(ctx context.Context, raw, userID string, expires time.Time, typ token.Type) (token.Token, error) {
	t := token.Token{
		TokenHash: s.jwt.HashToken(raw),
		UserID:    userID,
		Type:      typ,
		ExpiresAt: expires,
		CreatedAt: s.jwt.Now(),
	}

	if err := s.tokens.Create(ctx, &t); err != nil {
		return token.Token{}, fmt.Errorf("save %s token: %w", typ, err)
	}
	return t, nil
}

// VerifyToken checks signature, expiry and type, then requires a matching
// active record owned by the token subject.
func (s *TokenService) VerifyToken(ctx context.Context, raw string, typ token.Type) (token.Token, error) {
	claims, err := s.jwt.Verify(raw, typ)
	if err != nil {
		return token.Token{}, err
	}

	rec, err := s.tokens.FindActive(ctx, s.jwt.HashToken(raw), typ)
	if err != nil {
		return token.Token{}, err
	}

	if rec.UserID != claims.UserID() {
		return token.Token{}, token.ErrNotFound
	}
	return rec, nil
}

// FindActive looks a raw token up by hash without checking its signature.
func (s *TokenService) FindActive(ctx context.Context, raw string, typ token.Type) (token.Token, error) {
	return s.tokens.FindActive(ctx, s.jwt.HashToken(raw), typ)
}

// GenerateAuthTokens issues an access token and a persisted refresh token.
func (s *TokenService) GenerateAuthTokens(ctx context.Context, u user.User) (token.AuthTokens, error) {
	access, err := s.jwt.Generate(u.ID, token.TypeAccess)
	if err != nil {
		return token.AuthTokens{}, err
	}

	refresh, err := s.issuePersisted(ctx, u.ID, token.TypeRefresh)
	if err != nil {
		return token.AuthTokens{}, err
	}

	return token.AuthTokens{Access: access, Refresh: refresh}, nil
}

// GenerateResetPasswordToken issues a reset token for the account behind email.
func (s *TokenService) GenerateResetPasswordToken(ctx context.Context, email string) (string, user.User, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if errors.Is(err, user.ErrNotFound) {
		return "", user.User{}, apperr.NotFound("No users found with this email")
	}
	if err != nil {
		return "", user.User{}, err
	}

	issued, err := s.issuePersisted(ctx, u.ID, token.TypeResetPassword)
	if err != nil {
		return "", user.User{}, err
	}
	return issued.Token, u, nil
}

func (s *TokenService) GenerateVerifyEmailToken(ctx context.Context, u user.User) (string, error) {
	issued, err := s.issuePersisted(ctx, u.ID, token.TypeVerifyEmail)
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

func (s *TokenService) Delete(ctx context.Context, id string) error {
	return s.tokens.Delete(ctx, id)
}

func (s *TokenService) DeleteAllOfType(ctx context.Context, userID string, typ token.Type) error {
	_, err := s.tokens.DeleteAllOfType(ctx, userID, typ)
	return err
}

func (s *TokenService) issuePersisted(ctx context.Context, userID string, typ token.Type) (token.Issued, error) {
	issued, err := s.jwt.Generate(userID, typ)
	if err != nil {
		return token.Issued{}, err
	}

	if _, err := s.Save(ctx, issued.Token, userID, issued.Expires, typ); err != nil {
		return token.Issued{}, err
	}
	return issued, nil
}
