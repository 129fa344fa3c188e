package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/domain/token"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/security"
)

const (
	msgLoginFailed       = "Incorrect email or password"
	msgPleaseAuth        = "Please authenticate"
	msgResetFailed       = "Password reset failed"
	msgVerifyEmailFailed = "Email verification failed"
)

// dummyHash is compared against when the email is unknown so both login
// failures cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOHi5Bq6DgiVu6YQZcI9wG6N8xB5eEJ3K"

// AuthService composes tokens, users and mail into the account flows.
type AuthService struct {
	users  *UserService
	tokens *TokenService
	tx     Transactor
	mailer Mailer
}

func NewAuthService(users *UserService, tokens *TokenService, tx Transactor, mailer Mailer) *AuthService {
	return &AuthService{users: users, tokens: tokens, tx: tx, mailer: mailer}
}

// collapse hides the failure behind message while keeping it for logs.
func collapse(message string, err error) error {
	return apperr.Unauthorized(message).WithCause(err).WithReason(ReasonOf(err))
}

// Register creates a RoleUser account and signs it in.
func (s *AuthService) Register(ctx context.Context, req user.RegisterRequest) (user.User, token.AuthTokens, error) {
	u, err := s.users.CreateUser(ctx, req.ToCreate())
	if err != nil {
		return user.User{}, token.AuthTokens{}, err
	}

	tokens, err := s.tokens.GenerateAuthTokens(ctx, u)
	if err != nil {
		return user.User{}, token.AuthTokens{}, err
	}
	return u, tokens, nil
}

// LoginWithEmailAndPassword fails with the same 401 whether the email is
// unknown or the password is wrong.
func (s *AuthService) LoginWithEmailAndPassword(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.users.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	if errors.Is(err, user.ErrNotFound) {
		_ = security.CheckPassword(dummyHash, password)
		return user.User{}, apperr.Unauthorized(msgLoginFailed).WithReason(ReasonUserNotFound)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return user.User{}, apperr.Unauthorized(msgLoginFailed).WithCause(err).WithReason(ReasonPasswordMismatch)
	}

	return u, nil
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (user.User, token.AuthTokens, error) {
	u, err := s.LoginWithEmailAndPassword(ctx, email, password)
	if err != nil {
		return user.User{}, token.AuthTokens{}, err
	}

	tokens, err := s.tokens.GenerateAuthTokens(ctx, u)
	if err != nil {
		return user.User{}, token.AuthTokens{}, err
	}
	return u, tokens, nil
}

// Logout removes the refresh token record.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	rec, err := s.tokens.FindActive(ctx, refreshToken, token.TypeRefresh)
	if errors.Is(err, token.ErrNotFound) {
		return apperr.NotFound("Not found")
	}
	if err != nil {
		return err
	}

	err = s.tokens.Delete(ctx, rec.ID)
	if errors.Is(err, token.ErrNotFound) {
		return apperr.NotFound("Not found")
	}
	return err
}

// RefreshAuth rotates the refresh token and returns a new pair. Every
// failure surfaces as the same 401.
func (s *AuthService) RefreshAuth(ctx context.Context, refreshToken string) (token.AuthTokens, error) {
	var tokens token.AuthTokens

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.tokens.VerifyToken(ctx, refreshToken, token.TypeRefresh)
		if err != nil {
			return err
		}

		u, err := s.users.users.GetByID(ctx, rec.UserID)
		if err != nil {
			return err
		}

		if err := s.tokens.Delete(ctx, rec.ID); err != nil {
			return err
		}

		tokens, err = s.tokens.GenerateAuthTokens(ctx, u)
		return err
	})
	if err != nil {
		return token.AuthTokens{}, collapse(msgPleaseAuth, err)
	}

	return tokens, nil
}

// ForgotPassword issues a reset token and mails it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	raw, u, err := s.tokens.GenerateResetPasswordToken(ctx, email)
	if err != nil {
		return err
	}

	return s.mailer.SendResetPasswordEmail(ctx, u.Email, raw)
}

// ResetPassword sets a new password and drops every reset token of the user.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.tokens.VerifyToken(ctx, resetToken, token.TypeResetPassword)
		if err != nil {
			return err
		}

		u, err := s.users.users.GetByID(ctx, rec.UserID)
		if err != nil {
			return err
		}

		if err := s.users.SetPassword(ctx, &u, newPassword); err != nil {
			return err
		}

		return s.tokens.DeleteAllOfType(ctx, u.ID, token.TypeResetPassword)
	})
	if err != nil {
		return collapse(msgResetFailed, err)
	}

	return nil
}

// SendVerificationEmail issues a verify-email token for u and mails it.
func (s *AuthService) SendVerificationEmail(ctx context.Context, u user.User) error {
	raw, err := s.tokens.GenerateVerifyEmailToken(ctx, u)
	if err != nil {
		return err
	}

	return s.mailer.SendVerificationEmail(ctx, u.Email, raw)
}

// VerifyEmail drops every verify-email token of the user and flags the
// address as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, verifyToken string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.tokens.VerifyToken(ctx, verifyToken, token.TypeVerifyEmail)
		if err != nil {
			return err
		}

		u, err := s.users.users.GetByID(ctx, rec.UserID)
		if err != nil {
			return err
		}

		if err := s.tokens.DeleteAllOfType(ctx, u.ID, token.TypeVerifyEmail); err != nil {
			return err
		}

		return s.users.MarkEmailVerified(ctx, &u)
	})
	if err != nil {
		return collapse(msgVerifyEmailFailed, err)
	}

	slog.DebugContext(ctx, "email verified")
	return nil
}
