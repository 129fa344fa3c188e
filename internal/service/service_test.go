package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/domain/user"
	"github.com/geocoder89/absencehub/internal/repo/memory"
	"github.com/geocoder89/absencehub/internal/security"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	kind  string
	to    string
	token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendResetPasswordEmail(_ context.Context, to, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "reset", to: to, token: tok})
	return m.err
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "verify", to: to, token: tok})
	return m.err
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	store    *memory.Store
	jwt      *auth.Manager
	tokens   *TokenService
	users    *UserService
	auth     *AuthService
	absences *AbsenceService
	mailer   *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	jwt := auth.NewManager("test-secret", auth.TTLs{
		Access:        30 * time.Minute,
		Refresh:       30 * 24 * time.Hour,
		ResetPassword: 10 * time.Minute,
		VerifyEmail:   10 * time.Minute,
	})
	hasher := security.NewHasher(bcrypt.MinCost)
	mailer := &fakeMailer{}

	tokens := NewTokenService(store.Tokens(), store.Users(), jwt)
	users := NewUserService(store.Users(), store.Tokens(), store, hasher)

	return &testEnv{
		store:    store,
		jwt:      jwt,
		tokens:   tokens,
		users:    users,
		auth:     NewAuthService(users, tokens, store, mailer),
		absences: NewAbsenceService(store.Absences(), store.Users(), auth.DefaultRights()),
		mailer:   mailer,
	}
}

func (e *testEnv) createUser(t *testing.T, name, email string, role user.Role) user.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), user.CreateUserRequest{
		Name:     name,
		Email:    email,
		Password: "password1",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func requireStatus(t *testing.T, err error, status int) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperr.Is(err, status), "expected status %d, got %v", status, err)
	return apperr.From(err)
}
