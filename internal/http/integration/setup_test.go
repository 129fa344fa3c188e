package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/config"
	apphttp "github.com/geocoder89/absencehub/internal/http"
	"github.com/geocoder89/absencehub/internal/http/middlewares"
	"github.com/geocoder89/absencehub/internal/notifications"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/geocoder89/absencehub/internal/repo"
	"github.com/geocoder89/absencehub/internal/security"
	"github.com/geocoder89/absencehub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass1"
)

// recordingTransport keeps every outbound message so tests can follow the
// emailed links.
type recordingTransport struct {
	mu   sync.Mutex
	sent []notifications.Message
}

func (t *recordingTransport) Send(_ context.Context, msg notifications.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

var tokenInLink = regexp.MustCompile(`token=(\S+)`)

// lastToken returns the token from the most recent message of kind.
func (t *recordingTransport) lastToken(tb testing.TB, kind string) string {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.sent) - 1; i >= 0; i-- {
		if t.sent[i].Kind != kind {
			continue
		}
		m := tokenInLink.FindStringSubmatch(t.sent[i].Body)
		if m == nil {
			tb.Fatalf("no token link in %q", t.sent[i].Body)
		}
		return m[1]
	}

	tb.Fatalf("no %s message sent", kind)
	return ""
}

type testApp struct {
	router http.Handler
	mail   *recordingTransport
	prom   *observability.Prom
}

type appOption func(*config.Config)

func withRateLimit(limit int) appOption {
	return func(c *config.Config) {
		c.Env = config.EnvProd
		c.AuthRateLimit = limit
		c.AuthRateWindowMinutes = 15
	}
}

func testConfig() config.Config {
	cfg := config.Config{
		Env:                        config.EnvTest,
		DBDriver:                   config.DriverMemory,
		JWTSecret:                  "test-secret-key",
		JWTAccessTTLMinutes:        30,
		JWTRefreshTTLDays:          30,
		JWTResetPasswordTTLMinutes: 10,
		JWTVerifyEmailTTLMinutes:   10,
		BcryptCost:                 bcrypt.MinCost,
		AppURL:                     "http://app.local",
		AdminName:                  "Test Admin",
		AdminEmail:                 adminEmail,
		AdminPassword:              adminPassword,
	}

	// TEST_DB_DSN runs the same suite against postgres.
	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		cfg.DBDriver = config.DriverPostgres
		cfg.DBURL = dsn
	}
	return cfg
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	cfg := testConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	backend, err := repo.Open(ctx, cfg, prom)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close(context.Background()) })

	if cfg.DBDriver == config.DriverPostgres {
		resetPostgres(t, cfg.DBURL)
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, auth.TTLs{
		Access:        cfg.AccessTTL(),
		Refresh:       cfg.RefreshTTL(),
		ResetPassword: cfg.ResetPasswordTTL(),
		VerifyEmail:   cfg.VerifyEmailTTL(),
	})
	rights := auth.DefaultRights()

	mail := &recordingTransport{}
	notifier := notifications.NewNotifier(mail, cfg.AppURL, prom, observability.NewMailMetrics())

	users := service.NewUserService(backend.Users, backend.Tokens, backend.Tx, security.NewHasher(cfg.BcryptCost))
	tokens := service.NewTokenService(backend.Tokens, backend.Users, jwtManager)
	authSvc := service.NewAuthService(users, tokens, backend.Tx, notifier)
	absences := service.NewAbsenceService(backend.Absences, backend.Users, rights)

	if _, err := users.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	var limiter *middlewares.RateLimiter
	if cfg.IsProd() {
		limiter = middlewares.NewRateLimiter(middlewares.NewMemoryStore(), cfg.AuthRateLimit, cfg.AuthRateWindow(), prom)
	}

	router := apphttp.NewRouter(apphttp.Deps{
		Env:         cfg.Env,
		Prom:        prom,
		Gatherer:    reg,
		Auth:        authSvc,
		Users:       users,
		Absences:    absences,
		Verifier:    jwtManager,
		Rights:      rights,
		AuthLimiter: limiter,
		Ping:        backend.Ping,
	})
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	return &testApp{router: router, mail: mail, prom: prom}
}

func resetPostgres(t *testing.T, dsn string) {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	defer pool.Close()

	reset := func() {
		_, err := pool.Exec(context.Background(), `TRUNCATE absences, tokens, users CASCADE`)
		if err != nil {
			t.Fatalf("failed to truncate tables: %v", err)
		}
	}
	reset()
	t.Cleanup(func() {
		p, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return
		}
		defer p.Close()
		_, _ = p.Exec(context.Background(), `TRUNCATE absences, tokens, users CASCADE`)
	})
}

// helpers

func (a *testApp) do(t *testing.T, method, path, accessToken string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := newRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// raw sends body as-is with the given content type.
func (a *testApp) raw(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := newRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func newRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "192.0.2.10:5000"
	return req
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

type issued struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type tokenPair struct {
	Access  issued `json:"access"`
	Refresh issued `json:"refresh"`
}

type userBody struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	IsEmailVerified bool     `json:"isEmailVerified"`
	Projects        []string `json:"projects"`
}

type authBody struct {
	User   userBody  `json:"user"`
	Tokens tokenPair `json:"tokens"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (a *testApp) register(t *testing.T, name, email, password string) authBody {
	t.Helper()

	w := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	expectStatus(t, w, http.StatusCreated)

	var out authBody
	mustReadJSON(t, w, &out)
	return out
}

func (a *testApp) login(t *testing.T, email, password string) authBody {
	t.Helper()

	w := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	expectStatus(t, w, http.StatusOK)

	var out authBody
	mustReadJSON(t, w, &out)
	return out
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	return a.login(t, adminEmail, adminPassword).Tokens.Access.Token
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func randomSuffix(t *testing.T) string {
	t.Helper()
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
