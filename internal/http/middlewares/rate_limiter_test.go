package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// limitedRouter answers /ok with 200 and /fail with 401 behind the limiter.
func limitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		if last := c.Errors.Last(); last != nil && !c.Writer.Written() {
			c.AbortWithStatus(http.StatusTooManyRequests)
		}
	})
	r.Use(rl.RateLimiterMiddleware(KeyByIP))
	r.POST("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	return r
}

func hit(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_CountsOnlyFailures(t *testing.T) {
	rl := NewRateLimiter(NewMemoryStore(), 3, time.Minute, nil)
	r := limitedRouter(rl)

	for i := 0; i < 10; i++ {
		if w := hit(r, "/ok"); w.Code != http.StatusOK {
			t.Fatalf("successful request %d got %d", i, w.Code)
		}
	}

	for i := 0; i < 3; i++ {
		if w := hit(r, "/fail"); w.Code != http.StatusUnauthorized {
			t.Fatalf("failure %d got %d, want 401", i, w.Code)
		}
	}

	w := hit(r, "/ok")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429 once the failure budget is spent", w.Code)
	}

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 60 {
		t.Fatalf("unexpected Retry-After %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	r := limitedRouter(NewRateLimiter(store, 1, 15*time.Minute, nil))

	hit(r, "/fail")
	if w := hit(r, "/ok"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", w.Code)
	}

	now = now.Add(15 * time.Minute)

	if w := hit(r, "/ok"); w.Code != http.StatusOK {
		t.Fatalf("got %d after the window closed, want 200", w.Code)
	}
}

type failingStore struct{}

func (failingStore) Count(context.Context, string) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func (failingStore) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestRateLimiter_StoreFailureLetsRequestsThrough(t *testing.T) {
	r := limitedRouter(NewRateLimiter(failingStore{}, 1, time.Minute, nil))

	for i := 0; i < 3; i++ {
		if w := hit(r, "/fail"); w.Code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", w.Code)
		}
	}
}

type fakeCounter struct {
	counts map[string]int64
	ttl    time.Duration
}

func (f *fakeCounter) Counter(_ context.Context, key string) (int64, time.Duration, error) {
	return f.counts[key], f.ttl, nil
}

func (f *fakeCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	f.counts[key]++
	if f.ttl == 0 {
		f.ttl = ttl
	}
	return f.counts[key], f.ttl, nil
}

func TestRedisStore_PrefixesKeys(t *testing.T) {
	fc := &fakeCounter{counts: map[string]int64{}}
	store := NewRedisStore(fc, "absencehub:ratelimit:auth:")

	n, ttl, err := store.Hit(context.Background(), "ip:10.0.0.1", time.Minute)
	if err != nil || n != 1 || ttl != time.Minute {
		t.Fatalf("unexpected hit result %d %v %v", n, ttl, err)
	}

	if fc.counts["absencehub:ratelimit:auth:ip:10.0.0.1"] != 1 {
		t.Fatalf("expected prefixed key, got %v", fc.counts)
	}

	n, _, _ = store.Count(context.Background(), "ip:10.0.0.1")
	if n != 1 {
		t.Fatalf("count got %d, want 1", n)
	}
}
