package middlewares

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/absencehub/internal/apperr"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/gin-gonic/gin"
)

// LimitStore keeps fixed-window counters per key.
type LimitStore interface {
	// Count returns the hits recorded for key in the current window and the
	// time left until that window closes.
	Count(ctx context.Context, key string) (int64, time.Duration, error)
	// Hit records one more hit, opening a new window of length window if none is active.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// MemoryStore is the in-process LimitStore.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (s *MemoryStore) Count(_ context.Context, key string) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		return 0, 0, nil
	}

	return b.count, b.windowEnd.Sub(now), nil
}

func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		// drop closed windows while holding the lock anyway
		for k, old := range s.clients {
			if !now.Before(old.windowEnd) {
				delete(s.clients, k)
			}
		}

		b = &clientBucket{windowEnd: now.Add(window)}
		s.clients[key] = b
	}

	b.count++

	return b.count, b.windowEnd.Sub(now), nil
}

// Counter is the subset of the redis client the RedisStore needs.
type Counter interface {
	Counter(ctx context.Context, key string) (int64, time.Duration, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
}

// RedisStore shares counters between API instances.
type RedisStore struct {
	client Counter
	prefix string
}

func NewRedisStore(client Counter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, time.Duration, error) {
	return s.client.Counter(ctx, s.prefix+key)
}

func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return s.client.IncrWithTTL(ctx, s.prefix+key, window)
}

// RateLimiter blocks a key once it has collected limit counted responses in
// the current window. Only failed responses (status >= 400) are counted.
type RateLimiter struct {
	store  LimitStore
	limit  int64
	window time.Duration
	prom   *observability.Prom
}

func NewRateLimiter(store LimitStore, limit int, window time.Duration, prom *observability.Prom) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  int64(limit),
		window: window,
		prom:   prom,
	}
}

// RateLimiterMiddleware enforces the limit for the key derived by keyFn.
// Store failures let the request through.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		reqCtx := c.Request.Context()

		count, resetIn, err := rl.store.Count(reqCtx, key)
		if err != nil {
			slog.Default().WarnContext(reqCtx, "rate_limit_store_failed", "err", err)
			c.Next()
			return
		}

		if count >= rl.limit {
			retryAfter := int(resetIn.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			if rl.prom != nil {
				rl.prom.RateLimitedTotal.WithLabelValues(routeOf(c)).Inc()
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			_ = c.Error(apperr.TooManyRequests("Too many requests, please try again later."))
			c.Abort()
			return
		}

		c.Next()

		// aborted middleware errors are rendered later by the error boundary
		if c.Writer.Status() < 400 && len(c.Errors) == 0 {
			return
		}

		if _, _, err := rl.store.Hit(reqCtx, key, rl.window); err != nil {
			slog.Default().WarnContext(reqCtx, "rate_limit_store_failed", "err", err)
		}
	}
}

// KeyByIP rate limits unauthenticated endpoints per client address.
func KeyByIP(c *gin.Context) string {
	return "ip:" + clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}

	return ip
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
