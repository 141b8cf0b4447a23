package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayhq/pathway/pkg/authctx"
	"github.com/pathwayhq/pathway/pkg/contextkeys"
	"github.com/pathwayhq/pathway/pkg/observability"
)

func TestRateLimiterExhaustion(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
		MaxKeys:           10,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("key"), "request %d should be allowed", i)
	}
	assert.False(t, limiter.Allow("key"))

	// other keys are unaffected
	assert.True(t, limiter.Allow("other"))
}

func TestRateLimiterRemaining(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
		MaxKeys:           10,
	})

	assert.Equal(t, 5, limiter.Remaining("fresh"))
	limiter.Allow("fresh")
	assert.Equal(t, 4, limiter.Remaining("fresh"))
}

func TestRateLimitMiddlewareKeysByUser(t *testing.T) {
	mw := &RateLimitMiddleware{
		userLimiter: NewRateLimiter(&RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
			MaxKeys:           10,
		}),
		anonymousLimiter: NewRateLimiter(DefaultRateLimitConfig()),
		metrics:          observability.NewMetrics(prometheus.NewRegistry()),
	}

	okay, _ := okHandler()
	handler := mw.Handler(okay)

	authed := func(userID int64) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(contextkeys.WithAuth(req.Context(), &authctx.Context{UserID: userID}))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(1))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// a different user has their own bucket
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(2))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, "test")

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := limiter.Remaining(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	require.NoError(t, limiter.Reset(ctx, "user:1"))
	allowed, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	limiter := NewDistributedRateLimiter(client, nil, "test")
	allowed, err := limiter.Allow(context.Background(), "user:1")
	assert.Error(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mw := &DistributedRateLimitMiddleware{
		userLimiter: NewDistributedRateLimiter(client, &RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
		}, "ratelimit:user"),
		anonymousLimiter: NewDistributedRateLimiter(client, DefaultRateLimitConfig(), "ratelimit:anon"),
		metrics:          observability.NewMetrics(prometheus.NewRegistry()),
		logger:           observability.NewLogger(observability.ErrorLevel, nil),
	}

	okay, _ := okHandler()
	handler := mw.Handler(okay)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextkeys.WithAuth(req.Context(), &authctx.Context{UserID: 1}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
