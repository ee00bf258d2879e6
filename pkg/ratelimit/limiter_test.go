package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-stepup/pkg/client"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func TestTokenBucket_BurstAndRefill(t *testing.T) {
	clock := newClock()
	tb := NewTokenBucket(5, 1.0, clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.Allow(), "request %d", i+1)
	}
	assert.False(t, tb.Allow())

	clock.Advance(2 * time.Second)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// refill never exceeds capacity
	clock.Advance(time.Hour)
	require.True(t, tb.Allow())
	assert.Equal(t, 4.0, tb.Tokens())
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(2, 1.0, 0, WithClock(clock.Now))

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	assert.True(t, rl.Allow("u2"))
	assert.Equal(t, 2, rl.Len())

	rl.Reset("u1")
	assert.True(t, rl.Allow("u1"))
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(5, 1.0, time.Minute, WithClock(clock.Now))
	defer rl.Stop()

	rl.Allow("u1")
	clock.Advance(30 * time.Second)
	rl.Allow("u2")

	clock.Advance(45 * time.Second)
	rl.evictIdle()
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100, 0, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if rl.Allow("u1") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
	assert.Equal(t, 1, rl.Len())
}

func TestMiddleware_LimitsPerUser(t *testing.T) {
	clock := newClock()
	m := NewMiddleware(Config{PerUserCapacity: 2, PerUserRefillRate: 1.0 / 60, RetryAfter: time.Minute}, WithClock(clock.Now))
	defer m.Stop()
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/otp/verify", nil)
		req = req.WithContext(client.WithAuthUser(context.Background(), &client.AuthUser{UserId: userID}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusNoContent, call("u1").Code)
	assert.Equal(t, http.StatusNoContent, call("u1").Code)

	rr := call("u1")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	var body errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Code)

	assert.Equal(t, http.StatusNoContent, call("u2").Code)

	clock.Advance(time.Minute)
	assert.Equal(t, http.StatusNoContent, call("u1").Code)

	m.ResetUser("u1")
	assert.Equal(t, http.StatusNoContent, call("u1").Code)
}

func TestMiddleware_LimitsPerIP(t *testing.T) {
	m := NewMiddleware(Config{PerIPCapacity: 1})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/otp/send", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, call("203.0.113.7:1000"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.7:2000"))
	assert.Equal(t, http.StatusNoContent, call("198.51.100.1:1000"))
}
