package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func fromAddr(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.RemoteAddr = addr
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstPasses(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(h, fromAddr("192.168.1.1:12345"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_Exhausted(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.1:9999")).Code)
	}

	w := serve(h, fromAddr("10.0.0.1:9999"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 429, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_Keys(t *testing.T) {
	t.Run("PerIP", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

		assert.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.1:1234")).Code)
		assert.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.2:1234")).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, fromAddr("10.0.0.1:5678")).Code)
	})
	t.Run("ForwardedFor", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

		req := fromAddr("192.168.1.1:4444")
		req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		assert.Equal(t, http.StatusOK, serve(h, req).Code)

		req = fromAddr("192.168.1.2:5555")
		req.Header.Set("X-Forwarded-For", "203.0.113.50")
		assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)
	})
	t.Run("Custom", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Max:    1,
			Window: time.Minute,
			KeyFunc: func(r *http.Request) string {
				return r.Header.Get("Authorization")
			},
		})(okHandler())

		withToken := func(tok string) *http.Request {
			req := fromAddr("10.0.0.1:1")
			req.Header.Set("Authorization", tok)
			return req
		}
		assert.Equal(t, http.StatusOK, serve(h, withToken("Bearer a")).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, withToken("Bearer a")).Code)
		assert.Equal(t, http.StatusOK, serve(h, withToken("Bearer b")).Code)
	})
}

func TestLimiterSet_Refill(t *testing.T) {
	s := newLimiterSet(RateLimitConfig{Max: 2, Window: 2 * time.Second})
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, _, ok := s.take("k", now)
	require.True(t, ok)
	_, _, ok = s.take("k", now)
	require.True(t, ok)

	_, wait, ok := s.take("k", now)
	require.False(t, ok)
	assert.InDelta(t, time.Second.Seconds(), wait.Seconds(), 0.01)

	_, _, ok = s.take("k", now.Add(time.Second))
	assert.True(t, ok)
}

func TestLimiterSet_Evict(t *testing.T) {
	s := newLimiterSet(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s.take("old", now)
	s.take("fresh", now.Add(90*time.Second))
	require.Equal(t, 2, s.size())

	s.evict(now.Add(2 * time.Minute))
	assert.Equal(t, 1, s.size())
}
