package httpmiddleware

import (
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

func sessionKey(r *http.Request) string {
	return r.Header.Get("X-Session-ID")
}

func postAs(h http.Handler, session string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cart/promotion", nil)
	req.Header.Set("X-Session-ID", session)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_UnderLimit(t *testing.T) {
	h := NewRateLimiter(RateLimitConfig{Max: 5, Window: time.Minute, KeyFunc: sessionKey}).Middleware()(okHandler())

	for i := range 5 {
		w := postAs(h, "s1")
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_OverLimit(t *testing.T) {
	h := NewRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute, KeyFunc: sessionKey}).Middleware()(okHandler())

	require.Equal(t, http.StatusOK, postAs(h, "s1").Code)
	require.Equal(t, http.StatusOK, postAs(h, "s1").Code)

	w := postAs(h, "s1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":"rate_limited","message":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, postAs(h, "s2").Code, "other sessions are independent")
}

func TestRateLimiter_Remaining(t *testing.T) {
	h := NewRateLimiter(RateLimitConfig{Max: 3, Window: time.Minute, KeyFunc: sessionKey}).Middleware()(okHandler())

	for _, want := range []string{"2", "1", "0"} {
		assert.Equal(t, want, postAs(h, "s1").Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiter_WindowRotation(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := rl.allow("k", start)
	require.True(t, ok)
	_, _, ok = rl.allow("k", start.Add(time.Second))
	require.False(t, ok)

	// Two windows later nothing of the old count remains.
	_, _, ok = rl.allow("k", start.Add(2*time.Minute+time.Second))
	assert.True(t, ok)
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rl.allow("old", start)
	rl.allow("fresh", start.Add(90*time.Second))

	assert.Equal(t, 1, rl.evict(start.Add(2*time.Minute)))
	assert.Len(t, rl.windows, 1)
	assert.Contains(t, rl.windows, "fresh")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "RemoteAddr", remote: "192.168.1.1:4444", want: "192.168.1.1"},
		{name: "NoPort", remote: "192.168.1.1", want: "192.168.1.1"},
		{
			name:    "ForwardedFor",
			remote:  "10.0.0.1:1",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			want:    "203.0.113.50",
		},
		{
			name:    "RealIP",
			remote:  "10.0.0.1:1",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "198.51.100.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
