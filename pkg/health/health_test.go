package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		runs     int
		wantCode int
		wantBody string
	}{
		{name: "NotRunYet", runs: 0, wantCode: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "BelowThreshold", runs: 2, wantCode: http.StatusOK, wantBody: `{"status":"ok"}`},
		{
			name:     "AtThreshold",
			runs:     3,
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"status":"unhealthy","checks":{"kv":"connection refused"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.AddLivenessCheck("kv", time.Second, fail("connection refused"))
			runN(s.live[0], tt.runs)

			w := get(t, s.LiveEndpoint)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, pass)
	s.AddReadinessCheck("snapshots", time.Second, fail("timeout"))

	w := get(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	s.SetReady(true)
	assert.Equal(t, http.StatusOK, get(t, s.ReadyEndpoint).Code)
	assert.True(t, s.IsReady())

	runN(s.readyz[1], 3)
	w = get(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"snapshots":"timeout"}}`, w.Body.String())
	assert.False(t, s.IsReady())

	s.SetReady(false)
	assert.False(t, s.IsReady())
}

func TestProbeRecovers(t *testing.T) {
	failing := true
	s := New(Options{FailureThreshold: 1, SuccessThreshold: 2})
	s.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := s.live[0]

	runN(p, 1)
	assert.Equal(t, "down", p.failure())

	failing = false
	runN(p, 1)
	assert.NotEmpty(t, p.failure(), "one pass is below the success threshold")
	runN(p, 1)
	assert.Empty(t, p.failure())
}

func TestStartStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	s := New()
	s.AddReadinessCheck("counted", time.Second, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})
	s.SetReady(true)

	s.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pinger{})(context.Background()))

	err := PingCheck(pinger{err: errors.New("refused")})(context.Background())
	assert.ErrorContains(t, err, "refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}
