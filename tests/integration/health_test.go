//go:build integration

package integration

import (
	"net/http"
	"testing"
)

// Both probes must pass while the stack is up: readiness covers postgres and
// the redis snapshot store configured in docker-compose.test.yml.
func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			s := newShopper(t)
			body := expect[healthResponse](s, http.MethodGet, path, nil, http.StatusOK)
			if body.Status != "ok" {
				t.Fatalf("status: got %q, want ok", body.Status)
			}
			if len(body.Checks) != 0 {
				t.Errorf("unexpected failing checks: %v", body.Checks)
			}
		})
	}
}

func TestHealthEndpoints_NoSession(t *testing.T) {
	s := newShopper(t)
	resp := s.do(http.MethodGet, "/readyz", nil)
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Session-ID"); got != "" {
		t.Errorf("health probe issued session %q", got)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			t.Errorf("health probe set session cookie %q", c.Value)
		}
	}
}
