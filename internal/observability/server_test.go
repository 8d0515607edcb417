package observability

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestServer_HealthEndpoints(t *testing.T) {
	var ready atomic.Bool
	h := NewServer(":0", WithReadiness(ready.Load)).Handler()

	get := func(path string) (int, string) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code, rec.Body.String()
	}

	if code, body := get("/healthz"); code != http.StatusOK || body != "ok" {
		t.Errorf("/healthz = %d %q", code, body)
	}
	if code, body := get("/readyz"); code != http.StatusServiceUnavailable || body != "starting" {
		t.Errorf("/readyz before ready = %d %q", code, body)
	}
	ready.Store(true)
	if code, body := get("/readyz"); code != http.StatusOK || body != "ready" {
		t.Errorf("/readyz after ready = %d %q", code, body)
	}
	if code, _ := get("/metrics"); code != http.StatusOK {
		t.Errorf("/metrics = %d", code)
	}
}

func TestServer_ReadyWithoutGate(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(":0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d, want 200", rec.Code)
	}
}
