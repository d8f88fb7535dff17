package healthprobe

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func serve(t *testing.T, handler http.HandlerFunc, path string) (int, HealthResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return w.Code, resp
}

func TestNew(t *testing.T) {
	hc := New()

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestHealth_AlwaysReturnsOK(t *testing.T) {
	hc := New()
	hc.AddCheck("socket", func() error { return errors.New("down") })

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)

		code, resp := serve(t, hc.Health(), "/health")
		if code != http.StatusOK {
			t.Errorf("Health status = %d, want %d (ready=%v)", code, http.StatusOK, ready)
		}
		if resp.Status != "healthy" || resp.Uptime == "" {
			t.Errorf("unexpected health response: %+v", resp)
		}
	}
}

func TestReady_NotReadyInitially(t *testing.T) {
	hc := New()

	code, resp := serve(t, hc.Ready(), "/ready")

	if code != http.StatusServiceUnavailable {
		t.Errorf("Ready status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Status != "not_ready" {
		t.Errorf("Status = %s, want not_ready", resp.Status)
	}
	if resp.Message == "" {
		t.Error("Message is empty for not_ready state")
	}
}

func TestReady_Checks(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantFailed []string
	}{
		{
			name:       "no-checks",
			wantStatus: http.StatusOK,
		},
		{
			name: "all-passing",
			checks: map[string]Check{
				"dispatcher": func() error { return nil },
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "one-failing",
			checks: map[string]Check{
				"dispatcher": func() error { return nil },
				"socket":     func() error { return errors.New("not authenticated") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"socket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			hc.SetReady(true)
			for name, check := range tt.checks {
				hc.AddCheck(name, check)
			}

			code, resp := serve(t, hc.Ready(), "/ready")

			if code != tt.wantStatus {
				t.Errorf("Ready status = %d, want %d", code, tt.wantStatus)
			}
			if len(resp.Checks) != len(tt.wantFailed) {
				t.Fatalf("failing checks = %v, want %v", resp.Checks, tt.wantFailed)
			}
			for _, name := range tt.wantFailed {
				if resp.Checks[name] == "" {
					t.Errorf("check %s missing from response %v", name, resp.Checks)
				}
			}
		})
	}
}

func TestReady_FollowsCheckState(t *testing.T) {
	var authenticated atomic.Bool

	hc := New()
	hc.SetReady(true)
	hc.AddCheck("socket", func() error {
		if !authenticated.Load() {
			return errors.New("not authenticated")
		}
		return nil
	})

	if code, _ := serve(t, hc.Ready(), "/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("status before auth = %d, want 503", code)
	}

	authenticated.Store(true)
	code, resp := serve(t, hc.Ready(), "/ready")
	if code != http.StatusOK {
		t.Errorf("status after auth = %d, want 200", code)
	}
	if resp.Status != "ready" {
		t.Errorf("Status = %s, want ready", resp.Status)
	}

	hc.SetReady(false)
	if code, _ := serve(t, hc.Ready(), "/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("status after SetReady(false) = %d, want 503", code)
	}
}

func TestAddCheck_Replaces(t *testing.T) {
	hc := New()
	hc.SetReady(true)
	hc.AddCheck("socket", func() error { return errors.New("down") })
	hc.AddCheck("socket", func() error { return nil })

	ok, failing := hc.IsReady()
	if !ok {
		t.Errorf("IsReady() = false, failing %v", failing)
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	hc := New()
	handler := hc.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.AddCheck("flip", func() error { return nil })
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
