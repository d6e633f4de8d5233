package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dd0wney/cluso-graphquery/pkg/storage"
)

func TestRegisterCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterCheck("test", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check()
	if !called {
		t.Error("registered check was not called")
	}
	check, exists := resp.Checks["test"]
	if !exists {
		t.Fatal("check result not in response")
	}
	if check.Name != "test" {
		t.Errorf("Name should default to the registered name, got %q", check.Name)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestRegisterReadinessCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterReadinessCheck("ready", func() Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	hc.Check()
	if called {
		t.Error("readiness check should not run for Check()")
	}
	resp := hc.CheckReadiness()
	if !called {
		t.Error("readiness check was not called")
	}
	if _, exists := resp.Checks["ready"]; !exists {
		t.Error("readiness check result not in response")
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, s := range tt.statuses {
				s := s
				hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: s} })
			}
			if got := hc.Check().Status; got != tt.want {
				t.Errorf("Status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStoreCheck(t *testing.T) {
	store := storage.NewGraphStorage()

	check := StoreCheck(store)()
	if check.Status != StatusHealthy {
		t.Fatalf("open store should be healthy, got %s (%s)", check.Status, check.Message)
	}
	if check.Details["nodes"] != uint64(0) {
		t.Errorf("nodes detail = %v, want 0", check.Details["nodes"])
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	check = StoreCheck(store)()
	if check.Status != StatusUnhealthy {
		t.Errorf("closed store should be unhealthy, got %s", check.Status)
	}
	if check.Message == "" {
		t.Error("unhealthy check should carry the error")
	}
}

func TestListenerCheck(t *testing.T) {
	listening := true
	fn := ListenerCheck("tcp", func() bool { return listening })

	if c := fn(); c.Status != StatusHealthy || c.Name != "tcp" {
		t.Errorf("got %+v, want healthy tcp", c)
	}
	listening = false
	if c := fn(); c.Status != StatusUnhealthy {
		t.Errorf("got %s, want unhealthy", c.Status)
	}
}

func TestMemoryCheck(t *testing.T) {
	usage := func() (uint64, uint64) { return 900, 1000 }

	if c := memoryCheck(0, usage)(); c.Status != StatusHealthy {
		t.Errorf("zero limit should only report, got %s", c.Status)
	}
	if c := memoryCheck(1000, usage)(); c.Status != StatusHealthy {
		t.Errorf("below limit should be healthy, got %s", c.Status)
	}
	if c := memoryCheck(500, usage)(); c.Status != StatusDegraded {
		t.Errorf("above limit should be degraded, got %s", c.Status)
	}
	if c := MemoryCheck(0)(); c.Details["heap_alloc_bytes"] == nil {
		t.Error("runtime memory check should report heap usage")
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		code   int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("c", func() Check { return Check{Status: tt.status} })

			w := httptest.NewRecorder()
			hc.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.code {
				t.Errorf("code = %d, want %d", w.Code, tt.code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("body status = %s, want %s", resp.Status, tt.status)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("c", func() Check { return Check{Status: StatusDegraded} })

	w := httptest.NewRecorder()
	hc.ReadinessHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded readiness should be 503, got %d", w.Code)
	}
}

func TestPanickingCheck(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("boom", func() Check { panic("broken") })

	resp := hc.Check()
	if resp.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", resp.Status)
	}
	if c := resp.Checks["boom"]; c.Name != "boom" || c.Message == "" {
		t.Errorf("unexpected check %+v", c)
	}
}

func TestRegisterReplaces(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("store", func() Check { return Check{Status: StatusUnhealthy} })
	hc.RegisterCheck("store", func() Check { return Check{Status: StatusHealthy} })
	hc.RegisterReadinessCheck("store", func() Check { return Check{Status: StatusDegraded} })

	if got := hc.Check(); got.Status != StatusHealthy || len(got.Checks) != 1 {
		t.Errorf("health = %s with %d checks, want healthy with 1", got.Status, len(got.Checks))
	}
	if got := hc.CheckReadiness().Status; got != StatusDegraded {
		t.Errorf("readiness = %s, want degraded", got)
	}
}
