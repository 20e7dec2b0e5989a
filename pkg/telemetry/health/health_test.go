package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/readbreak/pkg/engine"
)

func TestCheckReadiness(t *testing.T) {
	c := New(time.Second)

	status := c.CheckReadiness(context.Background())
	if status.Status != StatusReady {
		t.Errorf("no checks: Status = %q, want %q", status.Status, StatusReady)
	}

	c.RegisterCheck("audit", func(ctx context.Context) error { return nil })
	c.RegisterCheck("output", func(ctx context.Context) error { return errors.New("disk full") })

	status = c.CheckReadiness(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("Status = %q, want %q", status.Status, StatusDegraded)
	}
	if status.Checks["audit"].Status != StatusOK {
		t.Errorf("audit = %+v", status.Checks["audit"])
	}
	if status.Checks["output"].Message != "disk full" {
		t.Errorf("output = %+v", status.Checks["output"])
	}

	c.UnregisterCheck("output")
	if got := c.ListChecks(); len(got) != 1 || got[0] != "audit" {
		t.Errorf("ListChecks() = %v", got)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	result := c.CheckReadiness(context.Background()).Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow = %+v", result)
	}
}

func TestWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := WritableDir(dir)(context.Background()); err != nil {
		t.Errorf("WritableDir(%s) error = %v", dir, err)
	}
	if err := WritableDir(filepath.Join(dir, "missing"))(context.Background()); err == nil {
		t.Error("WritableDir() succeeded for a missing directory")
	}
}

func TestEndpoints(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("output", func(ctx context.Context) error { return errors.New("gone") })

	progress := func() engine.ParseLog {
		return engine.ParseLog{TotalReads: 3, SuccessfulReads: 2, FailedReads: 1}
	}

	mux := http.NewServeMux()
	Register(mux, checker, progress, "1.2.3")

	tests := []struct {
		path     string
		method   string
		wantCode int
	}{
		{"/health", http.MethodGet, http.StatusOK},
		{"/health", http.MethodPost, http.StatusMethodNotAllowed},
		{"/ready", http.MethodGet, http.StatusServiceUnavailable},
		{"/progress", http.MethodGet, http.StatusOK},
		{"/version", http.MethodHead, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))
	var log engine.ParseLog
	if err := json.NewDecoder(rec.Body).Decode(&log); err != nil {
		t.Fatal(err)
	}
	if log.TotalReads != 3 || log.FailedReads != 1 {
		t.Errorf("progress = %+v", log)
	}
}

func TestRegisterWithoutProgress(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, New(0), nil, "dev")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}
