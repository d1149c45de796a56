package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubPinger implements DBPinger for testing.
type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

// stubChecker implements HealthChecker for testing.
type stubChecker struct {
	err error
}

func (s *stubChecker) HealthCheck(ctx context.Context) error { return s.err }

type healthBody struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

func TestHealth_OK(t *testing.T) {
	h := Health(HealthDeps{DB: &stubPinger{}, Version: "1.2.3"})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q", resp.Version)
	}
	if resp.Components["database"] != "connected" {
		t.Errorf("database = %q, want connected", resp.Components["database"])
	}
}

func TestHealth_DBDown(t *testing.T) {
	h := Health(HealthDeps{DB: &stubPinger{err: fmt.Errorf("connection refused")}})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp healthBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Components["database"] != "disconnected" {
		t.Errorf("database = %q, want disconnected", resp.Components["database"])
	}
}

func TestHealth_DeepChecksCollaborators(t *testing.T) {
	h := Health(HealthDeps{
		DB: &stubPinger{},
		Checkers: map[string]HealthChecker{
			"embedder":  &stubChecker{},
			"generator": &stubChecker{err: fmt.Errorf("model unavailable")},
			"reranker":  nil, // not configured — skipped
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health?deep=true", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp healthBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Components["embedder"] != "connected" {
		t.Errorf("embedder = %q, want connected", resp.Components["embedder"])
	}
	if resp.Components["generator"] != "unavailable" {
		t.Errorf("generator = %q, want unavailable", resp.Components["generator"])
	}
	if _, ok := resp.Components["reranker"]; ok {
		t.Error("nil checker must be skipped")
	}
}

func TestHealth_ShallowSkipsCollaborators(t *testing.T) {
	h := Health(HealthDeps{
		DB:       &stubPinger{},
		Checkers: map[string]HealthChecker{"generator": &stubChecker{err: fmt.Errorf("down")}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Without ?deep=true the collaborator checks (and their latency) are skipped.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
