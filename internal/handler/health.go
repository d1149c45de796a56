package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// DBPinger is the interface for checking database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker validates connectivity to one external collaborator.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthDeps bundles the collaborators the health endpoint reports on.
// Nil entries are skipped.
type HealthDeps struct {
	DB       DBPinger
	Checkers map[string]HealthChecker // name → checker (embedder, generator, reranker)
	Version  string
}

// Health handles GET /api/health. It pings the database and, with ?deep=true,
// each external collaborator individually, so operators can see which leg of
// the pipeline is down.
func Health(deps HealthDeps) http.HandlerFunc {
	ver := deps.Version
	if ver == "" {
		ver = "0.0.0"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		status := "ok"
		httpStatus := http.StatusOK
		components := map[string]string{}

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				components["database"] = "disconnected"
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
			} else {
				components["database"] = "connected"
			}
		}

		if r.URL.Query().Get("deep") == "true" && len(deps.Checkers) > 0 {
			var mu sync.Mutex
			var wg sync.WaitGroup
			for name, checker := range deps.Checkers {
				if checker == nil {
					continue
				}
				wg.Add(1)
				go func(name string, checker HealthChecker) {
					defer wg.Done()
					err := checker.HealthCheck(ctx)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						components[name] = "unavailable"
						status = "degraded"
						httpStatus = http.StatusServiceUnavailable
					} else {
						components[name] = "connected"
					}
				}(name, checker)
			}
			wg.Wait()
		}

		respondJSON(w, httpStatus, map[string]any{
			"status":     status,
			"version":    ver,
			"components": components,
		})
	}
}
