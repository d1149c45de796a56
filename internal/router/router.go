package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragquery/internal/handler"
	"github.com/connexus-ai/ragquery/internal/middleware"
	"github.com/connexus-ai/ragquery/internal/service"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	DB          handler.DBPinger
	AuthService *service.AuthService
	FrontendURL string
	Version     string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry

	InternalAuthSecret string

	// Query pipeline
	QueryPipeline handler.QueryAnswerer

	// Documents + ingestion
	DocDeps    handler.DocDeps
	IngestDeps handler.IngestDeps

	// Per-collaborator health checks (nil entries skipped)
	HealthCheckers map[string]handler.HealthChecker

	// Rate limiting (nil = no rate limiting)
	GeneralRateLimiter *middleware.RateLimiter
}

// New creates and configures the Chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	// Public routes (no auth)
	r.Get("/api/health", handler.Health(handler.HealthDeps{
		DB:       deps.DB,
		Checkers: deps.HealthCheckers,
		Version:  deps.Version,
	}))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	// Protected routes (require internal service auth or Firebase auth)
	r.Group(func(r chi.Router) {
		r.Use(middleware.InternalOrFirebaseAuth(deps.AuthService, deps.InternalAuthSecret))

		if deps.GeneralRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.GeneralRateLimiter))
		}

		timeout30s := middleware.Timeout(30 * time.Second)

		// Query pipeline. Generation dominates latency, so the route timeout
		// is wider than the CRUD routes'.
		r.With(middleware.Timeout(120 * time.Second)).Post("/api/query", handler.Query(deps.QueryPipeline))

		// Documents
		r.With(timeout30s).Get("/api/documents", handler.ListDocuments(deps.DocDeps))
		r.With(timeout30s).Post("/api/documents", handler.UploadDocument(deps.DocDeps))
		r.With(timeout30s).Get("/api/documents/{id}", handler.GetDocument(deps.DocDeps))
		r.With(timeout30s).Delete("/api/documents/{id}", handler.DeleteDocument(deps.DocDeps))
		// Ingest may take longer (pipeline processing)
		r.With(middleware.Timeout(120 * time.Second)).Post("/api/documents/{id}/ingest", handler.IngestDocument(deps.IngestDeps))
	})

	// 404 fallback
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
