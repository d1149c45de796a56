package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// Ingester abstracts document processing for testability.
type Ingester interface {
	ProcessDocument(ctx context.Context, docID int64) error
}

// IngestDeps bundles dependencies for the ingest handler.
type IngestDeps struct {
	DocRepo  service.DocumentRepository
	Pipeline Ingester
}

// IngestDocument handles POST /api/documents/{id}/ingest.
// It validates status, then fires the pipeline in a background goroutine.
// Returns 202 Accepted immediately.
func IngestDocument(deps IngestDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || docID <= 0 {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "valid document id required"})
			return
		}

		doc, err := deps.DocRepo.GetByID(r.Context(), docID)
		if err != nil {
			respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
			return
		}

		if doc.IndexStatus != model.IndexPending {
			respondJSON(w, http.StatusConflict, envelope{
				Success: false,
				Error:   "document is not in Pending status",
			})
			return
		}

		go func(id int64) {
			ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
			defer cancel()
			slog.Info("[INGEST] starting pipeline", "document_id", id)
			if err := deps.Pipeline.ProcessDocument(ctx, id); err != nil {
				slog.Error("[INGEST] pipeline failed", "document_id", id, "error", err)
			} else {
				slog.Info("[INGEST] pipeline completed", "document_id", id)
			}
		}(docID)

		respondJSON(w, http.StatusAccepted, envelope{
			Success: true,
			Data: map[string]any{
				"documentId": docID,
				"status":     "processing",
			},
		})
	}
}
