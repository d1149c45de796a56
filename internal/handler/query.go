package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// QueryAnswerer abstracts the query pipeline for testability.
type QueryAnswerer interface {
	Answer(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error)
}

// maxQueryBodyBytes bounds the request body.
const maxQueryBodyBytes = 64 * 1024

// Query handles POST /api/query, the pipeline entry point.
//
// Success and the preparer short-circuit both return 200 with the pipeline's
// QueryResult. Downstream failures return 500 with the generic response body;
// a cancelled request gets no response at all.
func Query(pipeline QueryAnswerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.QueryRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes))
		if err := dec.Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, model.QueryResult{Answer: service.EmptyQueryResponse})
			return
		}

		result, err := pipeline.Answer(r.Context(), req)
		if err != nil {
			if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
				// Caller went away; nothing to write.
				return
			}
			slog.Error("[QUERY-HANDLER] pipeline failed",
				"error", err,
				"embedding_unavailable", errors.Is(err, service.ErrEmbeddingUnavailable),
				"vector_search", errors.Is(err, service.ErrVectorSearch),
				"lexical_search", errors.Is(err, service.ErrLexicalSearch),
				"generation", errors.Is(err, service.ErrGeneration),
			)
			respondJSON(w, http.StatusInternalServerError, model.QueryResult{Answer: service.InternalErrorResponse})
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}
