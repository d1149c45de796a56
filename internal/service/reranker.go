package service

import (
	"context"

	"github.com/connexus-ai/ragquery/internal/model"
)

// Reranker re-scores fused candidates with a cross-encoder that jointly
// encodes (query, chunk text). Its scores supersede the fused scores for the
// final ordering. Implementations return the list sorted by score descending,
// ties broken by chunk id ascending; score range is model-dependent and not
// normalized.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []model.Chunk) (model.RerankedList, error)
}
