package service

import "errors"

// Pipeline error kinds. Each external collaborator failure maps to exactly one
// of these sentinels so the handler can pick the user-visible response with
// errors.Is. Timeouts are wrapped into the sentinel of the call that timed out.
var (
	// ErrEmptyQuery means the cleaned query is empty or below the minimum
	// length. Terminal: no downstream component is invoked.
	ErrEmptyQuery = errors.New("query is empty after cleaning")

	// ErrEmbeddingUnavailable wraps embedding provider failures. A zero
	// vector from the provider is also mapped here; it must never be
	// substituted into retrieval.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrVectorSearch wraps similarity-search failures from the chunk store.
	ErrVectorSearch = errors.New("vector search failed")

	// ErrLexicalSearch wraps full-text search failures from the chunk store.
	ErrLexicalSearch = errors.New("lexical search failed")

	// ErrReranker wraps cross-encoder failures. Recoverable: the pipeline
	// falls back to the fused order and records the degradation.
	ErrReranker = errors.New("reranker failed")

	// ErrGeneration wraps generation model failures.
	ErrGeneration = errors.New("generation failed")
)
