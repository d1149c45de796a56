package model

import "sort"

// Chunk is a retrieved unit of text: a contiguous span from one document,
// pre-embedded at ingest time. Chunk and Document ids are stable integers;
// the store is the single source of truth for both.
type Chunk struct {
	ID         int64
	DocumentID int64
	Text       string
	PageNumber *int
	Position   *int
	Metadata   map[string]any
}

// ScoredChunk pairs a Chunk with a score whose scale depends on where it came
// from: cosine similarity (vector search), lexical rank (full-text search),
// RRF fused score, or cross-encoder rerank score. Never compare scores across
// these flavors directly.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RankedList is an ordered sequence of ScoredChunk, sorted by score
// descending with ties broken by chunk id ascending. The chunk store
// returns lists already in this order. Lists may be empty.
type RankedList []ScoredChunk

// FusedResult is the Fuser's output: chunks ordered by fused RRF score
// descending (ties by ascending id), plus the fused_score map for diagnostics.
type FusedResult struct {
	Chunks     []Chunk
	FusedScore map[int64]float64
}

// RerankedList is the Reranker's output: chunks ordered by raw cross-encoder
// score descending, ties broken by chunk id ascending. The score is not
// normalized and is not comparable across reranker model versions.
type RerankedList []ScoredChunk

// SortStable orders the list by score descending, chunk id ascending on ties.
func (l RerankedList) SortStable() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Score != l[j].Score {
			return l[i].Score > l[j].Score
		}
		return l[i].Chunk.ID < l[j].Chunk.ID
	})
}
