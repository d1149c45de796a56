package service

import (
	"log/slog"
	"sort"

	"github.com/connexus-ai/ragquery/internal/model"
)

// defaultRRFK is the standard RRF damping constant. Smaller values make the
// fusion more winner-take-all.
const defaultRRFK = 60

// reciprocalRankFusion combines ranked lists from heterogeneous retrieval arms
// into a single ordering. For a chunk at 1-indexed rank r in a list, that list
// contributes 1/(k+r) to the chunk's fused score; chunks absent from a list
// contribute nothing from it. The result depends only on (list membership,
// rank, k), never on the input score scales: cosine similarity and lexical
// rank are not comparable.
//
// Output order is fused score descending, ties broken by chunk id ascending.
// Chunks with a zero id are dropped with a warning.
func reciprocalRankFusion(lists []model.RankedList, k int) model.FusedResult {
	if k <= 0 {
		k = defaultRRFK
	}

	scores := make(map[int64]float64)
	chunks := make(map[int64]model.Chunk)

	for _, list := range lists {
		if len(list) == 0 {
			continue
		}
		for rank, sc := range list {
			if sc.Chunk.ID == 0 {
				slog.Warn("[RRF] dropping chunk without id", "document_id", sc.Chunk.DocumentID)
				continue
			}
			id := sc.Chunk.ID
			if _, seen := chunks[id]; !seen {
				chunks[id] = sc.Chunk
			}
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})

	fused := make([]model.Chunk, len(ids))
	for i, id := range ids {
		fused[i] = chunks[id]
	}

	return model.FusedResult{Chunks: fused, FusedScore: scores}
}
