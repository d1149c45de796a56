package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// ChunkRepo implements service.ChunkStore and service.VectorSearcher over the
// document_chunks table.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// Compile-time checks.
var (
	_ service.ChunkStore     = (*ChunkRepo)(nil)
	_ service.VectorSearcher = (*ChunkRepo)(nil)
)

// BulkInsert stores chunks with their embedding vectors using pgx batching.
// Ids are assigned by the store.
func (r *ChunkRepo) BulkInsert(ctx context.Context, chunks []service.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("repository.BulkInsert: chunk count (%d) != vector count (%d)", len(chunks), len(vectors))
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for i, c := range chunks {
		embedding := pgvector.NewVector(vectors[i])

		meta := map[string]any{"token_count": c.TokenCount}
		if c.SectionTitle != "" {
			meta["section_title"] = c.SectionTitle
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("repository.BulkInsert: chunk %d metadata: %w", i, err)
		}

		batch.Queue(`
			INSERT INTO document_chunks (document_id, text, page_number, position, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.DocumentID, c.Text, c.PageNumber, c.Position, metaJSON, embedding, now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		_, err := br.Exec()
		if err != nil {
			return fmt.Errorf("repository.BulkInsert: chunk %d: %w", i, err)
		}
	}

	return nil
}

// FindSimilar returns up to limit chunks ordered by cosine similarity
// descending. Similarity is 1 − cosine_distance, clamped to [0, 1]. A nil or
// empty filterDocIDs means no document restriction.
func (r *ChunkRepo) FindSimilar(ctx context.Context, queryVec []float32, limit int, filterDocIDs []int64) (model.RankedList, error) {
	embedding := pgvector.NewVector(queryVec)
	if len(filterDocIDs) == 0 {
		filterDocIDs = nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.document_id, c.text, c.page_number, c.position, c.metadata,
		       GREATEST(0.0, LEAST(1.0, 1 - (c.embedding <=> $1::vector))) AS similarity
		FROM document_chunks c
		WHERE ($2::bigint[] IS NULL OR c.document_id = ANY($2))
		ORDER BY c.embedding <=> $1::vector, c.id
		LIMIT $3`,
		embedding, filterDocIDs, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.FindSimilar: %w", err)
	}
	defer rows.Close()

	results, err := scanScoredChunks(rows)
	if err != nil {
		return nil, fmt.Errorf("repository.FindSimilar: %w", err)
	}

	slog.Info("[DEBUG-REPO] similarity search complete",
		"results_count", len(results),
		"limit", limit,
		"filtered", filterDocIDs != nil,
	)
	return results, nil
}

// scanScoredChunks reads (chunk columns..., score) rows into a RankedList.
func scanScoredChunks(rows pgx.Rows) (model.RankedList, error) {
	var results model.RankedList
	for rows.Next() {
		var sc model.ScoredChunk
		var metaJSON []byte
		err := rows.Scan(
			&sc.Chunk.ID, &sc.Chunk.DocumentID, &sc.Chunk.Text,
			&sc.Chunk.PageNumber, &sc.Chunk.Position, &metaJSON,
			&sc.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &sc.Chunk.Metadata); err != nil {
				return nil, fmt.Errorf("metadata: %w", err)
			}
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteByDocumentID removes all chunks for a document.
// Used by: document deletion, integration tests.
func (r *ChunkRepo) DeleteByDocumentID(ctx context.Context, documentID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("repository.DeleteByDocumentID: %w", err)
	}
	return nil
}

// CountByDocumentID returns the number of chunks for a document.
func (r *ChunkRepo) CountByDocumentID(ctx context.Context, documentID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.CountByDocumentID: %w", err)
	}
	return count, nil
}
