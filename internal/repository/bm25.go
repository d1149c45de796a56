package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// LexicalRepo implements service.LexicalSearcher using PostgreSQL full-text
// search. Relies on the GIN index over document_chunks.content_tsv, built at
// ingest time with the configured text-search language.
type LexicalRepo struct {
	pool     *pgxpool.Pool
	tsConfig string // e.g. "portuguese", "english"
}

// NewLexicalRepo creates a LexicalRepo.
func NewLexicalRepo(pool *pgxpool.Pool, tsConfig string) *LexicalRepo {
	if tsConfig == "" {
		tsConfig = "portuguese"
	}
	return &LexicalRepo{pool: pool, tsConfig: tsConfig}
}

// Compile-time check.
var _ service.LexicalSearcher = (*LexicalRepo)(nil)

// FindByKeyword returns up to limit chunks matching the query via full-text
// rank, descending. An empty query yields an empty list without touching the
// store. A nil or empty filterDocIDs means no document restriction.
func (r *LexicalRepo) FindByKeyword(ctx context.Context, query string, limit int, filterDocIDs []int64) (model.RankedList, error) {
	if query == "" {
		return nil, nil
	}
	if len(filterDocIDs) == 0 {
		filterDocIDs = nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.document_id, c.text, c.page_number, c.position, c.metadata,
		       ts_rank_cd(c.content_tsv, plainto_tsquery($4::regconfig, $1))::float8 AS rank
		FROM document_chunks c
		WHERE c.content_tsv @@ plainto_tsquery($4::regconfig, $1)
		  AND ($2::bigint[] IS NULL OR c.document_id = ANY($2))
		ORDER BY rank DESC, c.id
		LIMIT $3`,
		query, filterDocIDs, limit, r.tsConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByKeyword: %w", err)
	}
	defer rows.Close()

	results, err := scanScoredChunks(rows)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByKeyword: %w", err)
	}

	slog.Info("[DEBUG-REPO] full-text search complete",
		"results_count", len(results),
		"limit", limit,
		"filtered", filterDocIDs != nil,
	)
	return results, nil
}
