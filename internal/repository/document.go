package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// DocumentRepo implements service.DocumentRepository with pgx.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// Compile-time check that DocumentRepo implements service.DocumentRepository.
var _ service.DocumentRepository = (*DocumentRepo)(nil)

const documentColumns = `id, filename, original_name, mime_type, size_bytes, storage_path,
	extracted_text, index_status, page_count, chunk_count, checksum, metadata,
	created_at, updated_at`

// Create inserts a document row and returns the store-assigned id.
func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) (int64, error) {
	metaJSON, err := marshalMeta(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("repository.Create: marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO documents (
			filename, original_name, mime_type, size_bytes, storage_path,
			extracted_text, index_status, page_count, chunk_count, checksum,
			metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		doc.Filename, doc.OriginalName, doc.MimeType, doc.SizeBytes, doc.StoragePath,
		doc.ExtractedText, string(doc.IndexStatus), doc.PageCount, doc.ChunkCount, doc.Checksum,
		metaJSON, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository.Create: %w", err)
	}

	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return id, nil
}

// GetByID fetches one document.
func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	doc := &model.Document{}
	var indexStatus string
	var metaJSON []byte

	err := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id,
	).Scan(
		&doc.ID, &doc.Filename, &doc.OriginalName, &doc.MimeType, &doc.SizeBytes, &doc.StoragePath,
		&doc.ExtractedText, &indexStatus, &doc.PageCount, &doc.ChunkCount, &doc.Checksum, &metaJSON,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.GetByID: %w", err)
	}

	doc.IndexStatus = model.IndexStatus(indexStatus)
	doc.Metadata = json.RawMessage(metaJSON)
	return doc, nil
}

// List returns all documents, newest first.
func (r *DocumentRepo) List(ctx context.Context) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("repository.List: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		var indexStatus string
		var metaJSON []byte
		err := rows.Scan(
			&doc.ID, &doc.Filename, &doc.OriginalName, &doc.MimeType, &doc.SizeBytes, &doc.StoragePath,
			&doc.ExtractedText, &indexStatus, &doc.PageCount, &doc.ChunkCount, &doc.Checksum, &metaJSON,
			&doc.CreatedAt, &doc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository.List: scan: %w", err)
		}
		doc.IndexStatus = model.IndexStatus(indexStatus)
		doc.Metadata = json.RawMessage(metaJSON)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.List: %w", err)
	}
	return docs, nil
}

// UpdateStatus sets the index status.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id int64, status model.IndexStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET index_status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	return nil
}

// UpdateText stores the extracted text and page count.
func (r *DocumentRepo) UpdateText(ctx context.Context, id int64, text string, pages int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET extracted_text = $2, page_count = $3, updated_at = now() WHERE id = $1`,
		id, text, pages)
	if err != nil {
		return fmt.Errorf("repository.UpdateText: %w", err)
	}
	return nil
}

// UpdateChecksum stores the SHA-256 of the extracted text.
func (r *DocumentRepo) UpdateChecksum(ctx context.Context, id int64, checksum string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET checksum = $2, updated_at = now() WHERE id = $1`,
		id, checksum)
	if err != nil {
		return fmt.Errorf("repository.UpdateChecksum: %w", err)
	}
	return nil
}

// UpdateChunkCount stores the number of chunks produced at ingest.
func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, id int64, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET chunk_count = $2, updated_at = now() WHERE id = $1`,
		id, count)
	if err != nil {
		return fmt.Errorf("repository.UpdateChunkCount: %w", err)
	}
	return nil
}

// Delete removes a document; chunks follow via ON DELETE CASCADE.
func (r *DocumentRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.Delete: %w", err)
	}
	return nil
}

func marshalMeta(meta json.RawMessage) ([]byte, error) {
	if len(meta) == 0 {
		return []byte(`{}`), nil
	}
	if !json.Valid(meta) {
		return nil, fmt.Errorf("invalid metadata JSON")
	}
	return meta, nil
}
