package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/connexus-ai/ragquery/internal/model"
)

var (
	processingMu sync.Mutex
	processing   = make(map[int64]bool)
)

// Parser abstracts document text extraction.
type Parser interface {
	Extract(ctx context.Context, gcsURI string) (*ParseResult, error)
}

// Chunker abstracts document chunking.
type Chunker interface {
	Chunk(ctx context.Context, text string, docID int64) ([]Chunk, error)
}

// Chunk represents a chunked piece of text on the write path, before it gets
// an id from the store.
type Chunk struct {
	Text         string
	TokenCount   int
	Position     int
	DocumentID   int64
	PageNumber   int
	SectionTitle string
}

// Embedder abstracts vector embedding and storage.
type Embedder interface {
	EmbedAndStore(ctx context.Context, chunks []Chunk) error
}

// DocumentRepository abstracts document persistence for the ingestion path.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	UpdateStatus(ctx context.Context, id int64, status model.IndexStatus) error
	UpdateText(ctx context.Context, id int64, text string, pages int) error
	UpdateChecksum(ctx context.Context, id int64, checksum string) error
	UpdateChunkCount(ctx context.Context, id int64, count int) error
	Delete(ctx context.Context, id int64) error
}

// PipelineService orchestrates the document ingestion pipeline:
// parse → store text → chunk → embed → update status. It populates the chunk
// store the query pipeline reads from; it never runs on the query path.
type PipelineService struct {
	docRepo    DocumentRepository
	parser     Parser
	chunker    Chunker
	embedder   Embedder
	bucketName string
}

// NewPipelineService creates a PipelineService with all required dependencies.
func NewPipelineService(
	docRepo DocumentRepository,
	parser Parser,
	chunker Chunker,
	embedder Embedder,
	bucketName string,
) *PipelineService {
	return &PipelineService{
		docRepo:    docRepo,
		parser:     parser,
		chunker:    chunker,
		embedder:   embedder,
		bucketName: bucketName,
	}
}

// ProcessDocument runs the full ingestion pipeline for a document.
// It is designed to be called asynchronously (via goroutine).
func (s *PipelineService) ProcessDocument(ctx context.Context, docID int64) error {
	// Concurrency guard: prevent duplicate processing of the same document
	processingMu.Lock()
	if processing[docID] {
		processingMu.Unlock()
		return fmt.Errorf("document %d is already being processed", docID)
	}
	processing[docID] = true
	processingMu.Unlock()

	defer func() {
		processingMu.Lock()
		delete(processing, docID)
		processingMu.Unlock()
	}()

	slog.Info("pipeline starting", "document_id", docID)

	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		slog.Error("pipeline failed to get document", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessDocument: get document: %w", err)
	}
	slog.Info("pipeline processing document", "document_id", docID, "filename", doc.Filename, "mime_type", doc.MimeType, "size_bytes", doc.SizeBytes)

	// Mark as processing
	if err := s.docRepo.UpdateStatus(ctx, docID, model.IndexProcessing); err != nil {
		slog.Error("pipeline failed to update status", "document_id", docID, "target_status", "processing", "error", err)
		return fmt.Errorf("pipeline.ProcessDocument: set processing: %w", err)
	}

	// Step 1: Parse — extract text via Document AI
	gcsURI := fmt.Sprintf("gs://%s/%s", s.bucketName, ptrStr(doc.StoragePath))
	slog.Info("pipeline step 1: extracting text", "document_id", docID, "gcs_uri", gcsURI)
	parsed, err := s.parser.Extract(ctx, gcsURI)
	if err != nil {
		slog.Error("pipeline text extraction failed", "document_id", docID, "error", err)
		s.failDocument(ctx, docID, "parse_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: parse: %w", err)
	}
	slog.Info("pipeline text extracted", "document_id", docID, "chars", len(parsed.Text), "pages", parsed.Pages)

	// Step 2: Store extracted text
	slog.Info("pipeline step 2: storing extracted text", "document_id", docID)
	if err := s.docRepo.UpdateText(ctx, docID, parsed.Text, parsed.Pages); err != nil {
		slog.Error("pipeline failed to store extracted text", "document_id", docID, "error", err)
		s.failDocument(ctx, docID, "store_text_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: store text: %w", err)
	}

	// Step 2b: Compute and store SHA-256 checksum of extracted text
	hash := sha256.Sum256([]byte(parsed.Text))
	checksum := hex.EncodeToString(hash[:])
	if err := s.docRepo.UpdateChecksum(ctx, docID, checksum); err != nil {
		slog.Warn("pipeline failed to store checksum", "document_id", docID, "error", err)
		// Non-fatal — continue pipeline
	} else {
		slog.Info("pipeline checksum stored", "document_id", docID, "sha256", checksum[:16]+"...")
	}

	// Step 3: Chunk
	slog.Info("pipeline step 3: chunking text", "document_id", docID, "chars", len(parsed.Text))
	chunks, err := s.chunker.Chunk(ctx, parsed.Text, docID)
	if err != nil {
		slog.Error("pipeline chunking failed", "document_id", docID, "error", err)
		s.failDocument(ctx, docID, "chunk_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: chunk: %w", err)
	}
	slog.Info("pipeline chunks created", "document_id", docID, "chunk_count", len(chunks))

	// Step 4: Embed and store vectors
	slog.Info("pipeline step 4: generating embeddings", "document_id", docID, "chunk_count", len(chunks))
	if err := s.embedder.EmbedAndStore(ctx, chunks); err != nil {
		slog.Error("pipeline embedding failed", "document_id", docID, "error", err)
		s.failDocument(ctx, docID, "embed_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: embed: %w", err)
	}
	slog.Info("pipeline embeddings stored", "document_id", docID)

	// Step 5: Update status to Indexed
	if err := s.docRepo.UpdateStatus(ctx, docID, model.IndexIndexed); err != nil {
		slog.Error("pipeline failed to update status to indexed", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessDocument: set indexed: %w", err)
	}
	if err := s.docRepo.UpdateChunkCount(ctx, docID, len(chunks)); err != nil {
		slog.Warn("pipeline failed to update chunk count", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessDocument: update chunk count: %w", err)
	}

	slog.Info("pipeline completed", "document_id", docID, "chunk_count", len(chunks))
	return nil
}

// failDocument sets the document status to Failed with error details in metadata.
func (s *PipelineService) failDocument(ctx context.Context, docID int64, stage string, origErr error) {
	_ = s.docRepo.UpdateStatus(ctx, docID, model.IndexFailed)

	details := map[string]string{
		"failed_stage": stage,
		"error":        origErr.Error(),
	}
	detailsJSON, _ := json.Marshal(details)
	_ = s.docRepo.UpdateText(ctx, docID, string(detailsJSON), 0)
}

// ProcessText runs a simplified ingestion pipeline for pre-extracted text.
// Skips parsing — used when text content is already provided by the caller.
func (s *PipelineService) ProcessText(ctx context.Context, docID int64) error {
	// Concurrency guard
	processingMu.Lock()
	if processing[docID] {
		processingMu.Unlock()
		return fmt.Errorf("document %d is already being processed", docID)
	}
	processing[docID] = true
	processingMu.Unlock()

	defer func() {
		processingMu.Lock()
		delete(processing, docID)
		processingMu.Unlock()
	}()

	slog.Info("text pipeline starting", "document_id", docID)

	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		slog.Error("text pipeline failed to get document", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessText: get document: %w", err)
	}

	if doc.ExtractedText == nil || *doc.ExtractedText == "" {
		s.failDocument(ctx, docID, "no_text", fmt.Errorf("extractedText is empty"))
		return fmt.Errorf("pipeline.ProcessText: no extracted text for document %d", docID)
	}

	text := *doc.ExtractedText

	// Mark as processing
	if err := s.docRepo.UpdateStatus(ctx, docID, model.IndexProcessing); err != nil {
		slog.Error("text pipeline failed to update status", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessText: set processing: %w", err)
	}

	// Step 1: Compute and store SHA-256 checksum
	hash := sha256.Sum256([]byte(text))
	checksum := hex.EncodeToString(hash[:])
	if err := s.docRepo.UpdateChecksum(ctx, docID, checksum); err != nil {
		slog.Warn("text pipeline failed to store checksum", "document_id", docID, "error", err)
	} else {
		slog.Info("text pipeline checksum stored", "document_id", docID, "sha256", checksum[:16]+"...")
	}

	// Step 2: Chunk
	slog.Info("text pipeline chunking", "document_id", docID, "chars", len(text))
	chunks, err := s.chunker.Chunk(ctx, text, docID)
	if err != nil {
		slog.Error("text pipeline chunking failed", "document_id", docID, "error", err)
		s.failDocument(ctx, docID, "chunk_failed", err)
		return fmt.Errorf("pipeline.ProcessText: chunk: %w", err)
	}
	slog.Info("text pipeline chunks created", "document_id", docID, "chunk_count", len(chunks))

	// Step 3: Embed and store vectors
	slog.Info("text pipeline embedding", "document_id", docID, "chunk_count", len(chunks))
	if err := s.embedder.EmbedAndStore(ctx, chunks); err != nil {
		slog.Error("text pipeline embedding failed", "document_id", docID, "error", err)
		s.failDocument(ctx, docID, "embed_failed", err)
		return fmt.Errorf("pipeline.ProcessText: embed: %w", err)
	}

	// Step 4: Update status to Indexed
	if err := s.docRepo.UpdateStatus(ctx, docID, model.IndexIndexed); err != nil {
		slog.Error("text pipeline failed to set indexed", "document_id", docID, "error", err)
		return fmt.Errorf("pipeline.ProcessText: set indexed: %w", err)
	}
	if err := s.docRepo.UpdateChunkCount(ctx, docID, len(chunks)); err != nil {
		slog.Warn("text pipeline failed to update chunk count", "document_id", docID, "error", err)
	}

	slog.Info("text pipeline completed", "document_id", docID, "chunk_count", len(chunks))
	return nil
}

func ptrStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
