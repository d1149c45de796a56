package model

import (
	"encoding/json"
	"time"
)

type IndexStatus string

const (
	IndexPending    IndexStatus = "Pending"
	IndexProcessing IndexStatus = "Processing"
	IndexIndexed    IndexStatus = "Indexed"
	IndexFailed     IndexStatus = "Failed"
)

// Document represents an uploaded file in the corpus. Its chunks are the
// retrieval units; the document row carries ingestion state and provenance.
type Document struct {
	ID            int64           `json:"id"`
	Filename      string          `json:"filename"`
	OriginalName  string          `json:"originalName"`
	MimeType      string          `json:"mimeType"`
	SizeBytes     int             `json:"sizeBytes"`
	StoragePath   *string         `json:"storagePath,omitempty"`
	ExtractedText *string         `json:"extractedText,omitempty"`
	IndexStatus   IndexStatus     `json:"indexStatus"`
	PageCount     int             `json:"pageCount"`
	ChunkCount    int             `json:"chunkCount"`
	Checksum      *string         `json:"checksum,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// AllowedMimeTypes lists the mime types accepted for upload.
var AllowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
	"text/csv":   true,
	"image/png":  true,
	"image/jpeg": true,
}

// MaxFileSizeBytes is the maximum allowed upload size (50 MB).
const MaxFileSizeBytes = 50 * 1024 * 1024
