package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// ObjectUploader abstracts writing a raw document to object storage.
type ObjectUploader interface {
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error
}

// DocDeps bundles dependencies for the document CRUD handlers.
type DocDeps struct {
	DocRepo    service.DocumentRepository
	Uploader   ObjectUploader
	BucketName string
}

// UploadDocument handles POST /api/documents. Accepts a multipart form with a
// "file" field, stores the raw bytes in GCS, and creates a Pending document
// row. Ingestion is a separate, explicit step.
func UploadDocument(deps DocDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(model.MaxFileSizeBytes); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid multipart form"})
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "file field required"})
			return
		}
		defer file.Close()

		if header.Size > model.MaxFileSizeBytes {
			respondJSON(w, http.StatusRequestEntityTooLarge, envelope{Success: false, Error: "file too large"})
			return
		}

		contentType := header.Header.Get("Content-Type")
		if !model.AllowedMimeTypes[contentType] {
			respondJSON(w, http.StatusUnsupportedMediaType, envelope{Success: false, Error: fmt.Sprintf("unsupported mime type %q", contentType)})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, model.MaxFileSizeBytes+1))
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to read upload"})
			return
		}
		if len(data) > model.MaxFileSizeBytes {
			respondJSON(w, http.StatusRequestEntityTooLarge, envelope{Success: false, Error: "file too large"})
			return
		}

		storagePath := fmt.Sprintf("documents/%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename))
		if err := deps.Uploader.Upload(r.Context(), deps.BucketName, storagePath, data, contentType); err != nil {
			respondJSON(w, http.StatusBadGateway, envelope{Success: false, Error: "storage upload failed"})
			return
		}

		doc := &model.Document{
			Filename:     filepath.Base(storagePath),
			OriginalName: header.Filename,
			MimeType:     contentType,
			SizeBytes:    len(data),
			StoragePath:  &storagePath,
			IndexStatus:  model.IndexPending,
		}
		if _, err := deps.DocRepo.Create(r.Context(), doc); err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to create document"})
			return
		}

		respondJSON(w, http.StatusCreated, envelope{Success: true, Data: doc})
	}
}

// ListDocuments handles GET /api/documents.
func ListDocuments(deps DocDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.DocRepo.List(r.Context())
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to list documents"})
			return
		}
		if docs == nil {
			docs = []model.Document{}
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: docs})
	}
}

// GetDocument handles GET /api/documents/{id}.
func GetDocument(deps DocDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || docID <= 0 {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "valid document id required"})
			return
		}

		doc, err := deps.DocRepo.GetByID(r.Context(), docID)
		if err != nil {
			respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: doc})
	}
}

// DeleteDocument handles DELETE /api/documents/{id}. Chunks are removed by
// the store's cascade.
func DeleteDocument(deps DocDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || docID <= 0 {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "valid document id required"})
			return
		}

		if _, err := deps.DocRepo.GetByID(r.Context(), docID); err != nil {
			respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
			return
		}

		if err := deps.DocRepo.Delete(r.Context(), docID); err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to delete document"})
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"documentId": docID}})
	}
}
