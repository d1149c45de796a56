package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/connexus-ai/ragquery/internal/model"
)

func TestDocumentRepo_CreateAndGet(t *testing.T) {
	_, _, docRepo, cleanup := setupRepos(t)
	defer cleanup()

	storagePath := "documents/create-get.pdf"
	doc := &model.Document{
		Filename:     "create-get.pdf",
		OriginalName: "Create Get.pdf",
		MimeType:     "application/pdf",
		SizeBytes:    2048,
		StoragePath:  &storagePath,
		IndexStatus:  model.IndexPending,
		Metadata:     json.RawMessage(`{"source":"test"}`),
	}

	id, err := docRepo.Create(context.Background(), doc)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer docRepo.Delete(context.Background(), id)

	if id <= 0 {
		t.Fatalf("id = %d, want > 0", id)
	}

	got, err := docRepo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Filename != "create-get.pdf" || got.OriginalName != "Create Get.pdf" {
		t.Errorf("names = %q / %q", got.Filename, got.OriginalName)
	}
	if got.IndexStatus != model.IndexPending {
		t.Errorf("IndexStatus = %q, want Pending", got.IndexStatus)
	}
	if got.StoragePath == nil || *got.StoragePath != storagePath {
		t.Errorf("StoragePath = %v", got.StoragePath)
	}
}

func TestDocumentRepo_GetMissing(t *testing.T) {
	_, _, docRepo, cleanup := setupRepos(t)
	defer cleanup()

	if _, err := docRepo.GetByID(context.Background(), 1<<60); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestDocumentRepo_UpdateLifecycle(t *testing.T) {
	_, _, docRepo, cleanup := setupRepos(t)
	defer cleanup()

	id := createTestDocument(t, docRepo, "lifecycle.txt")
	defer docRepo.Delete(context.Background(), id)

	ctx := context.Background()
	if err := docRepo.UpdateStatus(ctx, id, model.IndexProcessing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := docRepo.UpdateText(ctx, id, "texto extraído do documento", 7); err != nil {
		t.Fatalf("UpdateText: %v", err)
	}
	if err := docRepo.UpdateChecksum(ctx, id, "abc123"); err != nil {
		t.Fatalf("UpdateChecksum: %v", err)
	}
	if err := docRepo.UpdateChunkCount(ctx, id, 12); err != nil {
		t.Fatalf("UpdateChunkCount: %v", err)
	}
	if err := docRepo.UpdateStatus(ctx, id, model.IndexIndexed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := docRepo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.IndexStatus != model.IndexIndexed {
		t.Errorf("IndexStatus = %q, want Indexed", got.IndexStatus)
	}
	if got.ExtractedText == nil || *got.ExtractedText != "texto extraído do documento" {
		t.Errorf("ExtractedText = %v", got.ExtractedText)
	}
	if got.PageCount != 7 {
		t.Errorf("PageCount = %d, want 7", got.PageCount)
	}
	if got.ChunkCount != 12 {
		t.Errorf("ChunkCount = %d, want 12", got.ChunkCount)
	}
	if got.Checksum == nil || *got.Checksum != "abc123" {
		t.Errorf("Checksum = %v", got.Checksum)
	}
}

func TestDocumentRepo_List(t *testing.T) {
	_, _, docRepo, cleanup := setupRepos(t)
	defer cleanup()

	id1 := createTestDocument(t, docRepo, "list-one.txt")
	id2 := createTestDocument(t, docRepo, "list-two.txt")
	defer docRepo.Delete(context.Background(), id1)
	defer docRepo.Delete(context.Background(), id2)

	docs, err := docRepo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	found := map[int64]bool{}
	for _, d := range docs {
		found[d.ID] = true
	}
	if !found[id1] || !found[id2] {
		t.Errorf("List missing created documents: %v", found)
	}
}

func TestDocumentRepo_DeleteCascadesToChunks(t *testing.T) {
	chunkRepo, _, docRepo, cleanup := setupRepos(t)
	defer cleanup()

	id := createTestDocument(t, docRepo, "cascade.txt")
	insertChunks(t, chunkRepo, id, []string{"trecho que deve sumir"}, [][]float32{unitVec(0)})

	if err := docRepo.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	count, err := chunkRepo.CountByDocumentID(context.Background(), id)
	if err != nil {
		t.Fatalf("CountByDocumentID: %v", err)
	}
	if count != 0 {
		t.Errorf("chunk count = %d, want 0 after document delete", count)
	}
}

func TestDocumentRepo_InvalidMetadataRejected(t *testing.T) {
	_, _, docRepo, cleanup := setupRepos(t)
	defer cleanup()

	_, err := docRepo.Create(context.Background(), &model.Document{
		Filename:    "bad-meta.txt",
		IndexStatus: model.IndexPending,
		Metadata:    json.RawMessage(`{not json`),
	})
	if err == nil {
		t.Fatal("expected error for invalid metadata JSON")
	}
}
