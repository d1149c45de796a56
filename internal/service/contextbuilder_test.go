package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/connexus-ai/ragquery/internal/model"
)

// wordCounter is a deterministic TokenCounter for tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func rankedChunk(id int64, text string, score float64) model.ScoredChunk {
	return model.ScoredChunk{
		Chunk: model.Chunk{ID: id, DocumentID: 1, Text: text},
		Score: score,
	}
}

func TestContextBuilder_HeaderFormat(t *testing.T) {
	b := NewContextBuilder(wordCounter{})

	built := b.Build([]model.ScoredChunk{
		rankedChunk(2, "second chunk body", 0.9),
		rankedChunk(3, "third chunk body", 0.5),
	})

	if !strings.HasPrefix(built.Text, "Contexto 1 [Rank: 1, Score: 0.9000]\nsecond chunk body") {
		t.Errorf("unexpected first block:\n%s", built.Text)
	}
	if !strings.Contains(built.Text, "\n\nContexto 2 [Rank: 2, Score: 0.5000]\nthird chunk body") {
		t.Errorf("unexpected second block:\n%s", built.Text)
	}
}

func TestContextBuilder_RankLabelsMatchOrder(t *testing.T) {
	b := NewContextBuilder(wordCounter{})

	chunks := []model.ScoredChunk{
		rankedChunk(9, "alpha", 3.2),
		rankedChunk(4, "beta", 1.1),
		rankedChunk(7, "gamma", 0.4),
	}
	built := b.Build(chunks)

	blocks := strings.Split(built.Text, "\n\n")
	if len(blocks) != len(chunks) {
		t.Fatalf("got %d blocks, want %d", len(blocks), len(chunks))
	}
	for i, block := range blocks {
		wantHeader := fmt.Sprintf("Contexto %d [Rank: %d, Score: %.4f]", i+1, i+1, chunks[i].Score)
		if !strings.HasPrefix(block, wantHeader) {
			t.Errorf("block %d header = %q, want prefix %q", i, block, wantHeader)
		}
		if !strings.HasSuffix(block, chunks[i].Chunk.Text) {
			t.Errorf("block %d missing chunk text %q", i, chunks[i].Chunk.Text)
		}
	}
}

func TestContextBuilder_EmptySentinel(t *testing.T) {
	b := NewContextBuilder(wordCounter{})

	built := b.Build(nil)
	if built.Text != "Não foram encontrados documentos relevantes para esta consulta específica." {
		t.Errorf("sentinel = %q", built.Text)
	}
	if built.Tokens != 0 {
		t.Errorf("Tokens = %d, want 0", built.Tokens)
	}
	if built.Length != len(built.Text) {
		t.Errorf("Length = %d, want %d", built.Length, len(built.Text))
	}
}

func TestContextBuilder_CountsChunkTokensOnly(t *testing.T) {
	b := NewContextBuilder(wordCounter{})

	built := b.Build([]model.ScoredChunk{
		rankedChunk(1, "one two three", 0.9),
		rankedChunk(2, "four five", 0.8),
	})

	if built.Tokens != 5 {
		t.Errorf("Tokens = %d, want 5 (headers excluded)", built.Tokens)
	}
	if built.Length != len(built.Text) {
		t.Errorf("Length = %d, want %d", built.Length, len(built.Text))
	}
}
