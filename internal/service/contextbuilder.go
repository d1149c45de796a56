package service

import (
	"fmt"
	"strings"

	"github.com/connexus-ai/ragquery/internal/model"
)

// emptyContextSentinel is returned as the whole context when no chunk
// survived ranking.
const emptyContextSentinel = "Não foram encontrados documentos relevantes para esta consulta específica."

// TokenCounter abstracts token counting for the context and prompt builders.
type TokenCounter interface {
	Count(text string) int
}

// BuiltContext is the assembled context window plus its measurements.
type BuiltContext struct {
	Text   string
	Length int // characters
	Tokens int // token count of the chunk texts (headers excluded)
}

// ContextBuilder formats the top-ranked chunks into the bounded context
// window fed to the generator.
type ContextBuilder struct {
	counter TokenCounter
}

// NewContextBuilder creates a ContextBuilder.
func NewContextBuilder(counter TokenCounter) *ContextBuilder {
	return &ContextBuilder{counter: counter}
}

// Build concatenates the chunk texts in order, each under a one-line header
// carrying its final rank and score, separated by a blank line:
//
//	Contexto 1 [Rank: 1, Score: 0.9000]
//	<chunk text>
//
//	Contexto 2 [Rank: 2, Score: 0.5000]
//	<chunk text>
//
// The score in the header is the score the chunk was finally ordered by:
// the rerank score, or the fused score when the reranker is degraded.
func (b *ContextBuilder) Build(final []model.ScoredChunk) BuiltContext {
	if len(final) == 0 {
		return BuiltContext{
			Text:   emptyContextSentinel,
			Length: len(emptyContextSentinel),
		}
	}

	var sb strings.Builder
	tokens := 0
	for i, sc := range final {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Contexto %d [Rank: %d, Score: %.4f]\n", i+1, i+1, sc.Score)
		sb.WriteString(sc.Chunk.Text)
		tokens += b.counter.Count(sc.Chunk.Text)
	}

	text := sb.String()
	return BuiltContext{Text: text, Length: len(text), Tokens: tokens}
}
