package service

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens for diagnostics. It uses the cl100k_base BPE
// encoding regardless of which generation model is configured, an
// approximation that is fine for counting but not for billing. When the
// encoding cannot be loaded, counting degrades to whitespace splitting.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer creates a Tokenizer, falling back to whitespace counting when
// the BPE encoding is unavailable.
func NewTokenizer() *Tokenizer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tokenizer encoding unavailable, falling back to whitespace count", "error", err)
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

// Encode returns the token ids for text, or nil in fallback mode.
func (t *Tokenizer) Encode(text string) []int {
	if t.enc == nil || text == "" {
		return nil
	}
	return t.enc.Encode(text, nil, nil)
}

// Count returns the token count for text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc == nil {
		return len(strings.Fields(text))
	}
	return len(t.enc.Encode(text, nil, nil))
}
