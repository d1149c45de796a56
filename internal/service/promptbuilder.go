package service

import (
	"fmt"
)

// SystemPromptSource abstracts where the system prompt comes from (a
// configuration string, a hot-reloadable file; see PromptLoader).
type SystemPromptSource interface {
	SystemPrompt() string
}

// BuiltPrompt is the two-role prompt plus its token count.
type BuiltPrompt struct {
	System string
	User   string
	Tokens int // system + user
}

// PromptBuilder assembles the system and user prompt for generation.
type PromptBuilder struct {
	source  SystemPromptSource
	counter TokenCounter
}

// NewPromptBuilder creates a PromptBuilder.
func NewPromptBuilder(source SystemPromptSource, counter TokenCounter) *PromptBuilder {
	return &PromptBuilder{source: source, counter: counter}
}

// Build produces the prompt. The user role carries the context and the
// ORIGINAL raw query. Retrieval uses the cleaned form, but the generator
// should see the user's own phrasing.
func (b *PromptBuilder) Build(context string, rawQuery string) BuiltPrompt {
	system := b.source.SystemPrompt()
	user := fmt.Sprintf("Contexto:\n%s\n\nPergunta: %s", context, rawQuery)
	return BuiltPrompt{
		System: system,
		User:   user,
		Tokens: b.counter.Count(system) + b.counter.Count(user),
	}
}
