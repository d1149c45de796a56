package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// defaultSystemPrompt is used when no file override exists and configuration
// supplies nothing.
const defaultSystemPrompt = "Você é um assistente prestativo. Use o contexto fornecido para responder à pergunta do usuário. Responda em português brasileiro."

// PromptLoader serves the system prompt. Precedence: a system_prompt.txt file
// in promptsDir (hot-reloadable), then the configured string, then the
// built-in default. It caches the file in memory and supports reload without
// restarting.
type PromptLoader struct {
	promptsDir string
	configured string

	mu       sync.RWMutex
	fromFile string
}

// Compile-time check that PromptLoader implements SystemPromptSource.
var _ SystemPromptSource = (*PromptLoader)(nil)

// NewPromptLoader creates a PromptLoader. promptsDir may be empty, in which
// case only the configured string and the default are used.
func NewPromptLoader(promptsDir, configured string) (*PromptLoader, error) {
	pl := &PromptLoader{promptsDir: promptsDir, configured: configured}
	if promptsDir != "" {
		if err := pl.load(); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// load reads system_prompt.txt from disk. A missing file is not an error;
// the configured/default prompt applies.
func (p *PromptLoader) load() error {
	path := filepath.Join(p.promptsDir, "system_prompt.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.mu.Lock()
			p.fromFile = ""
			p.mu.Unlock()
			return nil
		}
		return fmt.Errorf("service.PromptLoader: read %s: %w", path, err)
	}

	p.mu.Lock()
	p.fromFile = strings.TrimSpace(string(data))
	p.mu.Unlock()
	return nil
}

// SystemPrompt returns the active system prompt.
func (p *PromptLoader) SystemPrompt() string {
	p.mu.RLock()
	fromFile := p.fromFile
	p.mu.RUnlock()

	if fromFile != "" {
		return fromFile
	}
	if p.configured != "" {
		return p.configured
	}
	return defaultSystemPrompt
}

// HotReload re-reads the prompt file from disk without restarting the server.
func (p *PromptLoader) HotReload() error {
	if p.promptsDir == "" {
		return nil
	}
	return p.load()
}
