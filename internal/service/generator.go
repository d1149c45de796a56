package service

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/connexus-ai/ragquery/internal/model"
)

// GenerateOpts configures a single generation call. Zero values mean
// "provider default". History is plumbed through for callers that carry
// prior turns; the query pipeline never populates it.
type GenerateOpts struct {
	History     []model.Message
	MaxTokens   int
	Temperature *float64
}

// GenAIClient abstracts the generation model for testability.
type GenAIClient interface {
	GenerateContent(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOpts) (string, error)
}

// GeneratorService produces the answer string from an assembled prompt.
// The generation call is the slowest external hop in the pipeline.
type GeneratorService struct {
	client GenAIClient
	model  string
}

// NewGeneratorService creates a GeneratorService.
func NewGeneratorService(client GenAIClient, model string) *GeneratorService {
	return &GeneratorService{client: client, model: model}
}

// Model returns the configured model name.
func (s *GeneratorService) Model() string {
	return s.model
}

// Generate invokes the model with the two-role prompt and returns its text.
// Failures wrap ErrGeneration.
func (s *GeneratorService) Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOpts) (string, error) {
	start := time.Now()

	text, err := s.client.GenerateContent(ctx, systemPrompt, userPrompt, opts)
	if err != nil {
		return "", fmt.Errorf("service.Generate: %w: %w", ErrGeneration, err)
	}

	slog.Info("[GENERATOR] response produced",
		"model", s.model,
		"response_length", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
