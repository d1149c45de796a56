package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/connexus-ai/ragquery/internal/model"
)

// mockGenAIClient implements GenAIClient for testing.
type mockGenAIClient struct {
	response       string
	err            error
	capturedSystem string
	capturedUser   string
	capturedOpts   GenerateOpts
}

func (m *mockGenAIClient) GenerateContent(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOpts) (string, error) {
	m.capturedSystem = systemPrompt
	m.capturedUser = userPrompt
	m.capturedOpts = opts
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestGeneratorService_Success(t *testing.T) {
	client := &mockGenAIClient{response: "A cláusula de rescisão prevê 30 dias."}
	svc := NewGeneratorService(client, "gemini-test")

	got, err := svc.Generate(context.Background(), "system", "user prompt", GenerateOpts{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "A cláusula de rescisão prevê 30 dias." {
		t.Errorf("Generate() = %q", got)
	}
	if client.capturedSystem != "system" || client.capturedUser != "user prompt" {
		t.Errorf("prompts not passed through: %q / %q", client.capturedSystem, client.capturedUser)
	}
}

func TestGeneratorService_ClientErrorWrapsErrGeneration(t *testing.T) {
	client := &mockGenAIClient{err: fmt.Errorf("upstream 500")}
	svc := NewGeneratorService(client, "gemini-test")

	_, err := svc.Generate(context.Background(), "sys", "user", GenerateOpts{})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
}

func TestGeneratorService_OptsPassthrough(t *testing.T) {
	client := &mockGenAIClient{response: "ok"}
	svc := NewGeneratorService(client, "gemini-test")

	temp := 0.2
	opts := GenerateOpts{
		History:     []model.Message{{Role: "user", Content: "earlier turn"}},
		MaxTokens:   512,
		Temperature: &temp,
	}
	if _, err := svc.Generate(context.Background(), "sys", "user", opts); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if client.capturedOpts.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", client.capturedOpts.MaxTokens)
	}
	if client.capturedOpts.Temperature == nil || *client.capturedOpts.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", client.capturedOpts.Temperature)
	}
	if len(client.capturedOpts.History) != 1 || client.capturedOpts.History[0].Content != "earlier turn" {
		t.Errorf("History = %v", client.capturedOpts.History)
	}
}

func TestGeneratorService_Model(t *testing.T) {
	svc := NewGeneratorService(&mockGenAIClient{}, "gemini-test")
	if svc.Model() != "gemini-test" {
		t.Errorf("Model() = %q", svc.Model())
	}
}
