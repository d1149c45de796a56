package gcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2/google"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// RerankerAdapter implements service.Reranker against the Vertex AI
// Discovery Engine Ranking API (a hosted cross-encoder). Scores are the raw
// model outputs: higher is more relevant, range is model-dependent.
type RerankerAdapter struct {
	client  *http.Client
	project string
	model   string
}

// Compile-time check.
var _ service.Reranker = (*RerankerAdapter)(nil)

// NewRerankerAdapter creates a RerankerAdapter using default credentials.
func NewRerankerAdapter(ctx context.Context, project, model string) (*RerankerAdapter, error) {
	client, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewRerankerAdapter: default credentials: %w", err)
	}
	if model == "" {
		model = "semantic-ranker-512@latest"
	}
	return &RerankerAdapter{
		client:  client,
		project: project,
		model:   model,
	}, nil
}

type rankRequest struct {
	Model                         string       `json:"model"`
	Query                         string       `json:"query"`
	Records                       []rankRecord `json:"records"`
	IgnoreRecordDetailsInResponse bool         `json:"ignoreRecordDetailsInResponse"`
}

type rankRecord struct {
	ID      string  `json:"id"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

type rankResponse struct {
	Records []rankRecord `json:"records"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Rerank scores each (query, chunk text) pair with the ranking model and
// returns the chunks ordered by score descending, ties broken by chunk id
// ascending. Retries 429s with the shared Vertex backoff schedule.
func (a *RerankerAdapter) Rerank(ctx context.Context, query string, chunks []model.Chunk) (model.RerankedList, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	return withRetry(ctx, "Rerank", func() (model.RerankedList, error) {
		return a.doRank(ctx, query, chunks)
	})
}

func (a *RerankerAdapter) doRank(ctx context.Context, query string, chunks []model.Chunk) (model.RerankedList, error) {
	url := fmt.Sprintf(
		"https://discoveryengine.googleapis.com/v1/projects/%s/locations/global/rankingConfigs/default_ranking_config:rank",
		a.project,
	)

	records := make([]rankRecord, len(chunks))
	byID := make(map[int64]model.Chunk, len(chunks))
	for i, c := range chunks {
		records[i] = rankRecord{
			ID:      strconv.FormatInt(c.ID, 10),
			Content: c.Text,
		}
		byID[c.ID] = c
	}

	bodyBytes, err := json.Marshal(rankRequest{
		Model:                         a.model,
		Query:                         query,
		Records:                       records,
		IgnoreRecordDetailsInResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Rerank: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Rerank: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Rerank: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Rerank: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gcpclient.Rerank: status %d: %s", resp.StatusCode, respBody)
	}

	var rankResp rankResponse
	if err := json.Unmarshal(respBody, &rankResp); err != nil {
		return nil, fmt.Errorf("gcpclient.Rerank: decode: %w", err)
	}
	if rankResp.Error != nil {
		return nil, fmt.Errorf("gcpclient.Rerank: API error %d: %s", rankResp.Error.Code, rankResp.Error.Message)
	}

	ranked := make(model.RerankedList, 0, len(rankResp.Records))
	for _, rec := range rankResp.Records {
		id, err := strconv.ParseInt(rec.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gcpclient.Rerank: unexpected record id %q", rec.ID)
		}
		chunk, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("gcpclient.Rerank: record id %d not in request", id)
		}
		ranked = append(ranked, model.ScoredChunk{Chunk: chunk, Score: rec.Score})
	}

	ranked.SortStable()
	return ranked, nil
}

// HealthCheck validates the ranking endpoint with a one-record call.
func (a *RerankerAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.doRank(ctx, "health check", []model.Chunk{{ID: 1, Text: "health check"}})
	if err != nil {
		return fmt.Errorf("reranker health check failed: %w", err)
	}
	return nil
}
