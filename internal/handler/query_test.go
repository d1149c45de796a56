package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/connexus-ai/ragquery/internal/model"
	"github.com/connexus-ai/ragquery/internal/service"
)

// mockPipeline implements QueryAnswerer for testing.
type mockPipeline struct {
	result      *model.QueryResult
	err         error
	capturedReq model.QueryRequest
}

func (m *mockPipeline) Answer(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	m.capturedReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func postQuery(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQuery_Success(t *testing.T) {
	pipeline := &mockPipeline{
		result: &model.QueryResult{Answer: "the answer", ProcessingTime: 1.25},
	}
	h := Query(pipeline)

	rec := postQuery(t, h, `{"query": "what is the notice period?", "max_results": 3, "include_debug": true, "document_ids": [7, 9]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", rec.Code, rec.Body.String())
	}

	var resp model.QueryResult
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Answer != "the answer" {
		t.Errorf("response = %q", resp.Answer)
	}
	if resp.ProcessingTime != 1.25 {
		t.Errorf("processing_time = %f", resp.ProcessingTime)
	}

	// Request fields reached the pipeline intact.
	got := pipeline.capturedReq
	if got.Query != "what is the notice period?" || got.MaxResults != 3 || !got.IncludeDebug {
		t.Errorf("captured request = %+v", got)
	}
	if len(got.DocumentIDs) != 2 || got.DocumentIDs[0] != 7 {
		t.Errorf("document_ids = %v", got.DocumentIDs)
	}
}

func TestQuery_ShortCircuitResponse(t *testing.T) {
	pipeline := &mockPipeline{
		result: &model.QueryResult{Answer: service.EmptyQueryResponse},
	}
	h := Query(pipeline)

	rec := postQuery(t, h, `{"query": "   "}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["response"] != service.EmptyQueryResponse {
		t.Errorf("response = %v", resp["response"])
	}
	if _, ok := resp["processing_time"]; ok {
		t.Error("processing_time must be omitted on the short-circuit path")
	}
}

func TestQuery_PipelineFailure(t *testing.T) {
	for _, kind := range []error{
		service.ErrEmbeddingUnavailable,
		service.ErrVectorSearch,
		service.ErrLexicalSearch,
		service.ErrGeneration,
	} {
		pipeline := &mockPipeline{err: fmt.Errorf("wrapped: %w", kind)}
		h := Query(pipeline)

		rec := postQuery(t, h, `{"query": "boom"}`)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%v: status = %d, want 500", kind, rec.Code)
		}
		var resp map[string]any
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["response"] != service.InternalErrorResponse {
			t.Errorf("%v: response = %v", kind, resp["response"])
		}
	}
}

func TestQuery_MalformedBody(t *testing.T) {
	h := Query(&mockPipeline{})

	rec := postQuery(t, h, `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQuery_CancelledWritesNothing(t *testing.T) {
	pipeline := &mockPipeline{err: context.Canceled}
	h := Query(pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "slow"}`))
	req = req.WithContext(ctx)
	cancel()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty on cancellation", rec.Body.String())
	}
}

func TestQuery_DebugPassthrough(t *testing.T) {
	pipeline := &mockPipeline{
		result: &model.QueryResult{
			Answer:         "debug answer",
			ProcessingTime: 0.5,
			Debug: &model.DebugInfo{
				CleanQuery:                   "debug query",
				NumResults:                   2,
				RetrievedChunkIDsAfterRerank: []int64{4, 2},
				RerankerDegraded:             true,
			},
		},
	}
	h := Query(pipeline)

	rec := postQuery(t, h, `{"query": "debug query", "include_debug": true}`)

	var resp model.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Debug == nil {
		t.Fatal("debug missing from response")
	}
	if !resp.Debug.RerankerDegraded || resp.Debug.NumResults != 2 {
		t.Errorf("debug = %+v", resp.Debug)
	}
}
