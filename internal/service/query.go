package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragquery/internal/model"
)

// User-visible canned responses.
const (
	// EmptyQueryResponse is returned on the preparer short-circuit.
	EmptyQueryResponse = "I didn't understand your query. Could you rephrase?"
	// InternalErrorResponse is returned on any non-recoverable downstream failure.
	InternalErrorResponse = "Sorry, an internal error occurred processing your query."
)

// QueryEmbedder abstracts query embedding for testability.
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearcher abstracts similarity search over the chunk store.
type VectorSearcher interface {
	FindSimilar(ctx context.Context, queryVec []float32, limit int, filterDocIDs []int64) (model.RankedList, error)
}

// LexicalSearcher abstracts full-text search over the chunk store.
type LexicalSearcher interface {
	FindByKeyword(ctx context.Context, query string, limit int, filterDocIDs []int64) (model.RankedList, error)
}

// Generator abstracts answer generation for testability.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOpts) (string, error)
}

// EmbeddingCache abstracts the query-vector cache. A nil cache disables caching.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

// QueryMetrics receives pipeline-stage observations. A nil value disables
// metric recording; recording never blocks the result path.
type QueryMetrics interface {
	ObservePipelineStage(stage string, seconds float64)
	IncRerankerDegraded()
}

// QueryHasher produces the cache key for a cleaned query.
type QueryHasher func(query string) string

// QueryConfig holds the pipeline tuning knobs.
type QueryConfig struct {
	MaxResults             int // final context size N
	InitialFetchMultiplier int // per-arm over-fetch = N × multiplier
	RRFK                   int
	RerankerEnabled        bool
	EmbeddingDimensions    int

	// Per-call timeouts; zero disables the individual deadline.
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	RerankTimeout   time.Duration
	GenerateTimeout time.Duration
}

// QueryService orchestrates the retrieval-augmented query pipeline:
// prepare → embed → (vector ‖ lexical) search → RRF → rerank → context →
// prompt → generate → assemble. It holds no mutable per-request state.
type QueryService struct {
	preparer  *Preparer
	embedder  QueryEmbedder
	vector    VectorSearcher
	lexical   LexicalSearcher
	reranker  Reranker
	generator Generator

	contextBuilder *ContextBuilder
	promptBuilder  *PromptBuilder
	counter        TokenCounter

	cache   EmbeddingCache
	hashKey QueryHasher
	metrics QueryMetrics

	cfg QueryConfig
}

// NewQueryService creates a QueryService with all collaborators injected.
// reranker may be nil when re-ranking is disabled.
func NewQueryService(
	embedder QueryEmbedder,
	vector VectorSearcher,
	lexical LexicalSearcher,
	reranker Reranker,
	generator Generator,
	promptSource SystemPromptSource,
	counter TokenCounter,
	cfg QueryConfig,
) *QueryService {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 4
	}
	if cfg.InitialFetchMultiplier <= 0 {
		cfg.InitialFetchMultiplier = 4
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = defaultRRFK
	}
	return &QueryService{
		preparer:       NewPreparer(),
		embedder:       embedder,
		vector:         vector,
		lexical:        lexical,
		reranker:       reranker,
		generator:      generator,
		contextBuilder: NewContextBuilder(counter),
		promptBuilder:  NewPromptBuilder(promptSource, counter),
		counter:        counter,
		cfg:            cfg,
	}
}

// SetEmbeddingCache attaches a query-vector cache (called during wiring).
func (s *QueryService) SetEmbeddingCache(cache EmbeddingCache, hashKey QueryHasher) {
	s.cache = cache
	s.hashKey = hashKey
}

// SetMetrics attaches a pipeline metrics sink.
func (s *QueryService) SetMetrics(m QueryMetrics) {
	s.metrics = m
}

// Answer runs the full pipeline for one request.
//
// The preparer short-circuit returns a canned QueryResult with a nil error.
// Any other failure returns a nil result and an error wrapping one of the
// sentinel kinds in errors.go, except cancellation of ctx, which returns
// ctx.Err() itself. The reranker is the one stage whose failure is not
// returned: it degrades to the fused order and still produces an answer.
func (s *QueryService) Answer(ctx context.Context, req model.QueryRequest) (*model.QueryResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean, err := s.preparer.Prepare(req.Query)
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			slog.Warn("[QUERY] empty query after cleaning", "raw_length", len(req.Query))
			return &model.QueryResult{Answer: EmptyQueryResponse}, nil
		}
		return nil, fmt.Errorf("service.Answer: prepare: %w", err)
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	initialLimit := limit * s.cfg.InitialFetchMultiplier

	// 1. Embed the cleaned query.
	queryVec, err := s.embedQuery(ctx, clean)
	if err != nil {
		return nil, err
	}

	// 2. Vector and lexical search run concurrently; both arms must succeed.
	vectorResults, lexicalResults, err := s.retrieve(ctx, clean, queryVec, initialLimit, req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	// 3. Fuse. Pure CPU, deterministic.
	rrfStart := time.Now()
	fused := reciprocalRankFusion([]model.RankedList{vectorResults, lexicalResults}, s.cfg.RRFK)
	slog.Info("[QUERY] rrf fused",
		"vector_candidates", len(vectorResults),
		"lexical_candidates", len(lexicalResults),
		"unique_chunks", len(fused.Chunks),
		"k", s.cfg.RRFK,
		"duration_ms", time.Since(rrfStart).Milliseconds(),
	)

	// 4. Rerank, degrading to the fused order on failure.
	ranked, degraded := s.rerank(ctx, clean, fused)

	// 5. Final cut.
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	// 6. Context and prompt.
	builtCtx := s.contextBuilder.Build(ranked)
	prompt := s.promptBuilder.Build(builtCtx.Text, req.Query)

	// 7. Generate.
	genCtx, cancel := callContext(ctx, s.cfg.GenerateTimeout)
	genStart := time.Now()
	answer, err := s.generator.Generate(genCtx, prompt.System, prompt.User, GenerateOpts{})
	cancel()
	s.observe("generate", genStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("service.Answer: %w", err)
	}
	responseTokens := s.counter.Count(answer)

	// 8. Assemble.
	result := &model.QueryResult{
		Answer:         answer,
		ProcessingTime: time.Since(start).Seconds(),
	}
	if req.IncludeDebug {
		result.Debug = assembleDebug(req.Query, clean, ranked, fused.FusedScore,
			builtCtx, prompt.Tokens, responseTokens, initialLimit, degraded)
	}

	slog.Info("[QUERY] pipeline complete",
		"final_chunks", len(ranked),
		"reranker_degraded", degraded,
		"processing_time_s", fmt.Sprintf("%.2f", result.ProcessingTime),
	)
	return result, nil
}

// embedQuery produces the query vector, consulting the cache first. A zero
// vector from the provider is treated as a failure; it must never reach
// retrieval.
func (s *QueryService) embedQuery(ctx context.Context, clean string) ([]float32, error) {
	var key string
	if s.cache != nil && s.hashKey != nil {
		key = s.hashKey(clean)
		if vec, ok := s.cache.Get(ctx, key); ok {
			return vec, nil
		}
	}

	embedCtx, cancel := callContext(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	embedStart := time.Now()
	vecs, err := s.embedder.Embed(embedCtx, []string{clean})
	s.observe("embed", embedStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("service.Answer: embed: %w: %w", ErrEmbeddingUnavailable, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 || isZeroVector(vecs[0]) {
		return nil, fmt.Errorf("service.Answer: embed: %w: provider returned a zero vector", ErrEmbeddingUnavailable)
	}
	if s.cfg.EmbeddingDimensions > 0 && len(vecs[0]) != s.cfg.EmbeddingDimensions {
		return nil, fmt.Errorf("service.Answer: embed: %w: vector has %d dimensions, want %d",
			ErrEmbeddingUnavailable, len(vecs[0]), s.cfg.EmbeddingDimensions)
	}

	if s.cache != nil && key != "" {
		s.cache.Set(ctx, key, vecs[0])
	}
	return vecs[0], nil
}

// retrieve runs both search arms concurrently and collects both before
// returning. Any error from either arm fails the request; there is no
// partial-fusion fallback.
func (s *QueryService) retrieve(ctx context.Context, clean string, queryVec []float32, initialLimit int, filterDocIDs []int64) (model.RankedList, model.RankedList, error) {
	var vectorResults, lexicalResults model.RankedList

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		callCtx, cancel := callContext(gCtx, s.cfg.SearchTimeout)
		defer cancel()
		stageStart := time.Now()
		results, err := s.vector.FindSimilar(callCtx, queryVec, initialLimit, filterDocIDs)
		s.observe("vector_search", stageStart)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVectorSearch, err)
		}
		vectorResults = results
		return nil
	})

	g.Go(func() error {
		callCtx, cancel := callContext(gCtx, s.cfg.SearchTimeout)
		defer cancel()
		stageStart := time.Now()
		results, err := s.lexical.FindByKeyword(callCtx, clean, initialLimit, filterDocIDs)
		s.observe("lexical_search", stageStart)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLexicalSearch, err)
		}
		lexicalResults = results
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("service.Answer: retrieve: %w", err)
	}
	return vectorResults, lexicalResults, nil
}

// rerank re-scores the fused candidates. When the reranker is disabled or
// fails, the fused order stands (with fused scores) and degraded is true;
// the answer is still produced.
func (s *QueryService) rerank(ctx context.Context, clean string, fused model.FusedResult) (model.RerankedList, bool) {
	if len(fused.Chunks) == 0 {
		return nil, false
	}

	fallback := func() model.RerankedList {
		out := make(model.RerankedList, len(fused.Chunks))
		for i, c := range fused.Chunks {
			out[i] = model.ScoredChunk{Chunk: c, Score: fused.FusedScore[c.ID]}
		}
		return out
	}

	if !s.cfg.RerankerEnabled || s.reranker == nil {
		if s.metrics != nil {
			s.metrics.IncRerankerDegraded()
		}
		return fallback(), true
	}

	callCtx, cancel := callContext(ctx, s.cfg.RerankTimeout)
	defer cancel()

	stageStart := time.Now()
	ranked, err := s.reranker.Rerank(callCtx, clean, fused.Chunks)
	s.observe("rerank", stageStart)
	if err != nil {
		slog.Warn("[QUERY] reranker failed, falling back to fused order",
			"candidates", len(fused.Chunks),
			"error", fmt.Errorf("%w: %w", ErrReranker, err).Error(),
		)
		if s.metrics != nil {
			s.metrics.IncRerankerDegraded()
		}
		return fallback(), true
	}

	ranked.SortStable()
	return ranked, false
}

func (s *QueryService) observe(stage string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObservePipelineStage(stage, time.Since(start).Seconds())
	}
}

// assembleDebug builds the typed diagnostics structure.
func assembleDebug(
	rawQuery, clean string,
	final model.RerankedList,
	fusedScores map[int64]float64,
	builtCtx BuiltContext,
	promptTokens, responseTokens, initialLimit int,
	degraded bool,
) *model.DebugInfo {
	ids := make([]int64, len(final))
	rerankScores := make(map[int64]float64, len(final))
	finalRRF := make(map[int64]float64, len(final))
	details := make([]model.ChunkDetail, len(final))

	for i, sc := range final {
		ids[i] = sc.Chunk.ID
		rerankScores[sc.Chunk.ID] = sc.Score

		detail := model.ChunkDetail{
			ID:            sc.Chunk.ID,
			DocID:         sc.Chunk.DocumentID,
			Page:          sc.Chunk.PageNumber,
			Pos:           sc.Chunk.Position,
			TextContent:   sc.Chunk.Text,
			FinalRank:     i + 1,
			RerankerScore: sc.Score,
		}
		if rrf, ok := fusedScores[sc.Chunk.ID]; ok {
			finalRRF[sc.Chunk.ID] = rrf
			detail.RRFScore = &rrf
		}
		details[i] = detail
	}

	return &model.DebugInfo{
		Query:                        rawQuery,
		CleanQuery:                   clean,
		NumResults:                   len(final),
		RetrievedChunkIDsAfterRerank: ids,
		RetrievedRerankerScores:      rerankScores,
		RetrievedRRFScores:           finalRRF,
		ContextUsedLength:            builtCtx.Length,
		ContextUsedTokens:            builtCtx.Tokens,
		PromptTokens:                 promptTokens,
		ResponseTokens:               responseTokens,
		InitialSearchLimit:           initialLimit,
		RerankerDegraded:             degraded,
		FinalChunkDetails:            details,
	}
}

// callContext derives a per-call deadline; a non-positive timeout means the
// parent context alone governs the call.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
