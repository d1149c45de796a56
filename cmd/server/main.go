package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragquery/internal/cache"
	"github.com/connexus-ai/ragquery/internal/config"
	"github.com/connexus-ai/ragquery/internal/gcpclient"
	"github.com/connexus-ai/ragquery/internal/handler"
	"github.com/connexus-ai/ragquery/internal/middleware"
	"github.com/connexus-ai/ragquery/internal/repository"
	"github.com/connexus-ai/ragquery/internal/router"
	"github.com/connexus-ai/ragquery/internal/service"
)

const Version = "0.1.0"

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Storage layer ---
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	chunkRepo := repository.NewChunkRepo(pool)
	lexicalRepo := repository.NewLexicalRepo(pool, cfg.TextSearchConfig)
	docRepo := repository.NewDocumentRepo(pool)

	// --- External model adapters ---
	embeddingAdapter, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		return err
	}

	genAdapter, err := gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		return err
	}
	defer genAdapter.Close()

	var reranker service.Reranker
	var rerankerChecker handler.HealthChecker
	if cfg.RerankerEnabled {
		rerankerAdapter, err := gcpclient.NewRerankerAdapter(ctx, cfg.GCPProject, cfg.RerankerModel)
		if err != nil {
			return err
		}
		reranker = rerankerAdapter
		rerankerChecker = rerankerAdapter
	}

	// --- Services ---
	embedder := service.NewEmbedderService(embeddingAdapter, chunkRepo, cfg.EmbeddingDimensions)
	generator := service.NewGeneratorService(genAdapter, cfg.VertexAIModel)
	tokenizer := service.NewTokenizer()

	promptLoader, err := service.NewPromptLoader(cfg.PromptsDir, cfg.SystemPrompt)
	if err != nil {
		return err
	}

	// The adapter embeds queries with the RETRIEVAL_QUERY task type;
	// EmbedderService is the document-side (RETRIEVAL_DOCUMENT) path.
	queryService := service.NewQueryService(
		embeddingAdapter, chunkRepo, lexicalRepo, reranker, generator,
		promptLoader, tokenizer,
		service.QueryConfig{
			MaxResults:             cfg.MaxResults,
			InitialFetchMultiplier: cfg.InitialFetchMultiplier,
			RRFK:                   cfg.RRFK,
			RerankerEnabled:        cfg.RerankerEnabled,
			EmbeddingDimensions:    cfg.EmbeddingDimensions,
			EmbedTimeout:           cfg.EmbedTimeout,
			SearchTimeout:          cfg.SearchTimeout,
			RerankTimeout:          cfg.RerankTimeout,
			GenerateTimeout:        cfg.GenerateTimeout,
		},
	)

	// Query-embedding cache: Redis when configured, in-process otherwise.
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisEmbeddingCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cache.DefaultEmbeddingTTL())
		if err != nil {
			return err
		}
		defer redisCache.Close()
		queryService.SetEmbeddingCache(redisCache, cache.EmbeddingQueryHash)
	} else {
		memCache := cache.NewEmbeddingCache(cache.DefaultEmbeddingTTL())
		defer memCache.Stop()
		queryService.SetEmbeddingCache(memCache, cache.EmbeddingQueryHash)
	}

	// --- Ingestion pipeline ---
	storageAdapter, err := gcpclient.NewStorageAdapter(ctx)
	if err != nil {
		return err
	}
	defer storageAdapter.Close()

	var parser service.Parser
	if cfg.DocAIProcessorID != "" {
		docAI, err := gcpclient.NewDocumentAIAdapter(ctx, cfg.GCPProject, cfg.DocAILocation)
		if err != nil {
			return err
		}
		defer docAI.Close()
		processor := fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.GCPProject, cfg.DocAILocation, cfg.DocAIProcessorID)
		parser = service.NewParserService(docAI, processor, storageAdapter, cfg.GCSBucketName)
	} else {
		// No Document AI processor configured — plain-text extraction only.
		parser = gcpclient.NewTextParser(storageAdapter)
	}

	chunker := service.NewChunkerService(cfg.ChunkSizeTokens, float64(cfg.ChunkOverlapPercent)/100)
	pipeline := service.NewPipelineService(docRepo, parser, chunker, embedder, cfg.GCSBucketName)

	// --- Auth ---
	var authService *service.AuthService
	if cfg.FirebaseProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID})
		if err != nil {
			return fmt.Errorf("firebase init: %w", err)
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("firebase auth client: %w", err)
		}
		authService = service.NewAuthService(authClient)
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)
	queryService.SetMetrics(metrics)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 60,
		Window:      time.Minute,
	})
	defer limiter.Stop()

	// --- Router ---
	mux := router.New(&router.Dependencies{
		DB:                 pool,
		AuthService:        authService,
		FrontendURL:        cfg.FrontendURL,
		Version:            Version,
		Metrics:            metrics,
		MetricsReg:         reg,
		InternalAuthSecret: cfg.InternalAuthSecret,
		QueryPipeline:      queryService,
		DocDeps: handler.DocDeps{
			DocRepo:    docRepo,
			Uploader:   storageAdapter,
			BucketName: cfg.GCSBucketName,
		},
		IngestDeps: handler.IngestDeps{
			DocRepo:  docRepo,
			Pipeline: pipeline,
		},
		HealthCheckers: map[string]handler.HealthChecker{
			"embedder":  embeddingAdapter,
			"generator": genAdapter,
			"reranker":  rerankerChecker,
		},
		GeneralRateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second, // must exceed the query route timeout
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ragquery starting",
			"version", Version,
			"port", cfg.Port,
			"environment", cfg.Environment,
			"reranker_enabled", cfg.RerankerEnabled,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
