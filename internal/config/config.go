package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int

	GCPProject        string
	GCPRegion         string
	VertexAILocation  string
	VertexAIModel     string
	EmbeddingLocation string
	EmbeddingModel    string
	RerankerModel     string

	EmbeddingDimensions int
	TextSearchConfig    string

	// Query pipeline knobs.
	MaxResults             int
	InitialFetchMultiplier int
	RRFK                   int
	RerankerEnabled        bool
	SystemPrompt           string
	PromptsDir             string

	// Per-collaborator call timeouts.
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	RerankTimeout   time.Duration
	GenerateTimeout time.Duration

	// Ingestion.
	GCSBucketName       string
	DocAIProcessorID    string
	DocAILocation       string
	ChunkSizeTokens     int
	ChunkOverlapPercent int

	// Embedding cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FirebaseProjectID  string
	FrontendURL        string
	InternalAuthSecret string
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL, GOOGLE_CLOUD_PROJECT) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		GCPProject:        gcpProject,
		GCPRegion:         envStr("GCP_REGION", "us-east4"),
		VertexAILocation:  envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:     envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		RerankerModel:     envStr("VERTEX_AI_RERANKER_MODEL", "semantic-ranker-512@latest"),

		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),
		TextSearchConfig:    envStr("TEXT_SEARCH_CONFIG", "portuguese"),

		MaxResults:             envInt("MAX_RESULTS", 4),
		InitialFetchMultiplier: envInt("INITIAL_FETCH_MULTIPLIER", 4),
		RRFK:                   envInt("RRF_K", 60),
		RerankerEnabled:        envBool("RERANKER_ENABLED", true),
		SystemPrompt:           envStr("SYSTEM_PROMPT", ""),
		PromptsDir:             envStr("PROMPTS_DIR", "./internal/service/prompts"),

		EmbedTimeout:    envDurationMs("EMBED_TIMEOUT_MS", 10_000),
		SearchTimeout:   envDurationMs("SEARCH_TIMEOUT_MS", 5_000),
		RerankTimeout:   envDurationMs("RERANK_TIMEOUT_MS", 10_000),
		GenerateTimeout: envDurationMs("GENERATE_TIMEOUT_MS", 60_000),

		GCSBucketName:       envStr("GCS_BUCKET_NAME", ""),
		DocAIProcessorID:    envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocAILocation:       envStr("DOCUMENT_AI_LOCATION", "us"),
		ChunkSizeTokens:     envInt("CHUNK_SIZE_TOKENS", 768),
		ChunkOverlapPercent: envInt("CHUNK_OVERLAP_PERCENT", 20),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		FirebaseProjectID:  envStr("FIREBASE_PROJECT_ID", ""),
		FrontendURL:        envStr("FRONTEND_URL", "http://localhost:3000"),
		InternalAuthSecret: envStr("INTERNAL_AUTH_SECRET", ""),
	}

	if cfg.MaxResults <= 0 {
		return nil, fmt.Errorf("config.Load: MAX_RESULTS must be positive, got %d", cfg.MaxResults)
	}
	if cfg.InitialFetchMultiplier <= 0 {
		return nil, fmt.Errorf("config.Load: INITIAL_FETCH_MULTIPLIER must be positive, got %d", cfg.InitialFetchMultiplier)
	}
	if cfg.RRFK <= 0 {
		return nil, fmt.Errorf("config.Load: RRF_K must be positive, got %d", cfg.RRFK)
	}
	if cfg.EmbeddingDimensions <= 0 {
		return nil, fmt.Errorf("config.Load: EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingDimensions)
	}

	// Internal auth secret is required in non-development environments
	if cfg.Environment != "development" && cfg.InternalAuthSecret == "" {
		return nil, fmt.Errorf("config.Load: INTERNAL_AUTH_SECRET is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDurationMs(key string, fallbackMs int) time.Duration {
	return time.Duration(envInt(key, fallbackMs)) * time.Millisecond
}
