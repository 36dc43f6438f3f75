package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	MaxFileSize  int64
	AllowedTypes []string

	// Object storage
	FileStorageDir       string
	PublicBaseURL        string
	StorageSigningSecret string
	SignedURLTTL         time.Duration
	FetchTimeout         time.Duration

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// JWT Token Secrets
	AccessSecret  string
	RefreshSecret string

	// Model provider
	AIProvider      string // "gemini" (default) or "fake" for local development
	GeminiAPIKey    string
	GeminiTier      string
	ChatModel       string
	EmbeddingsModel string

	// Retrieval pipeline
	ChunkSize         int
	ChunkOverlap      int
	RetrieverTopK     int
	HistoryWindow     int // 0 keeps the whole conversation
	EmbedBatchSize    int
	IngestConcurrency int
	IngestLockTTL     time.Duration
	AsyncIndexing     bool

	// MongoDB Vector Search
	VectorSearchEnabled bool
	VectorIndexName     string
	VectorDimensions    int

	// Plan limits
	FreeQuestionLimit int
	ProQuestionLimit  int
	FreeDocumentLimit int
	ProDocumentLimit  int

	BillingWebhookSecret string

	// Telemetry
	OTLPEndpoint   string
	OTelSampleRate float64

	StaleIndexingAfter time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/saascribe"),
		DBName:       getEnv("DB_NAME", "saascribe"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf"), ","),

		FileStorageDir:       getEnv("FILE_STORAGE_DIR", "./storage"),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StorageSigningSecret: getEnv("STORAGE_SIGNING_SECRET", ""),
		SignedURLTTL:         getEnvDuration("SIGNED_URL_TTL", 15*time.Minute),
		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 60*time.Second),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),

		AIProvider:      getEnv("AI_PROVIDER", "gemini"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		ChatModel:       getEnv("CHAT_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),

		ChunkSize:         getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 200),
		RetrieverTopK:     getEnvInt("RETRIEVER_TOP_K", 4),
		HistoryWindow:     getEnvInt("HISTORY_WINDOW", 0),
		EmbedBatchSize:    getEnvInt("EMBED_BATCH_SIZE", 50),
		IngestConcurrency: getEnvInt("INGEST_CONCURRENCY", 5),
		IngestLockTTL:     getEnvDuration("INGEST_LOCK_TTL", 10*time.Minute),
		AsyncIndexing:     getEnvBool("ASYNC_INDEXING", false),

		VectorSearchEnabled: getEnvBool("VECTOR_SEARCH_ENABLED", false),
		VectorIndexName:     getEnv("VECTOR_INDEX_NAME", "vectors_embedding"),
		VectorDimensions:    getEnvInt("VECTOR_DIM", 768),

		FreeQuestionLimit: getEnvInt("FREE_QUESTION_LIMIT", 3),
		ProQuestionLimit:  getEnvInt("PRO_QUESTION_LIMIT", 100),
		FreeDocumentLimit: getEnvInt("FREE_DOCUMENT_LIMIT", 3),
		ProDocumentLimit:  getEnvInt("PRO_DOCUMENT_LIMIT", 30),

		BillingWebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelSampleRate: getEnvFloat64("OTEL_SAMPLE_RATIO", 0.1),

		StaleIndexingAfter: getEnvDuration("STALE_INDEXING_AFTER", 30*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required secrets and retrieval settings.
func (c *Config) Validate() error {
	if len(c.AccessSecret) < 32 || len(c.RefreshSecret) < 32 {
		return fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET are required (min 32 chars) - set them in .env file")
	}

	if c.StorageSigningSecret == "" {
		return fmt.Errorf("STORAGE_SIGNING_SECRET is required - set it in .env file")
	}

	if c.AIProvider != "fake" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
