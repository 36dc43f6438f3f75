// Package app assembles the retrieval pipeline and its adapters from
// configuration. The API server, the worker and the ops CLI share it.
package app

import (
	"context"
	"fmt"
	"time"

	"saascribe-platform/internal/ai"
	"saascribe-platform/internal/config"
	"saascribe-platform/internal/database"
	"saascribe-platform/internal/lock"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/quota"
	"saascribe-platform/internal/rag"
	"saascribe-platform/internal/telemetry"
	"saascribe-platform/internal/vectorstore"
	"saascribe-platform/services"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	Config  *config.Config
	Mongo   *mongo.Client
	Redis   *redis.Client
	Store   *database.Store
	Storage *services.FileStorage
	Metrics *telemetry.Metrics
	Gate    *quota.Gate

	Index    *rag.Index
	Ingestor *rag.Ingestor
	Engine   *rag.QueryEngine

	closers []func()
}

// New connects to MongoDB and Redis and builds the pipeline. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return nil, err
	}
	a.Mongo = mongoClient
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	})

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() { rdb.Close() })

	db := mongoClient.Database(cfg.DBName)
	a.Store = database.NewStore(db)

	a.Storage, err = services.NewFileStorage(cfg.FileStorageDir, cfg.PublicBaseURL, cfg.StorageSigningSecret, cfg.SignedURLTTL)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder, chat, err := a.providers(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Gate = quota.NewGate(quota.Limits{
		FreeQuestions: cfg.FreeQuestionLimit,
		ProQuestions:  cfg.ProQuestionLimit,
		FreeDocuments: cfg.FreeDocumentLimit,
		ProDocuments:  cfg.ProDocumentLimit,
	})

	vectors := vectorstore.NewMongo(db, cfg.VectorSearchEnabled, cfg.VectorIndexName)
	a.Index = rag.NewIndex(vectors, embedder, cfg.EmbedBatchSize, cfg.IngestConcurrency)
	a.Ingestor = rag.NewIngestor(
		a.Store.Documents,
		rag.NewHTTPFetcher(a.Storage, cfg.FetchTimeout, cfg.MaxFileSize),
		rag.NewSegmenter(rag.PDFParser{}, rag.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)),
		a.Index,
		lock.NewRedisLocker(rdb),
		rag.WithStateRecorder(a.Store.Documents),
		rag.WithIngestMetrics(metrics),
		rag.WithLockTTL(cfg.IngestLockTTL),
	)
	a.Engine = rag.NewQueryEngine(a.Ingestor, a.Index, rag.NewSynthesizer(chat, cfg.HistoryWindow), cfg.RetrieverTopK, metrics)

	return a, nil
}

func (a *App) providers(ctx context.Context) (rag.Embedder, rag.ChatModel, error) {
	if a.Config.AIProvider == "fake" {
		logger.Warn("Using offline fake model provider")
		return ai.HashEmbedder{Dim: a.Config.VectorDimensions}, ai.ExtractiveChatModel{}, nil
	}

	gemini, err := ai.NewGeminiClient(ctx, a.Config.GeminiAPIKey, a.Config.GeminiTier, a.Config.ChatModel, a.Config.EmbeddingsModel, a.Metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	a.closers = append(a.closers, func() { gemini.Close() })
	return gemini, gemini, nil
}

func (a *App) ChatService() *services.ChatService {
	return services.NewChatService(a.Store.Documents, a.Store.Chats, a.Store.Users, a.Gate, a.Engine, a.Metrics)
}

func (a *App) ExportService() *services.ExportService {
	return services.NewExportService(a.Store.Documents, a.Store.Chats)
}

func (a *App) BillingService() *services.BillingService {
	return services.NewBillingService(a.Store.Users, a.Config.BillingWebhookSecret)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
