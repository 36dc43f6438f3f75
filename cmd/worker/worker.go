package main

import (
	"context"
	"log"

	"saascribe-platform/internal/app"
	"saascribe-platform/internal/config"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/queue"
	"saascribe-platform/internal/telemetry"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("saascribe-worker", cfg.OTLPEndpoint, cfg.OTelSampleRate)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	a, err := app.New(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer a.Close()

	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Failed to resolve Redis options:", err)
	}

	concurrency := max(1, cfg.IngestConcurrency)
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOpt.Addr,
			Username:  redisOpt.Username,
			Password:  redisOpt.Password,
			DB:        redisOpt.DB,
			TLSConfig: redisOpt.TLSConfig,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	queue.NewTaskProcessor(a.Ingestor).Register(mux)

	logger.Info("Starting Asynq worker", "concurrency", concurrency, "redis", redisOpt.Addr)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
