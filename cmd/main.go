package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saascribe-platform/internal/app"
	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/config"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/queue"
	"saascribe-platform/internal/scheduler"
	"saascribe-platform/internal/telemetry"
	"saascribe-platform/middleware"
	"saascribe-platform/routes"
	"saascribe-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

const serviceName = "saascribe-platform"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.OTelSampleRate)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer a.Close()

	tokens, err := auth.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, a.Redis)
	if err != nil {
		log.Fatal("Failed to initialize token manager:", err)
	}

	var enqueuer queue.Enqueuer
	if cfg.AsyncIndexing {
		redisOpt, err := config.RedisOptions(cfg)
		if err != nil {
			log.Fatal("Failed to resolve Redis options:", err)
		}
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:      redisOpt.Addr,
			Username:  redisOpt.Username,
			Password:  redisOpt.Password,
			DB:        redisOpt.DB,
			TLSConfig: redisOpt.TLSConfig,
		})
		defer client.Close()
		enqueuer = client
	}

	jobs := scheduler.New()
	if err := jobs.ScheduleStaleIndexingReset(a.Store.Documents, 5*time.Minute, cfg.StaleIndexingAfter); err != nil {
		log.Fatal("Failed to schedule maintenance job:", err)
	}
	jobs.Start()
	defer jobs.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize + 1<<20))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(tokens, cfg.GinMode == "release")
	protected := []gin.HandlerFunc{
		authMiddleware.RequireAuth(),
		middleware.RateLimitMiddleware(a.Redis, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second),
	}

	documents := services.NewDocumentService(a.Store.Documents, a.Storage, a.Store.Users, a.Gate, a.Ingestor, enqueuer, cfg.MaxFileSize)

	routes.SetupDocumentRoutes(router, routes.NewDocumentHandler(documents, a.ExportService(), cfg.MaxFileSize), protected...)
	routes.SetupChatRoutes(router, routes.NewChatHandler(a.ChatService()), protected...)
	routes.SetupFileRoutes(router, a.Storage)
	routes.SetupBillingRoutes(router, a.BillingService())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "async_indexing", cfg.AsyncIndexing)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
