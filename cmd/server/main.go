package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"modelvault-backend/internal/config"
	"modelvault-backend/internal/database"
	"modelvault-backend/internal/handlers"
	"modelvault-backend/internal/logger"
	"modelvault-backend/internal/notify"
	"modelvault-backend/internal/observability"
	"modelvault-backend/internal/queue"
	"modelvault-backend/internal/repositories"
	"modelvault-backend/internal/router"
	"modelvault-backend/internal/storage"
	"modelvault-backend/internal/thumbnails"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Get configuration from environment
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	port := getEnv("PORT", "3001")
	env := getEnv("APP_ENV", "development")
	cfg := config.LoadServer()

	// Initialize logger
	logger.Init("modelvault-backend", env, logger.ParseLevelFromEnv())

	// Initialize OpenTelemetry
	shutdownOTel, err := observability.InitOTel(context.Background(), "modelvault-api")
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
		log.Println("✓ OpenTelemetry initialized")
	}

	// Set Gin mode
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.New(databaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("✓ Connected to PostgreSQL")

	// Notification bus: in-process hub with SSE, or no-op for deployments
	// where clients poll the record directly.
	var bus notify.Bus
	var hub *notify.Hub
	if cfg.NotifyMode == "hub" {
		hub = notify.NewHub()
		bus = hub
	} else {
		bus = notify.NewNoopBus()
	}

	// Wire core services
	recordSvc := thumbnails.NewService(repositories.NewThumbnailRepository(db), bus)
	queueSvc := queue.NewService(
		repositories.NewJobRepository(db),
		recordSvc,
		queue.WithSweepInterval(cfg.SweepInterval),
	)

	// Blob storage (optional - artifact streaming route is skipped if not configured)
	var blobs handlers.BlobStreamer
	if blobStore, err := storage.NewBlobStore(); err != nil {
		log.Printf("Warning: blob storage not configured: %v", err)
	} else {
		blobs = blobStore
	}

	// Lease sweeper recovers jobs whose worker disappeared
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go queueSvc.RunSweeper(sweepCtx)

	// Setup router with all handlers
	r := router.Setup(router.Deps{
		DB:      db,
		Queue:   queueSvc,
		Records: recordSvc,
		Blobs:   blobs,
		Hub:     hub,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s", port)
		log.Printf("🌍 Environment: %s", env)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("📤 Shutting down server...")

	stopSweeper()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
