package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"modelvault-backend/internal/config"
	"modelvault-backend/internal/logger"
	"modelvault-backend/internal/render"
	"modelvault-backend/internal/storage"
	"modelvault-backend/internal/worker"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	env := getEnvDefault("APP_ENV", "development")
	logger.Init("modelvault-worker", env, logger.ParseLevelFromEnv())

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatal("Invalid worker configuration: ", err)
	}

	blobs, err := storage.NewBlobStore()
	if err != nil {
		log.Fatal("Blob storage is required for the worker: ", err)
	}

	runtime := worker.NewRuntime(
		worker.NewAPIClient(cfg.APIBaseURL),
		blobs,
		render.NewExecEngine(cfg.RendererCmd),
		cfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("🚀 Worker %s polling %s", runtime.WorkerID(), cfg.APIBaseURL)
	if err := runtime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("Worker exited with error: ", err)
	}
	log.Println("✅ Worker exited")
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
