package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production); rely on
		// system environment variables being set.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Server holds the API server's tunables beyond the basics main reads
// directly (PORT, DATABASE_URL).
type Server struct {
	SweepInterval time.Duration
	NotifyMode    string // "hub" or "noop"
}

func LoadServer() Server {
	sweepSeconds := getEnvInt("LEASE_SWEEP_INTERVAL_SECONDS", 60)
	if sweepSeconds < 1 {
		sweepSeconds = 1
	}
	mode := strings.ToLower(getEnv("NOTIFY_MODE", "hub"))
	if mode != "hub" && mode != "noop" {
		log.Printf("Unknown NOTIFY_MODE %q, falling back to hub", mode)
		mode = "hub"
	}
	return Server{
		SweepInterval: time.Duration(sweepSeconds) * time.Second,
		NotifyMode:    mode,
	}
}

// Worker is the render worker's environment contract.
type Worker struct {
	APIBaseURL   string
	WorkerID     string // empty = auto-generated per process
	PollInterval time.Duration
	RenderWidth  int
	RenderHeight int
	OrbitFrames  int
	RendererCmd  string
}

// LoadWorker reads the worker configuration. POLL_INTERVAL_MS is floored
// at 1000.
func LoadWorker() (Worker, error) {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		return Worker{}, fmt.Errorf("API_BASE_URL environment variable is required")
	}
	rendererCmd := os.Getenv("RENDERER_CMD")
	if rendererCmd == "" {
		return Worker{}, fmt.Errorf("RENDERER_CMD environment variable is required")
	}

	pollMs := getEnvInt("POLL_INTERVAL_MS", 5000)
	if pollMs < 1000 {
		pollMs = 1000
	}

	return Worker{
		APIBaseURL:   strings.TrimRight(baseURL, "/"),
		WorkerID:     os.Getenv("WORKER_ID"),
		PollInterval: time.Duration(pollMs) * time.Millisecond,
		RenderWidth:  getEnvInt("RENDER_WIDTH", 256),
		RenderHeight: getEnvInt("RENDER_HEIGHT", 256),
		OrbitFrames:  getEnvInt("ORBIT_FRAMES", 0),
		RendererCmd:  rendererCmd,
	}, nil
}

// GetAllowedOrigins returns a slice of allowed origins from the environment
// variable. It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
