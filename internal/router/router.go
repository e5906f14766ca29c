package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"modelvault-backend/internal/config"
	"modelvault-backend/internal/database"
	"modelvault-backend/internal/handlers"
	"modelvault-backend/internal/middleware"
	"modelvault-backend/internal/notify"
	"modelvault-backend/internal/queue"
	"modelvault-backend/internal/thumbnails"
)

// Deps are the collaborators main constructs before wiring the router.
// Blobs and Hub may be nil: without blob storage the artifact-file route is
// not registered, without the hub the SSE route reports 501.
type Deps struct {
	DB      *database.DB
	Queue   *queue.Service
	Records *thumbnails.Service
	Blobs   handlers.BlobStreamer
	Hub     *notify.Hub
}

// Setup creates and configures the Gin router
func Setup(deps Deps) *gin.Engine {
	jobHandler := handlers.NewJobHandler(deps.Queue)
	thumbHandler := handlers.NewThumbnailHandler(deps.Records, deps.Queue, deps.Blobs, deps.Hub)

	router := setupBaseRouter()

	// Health check endpoint
	router.GET("/health", healthCheck(deps.DB))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Queue control plane: enqueue for the upload pipeline,
		// dequeue/complete/fail for workers, retry for operators.
		jobs := v1.Group("/thumbnail-jobs")
		{
			jobs.POST("", jobHandler.Enqueue)
			jobs.GET("", jobHandler.List)
			jobs.POST("/dequeue", jobHandler.Dequeue)
			jobs.GET("/:id", jobHandler.Get)
			jobs.POST("/:id/complete", jobHandler.Complete)
			jobs.POST("/:id/fail", jobHandler.Fail)
			jobs.POST("/:id/retry", jobHandler.Retry)
		}

		// Client-facing artifact surface
		thumbs := v1.Group("/models/:id/thumbnail")
		{
			thumbs.GET("", thumbHandler.GetStatus)
			thumbs.POST("/regenerate", thumbHandler.Regenerate)
			thumbs.GET("/events", thumbHandler.Events)
			if deps.Blobs != nil {
				thumbs.GET("/file", thumbHandler.GetFile)
			}
		}
	}

	// API documentation endpoint
	router.GET("/api", apiDocumentation())

	return router
}

func setupBaseRouter() *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(otelgin.Middleware("modelvault-api"))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit())

	// Don't trust proxy headers unless explicitly configured; prevents IP
	// spoofing when not behind a reverse proxy.
	router.SetTrustedProxies(nil)

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Authorization",
		"Accept",
		"User-Agent",
		"Cache-Control",
		"Pragma",
	}
	corsConfig.AllowMethods = []string{
		"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
	}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	return router
}

func healthCheck(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"error":     err.Error(),
					"database":  "postgresql",
					"timestamp": time.Now().Unix(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"version":   "1.0",
			"database":  "postgresql",
			"timestamp": time.Now().Unix(),
		})
	}
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "ModelVault API",
			"version":     "1.0",
			"description": "3D asset library thumbnail rendering service",
			"endpoints": map[string]interface{}{
				"health": "GET /health",
				"jobs": map[string]string{
					"enqueue":  "POST /api/v1/thumbnail-jobs",
					"list":     "GET /api/v1/thumbnail-jobs?status=...",
					"dequeue":  "POST /api/v1/thumbnail-jobs/dequeue",
					"get":      "GET /api/v1/thumbnail-jobs/:id",
					"complete": "POST /api/v1/thumbnail-jobs/:id/complete",
					"fail":     "POST /api/v1/thumbnail-jobs/:id/fail",
					"retry":    "POST /api/v1/thumbnail-jobs/:id/retry",
				},
				"thumbnails": map[string]string{
					"status":     "GET /api/v1/models/:id/thumbnail",
					"file":       "GET /api/v1/models/:id/thumbnail/file",
					"regenerate": "POST /api/v1/models/:id/thumbnail/regenerate",
					"events":     "GET /api/v1/models/:id/thumbnail/events",
				},
			},
		})
	}
}
