package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/server/middleware"
)

// DocumentHandler defines the interface for the document handler.
type DocumentHandler interface {
	HandleExtract(c *gin.Context)
	HandleEnqueue(c *gin.Context)
	HandleGetJob(c *gin.Context)
}

// Options configures the middleware chain.
type Options struct {
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	EnableJobs     bool
	Logger         logging.Sink
}

// New wires up handlers to the Gin engine.
func New(opts Options, documents DocumentHandler) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger))

	// Health check endpoint (no auth, no rate limit)
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	v1 := r.Group("/api/v1")
	{
		docs := v1.Group("/documents")
		docs.Use(middleware.WithAPIKey(opts.APIKey), middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

		docs.POST("/extract", documents.HandleExtract)

		if opts.EnableJobs {
			docs.POST("/jobs", documents.HandleEnqueue)
			docs.GET("/jobs/:id", documents.HandleGetJob)
		}
	}

	return r
}
