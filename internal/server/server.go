package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adverant/nexus/taxdoc-worker/internal/config"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/server/handler"
	"github.com/adverant/nexus/taxdoc-worker/internal/server/router"
	"github.com/adverant/nexus/taxdoc-worker/internal/storage"
)

const shutdownGrace = 10 * time.Second

// Deps are the components the HTTP surface is built on.
type Deps struct {
	Processor processor.DocumentProcessorInterface
	Queue     handler.JobQueue // optional
	Jobs      storage.JobStore // optional
	Logger    logging.Sink
}

// Server is the HTTP surface.
type Server struct {
	httpServer *http.Server
	logger     logging.Sink
}

// New builds the router and HTTP server from cfg.
func New(cfg *config.Config, deps Deps) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	documents := handler.NewDocumentHandler(handler.Options{
		Processor:       deps.Processor,
		Queue:           deps.Queue,
		Jobs:            deps.Jobs,
		DefaultLanguage: cfg.DefaultLanguage,
		MaxFileSize:     cfg.MaxFileSize,
		Timeout:         cfg.ProcessingTimeoutDuration(),
		Logger:          logger,
	})

	r := router.New(router.Options{
		APIKey:         cfg.APIKey,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		EnableJobs:     deps.Queue != nil || deps.Jobs != nil,
		Logger:         logger,
	}, documents)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the routed engine.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
