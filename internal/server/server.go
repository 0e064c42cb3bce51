// Package server provides the HTTP server for the webhook-driven review
// pipeline. It handles server lifecycle, route registration, and graceful
// shutdown, grounded on the teacher's internal/server/server.go shape with
// the admin-console and report-engine wiring removed (out of scope per
// spec.md's Non-goals).
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/config"
	"github.com/aireviewer/reviewerd/internal/webhookapi"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultStopTimeout     = 5 * time.Second
)

// Server represents the HTTP server exposing the inbound webhook endpoint.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	dispatcher *webhookapi.Dispatcher
	router     *gin.Engine
}

// New creates a new server instance bound to dispatcher, the EventDispatcher
// that verifies and routes inbound webhook deliveries.
func New(cfg *config.Config, dispatcher *webhookapi.Dispatcher) *Server {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		router:     r,
	}
}

// SetupRoutes registers the webhook endpoint and a liveness probe.
func (s *Server) SetupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.POST("/webhooks/host", s.dispatcher.HandleWebhook)
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	logger.Info("Starting HTTP server",
		zap.String("address", s.cfg.Server.Address()),
		zap.Bool("debug", s.cfg.Server.Debug),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	return nil
}

// WaitForShutdown blocks until a SIGINT/SIGTERM is received, then gracefully
// stops the server. A second signal forces an immediate exit.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("Received shutdown signal, starting graceful shutdown (press Ctrl+C again to force exit)",
		zap.String("signal", sig.String()))

	go func() {
		sig := <-quit
		logger.Warn("Received second shutdown signal, forcing exit", zap.String("signal", sig.String()))
		os.Exit(1)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// Stop stops the server immediately, used in tests.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying Gin router, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
