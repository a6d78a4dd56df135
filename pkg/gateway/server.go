package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/modelmux/modelmux/pkg/config"
	"github.com/modelmux/modelmux/pkg/gateway/middleware"
)

// Server is the HTTP server hosting the gateway.
type Server struct {
	config       *config.Config
	gateway      *Gateway
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server around the given gateway.
func NewServer(cfg *config.Config, gateway *Gateway) *Server {
	return &Server{
		config:       cfg,
		gateway:      gateway,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown, which is
// triggered by context cancellation, SIGINT/SIGTERM, or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server",
			"address", s.config.Server.ListenAddress,
			"auth_enabled", s.gateway.auth.Enabled(),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown",
			"timeout", s.config.Server.ShutdownTimeout.String(),
		)

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the route table and middleware chain. Each dialect route
// rejects unauthorized clients with an error body in its own shape.
func (s *Server) Handler() http.Handler {
	g := s.gateway
	mux := http.NewServeMux()

	mux.Handle("POST /v1/chat/completions", s.authorized(g.handleOpenAI, func(w http.ResponseWriter) {
		writeOpenAIError(w, http.StatusUnauthorized, "invalid or missing API key")
	}))
	mux.Handle("POST /v1/messages", s.authorized(g.handleClaude, func(w http.ResponseWriter) {
		writeClaudeError(w, http.StatusUnauthorized, "invalid or missing API key")
	}))
	mux.Handle("POST /v1beta/models/{action}", s.authorized(g.handleGemini, func(w http.ResponseWriter) {
		writeGeminiError(w, http.StatusUnauthorized, "invalid or missing API key")
	}))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if s.config.Telemetry.Metrics.IsEnabled() && g.collector != nil {
		path := s.config.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, g.collector.Handler())
	}

	var handler http.Handler = mux
	if s.config.Server.RequestTimeout > 0 {
		handler = middleware.Timeout(s.config.Server.RequestTimeout)(handler)
	}
	if s.config.Server.CORS.Enabled {
		handler = middleware.CORS(middleware.CORSOptions{
			AllowedOrigins: s.config.Server.CORS.AllowedOrigins,
			AllowedHeaders: s.config.Server.CORS.AllowedHeaders,
			MaxAge:         s.config.Server.CORS.MaxAge,
		})(handler)
	}
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)
	return handler
}

// authorized wraps a dialect handler with the client API-key check.
func (s *Server) authorized(h http.HandlerFunc, onReject func(w http.ResponseWriter)) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request) {
		onReject(w)
	}
	return s.gateway.auth.Middleware(reject)(h)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness: the server can route requests once the
// routing table carries at least one deployment.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	router := s.gateway.router.Load()
	if router == nil || len(router.Table().Models()) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
