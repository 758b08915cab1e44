// File: internal/api/server.go
// Package api exposes the findings ingestion HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/FLUSEC-25-26/flusec-cloud/internal/config"
)

// Server wires the ingestion handlers into an HTTP server with the
// standard middleware chain and graceful shutdown.
type Server struct {
	cfg      config.ServerConfig
	log      *zap.Logger
	handlers *Handlers

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new Server instance.
func NewServer(cfg config.ServerConfig, logger *zap.Logger, handlers *Handlers) *Server {
	return &Server{
		cfg:      cfg,
		log:      logger.Named("server"),
		handlers: handlers,
	}
}

// Router assembles the middleware chain and registers all routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer) // Catches panics
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(corsMiddleware)
	r.Use(s.requestLogger)

	s.handlers.RegisterRoutes(r)
	return r
}

// Run starts the listener and blocks until ctx is cancelled or the server
// fails. Cancellation triggers a graceful shutdown bounded by the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	if s.cfg.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConns)
	}

	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("Ingestion server listening.", zap.String("address", listener.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serveErr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("Shutting down ingestion server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server shutdown: %w", shutdownErr)
		}
		return nil
	})

	err = g.Wait()
	s.log.Info("Ingestion server stopped.")
	return err
}

// Addr reports the bound listen address once Run has opened the listener.
// It returns "" before that point.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// requestLogger emits one structured line per handled request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info("Request handled.",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// corsMiddleware provides the CORS support required for the extension webview.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
