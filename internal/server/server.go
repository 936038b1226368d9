// Package server exposes the definition gateway and the row-request
// translator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/gridweaver/internal/gateway"
	"golang.org/x/sync/errgroup"
)

// DefaultSecretHeader carries the mutation secret.
const DefaultSecretHeader = "X-GridWeaver-Secret"

// maxBodyBytes bounds request documents.
const maxBodyBytes = 1 << 20

// Config holds configuration for the API server.
type Config struct {
	Gateway           *gateway.Gateway
	Addr              string
	ReadHeaderTimeout time.Duration
	SecretHeader      string
	Logger            *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	gateway      *gateway.Gateway
	addr         string
	readTimeout  time.Duration
	secretHeader string
	logger       *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	s := &Server{
		gateway:      cfg.Gateway,
		addr:         cfg.Addr,
		readTimeout:  cfg.ReadHeaderTimeout,
		secretHeader: cfg.SecretHeader,
		logger:       cfg.Logger,
	}
	if s.addr == "" {
		s.addr = ":8080"
	}
	if s.readTimeout <= 0 {
		s.readTimeout = 10 * time.Second
	}
	if s.secretHeader == "" {
		s.secretHeader = DefaultSecretHeader
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		withRequest,
	)

	h := &handlers{gateway: s.gateway, secretHeader: s.secretHeader, logger: s.logger}

	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Route("/definitions", func(r chi.Router) {
			r.Post("/", h.createDefinition)
			r.Get("/{id}", h.readDefinition)
			r.Patch("/{id}", h.updateDefinition)
			r.Delete("/{id}", h.deleteDefinition)
			r.Get("/{id}/events", h.definitionEvents)
		})
		r.Post("/translate", h.translate)
	})
	return r
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.readTimeout,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
