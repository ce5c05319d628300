// Package api is the HTTP ingress: Discord interaction callbacks and the
// Zendesk comment webhook.
package api

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forumdesk-io/forumdesk/internal/relay"
)

// Deliverer is the slice of the relay the webhook endpoint needs.
type Deliverer interface {
	Deliver(ctx context.Context, p relay.Payload) error
}

// Config holds HTTP server configuration.
type Config struct {
	Port int
	// PublicKey verifies Discord interaction signatures.
	PublicKey ed25519.PublicKey
	// WebhookSecret, when set, requires an HMAC-SHA256 signature on
	// /zendesk-webhook requests.
	WebhookSecret string
}

// Server is the forumdesk HTTP server.
type Server struct {
	cfg     Config
	relay   Deliverer
	logger  *slog.Logger
	srv     *http.Server
	handler http.Handler
}

// NewServer creates the HTTP server. logger may be nil.
func NewServer(cfg Config, deliverer Deliverer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		relay:  deliverer,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// A panicking handler answers 500 and the process keeps serving.
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Post("/interactions", s.handleInteractions)
	r.Post("/zendesk-webhook", s.handleZendeskWebhook)

	s.handler = r
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("http server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
