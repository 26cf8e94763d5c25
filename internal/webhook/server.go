package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"counterhook/internal/history"
	"counterhook/internal/httpx"
	"counterhook/internal/restart"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 2 * time.Minute
	HTTPIdleTimeout  = 60 * time.Second

	// RequestTimeout bounds a whole delivery, git pull included.
	RequestTimeout = 90 * time.Second

	// WebhookRateLimit is the number of deliveries per minute per client IP.
	WebhookRateLimit = 20

	ShutdownTimeout = 10 * time.Second
)

// Server receives GitHub webhooks for one checkout.
type Server struct {
	Config    Config
	Puller    *Puller
	Restarter restart.Restarter
	History   *history.History // nil disables delivery history
	Logger    *slog.Logger
	TestMode  bool
}

// NewServer wires a receiver. hist may be nil.
func NewServer(cfg Config, puller *Puller, restarter restart.Restarter, hist *history.History, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Config:    cfg,
		Puller:    puller,
		Restarter: restarter,
		History:   hist,
		Logger:    logger,
		TestMode:  testMode,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(httpx.RequestLogger(s.Logger))

	r.Get("/health", s.HandleHealth)
	r.Get("/deliveries", s.HandleDeliveries)

	// Rate limiting only if not in test mode
	if !s.TestMode {
		r.With(httpx.NewRateLimitMiddleware(WebhookRateLimit, time.Minute, s.Logger)).Post("/webhook", s.HandleWebhook)
	} else {
		r.Post("/webhook", s.HandleWebhook)
	}

	return r
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("Webhook service running", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down webhook service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
