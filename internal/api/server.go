package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"counterhook/internal/counter"
	"counterhook/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shirou/gopsutil/v3/host"
)

const (
	DefaultPort           = 3001
	DefaultHost           = "0.0.0.0"
	DefaultFrontendOrigin = "https://your-production-frontend.com"

	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second
	RequestTimeout   = 30 * time.Second
	ShutdownTimeout  = 10 * time.Second
)

//go:embed ui/index.html
var uiFS embed.FS

// Config holds the counter service settings.
type Config struct {
	Host string
	Port int

	// Environment is NODE_ENV. "production" restricts CORS to FrontendOrigin.
	Environment    string
	FrontendOrigin string

	GitpodWorkspaceURL string
}

// Production reports whether CORS is restricted.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Server exposes a counter store over HTTP. The store is owned by the
// caller and shared with every handler.
type Server struct {
	Config Config
	Store  *counter.Store
	Logger *slog.Logger

	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

// NewServer creates a counter server around store.
func NewServer(cfg Config, store *counter.Store, logger *slog.Logger) *Server {
	return &Server{
		Config:   cfg,
		Store:    store,
		Logger:   logger,
		hostInfo: host.InfoWithContext,
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
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/", s.HandleIndex)
	r.Get("/health", s.HandleHealth)
	r.Get("/info", s.HandleInfo)

	r.Get("/api/counter", s.HandleGet)
	r.Post("/api/counter/increment", s.HandleIncrement)
	r.Post("/api/counter/decrement", s.HandleDecrement)
	r.Post("/api/counter/reset", s.HandleReset)

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := []string{"*"}
	if s.Config.Production() {
		origin := s.Config.FrontendOrigin
		if origin == "" {
			origin = DefaultFrontendOrigin
		}
		origins = []string{origin}
	}

	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
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
		s.Logger.Info("Backend server running", "addr", server.Addr, "step", s.Store.Step())
		if url := httpx.GitpodURL(s.Config.GitpodWorkspaceURL, s.Config.Port); url != "" {
			s.Logger.Info("Gitpod public URL", "url", url)
		}
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

	s.Logger.Info("Shutting down backend server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
