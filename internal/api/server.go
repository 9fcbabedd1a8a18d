// Package api serves the card table over HTTP: a JSON REST API for every
// state operation and a WebSocket feed of state events.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/cardtable/internal/api/handlers"
	"github.com/ramonehamilton/cardtable/internal/api/websocket"
	"github.com/ramonehamilton/cardtable/internal/metrics"
	"github.com/ramonehamilton/cardtable/internal/selectors"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	address    string
	logger     *slog.Logger

	// WebSocket hub for real-time events
	wsHub *websocket.Hub

	deps Deps
}

// Config holds configuration for the API server.
type Config struct {
	Address        string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:        "127.0.0.1:8472",
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		RequestTimeout: 60 * time.Second,
	}
}

// Deps are the components the API serves. Store is required.
type Deps struct {
	Store     *state.Store
	Selectors *selectors.Selectors
	Importer  handlers.Importer
	Storage   handlers.StorageDeps
	DB        Pinger
	Metrics   *metrics.ServerMetrics
}

// NewServer creates a new API server.
func NewServer(cfg *Config, deps Deps) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if deps.Selectors == nil {
		deps.Selectors = selectors.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewServerMetrics()
	}

	s := &Server{
		router:  chi.NewRouter(),
		address: cfg.Address,
		logger:  logger.With("component", "api"),
		wsHub:   websocket.NewHub(websocket.HubConfig{AllowedOrigins: cfg.AllowedOrigins, Logger: logger}),
		deps:    deps,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(cfg *Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(cfg.RequestTimeout))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Content-Type enforcement for POST/PUT/PATCH only (not GET/DELETE/OPTIONS)
	s.router.Use(s.jsonContentTypeMiddleware)
}

// requestLogger logs one line per request and records its latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.deps.Metrics.RecordRequest(ww.Status(), time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// jsonContentTypeMiddleware enforces application/json content-type for requests with bodies.
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the WebSocket hub and listens in the background. It returns
// once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}
	s.address = ln.Addr().String()

	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.address)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the API server and the WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server listens on. After Start it holds
// the bound port.
func (s *Server) Address() string {
	return s.address
}

// WebSocketHub returns the WebSocket hub for external integration.
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}

// NewWebSocketObserver creates a new WebSocket observer that can be registered
// with an EventDispatcher to forward events to WebSocket clients.
func (s *Server) NewWebSocketObserver() *websocket.WebSocketObserver {
	return websocket.NewWebSocketObserver(s.wsHub)
}

// Metrics returns the request metrics. They also count state events when
// registered with the event dispatcher.
func (s *Server) Metrics() *metrics.ServerMetrics {
	return s.deps.Metrics
}
