// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/auth"
	"github.com/vyrodovalexey/rosterboard/internal/board"
	"github.com/vyrodovalexey/rosterboard/internal/config"
	"github.com/vyrodovalexey/rosterboard/internal/handler"
	"github.com/vyrodovalexey/rosterboard/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	router        *mux.Router
	config        *config.Config
	logger        *zap.Logger
	restHandler   *handler.RESTHandler
	hub           *handler.Hub
	authenticator auth.Authenticator
}

// New creates a new Server instance. hub may be nil, in which case a fresh
// one is created; it must be the notifier the board was built with for
// subscribers to see board events. authenticator may be nil to leave
// roster edits open.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	b *board.Board,
	hub *handler.Hub,
	authenticator auth.Authenticator,
) (*Server, error) {
	publicURL, err := cfg.PublicBase()
	if err != nil {
		return nil, fmt.Errorf("server public url: %w", err)
	}
	if hub == nil {
		hub = handler.NewHub(logger)
	}

	s := &Server{
		router:        mux.NewRouter(),
		config:        cfg,
		logger:        logger,
		hub:           hub,
		authenticator: authenticator,
	}

	s.setupMiddleware()
	s.setupRoutes(b, publicURL)
	s.setupHTTPServer()

	return s, nil
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			auth.APIKeyHeader,
			middleware.RequestIDHeader,
		},
		ExposedHeaders: []string{"Location", middleware.RequestIDHeader},
		MaxAge:         86400,
	})

	// Apply middleware in order (first applied = outermost)
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(cors))

	// Preflight requests match no route by method, so mux never runs the
	// chain for them.
	s.router.MethodNotAllowedHandler = cors(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	s.router.Use(mux.MiddlewareFunc(middleware.NoStore()))

	if s.authenticator != nil {
		s.router.Use(mux.MiddlewareFunc(middleware.Auth(s.authenticator, s.logger)))
	}
}

// setupRoutes configures the board, member and websocket routes.
func (s *Server) setupRoutes(b *board.Board, publicURL *url.URL) {
	s.restHandler = handler.NewRESTHandler(b, publicURL, s.logger)
	s.restHandler.RegisterRoutes(s.router)
	s.restHandler.RegisterMemberRoutes(s.router)

	s.hub.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.String("public_url", s.config.PublicURL),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("auth_enabled", s.authenticator != nil),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.restHandler.SetReady(false)

	s.hub.CloseAllConnections()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *handler.Hub {
	return s.hub
}
