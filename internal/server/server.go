// Package server is the HTTP delivery layer of the connector. It resolves the
// shop credential and budget state, invokes the resource fetchers and maps
// their outcomes to JSON responses.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/shopify-connector/pkg/credentials"
	"github.com/Sternrassler/shopify-connector/pkg/metrics"
	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/Sternrassler/shopify-connector/pkg/resources"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config holds the delivery layer settings.
type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string

	// CORSAllowedOrigins lists the origins allowed to call the API.
	CORSAllowedOrigins []string

	// RequestTimeout bounds one API request including every page of an all=true walk.
	RequestTimeout time.Duration

	// Pagination bounds all=true walks.
	Pagination pagination.Config
}

// Server serves the connector API.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	config    Config
	resources *resources.Service
	tokens    credentials.Store
	budgets   ratelimit.StateStore
	logger    zerolog.Logger
}

// New creates the server and registers its routes.
func New(cfg Config, svc *resources.Service, tokens credentials.Store, budgets ratelimit.StateStore, logger zerolog.Logger) *Server {
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Pagination.MaxPages <= 0 {
		cfg.Pagination = pagination.DefaultConfig()
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		resources: svc,
		tokens:    tokens,
		budgets:   budgets,
		logger:    logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Post("/auth/connect-token", s.handleConnectToken)
	s.router.Post("/disconnect", s.handleDisconnect)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/orders", s.handleOrders)
		r.Get("/fulfillments", s.handleFulfillments)
		r.Get("/products", s.handleProducts)
		r.Get("/product/{id}/variants", s.handleProductVariants)
	})
}

// Handler exposes the router for testing and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
