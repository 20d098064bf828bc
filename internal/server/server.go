// Package server provides the HTTP server and routing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/coincart/coincart/internal/config"
	"github.com/coincart/coincart/internal/database"
	"github.com/coincart/coincart/internal/modules/assets"
	assetshandlers "github.com/coincart/coincart/internal/modules/assets/handlers"
	"github.com/coincart/coincart/internal/modules/cart"
	carthandlers "github.com/coincart/coincart/internal/modules/cart/handlers"
	"github.com/coincart/coincart/internal/modules/portfolio"
	portfoliohandlers "github.com/coincart/coincart/internal/modules/portfolio/handlers"
	"github.com/coincart/coincart/internal/modules/trading"
	"github.com/coincart/coincart/internal/server/identity"
	"github.com/coincart/coincart/internal/stream"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Config      *config.Config
	PortfolioDB *database.DB
	LedgerDB    *database.DB
	CacheDB     *database.DB

	Oracle           *assets.Oracle
	CartService      *cart.Service
	CheckoutService  *trading.CheckoutService
	PortfolioService *portfolio.Service
	Hub              *stream.Hub
	Feed             *stream.Feed
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	cfg         *config.Config
	portfolioDB *database.DB
	ledgerDB    *database.DB
	cacheDB     *database.DB

	oracle           *assets.Oracle
	cartService      *cart.Service
	checkoutService  *trading.CheckoutService
	portfolioService *portfolio.Service
	hub              *stream.Hub
	feed             *stream.Feed

	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:           chi.NewRouter(),
		log:              cfg.Log.With().Str("component", "server").Logger(),
		cfg:              cfg.Config,
		portfolioDB:      cfg.PortfolioDB,
		ledgerDB:         cfg.LedgerDB,
		cacheDB:          cfg.CacheDB,
		oracle:           cfg.Oracle,
		cartService:      cfg.CartService,
		checkoutService:  cfg.CheckoutService,
		portfolioService: cfg.PortfolioService,
		hub:              cfg.Hub,
		feed:             cfg.Feed,
		startedAt:        time.Now(),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", identity.HeaderName},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check and system status need no user identity
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/system/status", s.handleSystemStatus)

	// Live price stream
	s.router.Get("/ws/prices", s.hub.ServeHTTP)

	// API routes, all scoped to the acting user
	s.router.Route("/api", func(r chi.Router) {
		r.Use(identity.Middleware)

		assetshandlers.NewHandler(s.oracle, s.log).RegisterRoutes(r)
		carthandlers.NewHandler(s.cartService, s.checkoutService, s.log).RegisterRoutes(r)
		portfoliohandlers.NewHandler(s.portfolioService, s.checkoutService, s.log).RegisterRoutes(r)
	})
}

// Start begins listening for requests (blocking)
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the configured router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
