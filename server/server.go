package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/risk"
)

// Config holds server configuration
type Config struct {
	Addr        string
	Log         zerolog.Logger
	Coordinator *risk.Coordinator
	Metrics     *metrics.Recorder // optional
	Journal     journal.Journal   // optional
	DevMode     bool
}

// Server exposes a coordinator over HTTP.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	coord   *risk.Coordinator
	metrics *metrics.Recorder
	journal journal.Journal
	now     func() time.Time
}

func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		coord:   cfg.Coordinator,
		metrics: cfg.Metrics,
		journal: cfg.Journal,
		now:     time.Now,
	}
	if s.journal == nil {
		s.journal = journal.Discard{}
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/risk", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/circuit-breaker", s.handleCircuitBreaker)
		r.Get("/exits", s.handleExits)

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", s.handlePositions)
			r.Post("/", s.handleStartPosition)
			r.Post("/sync", s.handleSyncPositions)
			r.Delete("/{symbol}", s.handleClosePosition)
		})

		r.Post("/prices", s.handleUpdatePrices)
		r.Post("/portfolio-value", s.handlePortfolioValue)
		r.Post("/daily-reset", s.handleDailyReset)
		r.Post("/weights/validate", s.handleValidateWeights)
		r.Post("/orders/validate", s.handleValidateOrders)
	})
}

// Handler returns the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
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
