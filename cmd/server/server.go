package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/tradeline-engine/internal/circuitbreaker"
	"github.com/yourorg/tradeline-engine/internal/config"
	"github.com/yourorg/tradeline-engine/internal/engine"
	"github.com/yourorg/tradeline-engine/internal/export"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/security"
)

const version = "1.0.0"

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// InventorySource supplies the current tradeline catalog.
type InventorySource interface {
	Fetch(ctx context.Context) ([]model.Tradeline, error)
}

// ProfileSource supplies raw client records by ID.
type ProfileSource interface {
	Fetch(ctx context.Context, clientID string) (model.RawClient, error)
}

// Deps are the collaborators of the server. Inventory, Profiles and Signer may be nil.
type Deps struct {
	Options   engine.Options
	Inventory InventorySource
	Profiles  ProfileSource
	Breaker   *circuitbreaker.Guard
	Signer    *security.Signer
	Exporter  *export.Exporter

	// Clock overrides the engine clock
	Clock func() time.Time
}

// Server represents the tradeline service instance
type Server struct {
	config config.Config

	engine    *engine.Engine
	inventory InventorySource
	profiles  ProfileSource
	breaker   *circuitbreaker.Guard
	signer    *security.Signer
	exporter  *export.Exporter
	rateLimit *rate.Limiter

	registry *prometheus.Registry
	metrics  *serverMetrics

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new server instance with its routes and metrics
func NewServer(cfg config.Config, deps Deps) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.New(deps.Options, engine.NewMetrics(registry))
	if deps.Clock != nil {
		eng.WithClock(deps.Clock)
	}

	if deps.Breaker == nil {
		deps.Breaker = circuitbreaker.New(circuitbreaker.Thresholds{MinItems: 1})
	}
	if deps.Exporter == nil {
		deps.Exporter = export.New(export.Config{})
	}

	s := &Server{
		config:    cfg,
		engine:    eng,
		inventory: deps.Inventory,
		profiles:  deps.Profiles,
		breaker:   deps.Breaker,
		signer:    deps.Signer,
		exporter:  deps.Exporter,
		registry:  registry,
		metrics:   registerMetrics(registry),
		router:    chi.NewRouter(),
	}

	if cfg.RateLimitRPS > 0 {
		s.rateLimit = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logrus.Infof("Rate limiting initialized: %v req/s, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s.setupMiddleware()
	s.setupRoutes()

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"inventory":       s.inventory != nil,
		"profile_service": s.profiles != nil,
		"signing":         s.signer != nil,
		"export":          s.exporter.Enabled(),
		"bundle_timeout":  deps.Options.BundleTimeout,
	}).Info("Server initialized")

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router.Get("/circuit", s.handleCircuit)
	s.router.Post("/circuit", s.handleCircuit)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}

		r.Post("/profiles/analyze", s.handleAnalyze)
		r.Post("/matches", s.handleMatches)
		r.Post("/pricing", s.handlePricing)
		r.Post("/quotes/verify", s.handleVerifyQuote)
		r.Get("/tradelines", s.handleCatalog)
	})
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	s.exporter.Stop()

	logrus.Info("Server stopped")
}

type ctxKey struct{}

// requestID tags every request with a UUID, keeping a well-formed incoming X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.observe(route, ww.Status(), time.Since(start))

		logrus.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": getRequestID(r.Context()),
		}).Debug("HTTP request")
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimit != nil && !s.rateLimit.Allow() {
			s.metrics.rateLimited.Inc()
			s.errorResponse(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
