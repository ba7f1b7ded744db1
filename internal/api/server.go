// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the cylinder engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/cylinderd/internal/api/middleware"
	"github.com/ManuGH/cylinderd/internal/audit"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
	"github.com/ManuGH/cylinderd/internal/health"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the HTTP surface.
type Config struct {
	Version string
	// RateLimit caps mutating requests per client IP per RateWindow; 0 disables.
	RateLimit      int
	RateWindow     time.Duration
	TracingService string
	EnableMetrics  bool
	EnableLogging  bool
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg     Config
	engine  *manager.Engine
	sweeper *manager.Sweeper
	audit   *audit.Logger
	health  *health.Manager
	now     func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now for sweeps and reports.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithAudit replaces the default audit logger.
func WithAudit(l *audit.Logger) Option {
	return func(s *Server) { s.audit = l }
}

// WithHealth installs the probe manager behind /healthz and /readyz.
func WithHealth(m *health.Manager) Option {
	return func(s *Server) { s.health = m }
}

// New builds a Server. sweeper may be nil, which disables the sweep route.
func New(cfg Config, engine *manager.Engine, sweeper *manager.Sweeper, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		sweeper: sweeper,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = audit.NewLogger()
	}
	if s.health == nil {
		s.health = health.NewManager(cfg.Version)
	}
	return s
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  s.cfg.EnableMetrics,
		TracingService: s.cfg.TracingService,
		EnableLogging:  s.cfg.EnableLogging,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	limit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestLimit: s.cfg.RateLimit,
		WindowSize:   s.cfg.RateWindow,
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/anomalies", s.handleAnomalies)
		r.Route("/cylinders", func(r chi.Router) {
			r.With(limit).Post("/", s.handleRegister)
			r.Get("/{serial}", s.handleGetCylinder)
			r.With(limit).Post("/{serial}/actions/{action}", s.handleAction)
			r.Post("/{serial}/checks/{action}", s.handleCheck)
		})
		r.With(limit).Post("/sweeps/lost", s.handleSweep)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Detail: "no such route"})
	})
	return r
}
