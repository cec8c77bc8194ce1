// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the vidrelay HTTP API: video info probes, transcoded
// downloads and download session management.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidrelay/internal/admission"
	"github.com/ManuGH/vidrelay/internal/api/middleware"
	"github.com/ManuGH/vidrelay/internal/health"
	xglog "github.com/ManuGH/vidrelay/internal/log"
	platformnet "github.com/ManuGH/vidrelay/internal/platform/net"
	"github.com/ManuGH/vidrelay/internal/probe"
	"github.com/ManuGH/vidrelay/internal/ratelimit"
	"github.com/ManuGH/vidrelay/internal/transcode"
)

// VideoProber answers info requests.
type VideoProber interface {
	Probe(ctx context.Context, rawURL string, headers map[string]string, kind probe.Kind) (probe.Result, error)
}

// SessionStarter spawns transcode sessions.
type SessionStarter interface {
	Start(ctx context.Context, spec transcode.Spec) (*transcode.Session, error)
}

// Config holds the HTTP-facing settings.
type Config struct {
	AllowedOrigins    []string
	RequestsPerMinute int
	TracingService    string
	Outbound          platformnet.OutboundPolicy
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Prober       VideoProber
	ProbeLimiter *ratelimit.Limiter // nil disables probe rate limiting
	Admission    *admission.Controller
	Transcoder   SessionStarter
	Registry     *transcode.Registry
	Health       *health.Manager // nil disables /readyz
	Logger       zerolog.Logger
}

// Server holds the API handlers.
type Server struct {
	cfg          Config
	prober       VideoProber
	probeLimiter *ratelimit.Limiter
	admission    *admission.Controller
	transcoder   SessionStarter
	registry     *transcode.Registry
	health       *health.Manager
	logger       zerolog.Logger
}

// New returns a Server.
func New(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:          cfg,
		prober:       deps.Prober,
		probeLimiter: deps.ProbeLimiter,
		admission:    deps.Admission,
		transcoder:   deps.Transcoder,
		registry:     deps.Registry,
		health:       deps.Health,
		logger:       deps.Logger.With().Str(xglog.FieldComponent, "api").Logger(),
	}
}

// Handler returns the routed API with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		RequestsPerMinute:     s.cfg.RequestsPerMinute,
	})
	s.routes(r)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	if s.health != nil {
		r.Get("/readyz", s.health.ServeReady)
	}
	r.Post("/video_info", s.handleVideoInfo)
	r.Post("/download", s.handleDownload)
	r.Route("/downloads", func(r chi.Router) {
		r.Get("/", s.handleListDownloads)
		r.Post("/progress", s.handleProgress)
		r.Delete("/{taskID}", s.handleCancelDownload)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func (s *Server) loggerFor(r *http.Request) zerolog.Logger {
	return xglog.WithContext(r.Context(), s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
