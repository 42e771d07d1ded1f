// Package api exposes the OpenAI-compatible HTTP surface of the
// transcription service: the upload endpoint, model discovery, health
// probes, and the Prometheus scrape endpoint.
//
// The handlers are a thin shell over the scheduler; all queueing, swap, and
// lifecycle decisions live in internal/scheduler.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/audioscribe/internal/health"
	"github.com/MrWong99/audioscribe/internal/model"
	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/scheduler"
)

// Scheduler is the scheduling surface the handlers depend on, implemented
// by [scheduler.Service].
type Scheduler interface {
	Submit(ctx context.Context, req scheduler.SubmitRequest) (*scheduler.Outcome, error)
	CurrentSpec() model.Spec
	CurrentCapabilities() model.Capabilities
	Degraded() bool
	QueueDepth() int
	QueueCapacity() int
}

// Config assembles a [Server].
type Config struct {
	// Registry resolves model form values to specs.
	Registry *model.Registry

	// Scheduler accepts admitted jobs.
	Scheduler Scheduler

	// EngineType is the configured backend family, reported on /health
	// and /v1/models/current.
	EngineType string

	// MaxUploadBytes is the admission size limit.
	MaxUploadBytes int64

	// AllowedOrigins is the CORS allow-list. Empty disables CORS handling.
	AllowedOrigins []string

	// Metrics instruments the HTTP layer. Optional.
	Metrics *observe.Metrics
}

// Server holds the handler dependencies.
type Server struct {
	registry       *model.Registry
	sched          Scheduler
	engineType     string
	maxUploadBytes int64
	allowedOrigins []string
	metrics        *observe.Metrics
	health         *health.Handler
}

// New creates a Server and its health handler.
func New(cfg Config) *Server {
	s := &Server{
		registry:       cfg.Registry,
		sched:          cfg.Scheduler,
		engineType:     cfg.EngineType,
		maxUploadBytes: cfg.MaxUploadBytes,
		allowedOrigins: cfg.AllowedOrigins,
		metrics:        cfg.Metrics,
	}
	s.health = health.New(func() health.EngineState {
		return health.EngineState{
			EngineType: s.engineType,
			Model:      s.sched.CurrentSpec().Alias,
			Degraded:   s.sched.Degraded(),
		}
	})
	return s
}

// Router builds the service's HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(observe.Middleware(s.metrics))
	r.Use(chimiddleware.Recoverer)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/health", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/audio/transcriptions", s.handleTranscription)
		r.Get("/models", s.handleListModels)
		r.Get("/models/current", s.handleCurrentModel)
	})

	return r
}
