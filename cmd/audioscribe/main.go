// Command audioscribe is the OpenAI-compatible local transcription server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/audioscribe/internal/api"
	"github.com/MrWong99/audioscribe/internal/config"
	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/engine/funasr"
	"github.com/MrWong99/audioscribe/internal/engine/mlx"
	"github.com/MrWong99/audioscribe/internal/engine/runner"
	"github.com/MrWong99/audioscribe/internal/model"
	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/scheduler"
)

// version is injected at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audioscribe: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("audioscribe starting",
		"version", version,
		"addr", cfg.Server.Addr(),
		"engine", cfg.Engine.Type,
		"model", cfg.Engine.StartupModelID(),
		"queue_size", cfg.Server.MaxQueueSize,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "audioscribe",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Model registry and backend factory ────────────────────────────────────
	registry := model.Builtin()
	factory := newFactory(cfg)

	startupSpec := resolveStartupSpec(registry, cfg)
	backend, err := factory.New(startupSpec)
	if err != nil {
		slog.Error("failed to construct startup backend", "err", err)
		return 1
	}
	if err := backend.Load(ctx); err != nil {
		slog.Error("failed to load startup model", "model", startupSpec.Alias, "err", err)
		return 1
	}
	slog.Info("startup model loaded", "model", startupSpec.Alias, "engine", startupSpec.EngineType)

	// ── Scheduler ─────────────────────────────────────────────────────────────
	svc := scheduler.New(scheduler.Config{
		Factory:   factory,
		Backend:   backend,
		Spec:      startupSpec,
		QueueSize: cfg.Server.MaxQueueSize,
		Metrics:   metrics,
	})
	svc.Start()

	// ── HTTP server ───────────────────────────────────────────────────────────
	server := api.New(api.Config{
		Registry:       registry,
		Scheduler:      svc,
		EngineType:     cfg.Engine.Type,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready", "addr", cfg.Server.Addr())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then drain the scheduler so queued
		// jobs still complete and the backend is released.
		if err := httpServer.Shutdown(sctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		if err := svc.Stop(sctx); err != nil {
			return fmt.Errorf("scheduler stop: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newFactory wires the backend constructors for both runtime families using
// the sidecar settings from cfg.
func newFactory(cfg *config.Config) *engine.Factory {
	factory := engine.NewFactory()
	factory.Register(model.EngineFunASR, func(spec model.Spec) (engine.Backend, error) {
		return funasr.New(spec, funasr.Config{
			Runner: runner.Config{
				Command: cfg.Engine.FunASR.Command,
				BaseURL: cfg.Engine.FunASR.BaseURL,
			},
			DisableITN: !cfg.Engine.FunASR.UseITN,
		}), nil
	})
	factory.Register(model.EngineMLX, func(spec model.Spec) (engine.Backend, error) {
		return mlx.New(spec, mlx.Config{
			Runner: runner.Config{
				Command: cfg.Engine.MLX.Command,
				BaseURL: cfg.Engine.MLX.BaseURL,
			},
		}), nil
	})
	return factory
}

// resolveStartupSpec maps the configured startup model id onto a registry
// spec. Unknown ids fall back to a custom spec tagged with the configured
// engine type, so locally downloaded variants can still boot.
func resolveStartupSpec(registry *model.Registry, cfg *config.Config) model.Spec {
	id := cfg.Engine.StartupModelID()
	if spec, err := registry.Lookup(id); err == nil {
		return spec
	}
	return model.Spec{
		Alias:       id,
		ModelID:     id,
		EngineType:  model.EngineType(cfg.Engine.Type),
		Description: "Custom model (capabilities resolved at load time).",
	}
}
