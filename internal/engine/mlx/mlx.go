// Package mlx implements engine.Backend for the mlx-audio runtime
// (Qwen3-ASR, Parakeet, and Whisper model families on Apple Silicon).
//
// Like the FunASR backend, the runtime is a sidecar process managed by
// [runner.Runner]. mlx-audio uses unified memory, so stopping the process
// on Release is the only reliable way to give the memory back before the
// next model loads.
package mlx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/engine/runner"
	"github.com/MrWong99/audioscribe/internal/format"
	"github.com/MrWong99/audioscribe/internal/model"
)

// Config carries deployment settings for the mlx-audio runtime sidecar.
type Config struct {
	// Runner configures the sidecar process and its HTTP address.
	Runner runner.Config
}

// Backend runs mlx-audio models through a sidecar runtime.
type Backend struct {
	spec   model.Spec
	caps   model.Capabilities
	run    *runner.Runner
	loaded bool
}

// New constructs an unloaded mlx backend for spec. Specs without declared
// capabilities (prefix-resolved custom models) default to timestamps plus
// language detection, which holds for the Qwen3-ASR and Whisper families.
func New(spec model.Spec, cfg Config) *Backend {
	caps := spec.Capabilities
	if caps == (model.Capabilities{}) {
		caps = model.Capabilities{Timestamp: true, LanguageDetect: true}
	}
	return &Backend{
		spec: spec,
		caps: caps,
		run:  runner.New(cfg.Runner),
	}
}

// Load starts the mlx-audio runtime for this backend's model. No-op when
// already loaded.
func (b *Backend) Load(ctx context.Context) error {
	if b.loaded {
		slog.Debug("mlx model already loaded, skipping", "model_id", b.spec.ModelID)
		return nil
	}
	slog.Info("loading mlx model", "model_id", b.spec.ModelID)
	if err := b.run.Start(ctx, b.spec.ModelID); err != nil {
		return fmt.Errorf("mlx: load %q: %w", b.spec.ModelID, err)
	}
	b.loaded = true
	return nil
}

// Transcribe runs inference on the audio file at path.
func (b *Backend) Transcribe(ctx context.Context, path string, opts engine.Options) (*engine.Result, error) {
	if !b.loaded {
		return nil, engine.ErrNotLoaded
	}

	reply, err := b.run.Infer(ctx, path, map[string]string{"language": opts.Language})
	if err != nil {
		return nil, fmt.Errorf("mlx: transcribe: %w", err)
	}

	return format.BuildResult(reply.Text, reply.EngineSegments(), reply.Language, reply.Duration, opts), nil
}

// Release stops the mlx-audio runtime and waits for it to exit. Safe to
// call when unloaded.
func (b *Backend) Release(ctx context.Context) error {
	if !b.loaded {
		return nil
	}
	slog.Info("releasing mlx model", "model_id", b.spec.ModelID)
	if err := b.run.Stop(ctx); err != nil {
		return fmt.Errorf("mlx: release %q: %w", b.spec.ModelID, err)
	}
	b.loaded = false
	return nil
}

// Capabilities reports what this backend's model can produce.
func (b *Backend) Capabilities() model.Capabilities {
	return b.caps
}

// Ensure Backend implements engine.Backend at compile time.
var _ engine.Backend = (*Backend)(nil)
