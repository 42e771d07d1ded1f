// Package funasr implements engine.Backend for the FunASR runtime
// (Paraformer and SenseVoice model families).
//
// The runtime runs as a sidecar process managed by [runner.Runner]: Load
// spawns it with the model id and waits for readiness, Transcribe posts the
// audio file to its inference endpoint, and Release stops the process —
// guaranteeing the weights are out of memory before another model loads.
package funasr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/engine/runner"
	"github.com/MrWong99/audioscribe/internal/format"
	"github.com/MrWong99/audioscribe/internal/model"
)

// timestampCapableModels lists the FunASR model ids that emit per-segment
// timestamps and therefore support speaker diarization. SenseVoice and
// other models in the family do not.
var timestampCapableModels = map[string]bool{
	"iic/speech_seaco_paraformer_large_asr_nat-zh-cn-16k-common-vocab8404-pytorch": true,
	"iic/speech_paraformer-large-vad-punc_asr_nat-zh-cn-16k-common-vocab8404-pytorch": true,
}

// Config carries deployment settings for the FunASR runtime sidecar.
type Config struct {
	// Runner configures the sidecar process and its HTTP address.
	Runner runner.Config

	// DisableITN turns off inverse text normalisation ("一百" -> "100"),
	// which is on by default.
	DisableITN bool
}

// Backend runs FunASR models through a sidecar runtime.
type Backend struct {
	spec   model.Spec
	caps   model.Capabilities
	useITN bool
	run    *runner.Runner
	loaded bool
}

// New constructs an unloaded FunASR backend for spec. When the spec carries
// no declared capabilities (prefix-resolved custom models), they are
// inferred from the model id: Paraformer-family models get timestamps and
// diarization, everything else gets language detection only.
func New(spec model.Spec, cfg Config) *Backend {
	caps := spec.Capabilities
	if caps == (model.Capabilities{}) {
		caps = model.Capabilities{LanguageDetect: true}
		if timestampCapableModels[spec.ModelID] {
			caps.Timestamp = true
			caps.Diarization = true
		}
	}
	return &Backend{
		spec:   spec,
		caps:   caps,
		useITN: !cfg.DisableITN,
		run:    runner.New(cfg.Runner),
	}
}

// Load starts the FunASR runtime for this backend's model. No-op when
// already loaded.
func (b *Backend) Load(ctx context.Context) error {
	if b.loaded {
		slog.Debug("funasr model already loaded, skipping", "model_id", b.spec.ModelID)
		return nil
	}
	slog.Info("loading funasr model", "model_id", b.spec.ModelID)
	if err := b.run.Start(ctx, b.spec.ModelID); err != nil {
		return fmt.Errorf("funasr: load %q: %w", b.spec.ModelID, err)
	}
	b.loaded = true
	return nil
}

// Transcribe runs inference on the audio file at path.
func (b *Backend) Transcribe(ctx context.Context, path string, opts engine.Options) (*engine.Result, error) {
	if !b.loaded {
		return nil, engine.ErrNotLoaded
	}

	params := map[string]string{
		"language": opts.Language,
		"use_itn":  strconv.FormatBool(b.useITN),
	}
	reply, err := b.run.Infer(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("funasr: transcribe: %w", err)
	}

	return format.BuildResult(reply.Text, reply.EngineSegments(), reply.Language, reply.Duration, opts), nil
}

// Release stops the FunASR runtime and waits for it to exit. Safe to call
// when unloaded.
func (b *Backend) Release(ctx context.Context) error {
	if !b.loaded {
		return nil
	}
	slog.Info("releasing funasr model", "model_id", b.spec.ModelID)
	if err := b.run.Stop(ctx); err != nil {
		return fmt.Errorf("funasr: release %q: %w", b.spec.ModelID, err)
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
