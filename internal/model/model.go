// Package model defines the ASR model catalogue: engine capabilities,
// model specifications, and the registry that resolves user-supplied model
// strings to specs.
//
// The registry is the single source of truth for built-in models. It is
// populated once at startup and read-only afterwards, so values can be
// shared freely across goroutines.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// EngineType tags which inference runtime a model runs on.
type EngineType string

const (
	// EngineFunASR runs models through the FunASR runtime (Paraformer,
	// SenseVoice families).
	EngineFunASR EngineType = "funasr"

	// EngineMLX runs models through the mlx-audio runtime (Qwen3-ASR,
	// Parakeet, Whisper families on Apple Silicon).
	EngineMLX EngineType = "mlx"
)

// IsValid reports whether e is a recognised engine type.
func (e EngineType) IsValid() bool {
	return e == EngineFunASR || e == EngineMLX
}

// Capabilities declares what a loaded ASR model can produce. It is attached
// to every registry entry and also reported by a live backend. The API layer
// uses it to reject infeasible requests before any resources are consumed.
type Capabilities struct {
	// Timestamp indicates the model emits per-segment start/end times.
	// Required for SRT output and timestamped TXT output.
	Timestamp bool `json:"timestamp" yaml:"timestamp"`

	// Diarization indicates the model labels segments with speaker ids.
	Diarization bool `json:"diarization" yaml:"diarization"`

	// EmotionTags indicates the model annotates utterances with emotion
	// markers (SenseVoice).
	EmotionTags bool `json:"emotion_tags" yaml:"emotion_tags"`

	// LanguageDetect indicates the model can detect the spoken language
	// when the request does not pin one.
	LanguageDetect bool `json:"language_detect" yaml:"language_detect"`
}

// Spec is the complete specification of a named ASR model. Two specs are
// equal iff all fields are equal; Spec is comparable so plain == works.
type Spec struct {
	// Alias is the short stable name clients use (e.g. "paraformer").
	Alias string `json:"alias"`

	// ModelID is the backend-specific identifier or path
	// (e.g. "mlx-community/Qwen3-ASR-1.7B-8bit").
	ModelID string `json:"model_id"`

	// EngineType selects the runtime that can load this model.
	EngineType EngineType `json:"engine_type"`

	// Description is a human-readable summary shown by GET /v1/models.
	Description string `json:"description"`

	// Capabilities declares what the model can produce.
	Capabilities Capabilities `json:"capabilities"`
}

// UnknownModelError is returned by [Registry.Lookup] when a model string
// cannot be resolved to any known alias, model id, or engine prefix.
type UnknownModelError struct {
	// Model is the string that failed to resolve.
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q: use GET /v1/models to list built-in models, "+
		"or pass a full path prefixed with 'mlx-community/' or 'iic/'", e.Model)
}

// passthrough values that mean "use whatever model is currently loaded".
// "whisper-1" is the OpenAI client default; the empty string appears when
// form clients serialise an absent field.
var passthroughValues = map[string]bool{
	"":          true,
	"whisper-1": true,
}

// IsPassthrough reports whether the model form value means "use the
// server's current model" — i.e. no swap should occur.
func IsPassthrough(model string) bool {
	return passthroughValues[model]
}

// Registry maps aliases to model specs, with a reverse index from model id
// back to alias. Immutable after construction.
type Registry struct {
	byAlias   map[string]Spec
	aliasByID map[string]string
}

// NewRegistry builds a registry from the given specs. Later specs with a
// duplicate alias overwrite earlier ones.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{
		byAlias:   make(map[string]Spec, len(specs)),
		aliasByID: make(map[string]string, len(specs)),
	}
	for _, s := range specs {
		r.byAlias[s.Alias] = s
		r.aliasByID[s.ModelID] = s.Alias
	}
	return r
}

// Builtin returns the registry of models that ship with the service.
func Builtin() *Registry {
	return NewRegistry(
		Spec{
			Alias:       "paraformer",
			ModelID:     "iic/speech_seaco_paraformer_large_asr_nat-zh-cn-16k-common-vocab8404-pytorch",
			EngineType:  EngineFunASR,
			Description: "Mandarin + speaker diarization (FunASR). Best for multi-speaker podcasts.",
			Capabilities: Capabilities{
				Timestamp:      true,
				Diarization:    true,
				LanguageDetect: true,
			},
		},
		Spec{
			Alias:       "qwen3-asr-mini",
			ModelID:     "mlx-community/Qwen3-ASR-1.7B-4bit",
			EngineType:  EngineMLX,
			Description: "Fast & light Qwen3 ASR (4-bit). Best for single-speaker, low latency.",
			Capabilities: Capabilities{
				Timestamp:      true,
				LanguageDetect: true,
			},
		},
		Spec{
			Alias:       "qwen3-asr",
			ModelID:     "mlx-community/Qwen3-ASR-1.7B-8bit",
			EngineType:  EngineMLX,
			Description: "Qwen3 ASR (8-bit, higher accuracy).",
			Capabilities: Capabilities{
				Timestamp:      true,
				LanguageDetect: true,
			},
		},
		Spec{
			Alias:       "parakeet",
			ModelID:     "mlx-community/parakeet-tdt-0.6b-v2",
			EngineType:  EngineMLX,
			Description: "NVIDIA Parakeet (English only, very fast). Short clips only — OOM on files > ~5 min.",
			Capabilities: Capabilities{
				Timestamp: true,
			},
		},
		Spec{
			Alias:       "sensevoice-small",
			ModelID:     "iic/SenseVoiceSmall",
			EngineType:  EngineFunASR,
			Description: "SenseVoice Small — fastest model (80-85x realtime). Language detection and emotion tags, no timestamps.",
			Capabilities: Capabilities{
				EmotionTags:    true,
				LanguageDetect: true,
			},
		},
	)
}

// Lookup resolves a model string to a [Spec].
//
// Resolution order:
//  1. Exact alias match ("paraformer").
//  2. Registered model id match ("mlx-community/Qwen3-ASR-1.7B-4bit"),
//     returning the canonical alias's spec.
//  3. Prefix-based engine inference for unregistered paths:
//     "mlx-community/…" resolves to mlx; "iic/…" or any string containing
//     "funasr" (case-insensitive) resolves to funasr. The resulting spec
//     carries the input string as both alias and model id and an empty
//     capability set — real capabilities are only known once loaded.
//
// Returns an [*UnknownModelError] if none of the above match. The prefix
// fallback lets unregistered local variants be benchmarked without
// hard-coding them while still refusing arbitrary strings.
func (r *Registry) Lookup(model string) (Spec, error) {
	if s, ok := r.byAlias[model]; ok {
		return s, nil
	}
	if alias, ok := r.aliasByID[model]; ok {
		return r.byAlias[alias], nil
	}

	var inferred EngineType
	switch {
	case strings.HasPrefix(model, "mlx-community/"):
		inferred = EngineMLX
	case strings.HasPrefix(model, "iic/"), strings.Contains(strings.ToLower(model), "funasr"):
		inferred = EngineFunASR
	default:
		return Spec{}, &UnknownModelError{Model: model}
	}

	return Spec{
		Alias:       model,
		ModelID:     model,
		EngineType:  inferred,
		Description: "Custom model (capabilities resolved at load time).",
	}, nil
}

// ListAll returns every registered spec sorted by alias.
func (r *Registry) ListAll() []Spec {
	specs := make([]Spec, 0, len(r.byAlias))
	for _, s := range r.byAlias {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Alias < specs[j].Alias })
	return specs
}

// AliasFor returns the registered alias for a model id, or "" if the id is
// not in the registry.
func (r *Registry) AliasFor(modelID string) string {
	return r.aliasByID[modelID]
}
