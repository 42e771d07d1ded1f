// Package engine defines the Backend interface for ASR inference runtimes
// and its supporting types.
//
// A Backend wraps one loadable model family (FunASR, mlx-audio). Lifecycle:
// constructed unloaded, transitions to loaded via [Backend.Load], back to
// unloaded via [Backend.Release]. The scheduler guarantees that it calls at
// most one of Load / Transcribe / Release at a time on any given instance,
// so implementations need not be internally thread-safe.
//
// Implementations are provided by runtime-specific packages (funasr, mlx).
// The interface is intentionally narrow so the scheduler remains
// runtime-agnostic.
package engine

import (
	"context"
	"errors"

	"github.com/MrWong99/audioscribe/internal/model"
)

// ErrNotLoaded is returned by Transcribe when the backend has not been
// loaded, or was released and not re-loaded.
var ErrNotLoaded = errors.New("engine: model not loaded")

// OutputFormat selects the shape of a transcription result.
type OutputFormat string

const (
	// FormatJSON returns structured text plus segments.
	FormatJSON OutputFormat = "json"

	// FormatTXT returns human-readable text lines with speaker labels.
	FormatTXT OutputFormat = "txt"

	// FormatSRT returns a standard SRT subtitle document.
	FormatSRT OutputFormat = "srt"
)

// IsValid reports whether f is a recognised output format.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatTXT, FormatSRT:
		return true
	}
	return false
}

// Options carries the per-request transcription parameters.
type Options struct {
	// Language is the requested language code ("auto", "zh", "en", …).
	// "auto" lets capable models detect the language.
	Language string

	// Format selects the result shape. For [FormatTXT] and [FormatSRT] the
	// backend returns pre-rendered text; for [FormatJSON] it returns
	// structured segments.
	Format OutputFormat

	// WithTimestamp prefixes TXT lines with a [MM:SS] marker. Only honoured
	// by backends whose capabilities include timestamps.
	WithTimestamp bool
}

// Segment is one diarized, timestamped slice of a transcription.
type Segment struct {
	// Speaker is the diarization label (e.g. "Speaker 0"), empty when the
	// model does not diarize.
	Speaker string

	// StartMS and EndMS bound the segment in milliseconds from the start
	// of the audio.
	StartMS int64
	EndMS   int64

	// Text is the transcribed content of this segment.
	Text string
}

// Result is the outcome of a successful [Backend.Transcribe] call.
type Result struct {
	// Text is the full transcription. For TXT and SRT formats it already
	// carries the rendered document; Segments is nil in that case.
	Text string

	// Segments holds structured detail for the JSON format. Nil when the
	// model produced no segment information or a plain-text format was
	// requested.
	Segments []Segment

	// Language is the language the model detected or was pinned to.
	// Empty when the runtime does not report one.
	Language string

	// AudioDuration is the length of the input audio in seconds, when the
	// runtime reports it. Zero means unknown.
	AudioDuration float64
}

// Backend is the abstraction over any ASR inference runtime.
//
// Contract:
//   - Construction must be cheap; all expensive work happens in Load.
//   - Load is idempotent when already loaded.
//   - Release is tolerant of being called on an unloaded instance.
//   - Transcribe on an unloaded backend returns [ErrNotLoaded].
//   - Implementations must not retain references to the input file after
//     Transcribe returns.
type Backend interface {
	// Load brings the model into memory. May trigger a model download on
	// first use. No-op when already loaded.
	Load(ctx context.Context) error

	// Transcribe runs inference on the audio file at path. Blocking and
	// resource-heavy; the scheduler serialises all calls.
	Transcribe(ctx context.Context, path string, opts Options) (*Result, error)

	// Release frees the model's memory. Safe to call when unloaded.
	Release(ctx context.Context) error

	// Capabilities reports what the loaded model can produce. Stable once
	// the backend is loaded.
	Capabilities() model.Capabilities
}
