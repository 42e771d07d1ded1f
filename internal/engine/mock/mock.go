// Package mock provides a test double for the engine.Backend interface.
//
// Use Backend to verify lifecycle call ordering (load / transcribe /
// release) and to inject failures into any operation. Every call is
// recorded; tests can also attach an OnTranscribe hook to block or to
// return controlled results.
//
// Example:
//
//	b := &mock.Backend{
//	    Result: &engine.Result{Text: "hello"},
//	    Caps:   model.Capabilities{Timestamp: true},
//	}
//	_ = b.Load(ctx)
//	res, _ := b.Transcribe(ctx, "/tmp/a.wav", engine.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/model"
)

// TranscribeCall records a single invocation of Backend.Transcribe.
type TranscribeCall struct {
	// Path is the audio file path passed to Transcribe.
	Path string
	// Opts are the options passed to Transcribe.
	Opts engine.Options
}

// Backend is a mock implementation of engine.Backend.
type Backend struct {
	mu sync.Mutex

	// Caps is returned by Capabilities.
	Caps model.Capabilities

	// Result is returned by Transcribe on success. If nil, Transcribe
	// returns an empty result.
	Result *engine.Result

	// LoadErr, if non-nil, is returned by every Load call.
	LoadErr error

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// ReleaseErr, if non-nil, is returned by every Release call.
	ReleaseErr error

	// OnTranscribe, if non-nil, is invoked instead of the default behaviour.
	// Useful for blocking a job or returning per-call results.
	OnTranscribe func(ctx context.Context, path string, opts engine.Options) (*engine.Result, error)

	// OnLoad, if non-nil, is invoked after the call is recorded and before
	// LoadErr is consulted. Useful for failing only specific load attempts.
	OnLoad func(ctx context.Context) error

	// --- Call records ---

	// LoadCalls is the number of Load invocations.
	LoadCalls int

	// ReleaseCalls is the number of Release invocations.
	ReleaseCalls int

	// TranscribeCalls records every Transcribe invocation in order.
	TranscribeCalls []TranscribeCall

	// loaded tracks the lifecycle state transitions driven by Load/Release.
	loaded bool
}

// Load records the call, runs OnLoad if set, and returns LoadErr.
// Marks the backend loaded on success.
func (b *Backend) Load(ctx context.Context) error {
	b.mu.Lock()
	b.LoadCalls++
	hook := b.OnLoad
	err := b.LoadErr
	b.mu.Unlock()

	if hook != nil {
		err = hook(ctx)
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.loaded = true
	b.mu.Unlock()
	return nil
}

// Transcribe records the call and returns Result/TranscribeErr, or defers
// to OnTranscribe when set. Returns engine.ErrNotLoaded when Load has not
// succeeded.
func (b *Backend) Transcribe(ctx context.Context, path string, opts engine.Options) (*engine.Result, error) {
	b.mu.Lock()
	b.TranscribeCalls = append(b.TranscribeCalls, TranscribeCall{Path: path, Opts: opts})
	hook := b.OnTranscribe
	loaded := b.loaded
	res, err := b.Result, b.TranscribeErr
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, path, opts)
	}
	if !loaded {
		return nil, engine.ErrNotLoaded
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &engine.Result{}, nil
	}
	return res, nil
}

// Release records the call and returns ReleaseErr. Marks the backend
// unloaded on success.
func (b *Backend) Release(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ReleaseCalls++
	if b.ReleaseErr != nil {
		return b.ReleaseErr
	}
	b.loaded = false
	return nil
}

// Capabilities returns Caps.
func (b *Backend) Capabilities() model.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Caps
}

// Loaded reports whether the mock considers itself loaded. Thread-safe.
func (b *Backend) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (b *Backend) TranscribeCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.TranscribeCalls)
}

// Reset clears all recorded calls and lifecycle state. Thread-safe.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LoadCalls = 0
	b.ReleaseCalls = 0
	b.TranscribeCalls = nil
	b.loaded = false
}

// Ensure Backend implements engine.Backend at compile time.
var _ engine.Backend = (*Backend)(nil)
