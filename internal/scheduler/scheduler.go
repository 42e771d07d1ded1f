// Package scheduler implements the transcription request scheduler: a
// bounded admission queue drained by a single worker that serialises all
// inference and performs hot model swaps between jobs.
//
// Guarantees:
//   - at most one inference runs at any time,
//   - at most one backend is loaded at any time,
//   - release of the outgoing backend completes before the incoming one
//     loads during a swap,
//   - every admitted job receives exactly one result or error, and its
//     scratch directory is gone by the time the worker moves on.
//
// current backend, current spec, and the degraded flag are written only by
// the worker goroutine; the HTTP layer reads them through atomic snapshots.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/model"
	"github.com/MrWong99/audioscribe/internal/observe"
)

// DefaultQueueSize is the admission queue capacity when none is configured.
const DefaultQueueSize = 50

// scratchPrefix marks per-job temp directories so leftovers are
// recognisable in the OS temp area after a crash.
const scratchPrefix = "asr_task_"

// Config assembles a [Service].
type Config struct {
	// Factory instantiates backends during model swaps.
	Factory *engine.Factory

	// Backend is the already-loaded startup backend.
	Backend engine.Backend

	// Spec describes the model loaded into Backend.
	Spec model.Spec

	// QueueSize is the admission queue capacity. Defaults to
	// [DefaultQueueSize] when zero or negative.
	QueueSize int

	// Metrics receives scheduler instrumentation. Optional.
	Metrics *observe.Metrics
}

// SubmitRequest carries an admitted upload into the scheduler.
type SubmitRequest struct {
	// UID is the request correlation id, used in logs and error reports.
	UID string

	// Filename is the client-supplied upload name; only its extension is
	// kept, for the materialised scratch file.
	Filename string

	// Source streams the upload's bytes. Read exactly once.
	Source io.Reader

	// Opts are the transcription parameters.
	Opts engine.Options

	// RequestedSpec is the explicitly requested model; nil means
	// passthrough (no swap, use the current model).
	RequestedSpec *model.Spec
}

// Service is the bounded-queue, single-worker transcription scheduler.
type Service struct {
	factory *engine.Factory
	metrics *observe.Metrics

	queue chan *job

	// worker-owned state; see package doc.
	backend engine.Backend

	// snapshots readable from any goroutine.
	currentSpec atomic.Pointer[model.Spec]
	currentCaps atomic.Pointer[model.Capabilities]
	degraded    atomic.Bool
	running     atomic.Bool

	workerDone chan struct{}
}

// New creates a Service around an already-loaded startup backend. Call
// [Service.Start] to begin consuming jobs.
func New(cfg Config) *Service {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	s := &Service{
		factory:    cfg.Factory,
		metrics:    cfg.Metrics,
		queue:      make(chan *job, size),
		backend:    cfg.Backend,
		workerDone: make(chan struct{}),
	}
	spec := cfg.Spec
	caps := cfg.Backend.Capabilities()
	s.currentSpec.Store(&spec)
	s.currentCaps.Store(&caps)
	return s
}

// Start launches the worker goroutine.
func (s *Service) Start() {
	s.running.Store(true)
	go s.worker()
	slog.Info("scheduler worker started", "queue_capacity", cap(s.queue), "model", s.CurrentSpec().Alias)
}

// Stop shuts the scheduler down gracefully: jobs already queued are
// processed to completion, a sentinel stops the worker, anything admitted
// behind the sentinel is failed, and the current backend is released.
func (s *Service) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	// Sentinel. Blocks while the queue is full; the worker is draining it.
	s.queue <- nil

	select {
	case <-s.workerDone:
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}

	// Fail anything that slipped in behind the sentinel so no waiter
	// blocks forever and no scratch directory leaks.
	for {
		select {
		case j := <-s.queue:
			if j == nil {
				continue
			}
			j.cleanupScratch()
			j.publish(jobResult{err: ErrStopped})
		default:
			if err := s.backend.Release(ctx); err != nil {
				return fmt.Errorf("scheduler: release backend on shutdown: %w", err)
			}
			return nil
		}
	}
}

// CurrentSpec returns a snapshot of the spec matching the loaded backend.
// During a swap the value may be one swap stale, which is acceptable for
// the informational reads that use it.
func (s *Service) CurrentSpec() model.Spec {
	return *s.currentSpec.Load()
}

// CurrentCapabilities returns a snapshot of the loaded backend's
// capabilities, taken when the backend was installed.
func (s *Service) CurrentCapabilities() model.Capabilities {
	return *s.currentCaps.Load()
}

// Degraded reports whether the engine has entered the sticky degraded
// state.
func (s *Service) Degraded() bool { return s.degraded.Load() }

// QueueDepth returns the number of jobs currently queued.
func (s *Service) QueueDepth() int { return len(s.queue) }

// QueueCapacity returns the admission queue capacity.
func (s *Service) QueueCapacity() int { return cap(s.queue) }

// Submit materialises the upload into a per-job scratch directory, enqueues
// the job, and blocks until the worker publishes its outcome. Returns
// [ErrQueueFull] without creating any scratch state when the queue is at
// capacity, and [ErrStopped] after shutdown has begun.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	if !s.running.Load() {
		return nil, ErrStopped
	}
	if len(s.queue) >= cap(s.queue) {
		return nil, ErrQueueFull
	}

	scratchDir, filePath, err := materialise(req.Filename, req.Source)
	if err != nil {
		return nil, err
	}

	j := &job{
		uid:           req.UID,
		scratchDir:    scratchDir,
		filePath:      filePath,
		opts:          req.Opts,
		requestedSpec: req.RequestedSpec,
		resultCh:      make(chan jobResult, 1),
		receivedAt:    time.Now(),
	}

	select {
	case s.queue <- j:
	default:
		// Raced to capacity between the fast check and the push.
		j.cleanupScratch()
		return nil, ErrQueueFull
	}
	if s.metrics != nil {
		s.metrics.RecordQueueDepth(ctx, +1)
	}

	select {
	case r := <-j.resultCh:
		if r.err != nil {
			return nil, r.err
		}
		duration := r.out.AudioDuration
		if duration == 0 {
			duration = time.Since(j.receivedAt).Seconds()
		}
		return &Outcome{Result: r.out, Spec: r.spec, Duration: duration}, nil
	case <-ctx.Done():
		// No cancellation of in-flight work: the job still runs to
		// completion and the worker's publish lands in the buffered
		// channel. Only the waiter gives up.
		return nil, ctx.Err()
	}
}

// materialise creates the scratch directory and copies the upload into it
// as original.<ext>. On failure the directory is removed before the error
// surfaces.
func materialise(filename string, source io.Reader) (scratchDir, filePath string, err error) {
	scratchDir, err = os.MkdirTemp("", scratchPrefix)
	if err != nil {
		return "", "", fmt.Errorf("scheduler: create scratch dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(scratchDir)
		}
	}()

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".wav"
	}
	filePath = filepath.Join(scratchDir, "original"+ext)

	f, err := os.Create(filePath)
	if err != nil {
		return "", "", fmt.Errorf("scheduler: create scratch file: %w", err)
	}
	defer f.Close()

	if _, err = io.Copy(f, source); err != nil {
		return "", "", fmt.Errorf("scheduler: write upload to scratch: %w", err)
	}
	return scratchDir, filePath, nil
}

// worker is the single consumer loop. It returns when it pops the nil
// sentinel pushed by Stop.
func (s *Service) worker() {
	defer close(s.workerDone)
	for j := range s.queue {
		if j == nil {
			return
		}
		s.process(j)
		if s.metrics != nil {
			s.metrics.RecordQueueDepth(context.Background(), -1)
		}
	}
}

// process runs one job to completion: degraded guard, optional swap,
// inference, publish, scratch reclamation.
func (s *Service) process(j *job) {
	defer j.cleanupScratch()

	ctx := context.Background()
	log := slog.With("uid", j.uid)
	queueTime := time.Since(j.receivedAt)
	log.Info("starting transcription", "queue_time", queueTime, "format", j.opts.Format)

	start := time.Now()
	status := "ok"
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordJob(ctx, status, time.Since(start))
		}
	}()

	if s.degraded.Load() {
		status = "degraded"
		j.publish(jobResult{err: ErrDegraded})
		return
	}

	if j.requestedSpec != nil && *j.requestedSpec != s.CurrentSpec() {
		if err := s.swapTo(ctx, *j.requestedSpec, j.uid); err != nil {
			status = "swap_failed"
			j.publish(jobResult{err: err})
			return
		}
	}

	// Pin the spec reported in the response before calling the backend,
	// so a swap performed for a later job cannot mislabel this answer.
	responseSpec := s.CurrentSpec()
	if j.requestedSpec != nil {
		responseSpec = *j.requestedSpec
	}

	out, err := s.backend.Transcribe(ctx, j.filePath, j.opts)
	if err != nil {
		status = "error"
		log.Error("transcription failed", "err", err)
		j.publish(jobResult{err: fmt.Errorf("scheduler: transcribe: %w", err)})
		return
	}

	log.Info("transcription completed",
		"queue_time", queueTime,
		"inference_time", time.Since(start),
		"model", responseSpec.Alias,
	)
	j.publish(jobResult{out: out, spec: responseSpec})
}

// swapTo replaces the loaded backend with one for newSpec. Release of the
// old backend must complete before the new load begins, otherwise two sets
// of weights coexist and exceed the unified-memory budget.
func (s *Service) swapTo(ctx context.Context, newSpec model.Spec, uid string) error {
	old := s.backend
	oldSpec := s.CurrentSpec()
	log := slog.With("uid", uid, "from", oldSpec.Alias, "to", newSpec.Alias)
	log.Info("switching model")
	start := time.Now()

	// Step 1: release the old backend. On failure, do not proceed to
	// load — memory cannot be safely reclaimed. The old backend stays.
	if err := old.Release(ctx); err != nil {
		log.Error("release of old model failed, aborting swap", "err", err)
		s.recordSwap(ctx, "aborted", start)
		return &SwapAbortedError{UID: uid, OldAlias: oldSpec.Alias, Err: err}
	}

	// Step 2: construct and load the new backend. On failure, restore the
	// old one so subsequent jobs can still proceed.
	newBackend, err := s.factory.New(newSpec)
	if err == nil {
		err = newBackend.Load(ctx)
	}
	if err != nil {
		log.Error("load of new model failed, restoring previous model", "err", err)
		if restoreErr := old.Load(ctx); restoreErr != nil {
			s.degraded.Store(true)
			s.recordSwap(ctx, "unrecoverable", start)
			log.Error("restore of previous model failed, service degraded", "restore_err", restoreErr)
			return &UnrecoverableError{
				NewAlias:   newSpec.Alias,
				OldAlias:   oldSpec.Alias,
				LoadErr:    err,
				RestoreErr: restoreErr,
			}
		}
		// Restored: current backend and spec are unchanged; this job
		// fails with the load error, the next one can succeed.
		s.recordSwap(ctx, "restored", start)
		return fmt.Errorf("scheduler: load %q: %w", newSpec.Alias, err)
	}

	// Step 3: install the new backend. Single-owner worker goroutine, so
	// plain assignment plus snapshot stores suffice.
	s.backend = newBackend
	spec := newSpec
	caps := newBackend.Capabilities()
	s.currentSpec.Store(&spec)
	s.currentCaps.Store(&caps)
	s.recordSwap(ctx, "ok", start)
	log.Info("model switch complete", "elapsed", time.Since(start))
	return nil
}

func (s *Service) recordSwap(ctx context.Context, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSwap(ctx, status, time.Since(start))
	}
}
