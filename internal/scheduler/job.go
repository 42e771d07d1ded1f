package scheduler

import (
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/model"
)

// job is one admitted transcription request travelling from the admission
// path to the worker. Created by Submit, consumed exactly once by the
// worker.
type job struct {
	// uid is the request correlation id.
	uid string

	// scratchDir is the per-job temporary directory owning filePath. The
	// worker deletes it on every termination path.
	scratchDir string

	// filePath is the materialised upload inside scratchDir.
	filePath string

	// opts are the transcription parameters.
	opts engine.Options

	// requestedSpec is the explicitly requested model, or nil for
	// passthrough (use whatever is currently loaded).
	requestedSpec *model.Spec

	// resultCh receives exactly one outcome. Buffered so the worker never
	// blocks on publish even if the waiter has gone away.
	resultCh chan jobResult

	// receivedAt is when the job was admitted.
	receivedAt time.Time
}

// jobResult is the single value published on a job's result channel.
type jobResult struct {
	out  *engine.Result
	spec model.Spec
	err  error
}

// publish delivers the job's outcome. Exactly one publish happens per job.
func (j *job) publish(r jobResult) {
	j.resultCh <- r
}

// cleanupScratch removes the job's scratch directory. Idempotent; errors
// are logged and swallowed — scratch reclamation must never mask the job's
// real outcome.
func (j *job) cleanupScratch() {
	if j.scratchDir == "" {
		return
	}
	if err := os.RemoveAll(j.scratchDir); err != nil {
		slog.Warn("failed to remove scratch dir", "uid", j.uid, "dir", j.scratchDir, "err", err)
	}
}

// Outcome is the terminal result of a successfully processed job.
type Outcome struct {
	// Result is the backend's transcription output.
	Result *engine.Result

	// Spec is the model spec the answer was produced with, determined
	// before inference started so concurrent swaps cannot mislabel it.
	Spec model.Spec

	// Duration is the reportable duration in seconds: the audio duration
	// when the backend measured it, otherwise the job's wall-clock time.
	Duration float64
}
