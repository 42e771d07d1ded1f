// Package runner manages an ASR runtime sidecar process and its inference
// HTTP API.
//
// The FunASR and mlx-audio model families are Python runtimes; the service
// keeps each one out-of-process and talks to it over loopback HTTP. A
// Runner owns exactly one such process: Start spawns it and polls its
// health endpoint until ready, Infer submits an audio file as a multipart
// POST, and Stop terminates the process and waits for it to exit — which is
// what guarantees the model weights are actually out of memory before a
// different model is loaded.
//
// A Runner with an empty Command manages no process and only speaks HTTP;
// useful when the runtime is started externally, and for tests backed by
// httptest servers.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/audioscribe/internal/engine"
)

const (
	// defaultStartupTimeout bounds how long Start waits for the runtime's
	// health endpoint to come up. First-run model downloads can be slow.
	defaultStartupTimeout = 5 * time.Minute

	// defaultStopTimeout bounds how long Stop waits for a graceful exit
	// before escalating to SIGKILL.
	defaultStopTimeout = 30 * time.Second

	// healthPollInterval is the delay between readiness probes during Start.
	healthPollInterval = 250 * time.Millisecond
)

// ErrNotRunning is returned by Infer when the runner process has not been
// started (or has been stopped) and no external BaseURL responds.
var ErrNotRunning = errors.New("runner: runtime not running")

// Config describes how to launch and reach a runtime sidecar.
type Config struct {
	// Command is the argv used to spawn the runtime. The placeholder
	// "{model}" in any element is replaced with the model id at start time.
	// Empty means the runtime is managed externally and only BaseURL is used.
	Command []string

	// BaseURL is the root of the runtime's HTTP API
	// (e.g. "http://127.0.0.1:50171").
	BaseURL string

	// StartupTimeout overrides the default readiness timeout.
	StartupTimeout time.Duration

	// StopTimeout overrides the default graceful-stop timeout.
	StopTimeout time.Duration

	// HTTPClient overrides the default client. Inference requests can run
	// for minutes, so the default client has no timeout.
	HTTPClient *http.Client
}

// Segment is one entry of a runtime inference reply. Timestamps are in
// milliseconds.
type Segment struct {
	Speaker string  `json:"speaker,omitempty"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Reply is the decoded JSON body of a successful inference request.
type Reply struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// EngineSegments converts the reply's segments into engine segments.
// Returns nil when the runtime reported no segment information.
func (r *Reply) EngineSegments() []engine.Segment {
	if len(r.Segments) == 0 {
		return nil
	}
	out := make([]engine.Segment, len(r.Segments))
	for i, s := range r.Segments {
		out[i] = engine.Segment{
			Speaker: s.Speaker,
			StartMS: int64(s.Start),
			EndMS:   int64(s.End),
			Text:    s.Text,
		}
	}
	return out
}

// Runner owns one runtime sidecar process. Not safe for concurrent use;
// the scheduler serialises all backend operations.
type Runner struct {
	cfg    Config
	client *http.Client
	cmd    *exec.Cmd
	done   chan error
}

// New creates a Runner for the given config. No process is spawned until
// [Runner.Start].
func New(cfg Config) *Runner {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Runner{cfg: cfg, client: client}
}

// Running reports whether a managed process is alive, or, for externally
// managed runtimes, whether Start has completed since the last Stop.
func (r *Runner) Running() bool {
	if len(r.cfg.Command) == 0 {
		return r.done != nil
	}
	return r.cmd != nil
}

// Start spawns the runtime process (substituting modelID for "{model}" in
// the configured command) and blocks until its health endpoint answers or
// the startup timeout expires. Calling Start on a running Runner is a no-op.
func (r *Runner) Start(ctx context.Context, modelID string) error {
	if r.Running() {
		return nil
	}

	if len(r.cfg.Command) > 0 {
		argv := make([]string, len(r.cfg.Command))
		for i, a := range r.cfg.Command {
			argv[i] = strings.ReplaceAll(a, "{model}", modelID)
		}

		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("runner: start %q: %w", argv[0], err)
		}

		r.cmd = cmd
		r.done = make(chan error, 1)
		go func() { r.done <- cmd.Wait() }()

		slog.Debug("runtime process started", "command", argv[0], "pid", cmd.Process.Pid, "model_id", modelID)
	} else {
		// Externally managed runtime: just mark started and probe it.
		r.done = make(chan error, 1)
	}

	if err := r.awaitReady(ctx); err != nil {
		stopErr := r.Stop(ctx)
		return errors.Join(fmt.Errorf("runner: runtime for %q not ready: %w", modelID, err), stopErr)
	}
	return nil
}

// awaitReady polls GET {BaseURL}/health until it returns 200, the process
// exits, or the startup timeout elapses.
func (r *Runner) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(r.cfg.StartupTimeout)
	url := r.cfg.BaseURL + "/health"

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := r.client.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("health endpoint %s did not come up within %s", url, r.cfg.StartupTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case werr := <-r.done:
			r.done <- werr
			return fmt.Errorf("runtime process exited during startup: %v", werr)
		case <-time.After(healthPollInterval):
		}
	}
}

// Stop terminates the runtime process and waits until it has exited, so the
// caller knows the model's memory has been reclaimed. Safe to call on a
// stopped Runner. SIGTERM first, SIGKILL after the stop timeout.
func (r *Runner) Stop(ctx context.Context) error {
	if !r.Running() {
		return nil
	}
	if r.cmd == nil {
		// Externally managed runtime: nothing to terminate.
		r.done = nil
		return nil
	}

	defer func() {
		r.cmd = nil
		r.done = nil
	}()

	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		// Process may already be gone; Wait below sorts it out.
		slog.Debug("signal runtime process", "err", err)
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.cmd.Process.Kill()
		<-r.done
		return ctx.Err()
	case <-time.After(r.cfg.StopTimeout):
	}

	slog.Warn("runtime process did not exit in time, killing", "pid", r.cmd.Process.Pid)
	if err := r.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("runner: kill runtime: %w", err)
	}
	<-r.done
	return nil
}

// Infer submits the audio file at path to POST {BaseURL}/inference as a
// multipart form, with params as additional form fields, and decodes the
// JSON reply.
func (r *Runner) Infer(ctx context.Context, path string, params map[string]string) (*Reply, error) {
	if !r.Running() {
		return nil, ErrNotRunning
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runner: open audio %q: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("runner: build multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("runner: read audio %q: %w", path, err)
	}
	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("runner: write field %q: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("runner: finalise multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/inference", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner: inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("runner: inference failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("runner: decode inference reply: %w", err)
	}
	return &reply, nil
}
