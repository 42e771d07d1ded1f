package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/engine/mock"
	"github.com/MrWong99/audioscribe/internal/model"
	"github.com/MrWong99/audioscribe/internal/scheduler"
)

const testUploadLimit = 1024 // bytes, keeps oversize fixtures tiny

// newTestStack wires a real scheduler around backend and returns the HTTP
// handler plus the scheduler for state assertions.
func newTestStack(t *testing.T, backend *mock.Backend, spec model.Spec, factory *engine.Factory, queueSize int) (http.Handler, *scheduler.Service) {
	t.Helper()

	if err := backend.Load(context.Background()); err != nil {
		t.Fatalf("load startup backend: %v", err)
	}
	svc := scheduler.New(scheduler.Config{
		Factory:   factory,
		Backend:   backend,
		Spec:      spec,
		QueueSize: queueSize,
	})
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})

	srv := New(Config{
		Registry:       model.Builtin(),
		Scheduler:      svc,
		EngineType:     string(spec.EngineType),
		MaxUploadBytes: testUploadLimit,
	})
	return srv.Router(), svc
}

func builtinSpec(t *testing.T, alias string) model.Spec {
	t.Helper()
	spec, err := model.Builtin().Lookup(alias)
	if err != nil {
		t.Fatalf("lookup %q: %v", alias, err)
	}
	return spec
}

// uploadRequest builds a multipart POST to /v1/audio/transcriptions with
// an explicit part content type.
func uploadRequest(t *testing.T, filename, contentType string, payload []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %q: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/v1/audio/transcriptions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func wavPayload(n int) []byte {
	p := make([]byte, n)
	copy(p, "RIFF....WAVE")
	return p
}

func decodeTranscription(t *testing.T, rec *httptest.ResponseRecorder) transcriptionResponse {
	t.Helper()
	var resp transcriptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorBody
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e.Detail
}

func TestTranscription_HappyPath(t *testing.T) {
	b := &mock.Backend{
		Caps: model.Capabilities{Timestamp: true, Diarization: true},
		Result: &engine.Result{
			Text: "hello",
			Segments: []engine.Segment{
				{Speaker: "Speaker 0", StartMS: 0, EndMS: 500, Text: "hello"},
			},
		},
	}
	handler, _ := newTestStack(t, b, builtinSpec(t, "paraformer"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"output_format": "json",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}

	resp := decodeTranscription(t, rec)
	if resp.Text != "hello" {
		t.Errorf("text = %q, want %q", resp.Text, "hello")
	}
	if resp.Model != "paraformer" {
		t.Errorf("model = %q, want startup alias paraformer", resp.Model)
	}
	if len(resp.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(resp.Segments))
	}
	seg := resp.Segments[0]
	if seg.Speaker == nil || *seg.Speaker != "Speaker 0" {
		t.Errorf("speaker = %v, want Speaker 0", seg.Speaker)
	}
	if seg.Start != 0 || seg.End != 500 {
		t.Errorf("segment times = %v..%v, want 0..500", seg.Start, seg.End)
	}
}

func TestTranscription_TXTOmitsSegments(t *testing.T) {
	b := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true, Diarization: true},
		Result: &engine.Result{Text: "[Speaker 0]: hello"},
	}
	handler, _ := newTestStack(t, b, builtinSpec(t, "paraformer"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"output_format": "txt",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"segments":null`) {
		t.Errorf("txt response should carry null segments, body: %s", rec.Body.String())
	}
}

func TestTranscription_SRTReturnsPlainText(t *testing.T) {
	srtDoc := "1\n00:00:00,000 --> 00:00:00,500\n[Speaker 0]: hello\n\n"
	b := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true},
		Result: &engine.Result{Text: srtDoc},
	}
	handler, _ := newTestStack(t, b, builtinSpec(t, "paraformer"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"output_format": "srt",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if rec.Body.String() != srtDoc {
		t.Errorf("body = %q, want the SRT document", rec.Body.String())
	}
}

func TestTranscription_LegacyResponseFormatWins(t *testing.T) {
	srtDoc := "1\n00:00:00,000 --> 00:00:00,500\n[Speaker 0]: hi\n\n"
	b := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true},
		Result: &engine.Result{Text: srtDoc},
	}
	handler, _ := newTestStack(t, b, builtinSpec(t, "paraformer"), engine.NewFactory(), 4)

	// response_format=vtt must override output_format=json and yield SRT.
	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"output_format":   "json",
		"response_format": "vtt",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/plain for vtt-mapped srt", ct)
	}
}

func TestTranscription_UnsupportedMediaType(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "never"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	req := uploadRequest(t, "photo.png", "image/png", wavPayload(80), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
	if detail := decodeError(t, rec); !strings.Contains(detail, "image/png") {
		t.Errorf("detail = %q, want the offending type named", detail)
	}
	if b.TranscribeCallCount() != 0 {
		t.Error("backend invoked for rejected upload")
	}
}

func TestTranscription_OctetStreamExtensionFallback(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "ok"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	// Audio extension: accepted.
	req := uploadRequest(t, "clip.wav", "application/octet-stream", wavPayload(80), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("octet-stream + .wav: status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	// Image extension: rejected.
	req = uploadRequest(t, "photo.png", "application/octet-stream", wavPayload(80), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("octet-stream + .png: status = %d, want 415", rec.Code)
	}
}

func TestTranscription_SizeLimitBoundary(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "ok"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	// Exactly at the limit: admitted.
	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(testUploadLimit), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("at-limit upload: status = %d, want 200", rec.Code)
	}

	// One byte over: rejected.
	req = uploadRequest(t, "clip.wav", "audio/wav", wavPayload(testUploadLimit+1), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("over-limit upload: status = %d, want 413", rec.Code)
	}
}

func TestTranscription_UnknownModel(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "never"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"model": "definitely-not-a-model",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if detail := decodeError(t, rec); !strings.Contains(detail, "definitely-not-a-model") {
		t.Errorf("detail = %q, want unknown model named", detail)
	}
}

func TestTranscription_PassthroughModelDoesNotSwap(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "ok"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"model": "whisper-1",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if b.ReleaseCalls != 0 {
		t.Error("passthrough model value triggered a swap")
	}
	resp := decodeTranscription(t, rec)
	if resp.Model != "sensevoice-small" {
		t.Errorf("model = %q, want current alias", resp.Model)
	}
}

func TestTranscription_CapabilityRejection(t *testing.T) {
	// SenseVoice has no timestamp capability.
	b := &mock.Backend{
		Caps:   model.Capabilities{EmotionTags: true, LanguageDetect: true},
		Result: &engine.Result{Text: "never"},
	}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	for _, fields := range []map[string]string{
		{"output_format": "srt"},
		{"with_timestamp": "true"},
	} {
		req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), fields)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("fields %v: status = %d, want 400", fields, rec.Code)
			continue
		}
		if detail := decodeError(t, rec); !strings.Contains(detail, "timestamp") {
			t.Errorf("fields %v: detail = %q, want mention of timestamp", fields, detail)
		}
	}
	if b.TranscribeCallCount() != 0 {
		t.Error("backend invoked for capability-rejected request")
	}
}

func TestTranscription_CapabilityGateUsesRequestedSpec(t *testing.T) {
	// Current model supports timestamps, the explicitly requested one does
	// not: the request must fail before any swap happens.
	b := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true},
		Result: &engine.Result{Text: "never"},
	}
	handler, _ := newTestStack(t, b, builtinSpec(t, "paraformer"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"model":         "sensevoice-small",
		"output_format": "srt",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if detail := decodeError(t, rec); !strings.Contains(detail, "sensevoice-small") {
		t.Errorf("detail = %q, want requested model named", detail)
	}
	if b.ReleaseCalls != 0 {
		t.Error("swap started for an infeasible request")
	}
}

func TestTranscription_UnknownFormat(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "never"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"output_format": "yaml",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTranscription_QueueFull(t *testing.T) {
	b := &mock.Backend{}
	block := make(chan struct{})
	started := make(chan struct{})
	first := true
	b.OnTranscribe = func(_ context.Context, _ string, _ engine.Options) (*engine.Result, error) {
		if first {
			first = false
			close(started)
			<-block
		}
		return &engine.Result{Text: "ok"}, nil
	}
	handler, svc := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 2)

	codes := make(chan int, 3)
	post := func() {
		req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes <- rec.Code
	}

	// One in flight, two parked in the queue.
	go post()
	<-started
	go post()
	waitFor(t, func() bool { return svc.QueueDepth() == 1 })
	go post()
	waitFor(t, func() bool { return svc.QueueDepth() == 2 })

	// Queue at capacity: immediate 503.
	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if detail := decodeError(t, rec); !strings.Contains(detail, "Queue") {
		t.Errorf("detail = %q, want mention of Queue", detail)
	}

	close(block)
	for i := 0; i < 3; i++ {
		if code := <-codes; code != http.StatusOK {
			t.Errorf("queued request status = %d, want 200", code)
		}
	}
}

func TestTranscription_SwapSequence(t *testing.T) {
	old := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true, LanguageDetect: true},
		Result: &engine.Result{Text: "from qwen"},
	}
	next := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true, Diarization: true, LanguageDetect: true},
		Result: &engine.Result{Text: "from paraformer"},
	}
	factory := engine.NewFactory()
	factory.Register(model.EngineFunASR, func(_ model.Spec) (engine.Backend, error) {
		return next, nil
	})
	handler, svc := newTestStack(t, old, builtinSpec(t, "qwen3-asr"), factory, 4)

	for i := 0; i < 2; i++ {
		req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
			"model": "paraformer",
		})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
		}
		resp := decodeTranscription(t, rec)
		if resp.Model != "paraformer" {
			t.Errorf("model = %q, want paraformer", resp.Model)
		}
	}

	// Exactly one release+load; the second request reuses the loaded model.
	if old.ReleaseCalls != 1 {
		t.Errorf("old release calls = %d, want 1", old.ReleaseCalls)
	}
	if next.LoadCalls != 1 {
		t.Errorf("new load calls = %d, want 1", next.LoadCalls)
	}
	if next.TranscribeCallCount() != 2 {
		t.Errorf("new transcribe calls = %d, want 2", next.TranscribeCallCount())
	}
	if old.TranscribeCallCount() != 0 {
		t.Error("old backend transcribed after swap")
	}
	if got := svc.CurrentSpec().Alias; got != "paraformer" {
		t.Errorf("current alias = %q, want paraformer", got)
	}
}

func TestTranscription_SwapLoadFailureRecovers(t *testing.T) {
	old := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true, LanguageDetect: true},
		Result: &engine.Result{Text: "from qwen"},
	}
	next := &mock.Backend{LoadErr: fmt.Errorf("weights corrupt")}
	factory := engine.NewFactory()
	factory.Register(model.EngineFunASR, func(_ model.Spec) (engine.Backend, error) {
		return next, nil
	})
	handler, svc := newTestStack(t, old, builtinSpec(t, "qwen3-asr"), factory, 4)

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"model": "paraformer",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	detail := decodeError(t, rec)
	if strings.Contains(detail, "weights corrupt") {
		t.Errorf("5xx detail leaked internals: %q", detail)
	}
	if !strings.Contains(detail, "Request ID") {
		t.Errorf("5xx detail missing correlation id: %q", detail)
	}

	// The old model was restored; passthrough requests succeed.
	req = uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status after restore = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if got := svc.CurrentSpec().Alias; got != "qwen3-asr" {
		t.Errorf("current alias = %q, want restored qwen3-asr", got)
	}
}

func TestTranscription_UnrecoverableSwapDegradesService(t *testing.T) {
	old := &mock.Backend{
		Caps:   model.Capabilities{Timestamp: true, LanguageDetect: true},
		Result: &engine.Result{Text: "from qwen"},
	}
	next := &mock.Backend{LoadErr: fmt.Errorf("weights corrupt")}
	factory := engine.NewFactory()
	factory.Register(model.EngineFunASR, func(_ model.Spec) (engine.Backend, error) {
		return next, nil
	})
	handler, svc := newTestStack(t, old, builtinSpec(t, "qwen3-asr"), factory, 4)
	old.OnLoad = func(_ context.Context) error { return fmt.Errorf("memory exhausted") }

	req := uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), map[string]string{
		"model": "paraformer",
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !svc.Degraded() {
		t.Fatal("service not degraded after failed restore")
	}

	// All subsequent jobs fail fast.
	req = uploadRequest(t, "clip.wav", "audio/wav", wavPayload(80), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status while degraded = %d, want 500", rec.Code)
	}

	// Liveness stays green: the process can still serve HTTP.
	req = httptest.NewRequest("GET", "/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 while degraded", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"degraded":true`) {
		t.Errorf("health body missing degraded flag: %s", rec.Body.String())
	}
}

func TestListModels(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "ok"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "sensevoice-small"), engine.NewFactory(), 4)

	req := httptest.NewRequest("GET", "/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp modelsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Current != "sensevoice-small" {
		t.Errorf("current = %q, want sensevoice-small", resp.Current)
	}
	if len(resp.Models) != 5 {
		t.Fatalf("models = %d, want 5 builtins", len(resp.Models))
	}
	for i := 1; i < len(resp.Models); i++ {
		if resp.Models[i-1].Alias >= resp.Models[i].Alias {
			t.Errorf("models not alias-sorted: %q before %q", resp.Models[i-1].Alias, resp.Models[i].Alias)
		}
	}
}

func TestCurrentModel(t *testing.T) {
	b := &mock.Backend{Result: &engine.Result{Text: "ok"}}
	handler, _ := newTestStack(t, b, builtinSpec(t, "paraformer"), engine.NewFactory(), 7)

	req := httptest.NewRequest("GET", "/v1/models/current", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp currentModelResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Alias != "paraformer" {
		t.Errorf("alias = %q, want paraformer", resp.Alias)
	}
	if resp.EngineType != "funasr" {
		t.Errorf("engine_type = %q, want funasr", resp.EngineType)
	}
	if !resp.Capabilities.Diarization {
		t.Error("capabilities missing diarization for paraformer")
	}
	if resp.MaxQueueSize != 7 {
		t.Errorf("max_queue_size = %d, want 7", resp.MaxQueueSize)
	}
	if resp.QueueSize != 0 {
		t.Errorf("queue_size = %d, want 0", resp.QueueSize)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}
