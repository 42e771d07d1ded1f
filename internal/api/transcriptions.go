package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/audioscribe/internal/engine"
	"github.com/MrWong99/audioscribe/internal/format"
	"github.com/MrWong99/audioscribe/internal/model"
	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/scheduler"
)

// allowedAudioTypes is the MIME allow-list for uploads.
var allowedAudioTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/flac":  true,
	"audio/ogg":   true,
	"audio/webm":  true,
}

// allowedAudioExtensions is the extension fallback for clients that upload
// audio as application/octet-stream (curl rarely sets a proper type).
var allowedAudioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

// segmentResponse is one diarized segment in the JSON response body.
type segmentResponse struct {
	ID      int     `json:"id"`
	Speaker *string `json:"speaker"`
	Start   float64 `json:"start"` // ms
	End     float64 `json:"end"`   // ms
	Text    string  `json:"text"`
}

// transcriptionResponse is the JSON body for json and txt output formats.
type transcriptionResponse struct {
	Text     string            `json:"text"`
	Duration float64           `json:"duration"`
	Language string            `json:"language"`
	Model    string            `json:"model"`
	Segments []segmentResponse `json:"segments"`
}

// handleTranscription is the admission path: type check, size check, model
// resolution, format normalisation, capability gating, then hand-off to the
// scheduler. Checks run in this exact order and short-circuit on failure.
func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cid := observe.CorrelationID(ctx)
	if cid == "" {
		cid = uuid.NewString()
	}
	log := observe.Logger(ctx).With("uid", cid)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or unreadable 'file' form field")
		return
	}
	defer file.Close()

	// 1. Type check, with extension fallback for generic binary uploads.
	contentType := header.Header.Get("Content-Type")
	if mt, _, parseErr := mime.ParseMediaType(contentType); parseErr == nil {
		contentType = mt
	}
	validType := allowedAudioTypes[contentType]
	if !validType && contentType == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		validType = allowedAudioExtensions[ext]
		if validType {
			log.Info("accepted upload by extension fallback", "filename", header.Filename, "ext", ext)
		}
	}
	if !validType {
		log.Warn("unsupported upload type", "filename", header.Filename, "content_type", contentType)
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported file type. Expected audio file, got: %s", contentType))
		return
	}

	// 2. Size check by stream positioning; never read the body into memory.
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		log.Error("seek on upload failed", "err", err)
		writeError(w, http.StatusInternalServerError, internalErrorDetail(cid))
		return
	}
	if size > s.maxUploadBytes {
		log.Warn("upload too large", "size_bytes", size, "limit_bytes", s.maxUploadBytes)
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File size exceeds maximum allowed (%d MB)", s.maxUploadBytes/(1024*1024)))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		log.Error("seek rewind on upload failed", "err", err)
		writeError(w, http.StatusInternalServerError, internalErrorDetail(cid))
		return
	}

	// 3. Model resolution. Passthrough values never cause a swap.
	var requestedSpec *model.Spec
	modelValue := r.FormValue("model")
	if !model.IsPassthrough(modelValue) {
		spec, err := s.registry.Lookup(modelValue)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		requestedSpec = &spec
	}

	// 4. Output-format normalisation; the legacy response_format wins.
	effFormat, err := format.Normalize(r.FormValue("output_format"), r.FormValue("response_format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	withTimestamp := false
	if v := r.FormValue("with_timestamp"); v != "" {
		withTimestamp, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("with_timestamp %q is not a boolean", v))
			return
		}
	}

	// 5. Capability gating against the explicit model when one was given,
	// so infeasible requests fail before the swap is incurred.
	caps := s.sched.CurrentCapabilities()
	capsModel := s.sched.CurrentSpec().Alias
	if requestedSpec != nil {
		caps = requestedSpec.Capabilities
		capsModel = requestedSpec.Alias
	}
	if effFormat == engine.FormatSRT && !caps.Timestamp {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"SRT format requires timestamp support, but model %q does not produce timestamps. "+
				"Use output_format=json or output_format=txt instead, or switch to a Paraformer model.", capsModel))
		return
	}
	if withTimestamp && !caps.Timestamp {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"with_timestamp=true requires timestamp support, but model %q does not produce timestamps. "+
				"Set with_timestamp=false, or switch to a Paraformer model.", capsModel))
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = "auto"
	}

	log.Info("processing upload",
		"filename", header.Filename,
		"size_bytes", size,
		"format", effFormat,
		"model", modelValue,
	)

	// 6.+7. Scratch materialisation and enqueue happen inside Submit; the
	// call blocks until the worker publishes this job's outcome.
	out, err := s.sched.Submit(ctx, scheduler.SubmitRequest{
		UID:      cid,
		Filename: header.Filename,
		Source:   file,
		Opts: engine.Options{
			Language:      language,
			Format:        effFormat,
			WithTimestamp: withTimestamp,
		},
		RequestedSpec: requestedSpec,
	})
	if err != nil {
		s.writeSubmitError(w, log, cid, err)
		return
	}

	if effFormat == engine.FormatSRT {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, out.Result.Text)
		return
	}

	resp := transcriptionResponse{
		Text:     out.Result.Text,
		Duration: out.Duration,
		Language: responseLanguage(out.Result.Language, language),
		Model:    out.Spec.Alias,
	}
	if effFormat == engine.FormatJSON {
		for i, seg := range out.Result.Segments {
			sr := segmentResponse{
				ID:    i,
				Start: float64(seg.StartMS),
				End:   float64(seg.EndMS),
				Text:  seg.Text,
			}
			if seg.Speaker != "" {
				speaker := seg.Speaker
				sr.Speaker = &speaker
			}
			resp.Segments = append(resp.Segments, sr)
		}
	}
	writeJSON(w, resp)
}

// writeSubmitError maps scheduler failures onto the HTTP error taxonomy.
// 5xx bodies carry only a generic message plus the correlation id; the real
// error is logged.
func (s *Server) writeSubmitError(w http.ResponseWriter, log *slog.Logger, cid string, err error) {
	switch {
	case errors.Is(err, scheduler.ErrQueueFull):
		log.Warn("rejecting upload, queue full")
		writeError(w, http.StatusServiceUnavailable, "Server is busy (Queue Full). Please try again later.")
	case errors.Is(err, scheduler.ErrStopped):
		log.Warn("rejecting upload, server shutting down")
		writeError(w, http.StatusServiceUnavailable, "Server is shutting down. Please try again later.")
	default:
		log.Error("transcription job failed", "err", err)
		writeError(w, http.StatusInternalServerError, internalErrorDetail(cid))
	}
}

// internalErrorDetail is the only message 5xx responses may carry.
func internalErrorDetail(cid string) string {
	return fmt.Sprintf("Internal server error occurred. (Request ID: %s)", cid)
}

// responseLanguage picks the language reported to the client: the backend's
// detected language when available, otherwise the explicitly requested one,
// otherwise the service's primary language.
func responseLanguage(detected, requested string) string {
	if detected != "" {
		return detected
	}
	if requested != "" && requested != "auto" {
		return requested
	}
	return "zh"
}
