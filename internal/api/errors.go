package api

import (
	"encoding/json"
	"net/http"
)

// errorBody matches the {"detail": ...} error shape OpenAI-compatible
// clients expect from transcription servers.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeError sends a JSON error response. detail is sent verbatim; for 5xx
// responses callers must pass a generic message, never internal error text.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: detail})
}

// writeJSON sends a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
