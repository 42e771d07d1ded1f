// Package health provides HTTP health and readiness check handlers.
//
// The package exposes two endpoints:
//
//   - /health — liveness probe; always returns 200 OK while the process can
//     serve HTTP, even when the inference engine is degraded. The body
//     reports the engine type and the currently loaded model.
//   - /readyz — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and, for readiness, a "checks" map containing the result of each named
// checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "engine",
	// "queue"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// EngineState is a point-in-time snapshot of the inference engine reported
// on the liveness endpoint.
type EngineState struct {
	// EngineType is the backend family currently serving requests.
	EngineType string

	// Model is the alias of the currently loaded model.
	Model string

	// Degraded reports whether the engine is in the sticky degraded state
	// after a failed swap restore.
	Degraded bool
}

// StateFunc returns the current engine state. Called on every /health
// request; must be cheap and safe for concurrent use.
type StateFunc func() EngineState

// result is the JSON response body for health endpoints.
type result struct {
	Status     string            `json:"status"`
	EngineType string            `json:"engine_type,omitempty"`
	Model      string            `json:"model,omitempty"`
	Degraded   bool              `json:"degraded,omitempty"`
	Checks     map[string]string `json:"checks,omitempty"`
}

// Handler serves /health and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	state    StateFunc
	checkers []Checker
}

// New creates a [Handler] that reports state on /health and evaluates the
// given checkers on each /readyz request. The checkers are evaluated
// sequentially in the order provided. state may be nil, in which case the
// liveness response carries only the status field.
func New(state StateFunc, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{state: state, checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive; a degraded engine is reported in
// the body but does not change the status code.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.state != nil {
		st := h.state()
		res.EngineType = st.EngineType
		res.Model = st.Model
		res.Degraded = st.Degraded
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
