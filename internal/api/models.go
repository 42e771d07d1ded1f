package api

import (
	"net/http"

	"github.com/MrWong99/audioscribe/internal/model"
)

// modelsResponse is the body of GET /v1/models: the registry snapshot plus
// the alias currently loaded.
type modelsResponse struct {
	Models  []model.Spec `json:"models"`
	Current string       `json:"current"`
}

// currentModelResponse is the body of GET /v1/models/current.
type currentModelResponse struct {
	EngineType   string             `json:"engine_type"`
	Alias        string             `json:"alias"`
	ModelID      string             `json:"model_id"`
	Capabilities model.Capabilities `json:"capabilities"`
	QueueSize    int                `json:"queue_size"`
	MaxQueueSize int                `json:"max_queue_size"`
}

// handleListModels returns every built-in model sorted by alias.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, modelsResponse{
		Models:  s.registry.ListAll(),
		Current: s.sched.CurrentSpec().Alias,
	})
}

// handleCurrentModel reports the loaded model and queue state. It reads the
// spec snapshot, not the live backend, so a swap in progress cannot race
// this read.
func (s *Server) handleCurrentModel(w http.ResponseWriter, _ *http.Request) {
	spec := s.sched.CurrentSpec()
	writeJSON(w, currentModelResponse{
		EngineType:   string(spec.EngineType),
		Alias:        spec.Alias,
		ModelID:      spec.ModelID,
		Capabilities: spec.Capabilities,
		QueueSize:    s.sched.QueueDepth(),
		MaxQueueSize: s.sched.QueueCapacity(),
	})
}
