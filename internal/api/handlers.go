package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trafficguard/botscore/internal/models"
	"github.com/trafficguard/botscore/internal/registry"
)

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	for name, dep := range s.dependencies {
		if err := dep.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, name+"_unavailable", name+" not available")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

type analyzeRequest struct {
	models.VisitorSignal
	Targeting *models.CampaignTargeting `json:"targeting,omitempty"`
}

// analyze scores a visitor signal. Scoring failures degrade to a neutral
// decision inside the predictor; this handler never returns a 500 for them.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}

	decision := s.predictor.Predict(r.Context(), &req.VisitorSignal, req.Targeting)
	respondJSON(w, http.StatusOK, decision)
}

func (s *Server) cachedPrediction(w http.ResponseWriter, r *http.Request) {
	if s.predictions == nil {
		respondError(w, http.StatusNotFound, "not_found", "Prediction cache not configured")
		return
	}

	fingerprint := chi.URLParam(r, "fingerprint")
	entry := s.predictions.GetPrediction(r.Context(), fingerprint)
	if entry == nil {
		respondError(w, http.StatusNotFound, "not_found", "No cached prediction for fingerprint")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

type submitSampleRequest struct {
	models.VisitorSignal
	Label      models.Label `json:"label"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp,omitempty"`
}

func (s *Server) submitSample(w http.ResponseWriter, r *http.Request) {
	var req submitSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return
	}
	if req.Label != models.LabelBot && req.Label != models.LabelHuman {
		respondError(w, http.StatusBadRequest, "invalid_label", "Label must be bot or human")
		return
	}

	s.predictor.SubmitSample(r.Context(), &req.VisitorSignal, req.Label, req.Confidence, req.Timestamp)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

func (s *Server) triggerTraining(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.TriggerAsync()
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "triggered",
		"running": s.orchestrator.Running(),
	})
}

func (s *Server) modelInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":          "rule-based",
		"training_running": s.orchestrator.Running(),
	}
	if s.queueDepth != nil {
		info["pending_samples"] = s.queueDepth(r.Context())
	}

	if active := s.registry.ActiveSnapshot(); active != nil {
		info["version"] = active.Version
		info["loaded_at"] = active.LoadedAt
		info["feature_count"] = len(active.FeatureOrder)
		info["metrics"] = active.Metrics
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.registry.ListVersions(r.Context())
	if err != nil {
		s.logger.Error("listing model versions", "error", err)
		respondError(w, http.StatusInternalServerError, "list_failed", "Could not list model versions")
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		respondError(w, http.StatusBadRequest, "invalid_version", "Version must be a positive integer")
		return
	}

	if err := s.registry.Load(r.Context(), version); err != nil {
		if errors.Is(err, registry.ErrVersionNotFound) {
			respondError(w, http.StatusNotFound, "version_not_found", "Model version not found")
			return
		}
		s.logger.Error("rolling back model", "version", version, "error", err)
		respondError(w, http.StatusInternalServerError, "rollback_failed", "Could not activate model version")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "rolled_back",
		"version": version,
	})
}
