package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foremanai/foreman-ai/internal/db"
	"github.com/foremanai/foreman-ai/internal/metrics"
	"github.com/foremanai/foreman-ai/internal/ml"
)

// ─── Training records ────────────────────────────────────────────────────────

type addTrainingRequest struct {
	Records []ml.TrainingRecord `json:"records"`
}

type addTrainingResponse struct {
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Total    int    `json:"total"`
	Note     string `json:"note,omitempty"`
}

// handleTrainingRecords appends completed-job records (POST) or lists
// the persisted history (GET).
func (s *Server) handleTrainingRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddTrainingRecords(w, r)
	case http.MethodGet:
		s.handleListTrainingRecords(w, r)
	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

// handleAddTrainingRecords validates and stores a batch of records.
// Valid records are kept even when the batch also carries invalid
// ones; the model itself only changes on the next retrain.
func (s *Server) handleAddTrainingRecords(w http.ResponseWriter, r *http.Request) {
	if s.training == nil {
		http.Error(w, `{"error":"training store not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	var req addTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReject(w, http.StatusBadRequest, "invalid request body",
			"send a JSON object with a records array")
		return
	}
	if len(req.Records) == 0 {
		writeReject(w, http.StatusBadRequest, "records are required",
			"include at least one record with machine_id, worker, time_minutes and quality")
		return
	}

	now := time.Now().UTC()
	valid := make([]ml.TrainingRecord, 0, len(req.Records))
	var firstErr error
	for _, rec := range req.Records {
		if err := rec.Validate(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if rec.RecordedAt.IsZero() {
			rec.RecordedAt = now
		}
		valid = append(valid, rec)
	}
	rejected := len(req.Records) - len(valid)

	if len(valid) == 0 {
		writeReject(w, http.StatusBadRequest, "no valid records in batch: "+firstErr.Error(),
			"machine_id must be 1-5, worker non-empty, time_minutes positive and quality 0-100")
		return
	}

	accepted := s.training.Add(valid)
	s.persistTrainingRecords(valid)
	metrics.TrainingRecords.Set(float64(s.training.Len()))

	if s.audit != nil {
		_ = s.audit.LogTrainingIngested(r.Context(), accepted, rejected)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(addTrainingResponse{
		Accepted: accepted,
		Rejected: rejected,
		Total:    s.training.Len(),
		Note:     "records are applied to the model on the next retrain",
	})
}

// handleListTrainingRecords queries the persisted job history, newest
// first. Filters: machine_id, worker, limit, offset.
func (s *Server) handleListTrainingRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, `{"error":"store not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	q := db.TrainingQuery{
		MachineID:  parseIntParam(r, "machine_id", 0),
		WorkerName: r.URL.Query().Get("worker"),
		Limit:      parseIntParam(r, "limit", 100),
		Offset:     parseIntParam(r, "offset", 0),
	}

	rows, err := s.store.QueryTrainingRecords(r.Context(), q)
	if err != nil {
		http.Error(w, `{"error":"failed to query training records"}`, http.StatusInternalServerError)
		return
	}
	total, err := s.store.CountTrainingRecords(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to count training records"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"records": rows,
		"count":   len(rows),
		"total":   total,
	})
}

// ─── Retrain ─────────────────────────────────────────────────────────────────

type retrainResponse struct {
	Records   int       `json:"records"`
	Workers   int       `json:"workers"`
	Trained   bool      `json:"trained"`
	TrainedAt time.Time `json:"trained_at"`
}

// handleTrainingRetrain rebuilds the model from the full training
// store and swaps it in atomically.
func (s *Server) handleTrainingRetrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.predictor == nil {
		http.Error(w, `{"error":"predictor not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	started := time.Now()
	summary := s.predictor.Retrain()
	elapsed := time.Since(started)

	metrics.ModelRecords.Set(float64(summary.Records))
	metrics.ModelRetrainsTotal.Inc()
	metrics.RetrainDuration.Observe(elapsed.Seconds())

	if s.audit != nil {
		_ = s.audit.LogModelRetrained(r.Context(), summary.Records, elapsed)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(retrainResponse{
		Records:   summary.Records,
		Workers:   summary.Workers,
		Trained:   s.predictor.Trained(),
		TrainedAt: summary.TrainedAt,
	})
}

// ─── Model status ────────────────────────────────────────────────────────────

// handleModelStatus reports the active model snapshot.
func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.predictor == nil {
		http.Error(w, `{"error":"predictor not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.predictor.Status())
}

// handleWorkerStats reports one worker's aggregated history. The
// worker name is the final path segment.
func (s *Server) handleWorkerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.predictor == nil {
		http.Error(w, `{"error":"predictor not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	worker := strings.TrimPrefix(r.URL.Path, "/api/v1/model/workers/")
	worker = strings.TrimSuffix(worker, "/")
	if worker == "" {
		http.Error(w, `{"error":"worker name is required"}`, http.StatusBadRequest)
		return
	}

	stats, err := s.predictor.WorkerStats(worker)
	if err != nil {
		var unknown *ml.UnknownWorkerError
		switch {
		case errors.As(err, &unknown):
			http.Error(w, `{"error":"unknown worker"}`, http.StatusNotFound)
		case errors.Is(err, ml.ErrModelNotTrained):
			http.Error(w, `{"error":"model has not been trained"}`, http.StatusServiceUnavailable)
		default:
			http.Error(w, `{"error":"failed to compute worker stats"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

// parseIntParam reads an integer query parameter, returning the
// default when absent or malformed.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
