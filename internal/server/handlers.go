package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foremanai/foreman-ai/internal/assistant"
	"github.com/foremanai/foreman-ai/internal/audit"
	"github.com/foremanai/foreman-ai/internal/db"
	"github.com/foremanai/foreman-ai/internal/enhance"
	"github.com/foremanai/foreman-ai/internal/metrics"
	"github.com/foremanai/foreman-ai/internal/respond"
)

// ─── Assist pipeline ─────────────────────────────────────────────────────────

// handleAssist runs one natural-language request through the pipeline
// and returns the full response envelope.
func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.assistant == nil {
		http.Error(w, `{"error":"assistant not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	var req assistant.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReject(w, http.StatusBadRequest, "invalid request body",
			"send a JSON object with a query field")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		metrics.AssistRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
		writeReject(w, http.StatusBadRequest, "query is required",
			`describe the job, e.g. "who should work on machine 3?"`)
		return
	}
	if limit := s.maxQueryLength(); len(query) > limit {
		metrics.AssistRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
		writeReject(w, http.StatusBadRequest,
			fmt.Sprintf("query exceeds the %d character limit", limit),
			"shorten the request to the essentials")
		return
	}

	requestID := audit.GenerateCorrelationID()
	ctx := audit.WithCorrelationID(r.Context(), requestID)

	started := time.Now()
	envelope, err := s.assistant.Assist(ctx, req)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyQuery) {
			metrics.AssistRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
			writeReject(w, http.StatusBadRequest, "query is required",
				`describe the job, e.g. "who should work on machine 3?"`)
			return
		}
		metrics.AssistRequestsTotal.WithLabelValues("unknown", "failed").Inc()
		s.appLog().Error("assist pipeline failed",
			zap.String("request_id", requestID), zap.Error(err))
		http.Error(w, `{"error":"assist pipeline failed"}`, http.StatusInternalServerError)
		return
	}

	intentType := string(envelope.UnderstoodIntent.Primary.Type)
	outcome := assistOutcome(envelope)
	metrics.AssistRequestsTotal.WithLabelValues(intentType, outcome).Inc()
	metrics.AssistDuration.WithLabelValues(intentType).Observe(time.Since(started).Seconds())
	switch outcome {
	case "answered":
		machine := strconv.Itoa(envelope.Reasoning.Parameters.MachineID)
		metrics.PredictionConfidence.WithLabelValues(machine).Observe(envelope.Result.Base.Confidence)
	case "degraded":
		metrics.PredictionFallbacksTotal.Inc()
	}

	status := s.assistant.LearningStatus()
	metrics.LearningInteractions.Set(float64(status.StoredInteractions))
	metrics.LearningPatterns.Set(float64(status.LearnedPatterns))

	s.archiveInteraction(requestID, query, envelope)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope)
}

// assistOutcome classifies the envelope for metrics. No result means
// the pipeline answered with guidance instead of a recommendation; a
// fallback recommendation means the model could not be consulted.
func assistOutcome(envelope *respond.Envelope) string {
	switch {
	case envelope.Result == nil:
		return "corrective"
	case envelope.Result.Base.RecommendedWorker == enhance.FallbackWorker:
		return "degraded"
	default:
		return "answered"
	}
}

// archiveInteraction records the understood request in the interaction
// archive. Archive failures are logged, never surfaced to the caller.
func (s *Server) archiveInteraction(requestID, query string, envelope *respond.Envelope) {
	if s.store == nil {
		return
	}
	row := &db.InteractionRow{
		ID:         requestID,
		Query:      query,
		IntentType: string(envelope.UnderstoodIntent.Primary.Type),
		Confidence: envelope.UnderstoodIntent.Primary.Confidence,
		CreatedAt:  envelope.Timestamp,
	}
	if err := s.store.AppendInteraction(s.ctx, row); err != nil {
		s.appLog().Warn("failed to archive interaction",
			zap.String("request_id", requestID), zap.Error(err))
	}
}

// maxQueryLength returns the configured query limit, falling back to
// the default when the server was assembled without a config.
func (s *Server) maxQueryLength() int {
	if s.config != nil && s.config.Assist.MaxQueryLength > 0 {
		return s.config.Assist.MaxQueryLength
	}
	return 2000
}

// ─── Learning status ─────────────────────────────────────────────────────────

// handleLearningStatus reports what the system has accumulated from
// served requests.
func (s *Server) handleLearningStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.assistant == nil {
		http.Error(w, `{"error":"assistant not initialised"}`, http.StatusServiceUnavailable)
		return
	}

	status := s.assistant.LearningStatus()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ─── Shared helpers ──────────────────────────────────────────────────────────

// writeReject writes a validation rejection envelope.
func writeReject(w http.ResponseWriter, code int, message, suggestion string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(respond.ValidationReply(message, suggestion))
}
