package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AI service metrics for production monitoring
var (
	// Assist pipeline metrics
	AssistRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foreman_ai_assist_requests_total",
			Help: "Total number of assist requests processed",
		},
		[]string{"intent", "outcome"}, // outcome: answered/degraded/corrective/rejected/failed
	)

	AssistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foreman_ai_assist_duration_seconds",
			Help:    "Assist pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"intent"},
	)

	// Prediction metrics
	PredictionConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foreman_ai_prediction_confidence",
			Help:    "Confidence of served predictions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"machine"},
	)

	PredictionFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foreman_ai_prediction_fallbacks_total",
			Help: "Total number of predictions served from the untrained-model fallback",
		},
	)

	// Model metrics
	TrainingRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foreman_ai_training_records",
			Help: "Training records currently held in the store",
		},
	)

	ModelRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foreman_ai_model_records",
			Help: "Records baked into the active model snapshot",
		},
	)

	ModelRetrainsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foreman_ai_model_retrains_total",
			Help: "Total number of model retrains",
		},
	)

	RetrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foreman_ai_retrain_duration_seconds",
			Help:    "Model retrain duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		},
	)

	// Learning metrics
	LearningInteractions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foreman_ai_learning_interactions",
			Help: "Interactions currently retained by the learning store",
		},
	)

	LearningPatterns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foreman_ai_learning_patterns",
			Help: "Distinct query tokens tracked by the learning store",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foreman_ai_websocket_connections",
			Help: "Open WebSocket connections right now",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foreman_ai_websocket_messages_total",
			Help: "WebSocket messages exchanged, by direction",
		},
		[]string{"direction"}, // inbound or outbound
	)

	// Transport metrics
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foreman_ai_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)
