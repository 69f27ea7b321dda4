// Package server exposes the assist pipeline over HTTP: REST routes
// for assist, training, model, and learning operations, a websocket
// channel for interactive use, and the operational endpoints
// (health, readiness, info, Prometheus metrics).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/foremanai/foreman-ai/internal/assistant"
	"github.com/foremanai/foreman-ai/internal/audit"
	"github.com/foremanai/foreman-ai/internal/config"
	"github.com/foremanai/foreman-ai/internal/db"
	"github.com/foremanai/foreman-ai/internal/learning"
	"github.com/foremanai/foreman-ai/internal/metrics"
	"github.com/foremanai/foreman-ai/internal/middleware"
	"github.com/foremanai/foreman-ai/internal/ml"
)

// Server wires the pipeline components behind the HTTP surface.
type Server struct {
	config *config.Config

	// Request pipeline
	assistant *assistant.Assistant
	training  *ml.TrainingStore
	predictor *ml.Predictor
	learning  *learning.Store
	store     db.Store
	audit     audit.Logger
	limiter   *middleware.RateLimiter
	logger    *zap.Logger

	// Listener
	httpServer *http.Server

	// Lifetime control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Run state
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a server from the given configuration and
// initializes every component: audit trail, persistence, training
// store, predictor, learning store, and the assist pipeline.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := srv.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("initialise components: %w", err)
	}

	return srv, nil
}

// initializeComponents builds the component graph in dependency order.
func (s *Server) initializeComponents() error {
	cfg := s.config

	// 1. Audit trail and application logger
	auditLog, err := audit.NewLogger(&audit.Config{
		AuditLogPath: cfg.Logging.AuditLogPath,
		AppLogPath:   cfg.Logging.AppLogPath,
		MaxSize:      cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAge:       cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		LogLevel:     cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	s.audit = auditLog
	s.logger = auditLog.App()

	// 2. Persistence
	if cfg.Database.Path != "" {
		store, err := db.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		s.store = store
	}

	// 3. Training store, hydrated from persistence
	s.training = ml.NewTrainingStore()
	if s.store != nil {
		rows, err := s.store.ListTrainingRecords(s.ctx)
		if err != nil {
			return fmt.Errorf("failed to load training records: %w", err)
		}
		records := make([]ml.TrainingRecord, len(rows))
		for i, row := range rows {
			records[i] = ml.TrainingRecord{
				MachineID:   row.MachineID,
				Worker:      row.WorkerName,
				TimeMinutes: row.TimeMinutes,
				Quality:     row.QualityScore,
				RecordedAt:  row.RecordedAt,
			}
		}
		loaded := s.training.Add(records)
		if loaded > 0 {
			s.logger.Info("loaded training records", zap.Int("records", loaded))
		}
	}

	// 4. Seed an empty store so a fresh install can answer immediately
	if s.training.Len() == 0 && cfg.Model.SeedIfEmpty {
		seed := ml.DefaultTrainingSet()
		s.training.Add(seed)
		s.persistTrainingRecords(seed)
		s.logger.Info("seeded training store", zap.Int("records", len(seed)))
	}
	metrics.TrainingRecords.Set(float64(s.training.Len()))

	// 5. Predictor, trained at startup when history exists
	s.predictor = ml.NewPredictor(s.training)
	if cfg.Model.RetrainOnStart && s.training.Len() > 0 {
		summary := s.predictor.Retrain()
		metrics.ModelRecords.Set(float64(summary.Records))
		metrics.ModelRetrainsTotal.Inc()
		s.logger.Info("initial model training complete",
			zap.Int("records", summary.Records),
			zap.Int("workers", summary.Workers))
	}

	// 6. Learning store and the assembled pipeline
	s.learning = learning.NewStore()
	s.assistant = assistant.New(s.predictor, s.learning, s.audit)

	// 7. Rate limiter
	if cfg.Assist.RateLimitPerMinute > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.Assist.RateLimitPerMinute, cfg.Assist.RateLimitBurst)
	}

	return nil
}

// persistTrainingRecords appends records to the database, logging
// rather than failing on write errors.
func (s *Server) persistTrainingRecords(records []ml.TrainingRecord) {
	if s.store == nil {
		return
	}
	for _, r := range records {
		row := &db.TrainingRow{
			MachineID:    r.MachineID,
			WorkerName:   r.Worker,
			TimeMinutes:  r.TimeMinutes,
			QualityScore: r.Quality,
			RecordedAt:   r.RecordedAt,
		}
		if err := s.store.AppendTrainingRecord(s.ctx, row); err != nil {
			s.appLog().Warn("failed to persist training record", zap.Error(err))
		}
	}
}

// appLog returns the application logger, or a no-op logger when the
// server was assembled without one.
func (s *Server) appLog() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if s.config.Server.TLSEnabled {
			err = s.httpServer.ListenAndServeTLS(s.config.Server.TLSCertPath, s.config.Server.TLSKeyPath)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.appLog().Error("http server error", zap.Error(err))
		}
	}()

	s.appLog().Info("server started",
		zap.String("addr", addr),
		zap.Bool("tls", s.config.Server.TLSEnabled),
		zap.Bool("model_trained", s.predictor != nil && s.predictor.Trained()))

	if s.audit != nil {
		event := audit.NewEvent(audit.EventServerStarted).
			WithDescription(fmt.Sprintf("Server listening on %s", addr)).
			WithResult(audit.ResultSuccess)
		_ = s.audit.Log(s.ctx, event)
	}

	return nil
}

// Stop gracefully stops the server and releases component resources.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server not started")
	}
	s.running = false
	s.mu.Unlock()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.appLog().Error("http shutdown error", zap.Error(err))
		}
	}

	if s.audit != nil {
		event := audit.NewEvent(audit.EventServerShutdown).
			WithDescription("Server shut down").
			WithResult(audit.ResultSuccess)
		_ = s.audit.Log(s.ctx, event)
	}

	s.cancel()
	s.wg.Wait()

	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.appLog().Error("database close error", zap.Error(err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Close()
	}

	return nil
}

// Wait blocks until the server is stopped.
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Assistant returns the assembled assist pipeline.
func (s *Server) Assistant() *assistant.Assistant {
	return s.assistant
}

// Predictor returns the prediction model.
func (s *Server) Predictor() *ml.Predictor {
	return s.predictor
}

// registerHandlers registers HTTP handlers. API routes go through the
// rate limiter when one is configured.
func (s *Server) registerHandlers(mux *http.ServeMux) {
	// Operational endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/info", s.handleInfo)
	mux.Handle("/metrics", promhttp.Handler())

	// Pipeline operations
	mux.HandleFunc("/api/v1/assist", s.limited(s.handleAssist))
	mux.HandleFunc("/api/v1/learning/status", s.limited(s.handleLearningStatus))

	// Training and model surface
	mux.HandleFunc("/api/v1/training/records", s.limited(s.handleTrainingRecords))
	mux.HandleFunc("/api/v1/training/retrain", s.limited(s.handleTrainingRetrain))
	mux.HandleFunc("/api/v1/model/status", s.limited(s.handleModelStatus))
	mux.HandleFunc("/api/v1/model/workers/", s.limited(s.handleWorkerStats))

	// Interactive channel
	mux.HandleFunc("/ws/assist", s.handleWebSocket)
}

// limited wraps a handler with the rate limiter when one is configured.
func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

// handleReady handles readiness check requests. The server is ready
// once it is running with an assembled pipeline and, when persistence
// is configured, a reachable database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	ready := s.running && s.assistant != nil
	s.mu.RUnlock()

	if ready && s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			ready = false
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not_ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	var uptime float64
	if s.running {
		uptime = time.Since(s.startedAt).Seconds()
	}
	s.mu.RUnlock()

	info := map[string]any{
		"name":           "foreman-ai",
		"version":        "0.1.0",
		"uptime_seconds": uptime,
		"persistence":    s.store != nil,
		"rate_limited":   s.limiter != nil,
		"timestamp":      time.Now().Format(time.RFC3339),
	}
	if s.predictor != nil {
		status := s.predictor.Status()
		info["model"] = map[string]any{
			"trained": status.Trained,
			"records": status.Records,
			"workers": len(status.Workers),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}
