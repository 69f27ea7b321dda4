package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Events are held in memory and written out in batches. A batch is
// flushed when it reaches pendingLimit or when flushInterval passes,
// whichever comes first.
const (
	pendingLimit  = 100
	flushInterval = 1 * time.Second
)

// Logger records audit events and owns the application logger that
// shares their rotation policy.
type Logger interface {
	// Log queues an event for the audit trail
	Log(ctx context.Context, event *Event) error

	// LogAssist logs assist request lifecycle events
	LogAssistAnswered(ctx context.Context, requestID, intent string, machineID int, worker string, confidence float64, duration time.Duration) error
	LogAssistDegraded(ctx context.Context, requestID, reason string) error
	LogAssistRejected(ctx context.Context, requestID, reason string) error
	LogAssistFailed(ctx context.Context, requestID string, err error) error

	// LogTraining logs training data and model events
	LogTrainingIngested(ctx context.Context, accepted, rejected int) error
	LogModelRetrained(ctx context.Context, records int, duration time.Duration) error

	// App returns the application logger sharing this logger's rotation policy
	App() *zap.Logger

	// Sync drains pending events to disk
	Sync() error

	// Close flushes and shuts the logger down
	Close() error
}

// Config holds the file paths, rotation policy, and app log level for
// both log streams. Sizes are megabytes, ages are days.
type Config struct {
	AuditLogPath string
	AppLogPath   string
	MaxSize      int
	MaxBackups   int
	MaxAge       int
	Compress     bool
	LogLevel     string
}

// DefaultConfig returns the rotation and level settings used when no
// configuration is supplied.
func DefaultConfig() *Config {
	return &Config{
		AuditLogPath: "logs/audit.log",
		AppLogPath:   "logs/app.log",
		MaxSize:      100,
		MaxBackups:   10,
		MaxAge:       30,
		Compress:     true,
		LogLevel:     "info",
	}
}

// auditLogger batches events and writes them through zap
type auditLogger struct {
	appLogger *zap.Logger
	trail     *zap.Logger
	config    *Config

	mu      sync.Mutex
	pending []*Event
	ticker  *time.Ticker
	done    chan struct{}
}

// newRotator builds a size-and-age rotating file sink.
func newRotator(path string, config *Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// NewLogger creates the paired loggers: a leveled application logger
// and an append-only audit trail, each on its own rotating file.
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.LogLevel, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	appCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(newRotator(config.AppLogPath, config)),
		level,
	)
	appLogger := zap.New(appCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	// The trail ignores the configured level; every audit event is
	// written at info.
	trailCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(newRotator(config.AuditLogPath, config)),
		zapcore.InfoLevel,
	)

	logger := &auditLogger{
		appLogger: appLogger,
		trail:     zap.New(trailCore),
		config:    config,
		pending:   make([]*Event, 0, pendingLimit),
		ticker:    time.NewTicker(flushInterval),
		done:      make(chan struct{}),
	}

	go logger.flushLoop()

	return logger, nil
}

// App returns the application logger.
func (l *auditLogger) App() *zap.Logger {
	return l.appLogger
}

// Log queues an audit event, flushing when the batch is full.
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, event)
	if len(l.pending) >= pendingLimit {
		return l.flushLocked()
	}

	return nil
}

// flushLocked writes every queued event; the caller holds the lock.
func (l *auditLogger) flushLocked() error {
	if len(l.pending) == 0 {
		return nil
	}

	for _, event := range l.pending {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("marshaling audit event failed",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}

		l.trail.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}

	l.pending = l.pending[:0]

	return nil
}

func (l *auditLogger) flushLoop() {
	for {
		select {
		case <-l.ticker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

// LogAssistAnswered logs a completed assist request and its recommendation
func (l *auditLogger) LogAssistAnswered(ctx context.Context, requestID, intent string, machineID int, worker string, confidence float64, duration time.Duration) error {
	event := NewEvent(EventAssistAnswered).
		WithCorrelationID(requestID).
		WithIntent(intent).
		WithAssignment(machineID, worker).
		WithConfidence(confidence).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithDescription(fmt.Sprintf("Assist request %s answered", requestID))

	return l.Log(ctx, event)
}

// LogAssistDegraded logs an assist request answered from the fallback path
func (l *auditLogger) LogAssistDegraded(ctx context.Context, requestID, reason string) error {
	event := NewEvent(EventAssistDegraded).
		WithCorrelationID(requestID).
		WithResult(ResultSuccess).
		WithMetadata("reason", reason).
		WithDescription(fmt.Sprintf("Assist request %s answered without model support", requestID))

	return l.Log(ctx, event)
}

// LogAssistRejected logs an assist request refused by validation
func (l *auditLogger) LogAssistRejected(ctx context.Context, requestID, reason string) error {
	event := NewEvent(EventAssistRejected).
		WithCorrelationID(requestID).
		WithResult(ResultDenied).
		WithMetadata("reason", reason).
		WithDescription(fmt.Sprintf("Assist request %s rejected: %s", requestID, reason))

	return l.Log(ctx, event)
}

// LogAssistFailed logs an assist request that failed internally
func (l *auditLogger) LogAssistFailed(ctx context.Context, requestID string, err error) error {
	event := NewEvent(EventAssistFailed).
		WithCorrelationID(requestID).
		WithError(err, "assist_error").
		WithDescription(fmt.Sprintf("Assist request %s failed", requestID))

	return l.Log(ctx, event)
}

// LogTrainingIngested logs acceptance of new training records
func (l *auditLogger) LogTrainingIngested(ctx context.Context, accepted, rejected int) error {
	event := NewEvent(EventTrainingIngested).
		WithResult(ResultSuccess).
		WithMetadata("accepted", accepted).
		WithMetadata("rejected", rejected).
		WithDescription(fmt.Sprintf("Ingested %d training records, rejected %d", accepted, rejected))

	return l.Log(ctx, event)
}

// LogModelRetrained logs a completed model retrain
func (l *auditLogger) LogModelRetrained(ctx context.Context, records int, duration time.Duration) error {
	event := NewEvent(EventModelRetrained).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithMetadata("records", records).
		WithDescription(fmt.Sprintf("Model retrained on %d records", records))

	return l.Log(ctx, event)
}

// Sync flushes queued events and both underlying loggers.
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}

	if err := l.trail.Sync(); err != nil {
		return err
	}

	return l.appLogger.Sync()
}

// Close stops the flush loop and drains anything still queued.
func (l *auditLogger) Close() error {
	close(l.done)
	l.ticker.Stop()

	return l.Sync()
}

// correlationKey is the context key for request correlation IDs.
type correlationKey struct{}

// GetCorrelationID extracts the correlation ID from ctx, or "".
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID returns a context carrying the correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GenerateCorrelationID returns a fresh request correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()
}
