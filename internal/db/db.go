package db

import (
	"context"
	"time"
)

// Store is the main persistence interface for the assistant.
type Store interface {
	TrainingRecordStore
	InteractionStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// ─── Training record store ────────────────────────────────────────────────────

// TrainingRow is the DB representation of a completed job outcome.
type TrainingRow struct {
	ID           int64     `json:"id"`
	MachineID    int       `json:"machine_id"`
	WorkerName   string    `json:"worker_name"`
	TimeMinutes  float64   `json:"time_minutes"`
	QualityScore float64   `json:"quality_score"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// TrainingRecordStore persists job outcomes so the prediction model can be
// rebuilt after a restart.
type TrainingRecordStore interface {
	// AppendTrainingRecord writes a single job outcome.
	AppendTrainingRecord(ctx context.Context, rec *TrainingRow) error

	// ListTrainingRecords returns every stored outcome, oldest first.
	// Used at startup to hydrate the in-memory training store.
	ListTrainingRecords(ctx context.Context) ([]*TrainingRow, error)

	// CountTrainingRecords returns the number of stored outcomes.
	CountTrainingRecords(ctx context.Context) (int, error)

	// QueryTrainingRecords retrieves outcomes with optional filters, newest first.
	QueryTrainingRecords(ctx context.Context, q TrainingQuery) ([]*TrainingRow, error)
}

// TrainingQuery filters training record queries. Zero values mean "no filter".
type TrainingQuery struct {
	MachineID  int
	WorkerName string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// ─── Interaction archive ──────────────────────────────────────────────────────

// InteractionRow archives one assist request for offline analysis.
type InteractionRow struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	IntentType string    `json:"intent_type"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// InteractionStore archives assist interactions. Learning statistics stay in
// memory; these rows exist so request history survives restarts and can be
// analysed offline.
type InteractionStore interface {
	// AppendInteraction writes a single interaction row.
	AppendInteraction(ctx context.Context, rec *InteractionRow) error

	// QueryInteractions retrieves archived interactions, newest first.
	QueryInteractions(ctx context.Context, q InteractionQuery) ([]*InteractionRow, error)

	// CountInteractions returns the number of archived interactions.
	CountInteractions(ctx context.Context) (int, error)

	// IntentSummary returns interaction counts grouped by intent for a window.
	IntentSummary(ctx context.Context, from, to time.Time) (map[string]int, error)
}

// InteractionQuery filters interaction archive queries. Zero values mean
// "no filter".
type InteractionQuery struct {
	IntentType string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
