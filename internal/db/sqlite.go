package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // cgo-free sqlite driver
)

// Migrations run in order on open; applied versions are recorded in
// the schema_migrations table and skipped on later opens.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS training_records (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id    INTEGER NOT NULL,
    worker_name   TEXT NOT NULL,
    time_minutes  REAL NOT NULL,
    quality_score REAL NOT NULL,
    recorded_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_training_machine     ON training_records(machine_id);
CREATE INDEX IF NOT EXISTS idx_training_worker      ON training_records(worker_name);
CREATE INDEX IF NOT EXISTS idx_training_recorded_at ON training_records(recorded_at DESC);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS interactions (
    id          TEXT PRIMARY KEY,
    query       TEXT NOT NULL,
    intent_type TEXT NOT NULL DEFAULT '',
    confidence  REAL NOT NULL DEFAULT 0.0,
    created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_interactions_intent     ON interactions(intent_type);
`,
	},
}

// sqliteStore backs Store with a single SQLite file.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at path, creating it if
// needed, and brings the schema up to date. ":memory:" gives an
// in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate walks the migration list and applies whatever is missing.
func (s *sqliteStore) migrate() error {
	// The version table must exist before it can be read.
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("migration %d state: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("mark migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Training records ─────────────────────────────────────────────────────────

func (s *sqliteStore) AppendTrainingRecord(ctx context.Context, rec *TrainingRow) error {
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO training_records(machine_id, worker_name, time_minutes, quality_score, recorded_at)
        VALUES(?,?,?,?,?)
    `,
		rec.MachineID, rec.WorkerName, rec.TimeMinutes, rec.QualityScore, rec.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append training record: %w", err)
	}
	id, _ := result.LastInsertId()
	rec.ID = id
	return nil
}

func (s *sqliteStore) ListTrainingRecords(ctx context.Context) ([]*TrainingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,machine_id,worker_name,time_minutes,quality_score,recorded_at FROM training_records ORDER BY recorded_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*TrainingRow
	for rows.Next() {
		rec, err := scanTrainingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *sqliteStore) CountTrainingRecords(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count training records: %w", err)
	}
	return count, nil
}

func (s *sqliteStore) QueryTrainingRecords(ctx context.Context, q TrainingQuery) ([]*TrainingRow, error) {
	query := `SELECT id,machine_id,worker_name,time_minutes,quality_score,recorded_at FROM training_records WHERE 1=1`
	args := []any{}

	if q.MachineID != 0 {
		query += ` AND machine_id = ?`
		args = append(args, q.MachineID)
	}
	if q.WorkerName != "" {
		query += ` AND worker_name = ?`
		args = append(args, q.WorkerName)
	}
	if !q.From.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		query += ` AND recorded_at <= ?`
		args = append(args, q.To.UTC())
	}
	query += ` ORDER BY recorded_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*TrainingRow
	for rows.Next() {
		rec, err := scanTrainingRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ─── Row plumbing ─────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrainingRow(row rowScanner) (*TrainingRow, error) {
	rec := &TrainingRow{}
	var ts string
	err := row.Scan(&rec.ID, &rec.MachineID, &rec.WorkerName, &rec.TimeMinutes, &rec.QualityScore, &ts)
	if err != nil {
		return nil, err
	}
	rec.RecordedAt, _ = parseTime(ts)
	return rec, nil
}

// parseTime accepts the datetime spellings SQLite produces depending
// on how the value was bound.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", s)
}
