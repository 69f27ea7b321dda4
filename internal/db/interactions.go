package db

import (
	"context"
	"fmt"
	"time"
)

// ─── Interaction archive ─────────────────────────────────────────────────────

func (s *sqliteStore) AppendInteraction(ctx context.Context, rec *InteractionRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, query, intent_type, confidence, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Query, rec.IntentType, rec.Confidence, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

func (s *sqliteStore) QueryInteractions(ctx context.Context, q InteractionQuery) ([]*InteractionRow, error) {
	query := `SELECT id, query, intent_type, confidence, created_at FROM interactions WHERE 1=1`
	args := []any{}

	if q.IntentType != "" {
		query += ` AND intent_type = ?`
		args = append(args, q.IntentType)
	}
	if !q.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, q.To.UTC())
	}
	query += ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var results []*InteractionRow
	for rows.Next() {
		var r InteractionRow
		var ts string
		if err := rows.Scan(&r.ID, &r.Query, &r.IntentType, &r.Confidence, &ts); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		r.CreatedAt, _ = parseTime(ts)
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *sqliteStore) CountInteractions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return count, nil
}

func (s *sqliteStore) IntentSummary(ctx context.Context, from, to time.Time) (map[string]int, error) {
	query := `SELECT intent_type, COUNT(*) FROM interactions WHERE 1=1`
	args := []any{}
	if !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, to.UTC())
	}
	query += ` GROUP BY intent_type`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("intent summary: %w", err)
	}
	defer rows.Close()

	summary := map[string]int{}
	for rows.Next() {
		var intent string
		var count int
		if err := rows.Scan(&intent, &count); err != nil {
			return nil, err
		}
		summary[intent] = count
	}
	return summary, rows.Err()
}
