package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ─── Training records ─────────────────────────────────────────────────────────

func TestTrainingRecordAppendAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Round(time.Second).UTC()
	records := []*TrainingRow{
		{MachineID: 1, WorkerName: "Maria", TimeMinutes: 70, QualityScore: 97, RecordedAt: base},
		{MachineID: 2, WorkerName: "Chen", TimeMinutes: 45, QualityScore: 90, RecordedAt: base.Add(time.Second)},
		{MachineID: 1, WorkerName: "James", TimeMinutes: 30, QualityScore: 82, RecordedAt: base.Add(2 * time.Second)},
	}

	for _, r := range records {
		if err := s.AppendTrainingRecord(ctx, r); err != nil {
			t.Fatalf("AppendTrainingRecord: %v", err)
		}
		if r.ID == 0 {
			t.Error("expected row ID to be assigned after append")
		}
	}

	list, err := s.ListTrainingRecords(ctx)
	if err != nil {
		t.Fatalf("ListTrainingRecords: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	// Oldest first for model loading
	if list[0].WorkerName != "Maria" {
		t.Errorf("expected oldest record first (Maria), got %s", list[0].WorkerName)
	}
	if list[2].WorkerName != "James" {
		t.Errorf("expected newest record last (James), got %s", list[2].WorkerName)
	}
	if list[0].MachineID != 1 {
		t.Errorf("expected machine 1, got %d", list[0].MachineID)
	}
	if list[0].TimeMinutes != 70 {
		t.Errorf("expected 70 minutes, got %v", list[0].TimeMinutes)
	}
	if list[0].QualityScore != 97 {
		t.Errorf("expected quality 97, got %v", list[0].QualityScore)
	}
}

func TestCountTrainingRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.CountTrainingRecords(ctx)
	if err != nil {
		t.Fatalf("CountTrainingRecords empty: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 records in fresh store, got %d", count)
	}

	for i := 0; i < 5; i++ {
		rec := &TrainingRow{
			MachineID: 1 + i%3, WorkerName: "Viktor",
			TimeMinutes: 40, QualityScore: 88,
			RecordedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendTrainingRecord(ctx, rec); err != nil {
			t.Fatalf("AppendTrainingRecord %d: %v", i, err)
		}
	}

	count, err = s.CountTrainingRecords(ctx)
	if err != nil {
		t.Fatalf("CountTrainingRecords: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 records, got %d", count)
	}
}

func TestQueryTrainingRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Round(time.Second).UTC()
	records := []*TrainingRow{
		{MachineID: 1, WorkerName: "Maria", TimeMinutes: 70, QualityScore: 97, RecordedAt: base},
		{MachineID: 1, WorkerName: "James", TimeMinutes: 30, QualityScore: 82, RecordedAt: base.Add(time.Second)},
		{MachineID: 2, WorkerName: "Chen", TimeMinutes: 45, QualityScore: 90, RecordedAt: base.Add(2 * time.Second)},
		{MachineID: 4, WorkerName: "Aisha", TimeMinutes: 75, QualityScore: 95, RecordedAt: base.Add(3 * time.Second)},
	}
	for _, r := range records {
		if err := s.AppendTrainingRecord(ctx, r); err != nil {
			t.Fatalf("AppendTrainingRecord: %v", err)
		}
	}

	// Filter by machine
	byMachine, err := s.QueryTrainingRecords(ctx, TrainingQuery{MachineID: 1, Limit: 10})
	if err != nil {
		t.Fatalf("QueryTrainingRecords by machine: %v", err)
	}
	if len(byMachine) != 2 {
		t.Errorf("expected 2 records for machine 1, got %d", len(byMachine))
	}
	// Newest first
	if len(byMachine) == 2 && byMachine[0].WorkerName != "James" {
		t.Errorf("expected newest record first (James), got %s", byMachine[0].WorkerName)
	}

	// Filter by worker
	byWorker, err := s.QueryTrainingRecords(ctx, TrainingQuery{WorkerName: "Chen", Limit: 10})
	if err != nil {
		t.Fatalf("QueryTrainingRecords by worker: %v", err)
	}
	if len(byWorker) != 1 {
		t.Errorf("expected 1 record for Chen, got %d", len(byWorker))
	}

	// Filter by time range
	byTime, err := s.QueryTrainingRecords(ctx, TrainingQuery{
		From:  base,
		To:    base.Add(time.Second),
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryTrainingRecords by time: %v", err)
	}
	if len(byTime) != 2 {
		t.Errorf("expected 2 records in time range, got %d", len(byTime))
	}

	// Limit
	limited, err := s.QueryTrainingRecords(ctx, TrainingQuery{Limit: 3})
	if err != nil {
		t.Fatalf("QueryTrainingRecords with limit: %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("expected 3 records with limit, got %d", len(limited))
	}
}

// ─── Interaction archive ──────────────────────────────────────────────────────

func TestInteractionAppendAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Round(time.Second).UTC()
	interactions := []*InteractionRow{
		{ID: "req-001", Query: "Who should run machine 2?", IntentType: "assignment", Confidence: 0.91, CreatedAt: base},
		{ID: "req-002", Query: "How is Maria performing?", IntentType: "performance", Confidence: 0.88, CreatedAt: base.Add(time.Second)},
		{ID: "req-003", Query: "Assign someone to machine 4.", IntentType: "assignment", Confidence: 0.86, CreatedAt: base.Add(2 * time.Second)},
	}

	for _, r := range interactions {
		if err := s.AppendInteraction(ctx, r); err != nil {
			t.Fatalf("AppendInteraction: %v", err)
		}
	}

	// Unfiltered, newest first
	all, err := s.QueryInteractions(ctx, InteractionQuery{Limit: 10})
	if err != nil {
		t.Fatalf("QueryInteractions: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 interactions, got %d", len(all))
	}
	if len(all) == 3 && all[0].ID != "req-003" {
		t.Errorf("expected newest interaction first, got %s", all[0].ID)
	}

	// Intent filter
	byIntent, err := s.QueryInteractions(ctx, InteractionQuery{IntentType: "assignment", Limit: 10})
	if err != nil {
		t.Fatalf("QueryInteractions by intent: %v", err)
	}
	if len(byIntent) != 2 {
		t.Errorf("expected 2 assignment interactions, got %d", len(byIntent))
	}

	// Window covering the first two
	byTime, err := s.QueryInteractions(ctx, InteractionQuery{
		From:  base,
		To:    base.Add(time.Second),
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("QueryInteractions by time: %v", err)
	}
	if len(byTime) != 2 {
		t.Errorf("expected 2 interactions in time range, got %d", len(byTime))
	}

	count, err := s.CountInteractions(ctx)
	if err != nil {
		t.Fatalf("CountInteractions: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 archived interactions, got %d", count)
	}
}

func TestInteractionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &InteractionRow{
		ID:         "req-rt",
		Query:      "Who should work on machine 1? It needs precision and it's urgent.",
		IntentType: "assignment",
		Confidence: 0.8889,
		CreatedAt:  time.Now().Round(time.Second).UTC(),
	}
	if err := s.AppendInteraction(ctx, rec); err != nil {
		t.Fatalf("AppendInteraction: %v", err)
	}

	got, err := s.QueryInteractions(ctx, InteractionQuery{Limit: 1})
	if err != nil {
		t.Fatalf("QueryInteractions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(got))
	}
	if got[0].Query != rec.Query {
		t.Errorf("expected query %q, got %q", rec.Query, got[0].Query)
	}
	if got[0].Confidence != rec.Confidence {
		t.Errorf("expected confidence %v, got %v", rec.Confidence, got[0].Confidence)
	}
}

func TestIntentSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Round(time.Second).UTC()
	intents := []string{"assignment", "assignment", "performance", "learning", "assignment"}
	for i, intent := range intents {
		rec := &InteractionRow{
			ID: "sum-" + string(rune('a'+i)), Query: "q", IntentType: intent,
			Confidence: 0.8, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendInteraction(ctx, rec); err != nil {
			t.Fatalf("AppendInteraction %d: %v", i, err)
		}
	}

	summary, err := s.IntentSummary(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("IntentSummary: %v", err)
	}
	if summary["assignment"] != 3 {
		t.Errorf("expected 3 assignment interactions, got %d", summary["assignment"])
	}
	if summary["performance"] != 1 {
		t.Errorf("expected 1 performance interaction, got %d", summary["performance"])
	}
	if summary["learning"] != 1 {
		t.Errorf("expected 1 learning interaction, got %d", summary["learning"])
	}
}

// ─── Migrations and liveness ──────────────────────────────────────────────────

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMigrationsReopen(t *testing.T) {
	// A second open against the same file must skip the recorded
	// migrations and leave earlier rows intact.
	path := filepath.Join(t.TempDir(), "foreman.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	rec := &TrainingRow{
		MachineID: 3, WorkerName: "Viktor",
		TimeMinutes: 55, QualityScore: 91,
		RecordedAt: time.Now().UTC(),
	}
	if err := s.AppendTrainingRecord(ctx, rec); err != nil {
		t.Fatalf("AppendTrainingRecord: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.CountTrainingRecords(ctx)
	if err != nil {
		t.Fatalf("CountTrainingRecords: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after reopen, got %d", count)
	}
}
