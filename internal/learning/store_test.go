package learning_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/foremanai/foreman-ai/internal/learning"
)

func TestRecord_TrimsHistoryPastCap(t *testing.T) {
	s := learning.NewStore()
	for i := 1; i <= 1001; i++ {
		s.Record(learning.Interaction{
			Query:      fmt.Sprintf("job %d", i),
			IntentType: "assignment",
			Confidence: 0.9,
		})
	}

	if s.Size() != 800 {
		t.Errorf("expected 800 stored after trim, got %d", s.Size())
	}

	status := s.Status()
	if status.TotalInteractions != 1001 {
		t.Errorf("expected lifetime total 1001, got %d", status.TotalInteractions)
	}
	if status.StoredInteractions != 800 {
		t.Errorf("expected 800 stored, got %d", status.StoredInteractions)
	}
}

func TestRecord_StaysUntrimmedAtCap(t *testing.T) {
	s := learning.NewStore()
	for i := 0; i < 1000; i++ {
		s.Record(learning.Interaction{Query: "steady", IntentType: "assignment", Confidence: 0.8})
	}
	if s.Size() != 1000 {
		t.Errorf("expected 1000 stored at the cap, got %d", s.Size())
	}
}

func TestRecord_IndexesSignificantTokens(t *testing.T) {
	s := learning.NewStore()
	s.Record(learning.Interaction{
		Query:      "Who should Polish the widgets",
		IntentType: "assignment",
		Confidence: 0.85,
	})

	// "Who", "the" are too short; "should", "polish", "widgets" count.
	status := s.Status()
	if status.LearnedPatterns != 3 {
		t.Errorf("expected 3 learned patterns, got %d", status.LearnedPatterns)
	}

	hits := s.Patterns("polish")
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for polish, got %d", len(hits))
	}
	if hits[0].IntentType != "assignment" {
		t.Errorf("expected assignment hit, got %s", hits[0].IntentType)
	}
}

func TestRecord_PatternListBounded(t *testing.T) {
	s := learning.NewStore()
	for i := 0; i < 150; i++ {
		s.Record(learning.Interaction{Query: "calibrate", IntentType: "general_inquiry", Confidence: 0.5})
	}

	if hits := s.Patterns("calibrate"); len(hits) != 100 {
		t.Errorf("expected hit list capped at 100, got %d", len(hits))
	}
}

func TestStatus_EffectivenessIsMeanConfidence(t *testing.T) {
	s := learning.NewStore()
	for _, conf := range []float64{0.8, 0.9, 1.0} {
		s.Record(learning.Interaction{Query: "check machine output", IntentType: "analytics", Confidence: conf})
	}

	status := s.Status()
	if math.Abs(status.Effectiveness-0.9) > 0.0001 {
		t.Errorf("expected effectiveness 0.9, got %.4f", status.Effectiveness)
	}
}

func TestStatus_UserPreferencesCountIntents(t *testing.T) {
	s := learning.NewStore()
	s.Record(learning.Interaction{Query: "assign work please", IntentType: "assignment", Confidence: 0.9})
	s.Record(learning.Interaction{Query: "assign more work", IntentType: "assignment", Confidence: 0.9})
	s.Record(learning.Interaction{Query: "show trends", IntentType: "analytics", Confidence: 0.8})

	status := s.Status()
	if status.UserPreferences["assignment"] != 2 {
		t.Errorf("expected 2 assignment interactions, got %d", status.UserPreferences["assignment"])
	}
	if status.UserPreferences["analytics"] != 1 {
		t.Errorf("expected 1 analytics interaction, got %d", status.UserPreferences["analytics"])
	}
}

func TestStatus_EmptyStore(t *testing.T) {
	s := learning.NewStore()
	status := s.Status()

	if status.TotalInteractions != 0 || status.StoredInteractions != 0 {
		t.Errorf("expected zero counts, got %+v", status)
	}
	if status.Effectiveness != 0 {
		t.Errorf("expected zero effectiveness, got %.2f", status.Effectiveness)
	}
	if !status.LastUpdate.IsZero() {
		t.Error("expected zero last update")
	}
}

func TestRecord_KeepsSuppliedTimestamp(t *testing.T) {
	s := learning.NewStore()
	stamp := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	s.Record(learning.Interaction{Query: "timed query", IntentType: "general_inquiry", Confidence: 0.5, RecordedAt: stamp})

	if got := s.Status().LastUpdate; !got.Equal(stamp) {
		t.Errorf("expected last update %v, got %v", stamp, got)
	}
}
