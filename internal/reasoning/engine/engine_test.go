package engine_test

import (
	"strings"
	"testing"

	reasoningContext "github.com/foremanai/foreman-ai/internal/reasoning/context"
	"github.com/foremanai/foreman-ai/internal/reasoning/engine"
	"github.com/foremanai/foreman-ai/internal/reasoning/intent"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeTrainer struct {
	records int
	calls   int
}

func (f *fakeTrainer) Retrain() int {
	f.calls++
	return f.records
}

func intentOf(t intent.Type) intent.Intent {
	return intent.Intent{Primary: intent.Match{Type: t, Confidence: 0.9}}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestReason_AssignmentMachineDefaults(t *testing.T) {
	e := engine.NewEngine(nil)

	tests := []struct {
		name    string
		ctx     reasoningContext.ExtractedContext
		machine int
	}{
		{
			"quality focus prefers machine 1",
			reasoningContext.ExtractedContext{
				Requirements: reasoningContext.Requirements{QualityFocus: "high"},
			},
			1,
		},
		{
			"urgency prefers machine 3",
			reasoningContext.ExtractedContext{
				Requirements: reasoningContext.Requirements{TimeConstraint: "urgent"},
			},
			3,
		},
		{
			"plain requests get machine 2",
			reasoningContext.ExtractedContext{},
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Reason(intentOf(intent.TypeAssignment), tt.ctx)
			if result.Parameters.MachineID != tt.machine {
				t.Errorf("expected machine %d, got %d", tt.machine, result.Parameters.MachineID)
			}

			noted := false
			for _, s := range result.Suggestions {
				if strings.Contains(s, "defaulting to machine") {
					noted = true
				}
			}
			if !noted {
				t.Errorf("expected a suggestion noting the machine default, got %v", result.Suggestions)
			}
		})
	}
}

func TestReason_AssignmentComplexityDefaults(t *testing.T) {
	e := engine.NewEngine(nil)

	tests := []struct {
		name       string
		ctx        reasoningContext.ExtractedContext
		complexity int
	}{
		{"plain", reasoningContext.ExtractedContext{}, 3},
		{
			"urgent adds one",
			reasoningContext.ExtractedContext{
				Requirements: reasoningContext.Requirements{TimeConstraint: "urgent"},
			},
			4,
		},
		{
			"quality adds one",
			reasoningContext.ExtractedContext{
				Requirements: reasoningContext.Requirements{QualityFocus: "high"},
			},
			4,
		},
		{
			"urgent and quality cap at five",
			reasoningContext.ExtractedContext{
				Requirements: reasoningContext.Requirements{TimeConstraint: "urgent", QualityFocus: "high"},
			},
			5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Reason(intentOf(intent.TypeAssignment), tt.ctx)
			if result.Parameters.Complexity != tt.complexity {
				t.Errorf("expected complexity %d, got %d", tt.complexity, result.Parameters.Complexity)
			}
		})
	}
}

func TestReason_AssignmentUsesExtractedValues(t *testing.T) {
	e := engine.NewEngine(nil)
	ctx := reasoningContext.ExtractedContext{
		Requirements: reasoningContext.Requirements{MachineID: 4, Complexity: "complex"},
	}

	result := e.Reason(intentOf(intent.TypeAssignment), ctx)
	if result.Parameters.MachineID != 4 {
		t.Errorf("expected machine 4, got %d", result.Parameters.MachineID)
	}
	if result.Parameters.Complexity != 4 {
		t.Errorf("expected complexity 4 for complex, got %d", result.Parameters.Complexity)
	}
	for _, s := range result.Suggestions {
		if strings.Contains(s, "defaulting") || strings.Contains(s, "assuming") {
			t.Errorf("expected no inference suggestions, got %v", result.Suggestions)
		}
	}
}

func TestReason_EnvironmentalFactorsBoostConfidence(t *testing.T) {
	e := engine.NewEngine(nil)
	calm := reasoningContext.ExtractedContext{}
	boosted := reasoningContext.ExtractedContext{
		Requirements: reasoningContext.Requirements{TimeConstraint: "urgent", QualityFocus: "high"},
		EnvironmentalFactors: []reasoningContext.Factor{
			{Type: reasoningContext.FactorUrgency, Factor: "high", Weight: 1.2},
			{Type: reasoningContext.FactorQualityWork, Factor: "precision_work", Weight: 1.15},
		},
	}

	calmResult := e.Reason(intentOf(intent.TypeAssignment), calm)
	boostedResult := e.Reason(intentOf(intent.TypeAssignment), boosted)

	if boostedResult.Confidence <= calmResult.Confidence {
		t.Errorf("expected boosted confidence %.3f above base %.3f",
			boostedResult.Confidence, calmResult.Confidence)
	}
	if boostedResult.Confidence != 1.0 {
		t.Errorf("expected clamp at 1.0, got %.3f", boostedResult.Confidence)
	}
}

func TestReason_ConfidenceFloor(t *testing.T) {
	e := engine.NewEngine(nil)
	dampened := reasoningContext.ExtractedContext{
		EnvironmentalFactors: []reasoningContext.Factor{
			{Type: reasoningContext.FactorWorkload, Factor: "overloaded", Weight: 0.1},
			{Type: reasoningContext.FactorTimeOfDay, Factor: "night", Weight: 0.1},
		},
	}

	result := e.Reason(intentOf(intent.TypeGeneralInquiry), dampened)
	if result.Confidence != 0.1 {
		t.Errorf("expected floor at 0.1, got %.3f", result.Confidence)
	}
}

func TestReason_DispatchTable(t *testing.T) {
	e := engine.NewEngine(nil)
	ctx := reasoningContext.ExtractedContext{}

	tests := []struct {
		intentType intent.Type
		approach   engine.Approach
	}{
		{intent.TypeAssignment, engine.ApproachAssignment},
		{intent.TypePerformance, engine.ApproachPerformance},
		{intent.TypeAnalytics, engine.ApproachAnalytics},
		{intent.TypeLearning, engine.ApproachLearning},
		{intent.TypeUrgency, engine.ApproachGeneral},
		{intent.TypeQuality, engine.ApproachGeneral},
		{intent.TypeGeneralInquiry, engine.ApproachGeneral},
	}

	for _, tt := range tests {
		result := e.Reason(intentOf(tt.intentType), ctx)
		if result.Approach != tt.approach {
			t.Errorf("intent %s: expected approach %s, got %s", tt.intentType, tt.approach, result.Approach)
		}
		if len(result.ActionPlan) == 0 {
			t.Errorf("intent %s: expected a non-empty action plan", tt.intentType)
		}
		if result.Explanation == "" {
			t.Errorf("intent %s: expected an explanation", tt.intentType)
		}
	}
}

func TestReason_LearningDrivesTrainer(t *testing.T) {
	trainer := &fakeTrainer{records: 42}
	e := engine.NewEngine(trainer)

	result := e.Reason(intentOf(intent.TypeLearning), reasoningContext.ExtractedContext{})
	if trainer.calls != 1 {
		t.Errorf("expected exactly one retrain call, got %d", trainer.calls)
	}
	if !strings.Contains(result.Explanation, "42") {
		t.Errorf("expected record count in explanation, got %q", result.Explanation)
	}
}

func TestReason_LearningWithoutTrainer(t *testing.T) {
	e := engine.NewEngine(nil)
	result := e.Reason(intentOf(intent.TypeLearning), reasoningContext.ExtractedContext{})

	if !strings.Contains(result.Explanation, "not available") {
		t.Errorf("expected unavailable note, got %q", result.Explanation)
	}
}

func TestReason_ExplanationCarriesUrgencyAndQuality(t *testing.T) {
	e := engine.NewEngine(nil)
	ctx := reasoningContext.ExtractedContext{
		Requirements: reasoningContext.Requirements{TimeConstraint: "urgent", QualityFocus: "high"},
	}

	result := e.Reason(intentOf(intent.TypeAssignment), ctx)
	lower := strings.ToLower(result.Explanation)
	if !strings.Contains(lower, "urgent") {
		t.Errorf("expected urgency mention in explanation, got %q", result.Explanation)
	}
	if !strings.Contains(lower, "quality") {
		t.Errorf("expected quality mention in explanation, got %q", result.Explanation)
	}
}
