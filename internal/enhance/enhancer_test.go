package enhance_test

import (
	"math"
	"strings"
	"testing"

	"github.com/foremanai/foreman-ai/internal/enhance"
	"github.com/foremanai/foreman-ai/internal/ml"
	"github.com/foremanai/foreman-ai/internal/reasoning/engine"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakePredictor struct {
	predictions map[[2]int]*ml.Prediction
}

func (f *fakePredictor) Predict(machineID, complexity int) (*ml.Prediction, error) {
	if p, ok := f.predictions[[2]int{machineID, complexity}]; ok {
		return p, nil
	}
	return nil, ml.ErrNoMachineData
}

func basePrediction(worker string, confidence, time, quality float64) *ml.Prediction {
	return &ml.Prediction{
		RecommendedWorker: worker,
		EstimatedTime:     time,
		AvgQuality:        quality,
		Confidence:        confidence,
		JobCount:          4,
	}
}

func reasoningWith(explanation string, confidence float64, machineID, complexity int) engine.Result {
	return engine.Result{
		Approach:    engine.ApproachAssignment,
		Explanation: explanation,
		Confidence:  confidence,
		Parameters:  engine.Parameters{MachineID: machineID, Complexity: complexity},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestEnhance_ContextualScoreIsConfidenceProduct(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})
	pred := basePrediction("Chen", 0.9, 25, 80)
	reasoning := reasoningWith("plain assignment reasoning", 0.8, 1, 3)

	enhanced := e.Enhance(pred, reasoning)
	if math.Abs(enhanced.ContextualScore-72) > 0.01 {
		t.Errorf("expected score 72, got %.2f", enhanced.ContextualScore)
	}
}

func TestEnhance_UrgencyBonusNeedsFastEstimate(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})
	urgentReasoning := reasoningWith("weighting the urgent timeline", 0.8, 1, 3)

	fast := e.Enhance(basePrediction("Chen", 0.9, 15, 80), urgentReasoning)
	if math.Abs(fast.ContextualScore-82) > 0.01 {
		t.Errorf("expected 72 + 10 urgency bonus, got %.2f", fast.ContextualScore)
	}

	slow := e.Enhance(basePrediction("Chen", 0.9, 25, 80), urgentReasoning)
	if math.Abs(slow.ContextualScore-72) > 0.01 {
		t.Errorf("expected no bonus for a slow estimate, got %.2f", slow.ContextualScore)
	}
}

func TestEnhance_QualityBonusNeedsStrongHistory(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})
	qualityReasoning := reasoningWith("weighting the high quality bar", 0.8, 1, 3)

	strong := e.Enhance(basePrediction("Maria", 0.9, 25, 90), qualityReasoning)
	if math.Abs(strong.ContextualScore-87) > 0.01 {
		t.Errorf("expected 72 + 15 quality bonus, got %.2f", strong.ContextualScore)
	}

	weak := e.Enhance(basePrediction("Maria", 0.9, 25, 80), qualityReasoning)
	if math.Abs(weak.ContextualScore-72) > 0.01 {
		t.Errorf("expected no bonus for weak quality history, got %.2f", weak.ContextualScore)
	}
}

func TestEnhance_ScoreClampsAtHundred(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})
	reasoning := reasoningWith("urgent and quality focused", 1.0, 1, 3)

	enhanced := e.Enhance(basePrediction("Maria", 1.0, 10, 95), reasoning)
	if enhanced.ContextualScore != 100 {
		t.Errorf("expected clamp at 100, got %.2f", enhanced.ContextualScore)
	}
}

func TestEnhance_AlternativesExcludePrimaryWorker(t *testing.T) {
	predictor := &fakePredictor{predictions: map[[2]int]*ml.Prediction{
		{1, 1}: basePrediction("James", 0.8, 12, 82),
		{1, 2}: basePrediction("Chen", 0.8, 20, 88), // same as primary, skipped
		{1, 4}: basePrediction("Maria", 0.8, 45, 96),
		{1, 5}: basePrediction("Aisha", 0.8, 60, 97),
	}}
	e := enhance.NewEnhancer(predictor)
	pred := basePrediction("Chen", 0.9, 25, 88)

	enhanced := e.Enhance(pred, reasoningWith("assignment", 0.9, 1, 3))
	if len(enhanced.Alternatives) != 2 {
		t.Fatalf("expected 2 alternatives, got %d", len(enhanced.Alternatives))
	}
	for _, alt := range enhanced.Alternatives {
		if alt.Worker == "Chen" {
			t.Errorf("alternatives must not contain the primary worker: %+v", alt)
		}
	}

	first, second := enhanced.Alternatives[0], enhanced.Alternatives[1]
	if first.Worker != "James" || first.Reason != "Faster but less thorough" {
		t.Errorf("expected James as faster option, got %+v", first)
	}
	if second.Worker != "Maria" || second.Reason != "More thorough but slower" {
		t.Errorf("expected Maria as thorough option, got %+v", second)
	}
}

func TestEnhance_AlternativesSkipUnavailableLevels(t *testing.T) {
	predictor := &fakePredictor{predictions: map[[2]int]*ml.Prediction{
		{2, 5}: basePrediction("Aisha", 0.8, 70, 96),
	}}
	e := enhance.NewEnhancer(predictor)

	enhanced := e.Enhance(basePrediction("Viktor", 0.9, 30, 86), reasoningWith("assignment", 0.9, 2, 3))
	if len(enhanced.Alternatives) != 1 {
		t.Fatalf("expected 1 alternative, got %d", len(enhanced.Alternatives))
	}
	if enhanced.Alternatives[0].Worker != "Aisha" {
		t.Errorf("expected Aisha, got %s", enhanced.Alternatives[0].Worker)
	}
}

func TestEnhance_RiskLevelTracksFactorCount(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})

	tests := []struct {
		name        string
		pred        *ml.Prediction
		explanation string
		level       enhance.RiskLevel
		factors     int
	}{
		{"clean prediction", basePrediction("Chen", 0.9, 15, 90), "calm plan", enhance.RiskLow, 0},
		{"low confidence", basePrediction("Chen", 0.5, 15, 90), "calm plan", enhance.RiskMedium, 1},
		{"low confidence and slow", basePrediction("Chen", 0.5, 35, 90), "calm plan", enhance.RiskHigh, 2},
		{"urgent but slow", basePrediction("Chen", 0.9, 25, 90), "urgent timeline", enhance.RiskMedium, 1},
		{"everything wrong", basePrediction("Chen", 0.5, 40, 70), "urgent timeline", enhance.RiskHigh, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enhanced := e.Enhance(tt.pred, reasoningWith(tt.explanation, 0.8, 1, 3))
			if enhanced.Risk.Level != tt.level {
				t.Errorf("expected level %s, got %s (factors %v)",
					tt.level, enhanced.Risk.Level, enhanced.Risk.Factors)
			}
			if len(enhanced.Risk.Factors) != tt.factors {
				t.Errorf("expected %d factors, got %v", tt.factors, enhanced.Risk.Factors)
			}
		})
	}
}

func TestEnhanceFallback_DegradesWithHighRisk(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})
	reasoning := reasoningWith("no model reasoning", 0.85, 2, 3)

	enhanced := e.EnhanceFallback(reasoning)
	if enhanced.Base.RecommendedWorker != enhance.FallbackWorker {
		t.Errorf("expected fallback worker, got %s", enhanced.Base.RecommendedWorker)
	}
	if enhanced.Base.Confidence != 0.2 {
		t.Errorf("expected degraded confidence 0.2, got %.2f", enhanced.Base.Confidence)
	}
	if enhanced.Risk.Level != enhance.RiskHigh {
		t.Errorf("expected high risk, got %s", enhanced.Risk.Level)
	}
	if enhanced.Risk.Factors[0] != "No historical training data available" {
		t.Errorf("expected missing-data factor first, got %v", enhanced.Risk.Factors)
	}
	if enhanced.ContextualScore > 30 {
		t.Errorf("expected low contextual score, got %.2f", enhanced.ContextualScore)
	}
	if len(enhanced.Alternatives) != 0 {
		t.Errorf("expected no alternatives without a model, got %v", enhanced.Alternatives)
	}
}

func TestEnhance_ExplanationCitesSignalsAndReasoning(t *testing.T) {
	e := enhance.NewEnhancer(&fakePredictor{})
	reasoning := reasoningWith("weighting the urgent timeline", 0.9, 1, 3)

	enhanced := e.Enhance(basePrediction("Maria", 0.9, 15, 92), reasoning)
	if !strings.Contains(enhanced.Explanation, "Maria") {
		t.Errorf("expected worker in explanation, got %q", enhanced.Explanation)
	}
	if !strings.Contains(enhanced.Explanation, "confidence") {
		t.Errorf("expected confidence citation, got %q", enhanced.Explanation)
	}
	if !strings.HasSuffix(enhanced.Explanation, reasoning.Explanation) {
		t.Errorf("expected explanation to end with the reasoning, got %q", enhanced.Explanation)
	}
}
