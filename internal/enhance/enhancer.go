// Package enhance layers context awareness onto raw model predictions:
// a contextual score blending model and reasoning confidence, alternate
// worker options at neighboring complexity levels, and a risk
// assessment derived from fixed factor checks.
package enhance

import (
	"fmt"
	"strings"

	"github.com/foremanai/foreman-ai/internal/ml"
	"github.com/foremanai/foreman-ai/internal/reasoning/engine"
)

// FallbackWorker is recommended when no trained model is available.
const FallbackWorker = "any available worker"

// maxAlternatives caps the alternate options per prediction.
const maxAlternatives = 2

// RiskLevel grades a prediction's risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment lists the triggered risk factors; the level depends
// only on how many factors fired.
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// Alternative is a different worker option at another complexity level.
type Alternative struct {
	Worker        string  `json:"worker"`
	Complexity    int     `json:"complexity"`
	EstimatedTime float64 `json:"estimated_time"`
	Reason        string  `json:"reason"`
}

// EnhancedPrediction is the context-aware view of a raw prediction.
type EnhancedPrediction struct {
	Base            ml.Prediction  `json:"base_prediction"`
	ContextualScore float64        `json:"contextual_score"`
	Alternatives    []Alternative  `json:"alternatives"`
	Risk            RiskAssessment `json:"risk_assessment"`
	Explanation     string         `json:"explanation"`
}

// Predictor is the prediction surface used for alternative lookups.
// *ml.Predictor satisfies it.
type Predictor interface {
	Predict(machineID, complexity int) (*ml.Prediction, error)
}

// Enhancer enriches predictions with alternatives and risk context.
type Enhancer struct {
	predictor Predictor
}

// NewEnhancer creates an enhancer backed by the given predictor.
func NewEnhancer(predictor Predictor) *Enhancer {
	return &Enhancer{predictor: predictor}
}

// Enhance combines the raw prediction with the reasoning result. The
// contextual score is the product of both confidences on a 0-100
// scale, with bonuses when the reasoning calls for speed and the
// estimate is fast, or calls for quality and the history is strong.
func (e *Enhancer) Enhance(pred *ml.Prediction, reasoning engine.Result) *EnhancedPrediction {
	score := pred.Confidence * 100 * reasoning.Confidence
	if referencesUrgency(reasoning.Explanation) && pred.EstimatedTime < 20 {
		score += 10
	}
	if referencesQuality(reasoning.Explanation) && pred.AvgQuality > 85 {
		score += 15
	}
	if score > 100 {
		score = 100
	}

	return &EnhancedPrediction{
		Base:            *pred,
		ContextualScore: score,
		Alternatives:    e.alternatives(pred, reasoning.Parameters),
		Risk:            assessRisk(pred, reasoning),
		Explanation:     explain(pred, reasoning),
	}
}

// EnhanceFallback produces the degraded response used when the model
// is not trained yet: a low-confidence default recommendation whose
// risk assessment flags the missing history.
func (e *Enhancer) EnhanceFallback(reasoning engine.Result) *EnhancedPrediction {
	pred := &ml.Prediction{
		RecommendedWorker: FallbackWorker,
		EstimatedTime:     30,
		AvgQuality:        0,
		Confidence:        0.2,
	}

	enhanced := e.Enhance(pred, reasoning)
	enhanced.Risk.Factors = append(
		[]string{"No historical training data available"}, enhanced.Risk.Factors...)
	enhanced.Risk.Level = riskLevelFor(len(enhanced.Risk.Factors))
	enhanced.Explanation = fmt.Sprintf(
		"No trained prediction model is available yet; assign %s and record the outcome to start building history. %s",
		FallbackWorker, reasoning.Explanation)
	return enhanced
}

// alternatives probes the other complexity levels on the same machine
// and keeps up to two options whose worker differs from the primary.
func (e *Enhancer) alternatives(pred *ml.Prediction, params engine.Parameters) []Alternative {
	var alts []Alternative
	for complexity := ml.MinComplexity; complexity <= ml.MaxComplexity; complexity++ {
		if complexity == params.Complexity {
			continue
		}
		alt, err := e.predictor.Predict(params.MachineID, complexity)
		if err != nil || alt.RecommendedWorker == pred.RecommendedWorker {
			continue
		}

		reason := "More thorough but slower"
		if complexity < params.Complexity {
			reason = "Faster but less thorough"
		}
		alts = append(alts, Alternative{
			Worker:        alt.RecommendedWorker,
			Complexity:    complexity,
			EstimatedTime: alt.EstimatedTime,
			Reason:        reason,
		})
		if len(alts) == maxAlternatives {
			break
		}
	}
	return alts
}

// assessRisk runs the fixed factor checks. The level is a pure
// function of the triggered count.
func assessRisk(pred *ml.Prediction, reasoning engine.Result) RiskAssessment {
	var factors []string
	if pred.Confidence < 0.7 {
		factors = append(factors, "Low prediction confidence")
	}
	if pred.EstimatedTime > 30 {
		factors = append(factors, "Long estimated completion time")
	}
	if referencesUrgency(reasoning.Explanation) && pred.EstimatedTime > 20 {
		factors = append(factors, "Urgent request with a slow estimated completion")
	}
	return RiskAssessment{Level: riskLevelFor(len(factors)), Factors: factors}
}

// riskLevelFor maps the factor count onto the risk scale.
func riskLevelFor(count int) RiskLevel {
	switch count {
	case 0:
		return RiskLow
	case 1:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// explain builds the enhancement narrative, citing the signals that
// cleared their thresholds and closing with the reasoning explanation.
func explain(pred *ml.Prediction, reasoning engine.Result) string {
	parts := []string{fmt.Sprintf("%s is the best fit for this job", pred.RecommendedWorker)}
	if pred.Confidence > 0.8 {
		parts = append(parts, fmt.Sprintf("the job history backs this strongly (%.0f%% confidence)", pred.Confidence*100))
	}
	if pred.EstimatedTime < 20 {
		parts = append(parts, fmt.Sprintf("turnaround should be quick at about %.0f minutes", pred.EstimatedTime))
	}
	if pred.AvgQuality > 85 {
		parts = append(parts, fmt.Sprintf("expected quality is high at %.0f%%", pred.AvgQuality))
	}
	return strings.Join(parts, "; ") + ". " + reasoning.Explanation
}

func referencesUrgency(text string) bool {
	return strings.Contains(strings.ToLower(text), "urgen")
}

func referencesQuality(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "quality") || strings.Contains(lower, "precision")
}
