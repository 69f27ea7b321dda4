// Package engine reasons over a classified intent and extracted
// context to produce a recommendation strategy: which machine and
// complexity to predict for, how confident the reasoning is, and what
// the operator should do next.
//
// Dispatch is a fixed table keyed by the primary intent. Strategies
// never fail; a query the engine cannot place falls through to the
// general strategy.
package engine

import (
	"fmt"
	"strings"

	reasoningContext "github.com/foremanai/foreman-ai/internal/reasoning/context"
	"github.com/foremanai/foreman-ai/internal/reasoning/intent"
)

// Approach identifies the strategy that produced a reasoning result.
type Approach string

const (
	ApproachAssignment  Approach = "worker_assignment"
	ApproachPerformance Approach = "performance_review"
	ApproachAnalytics   Approach = "data_analytics"
	ApproachLearning    Approach = "model_learning"
	ApproachGeneral     Approach = "general_assistance"
)

// Strategy base confidences, before environmental adjustment.
const (
	baseAssignment  = 0.85
	basePerformance = 0.80
	baseAnalytics   = 0.75
	baseLearning    = 0.80
	baseGeneral     = 0.60
)

// Confidence bounds after environmental adjustment.
const (
	minConfidence = 0.1
	maxConfidence = 1.0
)

// Parameters are the resolved prediction inputs.
type Parameters struct {
	MachineID  int `json:"machine_id"`
	Complexity int `json:"complexity"`
}

// Result is one strategy's output.
type Result struct {
	Approach    Approach   `json:"approach"`
	Explanation string     `json:"explanation"`
	Confidence  float64    `json:"confidence"`
	Parameters  Parameters `json:"parameters"`
	Suggestions []string   `json:"suggestions,omitempty"`
	ActionPlan  []string   `json:"action_plan"`
}

// Trainer is the model-training entry point the learning strategy
// drives. It matches the training API surface, so a learning intent and
// a training request refresh the model the same way.
type Trainer interface {
	// Retrain rebuilds the model and returns how many records it saw.
	Retrain() int
}

// Engine dispatches intents onto the fixed strategy table.
type Engine struct {
	trainer Trainer
}

// NewEngine creates a reasoning engine. The trainer may be nil, in
// which case the learning strategy reports that retraining is offline.
func NewEngine(trainer Trainer) *Engine {
	return &Engine{trainer: trainer}
}

// Reason selects and runs the strategy for the primary intent, then
// adjusts its confidence by every environmental factor weight in
// insertion order, clamped to the 0.1-1.0 band.
func (e *Engine) Reason(in intent.Intent, ctx reasoningContext.ExtractedContext) Result {
	var result Result
	switch in.Primary.Type {
	case intent.TypeAssignment:
		result = e.assignmentStrategy(ctx)
	case intent.TypePerformance:
		result = e.performanceStrategy(ctx)
	case intent.TypeAnalytics:
		result = e.analyticsStrategy(ctx)
	case intent.TypeLearning:
		result = e.learningStrategy(ctx)
	default:
		result = e.generalStrategy(ctx)
	}

	result.Confidence = adjustConfidence(result.Confidence, ctx.EnvironmentalFactors)
	return result
}

// ─── Strategies ───────────────────────────────────────────────────────────────

func (e *Engine) assignmentStrategy(ctx reasoningContext.ExtractedContext) Result {
	urgent := ctx.Requirements.TimeConstraint == "urgent"
	qualityFocused := ctx.Requirements.QualityFocus == "high"

	var suggestions []string
	machineID := ctx.Requirements.MachineID
	if machineID == 0 {
		switch {
		case qualityFocused:
			machineID = 1
			suggestions = append(suggestions, "No machine specified; defaulting to machine 1 for quality-focused work")
		case urgent:
			machineID = 3
			suggestions = append(suggestions, "No machine specified; defaulting to machine 3 for urgent work")
		default:
			machineID = 2
			suggestions = append(suggestions, "No machine specified; defaulting to machine 2 for general work")
		}
	}

	complexity := complexityLevel(ctx.Requirements.Complexity)
	if complexity == 0 {
		complexity = 3
		if urgent {
			complexity++
		}
		if qualityFocused {
			complexity++
		}
		if complexity > 5 {
			complexity = 5
		}
		suggestions = append(suggestions,
			fmt.Sprintf("No complexity specified; assuming level %d from the request profile", complexity))
	}

	explanation := fmt.Sprintf(
		"Assigning machine %d work at complexity %d using historical worker performance", machineID, complexity)
	var notes []string
	if urgent {
		notes = append(notes, "the urgent timeline")
	}
	if qualityFocused {
		notes = append(notes, "the high quality bar")
	}
	if len(notes) > 0 {
		explanation += ", weighting " + strings.Join(notes, " and ")
	}

	return Result{
		Approach:    ApproachAssignment,
		Explanation: explanation,
		Confidence:  baseAssignment,
		Parameters:  Parameters{MachineID: machineID, Complexity: complexity},
		Suggestions: suggestions,
		ActionPlan: []string{
			"Review historical jobs for the target machine",
			"Rank candidate workers by completion time and quality",
			"Confirm worker availability with the floor supervisor",
			"Dispatch the assignment and monitor the first run",
		},
	}
}

func (e *Engine) performanceStrategy(ctx reasoningContext.ExtractedContext) Result {
	return Result{
		Approach:    ApproachPerformance,
		Explanation: "Reviewing recorded completion times and quality scores for the requested scope",
		Confidence:  basePerformance,
		Parameters:  defaultParameters(ctx),
		Suggestions: []string{
			"Name a specific worker or machine to narrow the review",
		},
		ActionPlan: []string{
			"Collect job records for the requested scope",
			"Summarize completion time and quality trends",
			"Flag outliers against the shop average",
		},
	}
}

func (e *Engine) analyticsStrategy(ctx reasoningContext.ExtractedContext) Result {
	return Result{
		Approach:    ApproachAnalytics,
		Explanation: "Analyzing the job history for workload distribution and quality trends",
		Confidence:  baseAnalytics,
		Parameters:  defaultParameters(ctx),
		Suggestions: []string{
			"Ask about a specific machine or time window for a deeper cut",
		},
		ActionPlan: []string{
			"Aggregate the job history by machine and worker",
			"Compute time and quality distributions",
			"Report the strongest patterns with supporting numbers",
		},
	}
}

func (e *Engine) learningStrategy(ctx reasoningContext.ExtractedContext) Result {
	result := Result{
		Approach:   ApproachLearning,
		Confidence: baseLearning,
		Parameters: defaultParameters(ctx),
		Suggestions: []string{
			"Add more completed-job records to sharpen future predictions",
		},
		ActionPlan: []string{
			"Ingest any newly reported job records",
			"Rebuild the prediction model snapshot",
			"Verify prediction confidence against recent jobs",
		},
	}

	if e.trainer == nil {
		result.Explanation = "Model retraining is not available right now; the current model stays in place"
		return result
	}

	records := e.trainer.Retrain()
	result.Explanation = fmt.Sprintf("Refreshed the prediction model from %d historical job records", records)
	return result
}

func (e *Engine) generalStrategy(ctx reasoningContext.ExtractedContext) Result {
	return Result{
		Approach:    ApproachGeneral,
		Explanation: "Interpreting the request against the recorded job history",
		Confidence:  baseGeneral,
		Parameters:  defaultParameters(ctx),
		Suggestions: []string{
			"Name a machine (for example \"machine 2\") for a targeted recommendation",
			"Mention time pressure or quality needs so they can be weighted",
		},
		ActionPlan: []string{
			"Match the request against the job history",
			"Offer the closest recommendation available",
		},
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// defaultParameters resolves prediction inputs for the non-assignment
// strategies: the mentioned machine or the general-purpose default, and
// the stated complexity or the middle of the scale.
func defaultParameters(ctx reasoningContext.ExtractedContext) Parameters {
	machineID := ctx.Requirements.MachineID
	if machineID == 0 {
		machineID = 2
	}
	complexity := complexityLevel(ctx.Requirements.Complexity)
	if complexity == 0 {
		complexity = 3
	}
	return Parameters{MachineID: machineID, Complexity: complexity}
}

// complexityLevel maps the extracted bucket onto the 1-5 scale, 0 when
// no bucket was extracted.
func complexityLevel(bucket string) int {
	switch bucket {
	case "simple":
		return 2
	case "medium":
		return 3
	case "complex":
		return 4
	case "critical":
		return 5
	default:
		return 0
	}
}

// adjustConfidence multiplies the strategy base by every environmental
// factor weight in insertion order and clamps the product.
func adjustConfidence(base float64, factors []reasoningContext.Factor) float64 {
	confidence := base
	for _, f := range factors {
		confidence *= f.Weight
	}
	if confidence > maxConfidence {
		return maxConfidence
	}
	if confidence < minConfidence {
		return minConfidence
	}
	return confidence
}
