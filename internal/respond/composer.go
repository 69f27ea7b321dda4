// Package respond assembles the outward response envelope: the
// classified intent, the context analysis, the reasoning result, the
// enhanced prediction, and a natural-language summary phrased per
// reasoning approach.
package respond

import (
	"fmt"
	"strings"
	"time"

	"github.com/foremanai/foreman-ai/internal/enhance"
	reasoningContext "github.com/foremanai/foreman-ai/internal/reasoning/context"
	"github.com/foremanai/foreman-ai/internal/reasoning/engine"
	"github.com/foremanai/foreman-ai/internal/reasoning/intent"
)

// Envelope is the full response for one assist request.
type Envelope struct {
	Query            string                            `json:"query,omitempty"`
	UnderstoodIntent intent.Intent                     `json:"understood_intent"`
	ContextAnalysis  reasoningContext.ExtractedContext `json:"context_analysis"`
	Reasoning        engine.Result                     `json:"reasoning"`
	Result           *enhance.EnhancedPrediction       `json:"result,omitempty"`
	NaturalResponse  string                            `json:"natural_response"`
	Confidence       float64                           `json:"confidence"`
	Suggestions      []string                          `json:"suggestions,omitempty"`
	Timestamp        time.Time                         `json:"timestamp"`
}

// ErrorReply is the envelope for rejected requests.
type ErrorReply struct {
	Error      string    `json:"error"`
	Suggestion string    `json:"suggestion,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Composer renders envelopes from the pipeline stages.
type Composer struct{}

// NewComposer creates a response composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Compose builds the envelope for a completed pipeline run. The
// natural response is phrased per reasoning approach; risk warnings
// from the enhancement join the reasoning suggestions.
func (c *Composer) Compose(
	query string,
	in intent.Intent,
	ctx reasoningContext.ExtractedContext,
	reasoning engine.Result,
	enhanced *enhance.EnhancedPrediction,
) *Envelope {
	suggestions := append([]string{}, reasoning.Suggestions...)
	if enhanced != nil && enhanced.Risk.Level == enhance.RiskHigh {
		suggestions = append(suggestions,
			"Risk is high for this recommendation: "+strings.Join(enhanced.Risk.Factors, "; "))
	}

	return &Envelope{
		Query:            query,
		UnderstoodIntent: in,
		ContextAnalysis:  ctx,
		Reasoning:        reasoning,
		Result:           enhanced,
		NaturalResponse:  naturalResponse(reasoning, enhanced),
		Confidence:       reasoning.Confidence,
		Suggestions:      suggestions,
		Timestamp:        time.Now().UTC(),
	}
}

// ComposeCorrective builds an envelope for a domain rejection, keeping
// the analysis stages but replacing the result with guidance.
func (c *Composer) ComposeCorrective(
	query string,
	in intent.Intent,
	ctx reasoningContext.ExtractedContext,
	reasoning engine.Result,
	message string,
) *Envelope {
	return &Envelope{
		Query:            query,
		UnderstoodIntent: in,
		ContextAnalysis:  ctx,
		Reasoning:        reasoning,
		NaturalResponse:  message,
		Confidence:       reasoning.Confidence,
		Suggestions:      reasoning.Suggestions,
		Timestamp:        time.Now().UTC(),
	}
}

// ComposeApology builds the envelope returned when the pipeline hits
// an unexpected failure. Confidence is zero and no result is attached.
func (c *Composer) ComposeApology() *Envelope {
	fallback := intent.Match{Type: intent.TypeGeneralInquiry}
	return &Envelope{
		UnderstoodIntent: intent.Intent{Primary: fallback, AllScores: []intent.Match{fallback}},
		NaturalResponse:  "Sorry, something went wrong while working on that request. Please try again, and rephrase if the problem persists.",
		Confidence:       0,
		Timestamp:        time.Now().UTC(),
	}
}

// ValidationReply builds the rejection envelope for malformed requests.
func ValidationReply(message, suggestion string) *ErrorReply {
	return &ErrorReply{
		Error:      message,
		Suggestion: suggestion,
		Timestamp:  time.Now().UTC(),
	}
}

// ─── Natural-language templates ───────────────────────────────────────────────

// naturalResponse phrases the outcome per reasoning approach, citing
// the primary recommendation, one alternative when present, and the
// reasoning confidence as a percentage.
func naturalResponse(reasoning engine.Result, enhanced *enhance.EnhancedPrediction) string {
	confidence := fmt.Sprintf("%.0f%%", reasoning.Confidence*100)
	if enhanced == nil {
		return fmt.Sprintf("%s. Reasoning confidence: %s.", reasoning.Explanation, confidence)
	}

	switch reasoning.Approach {
	case engine.ApproachAssignment:
		response := fmt.Sprintf(
			"%s is the best choice for machine %d at complexity %d. Estimated completion is %.0f minutes at %.0f%% average quality. Reasoning confidence: %s.",
			enhanced.Base.RecommendedWorker,
			reasoning.Parameters.MachineID,
			reasoning.Parameters.Complexity,
			enhanced.Base.EstimatedTime,
			enhanced.Base.AvgQuality,
			confidence,
		)
		if len(enhanced.Alternatives) > 0 {
			alt := enhanced.Alternatives[0]
			response += fmt.Sprintf(" Alternative: %s at complexity %d (%s).",
				alt.Worker, alt.Complexity, strings.ToLower(alt.Reason[:1])+alt.Reason[1:])
		}
		return response

	case engine.ApproachPerformance:
		return fmt.Sprintf(
			"Performance picture from the job history: %s would be the current pick, averaging %.0f minutes at %.0f%% quality over %d jobs. Reasoning confidence: %s.",
			enhanced.Base.RecommendedWorker,
			enhanced.Base.EstimatedTime,
			enhanced.Base.AvgQuality,
			enhanced.Base.JobCount,
			confidence,
		)

	case engine.ApproachAnalytics:
		return fmt.Sprintf(
			"Analysis of the job history points to %s as the strongest fit for the analyzed scope, with a contextual score of %.0f out of 100. Reasoning confidence: %s.",
			enhanced.Base.RecommendedWorker,
			enhanced.ContextualScore,
			confidence,
		)

	case engine.ApproachLearning:
		return fmt.Sprintf("%s. Reasoning confidence: %s.", reasoning.Explanation, confidence)

	default:
		return fmt.Sprintf(
			"Here is what the job history suggests: %s looks like the safest pick right now. %s Reasoning confidence: %s.",
			enhanced.Base.RecommendedWorker,
			reasoning.Explanation+".",
			confidence,
		)
	}
}
