// Package assistant runs the full request pipeline: classify the
// query, extract context, reason out a strategy, predict and enhance,
// then compose the reply. Every understood request feeds the learning
// store and emits an audit event.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foremanai/foreman-ai/internal/audit"
	"github.com/foremanai/foreman-ai/internal/enhance"
	"github.com/foremanai/foreman-ai/internal/learning"
	"github.com/foremanai/foreman-ai/internal/ml"
	reasoningContext "github.com/foremanai/foreman-ai/internal/reasoning/context"
	"github.com/foremanai/foreman-ai/internal/reasoning/engine"
	"github.com/foremanai/foreman-ai/internal/reasoning/intent"
	"github.com/foremanai/foreman-ai/internal/respond"
)

// ErrEmptyQuery rejects requests whose query is blank.
var ErrEmptyQuery = errors.New("query is required")

// Request is one natural-language assist request. Context carries
// optional structured hints (requirements, environmental factors,
// constraints) that override what the query text implies.
type Request struct {
	Query   string                 `json:"query"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// modelTrainer adapts the predictor to the reasoning engine's trainer
// surface, so a learning intent refreshes the model the same way the
// training API does.
type modelTrainer struct {
	predictor *ml.Predictor
}

func (t modelTrainer) Retrain() int {
	return t.predictor.Retrain().Records
}

// Assistant owns the pipeline stages. The stages themselves are
// stateless; shared state lives in the predictor and learning store.
type Assistant struct {
	classifier *intent.Classifier
	extractor  *reasoningContext.Extractor
	engine     *engine.Engine
	enhancer   *enhance.Enhancer
	composer   *respond.Composer
	predictor  *ml.Predictor
	learning   *learning.Store
	audit      audit.Logger
}

// New wires the pipeline around a predictor and a learning store. The
// audit logger may be nil, in which case no audit events are emitted.
func New(predictor *ml.Predictor, learningStore *learning.Store, auditLog audit.Logger) *Assistant {
	return &Assistant{
		classifier: intent.NewClassifier(),
		extractor:  reasoningContext.NewExtractor(),
		engine:     engine.NewEngine(modelTrainer{predictor: predictor}),
		enhancer:   enhance.NewEnhancer(predictor),
		composer:   respond.NewComposer(),
		predictor:  predictor,
		learning:   learningStore,
		audit:      auditLog,
	}
}

// Assist runs the pipeline for one request. A blank query returns
// ErrEmptyQuery; every other outcome, including an untrained model, an
// out-of-range machine, or an internal panic, still yields an envelope.
func (a *Assistant) Assist(ctx context.Context, req Request) (resp *respond.Envelope, err error) {
	requestID := audit.GetCorrelationID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		if a.audit != nil {
			_ = a.audit.LogAssistRejected(ctx, requestID, ErrEmptyQuery.Error())
		}
		return nil, ErrEmptyQuery
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if a.audit != nil {
				_ = a.audit.LogAssistFailed(ctx, requestID, fmt.Errorf("pipeline panic: %v", r))
			}
			resp = a.composer.ComposeApology()
			err = nil
		}
	}()

	in := a.classifier.Classify(query)
	extracted := a.extractor.Extract(query, req.Context)
	reasoning := a.engine.Reason(in, extracted)

	a.learning.Record(learning.Interaction{
		ID:         requestID,
		Query:      query,
		IntentType: string(in.Primary.Type),
		Confidence: in.Primary.Confidence,
	})

	params := reasoning.Parameters
	prediction, predictErr := a.predictor.Predict(params.MachineID, params.Complexity)

	var envelope *respond.Envelope
	switch {
	case predictErr == nil:
		enhanced := a.enhancer.Enhance(prediction, reasoning)
		envelope = a.composer.Compose(query, in, extracted, reasoning, enhanced)
		if a.audit != nil {
			_ = a.audit.LogAssistAnswered(ctx, requestID, string(in.Primary.Type),
				params.MachineID, prediction.RecommendedWorker, reasoning.Confidence, time.Since(started))
		}

	case errors.Is(predictErr, ml.ErrModelNotTrained), errors.Is(predictErr, ml.ErrNoMachineData):
		enhanced := a.enhancer.EnhanceFallback(reasoning)
		envelope = a.composer.Compose(query, in, extracted, reasoning, enhanced)
		if a.audit != nil {
			_ = a.audit.LogAssistDegraded(ctx, requestID, predictErr.Error())
		}

	default:
		var invalid *ml.InvalidMachineError
		if !errors.As(predictErr, &invalid) {
			if a.audit != nil {
				_ = a.audit.LogAssistFailed(ctx, requestID, predictErr)
			}
			return nil, fmt.Errorf("predict: %w", predictErr)
		}
		message := fmt.Sprintf(
			"Machine %d is not on the floor. Machines are numbered %d through %d; tell me which one the job runs on.",
			invalid.MachineID, ml.MinMachineID, ml.MaxMachineID)
		envelope = a.composer.ComposeCorrective(query, in, extracted, reasoning, message)
		if a.audit != nil {
			_ = a.audit.LogAssistRejected(ctx, requestID, predictErr.Error())
		}
	}

	return envelope, nil
}

// LearningStatus reports the learning store snapshot.
func (a *Assistant) LearningStatus() learning.Status {
	return a.learning.Status()
}
