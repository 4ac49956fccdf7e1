package capability

import (
	"context"
	"time"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
	"refinery/pkg/logx"
)

// Observer receives timing and status for every capability invocation.
// The metrics package provides a Prometheus implementation; tests use nil.
type Observer interface {
	ObserveCall(kind string, success bool, duration time.Duration)
}

// ResilientSet wraps a raw capability set with per-call timeouts, bounded
// retry, structural result validation, and observability. This is the only
// layer that retries: the orchestration loop above it never does.
type ResilientSet struct {
	next     Set
	retry    RetryConfig
	timeout  time.Duration
	logger   *logx.Logger
	observer Observer
}

// NewResilientSet builds the wrapped capability set. A nil observer disables
// metrics; a zero timeout disables the per-attempt deadline.
func NewResilientSet(next Set, retry RetryConfig, timeout time.Duration, logger *logx.Logger, observer Observer) *ResilientSet {
	if logger == nil {
		logger = logx.NewLogger("capability")
	}
	return &ResilientSet{
		next:     next,
		retry:    retry,
		timeout:  timeout,
		logger:   logger,
		observer: observer,
	}
}

// Set exposes the wrapped capabilities as a plain Set for the engine.
func (r *ResilientSet) Set() Set {
	return Set{
		Drafter:     r,
		Critic:      r,
		Synthesizer: r,
		Validator:   r,
		Splitter:    r,
		Retriever:   r,
	}
}

func (r *ResilientSet) observe(kind Kind, start time.Time, err error) {
	if r.observer != nil {
		r.observer.ObserveCall(string(kind), err == nil, time.Since(start))
	}
}

// Draft implements Drafter with resilience applied.
func (r *ResilientSet) Draft(ctx context.Context, a artifact.Artifact, evidence []artifact.EvidenceItem, feedbackSummary string) (artifact.Artifact, error) {
	start := time.Now()
	result, err := call(ctx, KindDraft, r.retry, r.timeout, r.logger, func(ctx context.Context) (artifact.Artifact, error) {
		return r.next.Drafter.Draft(ctx, a, evidence, feedbackSummary)
	})
	if err == nil && result.IsEmpty() {
		err = NewInvalidResult(KindDraft, "drafter returned an empty artifact")
	}
	r.observe(KindDraft, start, err)
	return result, err
}

// Critique implements Critic with resilience applied.
func (r *ResilientSet) Critique(ctx context.Context, role debate.Role, a artifact.Artifact) (debate.Critique, error) {
	start := time.Now()
	result, err := call(ctx, KindCritique, r.retry, r.timeout, r.logger, func(ctx context.Context) (debate.Critique, error) {
		return r.next.Critic.Critique(ctx, role, a)
	})
	if err == nil {
		if result.Role == "" {
			result.Role = role
		}
		if result.Confidence < 0 || result.Confidence > 1 {
			err = NewInvalidResult(KindCritique, "critique confidence %f out of range", result.Confidence)
		}
	}
	r.observe(KindCritique, start, err)
	return result, err
}

// Synthesize implements Synthesizer with resilience applied.
func (r *ResilientSet) Synthesize(ctx context.Context, a artifact.Artifact, critiques []debate.Critique, focus debate.Role) (artifact.Artifact, error) {
	start := time.Now()
	result, err := call(ctx, KindSynth, r.retry, r.timeout, r.logger, func(ctx context.Context) (artifact.Artifact, error) {
		return r.next.Synthesizer.Synthesize(ctx, a, critiques, focus)
	})
	if err == nil && result.IsEmpty() {
		err = NewInvalidResult(KindSynth, "synthesizer returned an empty artifact")
	}
	r.observe(KindSynth, start, err)
	return result, err
}

// Validate implements Validator with resilience applied.
func (r *ResilientSet) Validate(ctx context.Context, a artifact.Artifact) (debate.Validation, error) {
	start := time.Now()
	result, err := call(ctx, KindValidate, r.retry, r.timeout, r.logger, func(ctx context.Context) (debate.Validation, error) {
		return r.next.Validator.Validate(ctx, a)
	})
	if err == nil && (result.Confidence < 0 || result.Confidence > 1) {
		err = NewInvalidResult(KindValidate, "validation confidence %f out of range", result.Confidence)
	}
	r.observe(KindValidate, start, err)
	return result, err
}

// ProposeSplit implements Splitter with resilience applied. The structural
// invariant checked here is minimal: at least two proposed artifacts.
func (r *ResilientSet) ProposeSplit(ctx context.Context, original artifact.Artifact, violations []debate.Violation) ([]artifact.Artifact, error) {
	start := time.Now()
	result, err := call(ctx, KindSplit, r.retry, r.timeout, r.logger, func(ctx context.Context) ([]artifact.Artifact, error) {
		return r.next.Splitter.ProposeSplit(ctx, original, violations)
	})
	if err == nil && len(result) < 2 {
		err = NewInvalidResult(KindSplit, "split proposed %d artifacts, need at least 2", len(result))
	}
	r.observe(KindSplit, start, err)
	return result, err
}

// Retrieve implements ContextRetriever with resilience applied. A missing
// retriever or an empty result is legitimate.
func (r *ResilientSet) Retrieve(ctx context.Context, query string) ([]artifact.EvidenceItem, error) {
	if r.next.Retriever == nil {
		return nil, nil
	}
	start := time.Now()
	result, err := call(ctx, KindRetrieve, r.retry, r.timeout, r.logger, func(ctx context.Context) ([]artifact.EvidenceItem, error) {
		return r.next.Retriever.Retrieve(ctx, query)
	})
	r.observe(KindRetrieve, start, err)
	return result, err
}
