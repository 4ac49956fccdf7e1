// Package capability defines the contracts for the opaque operations the
// debate engine invokes but does not implement: drafting, critiquing,
// synthesis, validation, splitting, and context retrieval. Implementations
// must be safe for concurrent invocation from multiple sessions.
package capability

import (
	"context"
	"errors"
	"fmt"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
)

// Kind names a capability for logging, metrics, and registry lookup.
type Kind string

const (
	KindDraft    Kind = "draft"
	KindCritique Kind = "critique"
	KindSynth    Kind = "synthesize"
	KindValidate Kind = "validate"
	KindSplit    Kind = "split"
	KindRetrieve Kind = "retrieve"
)

// Drafter produces a fresh artifact draft. Identical inputs are not
// guaranteed to produce identical outputs; transient failures must be
// retried by the caller.
type Drafter interface {
	Draft(ctx context.Context, a artifact.Artifact, evidence []artifact.EvidenceItem, feedbackSummary string) (artifact.Artifact, error)
}

// Critic reviews an artifact from the perspective of one reviewer role.
type Critic interface {
	Critique(ctx context.Context, role debate.Role, a artifact.Artifact) (debate.Critique, error)
}

// Synthesizer merges critique feedback into a revised artifact. An empty
// focus means no role takes priority.
type Synthesizer interface {
	Synthesize(ctx context.Context, a artifact.Artifact, critiques []debate.Critique, focus debate.Role) (artifact.Artifact, error)
}

// Validator scores an artifact against the quality bar.
type Validator interface {
	Validate(ctx context.Context, a artifact.Artifact) (debate.Validation, error)
}

// Splitter decomposes the original artifact into smaller ones. Results must
// be non-empty and contain at least two artifacts; jointly preserving the
// original acceptance statements is the implementation's obligation.
type Splitter interface {
	ProposeSplit(ctx context.Context, original artifact.Artifact, violations []debate.Violation) ([]artifact.Artifact, error)
}

// ContextRetriever fetches supporting evidence at ingress. An empty result
// is legitimate.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]artifact.EvidenceItem, error)
}

// Set bundles one implementation of every capability a session needs.
type Set struct {
	Drafter     Drafter
	Critic      Critic
	Synthesizer Synthesizer
	Validator   Validator
	Splitter    Splitter
	Retriever   ContextRetriever
}

// ErrIncompleteSet is returned when a required capability is missing.
var ErrIncompleteSet = errors.New("capability set is incomplete")

// Validate checks that every required capability is present. The retriever
// is optional: sessions can run without ingress evidence.
func (s *Set) Validate() error {
	switch {
	case s.Drafter == nil:
		return fmt.Errorf("%w: drafter", ErrIncompleteSet)
	case s.Critic == nil:
		return fmt.Errorf("%w: critic", ErrIncompleteSet)
	case s.Synthesizer == nil:
		return fmt.Errorf("%w: synthesizer", ErrIncompleteSet)
	case s.Validator == nil:
		return fmt.Errorf("%w: validator", ErrIncompleteSet)
	case s.Splitter == nil:
		return fmt.Errorf("%w: splitter", ErrIncompleteSet)
	default:
		return nil
	}
}
