// Package testkit provides scriptable capability implementations and
// assertion helpers for exercising the debate engine without a model
// backend.
package testkit

import (
	"context"
	"fmt"
	"sync"

	"refinery/pkg/artifact"
	"refinery/pkg/capability"
	"refinery/pkg/debate"
)

// RoundScript fixes the reviewer and validator behavior for one round.
type RoundScript struct {
	Quality     debate.Critique
	Feasibility debate.Critique
	Validation  debate.Validation
}

// MockCapabilities is a deterministic capability set driven by per-round
// scripts. Rounds past the end of the script repeat the last entry. Safe
// for concurrent use; the engine critiques both roles in parallel.
type MockCapabilities struct {
	mu sync.Mutex

	Rounds     []RoundScript
	SplitParts []artifact.Artifact
	Evidence   []artifact.EvidenceItem

	// FailTimes injects N consecutive errors per capability before
	// calls start succeeding. Errors default to FailErr or a plain
	// transient-looking error.
	FailTimes map[capability.Kind]int
	FailErr   error

	calls         map[capability.Kind]int
	critiqueCount map[debate.Role]int
	validateCount int
}

// NewMockCapabilities builds a mock set with the given scripts.
func NewMockCapabilities(rounds ...RoundScript) *MockCapabilities {
	return &MockCapabilities{
		Rounds:        rounds,
		FailTimes:     make(map[capability.Kind]int),
		calls:         make(map[capability.Kind]int),
		critiqueCount: make(map[debate.Role]int),
	}
}

// Set bundles the mock into a capability set.
func (m *MockCapabilities) Set() capability.Set {
	return capability.Set{
		Drafter:     m,
		Critic:      m,
		Synthesizer: m,
		Validator:   m,
		Splitter:    m,
		Retriever:   m,
	}
}

// Calls reports how many times a capability was invoked, failures included.
func (m *MockCapabilities) Calls(kind capability.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

func (m *MockCapabilities) failNext(kind capability.Kind) error {
	m.calls[kind]++
	if m.FailTimes[kind] > 0 {
		m.FailTimes[kind]--
		if m.FailErr != nil {
			return m.FailErr
		}
		return fmt.Errorf("connection refused")
	}
	return nil
}

func (m *MockCapabilities) script(round int) RoundScript {
	if len(m.Rounds) == 0 {
		return RoundScript{
			Quality:     debate.Critique{Role: debate.RoleQuality, Confidence: 0.9},
			Feasibility: debate.Critique{Role: debate.RoleFeasibility, Confidence: 0.9},
			Validation:  debate.Validation{Confidence: 0.9},
		}
	}
	if round >= len(m.Rounds) {
		round = len(m.Rounds) - 1
	}
	return m.Rounds[round]
}

// Draft implements capability.Drafter.
func (m *MockCapabilities) Draft(ctx context.Context, a artifact.Artifact, evidence []artifact.EvidenceItem, feedbackSummary string) (artifact.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(capability.KindDraft); err != nil {
		return artifact.Artifact{}, err
	}
	return a.ApplyRevision(artifact.Revision{
		Description: fmt.Sprintf("%s (drafted)", a.Description),
	}), nil
}

// Critique implements capability.Critic.
func (m *MockCapabilities) Critique(ctx context.Context, role debate.Role, a artifact.Artifact) (debate.Critique, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(capability.KindCritique); err != nil {
		return debate.Critique{}, err
	}
	round := m.critiqueCount[role]
	m.critiqueCount[role]++
	s := m.script(round)
	c := s.Quality
	if role == debate.RoleFeasibility {
		c = s.Feasibility
	}
	c.Role = role
	return c, nil
}

// Synthesize implements capability.Synthesizer.
func (m *MockCapabilities) Synthesize(ctx context.Context, a artifact.Artifact, critiques []debate.Critique, focus debate.Role) (artifact.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(capability.KindSynth); err != nil {
		return artifact.Artifact{}, err
	}
	desc := fmt.Sprintf("%s (revised)", a.Description)
	if focus != "" {
		desc = fmt.Sprintf("%s (revised, %s first)", a.Description, focus)
	}
	return a.ApplyRevision(artifact.Revision{Description: desc}), nil
}

// Validate implements capability.Validator.
func (m *MockCapabilities) Validate(ctx context.Context, a artifact.Artifact) (debate.Validation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(capability.KindValidate); err != nil {
		return debate.Validation{}, err
	}
	round := m.validateCount
	m.validateCount++
	return m.script(round).Validation, nil
}

// ProposeSplit implements capability.Splitter.
func (m *MockCapabilities) ProposeSplit(ctx context.Context, original artifact.Artifact, violations []debate.Violation) ([]artifact.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(capability.KindSplit); err != nil {
		return nil, err
	}
	if m.SplitParts != nil {
		return m.SplitParts, nil
	}
	return []artifact.Artifact{
		{Title: original.Title + " (part 1)", Description: original.Description},
		{Title: original.Title + " (part 2)", Description: original.Description},
	}, nil
}

// Retrieve implements capability.ContextRetriever.
func (m *MockCapabilities) Retrieve(ctx context.Context, query string) ([]artifact.EvidenceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(capability.KindRetrieve); err != nil {
		return nil, err
	}
	return m.Evidence, nil
}
