package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/pkg/artifact"
	"refinery/pkg/capability"
	"refinery/pkg/debate"
	"refinery/pkg/testkit"
)

func testArtifact() artifact.Artifact {
	return artifact.Artifact{
		Title:       "Checkout flow",
		Description: "As a shopper I can pay for my cart",
		Acceptance:  []string{"payment is captured"},
	}
}

func fastConfig() Config {
	return Config{
		Retry: capability.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2.0,
		},
	}
}

func newTestEngine(t *testing.T, mock *testkit.MockCapabilities, cfg Config) *Engine {
	t.Helper()
	eng, err := New(mock.Set(), cfg, Options{})
	require.NoError(t, err)
	return eng
}

func clean(confidence float64) testkit.RoundScript {
	return testkit.RoundScript{
		Quality:     testkit.CleanCritique(debate.RoleQuality, confidence),
		Feasibility: testkit.CleanCritique(debate.RoleFeasibility, confidence),
		Validation:  debate.Validation{Confidence: confidence},
	}
}

func TestRunDebateConvergesFirstRound(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.9))
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCompleted)
	testkit.AssertRoundCount(t, outcome, 1)
	assert.Contains(t, outcome.Final.Description, "(revised)")
	assert.Equal(t, 0.9, outcome.History[0].Confidence)
}

func TestRunDebateEveryRoundRunsAllSteps(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.5), clean(0.9))
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCompleted)
	testkit.AssertRoundCount(t, outcome, 2)
	assert.Equal(t, 2, mock.Calls(capability.KindDraft))
	assert.Equal(t, 4, mock.Calls(capability.KindCritique), "both roles review every round")
	assert.Equal(t, 2, mock.Calls(capability.KindSynth))
	assert.Equal(t, 2, mock.Calls(capability.KindValidate))

	for _, rec := range outcome.History {
		assert.ElementsMatch(t, debate.AllRoles(), rec.RolesRan)
	}
}

func TestRunDebateStepCeiling(t *testing.T) {
	// Confidence never reaches the bar and nothing stagnates, so only the
	// hard step ceiling can end the session: on the decision that would
	// have validated round 3.
	cfg := fastConfig()
	cfg.IterationCeiling = 3
	mock := testkit.NewMockCapabilities(clean(0.5))
	eng := newTestEngine(t, mock, cfg)

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertForcedReason(t, outcome, debate.ReasonStepCeiling)
	testkit.AssertRoundCount(t, outcome, 2)
	assert.Equal(t, 2, mock.Calls(capability.KindValidate), "round 3 validate never runs")
	assert.Equal(t, 3, mock.Calls(capability.KindDraft))
	assert.False(t, outcome.Final.IsEmpty(), "forced termination still reports the best-so-far artifact")
}

func TestRunDebateDisagreementFocusesSynthesis(t *testing.T) {
	script := testkit.RoundScript{
		Quality: debate.Critique{
			Role:       debate.RoleQuality,
			Violations: []debate.Violation{testkit.BlockingViolation("ambiguity", "acceptance criteria untestable")},
		},
		Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.9),
		Validation:  debate.Validation{Confidence: 0.9},
	}
	mock := testkit.NewMockCapabilities(script)
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCompleted)
	assert.Contains(t, outcome.Final.Description, "quality first",
		"the blocking role's concerns steer the synthesis")
}

func TestRunDebateStagnationProposesSplit(t *testing.T) {
	tooLarge := debate.Validation{
		Confidence: 0.5,
		Violations: []debate.Violation{{Category: debate.CategoryTooLarge, Severity: debate.SeverityHigh, Description: "story spans three services"}},
	}
	declining := tooLarge
	declining.Confidence = 0.4

	mock := testkit.NewMockCapabilities(
		testkit.RoundScript{
			Quality:     testkit.CleanCritique(debate.RoleQuality, 0.6),
			Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.6),
			Validation:  tooLarge,
		},
		testkit.RoundScript{
			Quality:     testkit.CleanCritique(debate.RoleQuality, 0.6),
			Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.6),
			Validation:  declining,
		},
	)
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeSplitProposed)
	testkit.AssertRoundCount(t, outcome, 2)
	require.Len(t, outcome.Proposed, 2)
	assert.NotEmpty(t, outcome.Rationale)
}

func TestRunDebateSplitterFailureFallsBackToEnd(t *testing.T) {
	tooLarge := debate.Validation{
		Confidence: 0.5,
		Violations: []debate.Violation{{Category: debate.CategoryTooLarge, Severity: debate.SeverityHigh, Description: "story spans three services"}},
	}
	declining := tooLarge
	declining.Confidence = 0.4

	mock := testkit.NewMockCapabilities(
		testkit.RoundScript{
			Quality:     testkit.CleanCritique(debate.RoleQuality, 0.6),
			Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.6),
			Validation:  tooLarge,
		},
		testkit.RoundScript{
			Quality:     testkit.CleanCritique(debate.RoleQuality, 0.6),
			Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.6),
			Validation:  declining,
		},
	)
	mock.FailTimes[capability.KindSplit] = 100
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertForcedReason(t, outcome, debate.ReasonCapabilityFailure)
	testkit.AssertRoundCount(t, outcome, 2)
	assert.Equal(t, 2, mock.Calls(capability.KindSplit), "bounded retry, then give up")
	assert.False(t, outcome.Final.IsEmpty(), "the best-so-far artifact survives a failed split")
}

func TestRunDebateCapabilityFailureTerminates(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.9))
	mock.FailTimes[capability.KindValidate] = 100
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertForcedReason(t, outcome, debate.ReasonCapabilityFailure)
	testkit.AssertRoundCount(t, outcome, 0)
	assert.Equal(t, 2, mock.Calls(capability.KindValidate), "bounded retry, then give up")
}

func TestRunDebateTransientFailureRecovers(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.9))
	mock.FailTimes[capability.KindDraft] = 1
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCompleted)
	assert.Equal(t, 2, mock.Calls(capability.KindDraft))
}

func TestRunDebateInvalidSplitViolatesInvariant(t *testing.T) {
	tooLarge := debate.Validation{
		Confidence: 0.5,
		Violations: []debate.Violation{{Category: debate.CategoryTooLarge, Severity: debate.SeverityHigh}},
	}
	declining := tooLarge
	declining.Confidence = 0.4
	mock := testkit.NewMockCapabilities(
		testkit.RoundScript{
			Quality:     testkit.CleanCritique(debate.RoleQuality, 0.5),
			Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.5),
			Validation:  tooLarge,
		},
		testkit.RoundScript{
			Quality:     testkit.CleanCritique(debate.RoleQuality, 0.5),
			Feasibility: testkit.CleanCritique(debate.RoleFeasibility, 0.5),
			Validation:  declining,
		},
	)
	mock.SplitParts = []artifact.Artifact{{Title: "only one part", Description: "x"}}
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)

	testkit.AssertForcedReason(t, outcome, debate.ReasonInvariantViolation)
}

func TestRunDebateCancellation(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.5))
	eng := newTestEngine(t, mock, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := eng.RunDebate(ctx, testArtifact())
	require.NoError(t, err)
	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCancelled)
}

func TestRunDebateEmptyArtifactIsCallerError(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.9))
	eng := newTestEngine(t, mock, fastConfig())

	_, err := eng.RunDebate(context.Background(), artifact.Artifact{})
	assert.Error(t, err)
}

func TestRunDebateOriginalNeverMutates(t *testing.T) {
	initial := testArtifact()
	fingerprint := initial.Fingerprint()

	mock := testkit.NewMockCapabilities(clean(0.9))
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), initial)
	require.NoError(t, err)

	assert.Equal(t, fingerprint, initial.Fingerprint())
	assert.NotEqual(t, fingerprint, outcome.Final.Fingerprint(), "the debate revised the working copy")
}

func TestRunDebateRetrievalFailureIsNonFatal(t *testing.T) {
	mock := testkit.NewMockCapabilities(clean(0.9))
	mock.FailTimes[capability.KindRetrieve] = 100
	eng := newTestEngine(t, mock, fastConfig())

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)
	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCompleted)
}

// memoryRecorder captures recorder calls for assertions.
type memoryRecorder struct {
	mu         sync.Mutex
	started    []string
	iterations []debate.IterationRecord
	finished   map[string]debate.Outcome
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{finished: make(map[string]debate.Outcome)}
}

func (m *memoryRecorder) StartSession(_ context.Context, sessionID string, _ artifact.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, sessionID)
	return nil
}

func (m *memoryRecorder) RecordIteration(_ context.Context, _ string, rec debate.IterationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iterations = append(m.iterations, rec)
	return nil
}

func (m *memoryRecorder) FinishSession(_ context.Context, sessionID string, outcome debate.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[sessionID] = outcome
	return nil
}

func TestRunDebateRecordsHistory(t *testing.T) {
	rec := newMemoryRecorder()
	mock := testkit.NewMockCapabilities(clean(0.5), clean(0.9))
	eng, err := New(mock.Set(), fastConfig(), Options{Recorder: rec})
	require.NoError(t, err)

	outcome, err := eng.RunDebate(context.Background(), testArtifact())
	require.NoError(t, err)
	testkit.AssertOutcomeKind(t, outcome, debate.OutcomeCompleted)

	require.Len(t, rec.started, 1)
	assert.Len(t, rec.iterations, 2)
	assert.Equal(t, 0, rec.iterations[0].Index)
	assert.Equal(t, 1, rec.iterations[1].Index)

	finished, ok := rec.finished[rec.started[0]]
	require.True(t, ok)
	assert.Equal(t, debate.OutcomeCompleted, finished.Kind)
}

func TestStateForActionCoversAllActions(t *testing.T) {
	for _, a := range []debate.Action{
		debate.ActionDraft, debate.ActionCritiqueQuality, debate.ActionCritiqueFeasibility,
		debate.ActionSynthesize, debate.ActionValidate, debate.ActionProposeSplit, debate.ActionEnd,
	} {
		_, err := StateForAction(a)
		assert.NoError(t, err, "action %s", a)
	}
	_, err := StateForAction(debate.Action("bogus"))
	assert.Error(t, err)
}

func TestSessionTransitions(t *testing.T) {
	assert.True(t, IsValidTransition(StateIngress, StateDrafting))
	assert.True(t, IsValidTransition(StateDrafting, StateCritiqueQuality))
	assert.True(t, IsValidTransition(StateValidating, StateDrafting))
	assert.True(t, IsValidTransition(StateValidating, StateSplitProposing))
	assert.True(t, IsValidTransition(StateSplitProposing, StateExecuting), "failed split proposals fall back to the end decision")
	assert.True(t, IsValidTransition(StateExecuting, StateTerminated))

	assert.False(t, IsValidTransition(StateTerminated, StateDrafting))
	assert.False(t, IsValidTransition(StateCritiqueFeasibility, StateDrafting))

	assert.True(t, IsTerminalState(StateTerminated))
	assert.False(t, IsTerminalState(StateExecuting))
}
