package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
	"refinery/pkg/supervisor"
)

func testState() debate.State {
	return debate.NewState("sess-1", artifact.Artifact{
		Title:       "Checkout flow",
		Description: "As a shopper I can pay for my cart",
	}, nil)
}

func decide(action debate.Action) supervisor.Decision {
	return supervisor.Decision{NextAction: action, ShouldContinue: !action.IsTerminal()}
}

func TestRouteAdvancesCounterByOne(t *testing.T) {
	r := New(5, nil)
	s := testState()

	route, err := r.Route(s, decide(debate.ActionDraft))
	require.NoError(t, err)
	assert.Equal(t, 1, route.State.StepCounter)
	assert.Equal(t, 0, s.StepCounter, "the input state must stay untouched")
}

func TestRouteStepCeilingForcesEnd(t *testing.T) {
	r := New(3, nil)
	assert.Equal(t, 15, r.StepCeiling())

	s := testState()
	s.StepCounter = 14

	route, err := r.Route(s, decide(debate.ActionDraft))
	require.NoError(t, err)
	assert.Equal(t, debate.ActionEnd, route.Action)
	assert.True(t, route.Forced)
	assert.Equal(t, debate.ReasonStepCeiling, route.ForcedReason)
	assert.Equal(t, 15, route.State.StepCounter)
}

func TestRouteStepCeilingBeatsTerminalRecommendation(t *testing.T) {
	r := New(1, nil)
	s := testState()
	s.StepCounter = 4

	// Even a proposed split is displaced by the hard stop.
	route, err := r.Route(s, decide(debate.ActionProposeSplit))
	require.NoError(t, err)
	assert.Equal(t, debate.ActionEnd, route.Action)
	assert.True(t, route.Forced)
}

func TestRouteTerminalActionsPassThrough(t *testing.T) {
	r := New(5, nil)
	s := testState()

	for _, action := range []debate.Action{debate.ActionEnd, debate.ActionProposeSplit} {
		route, err := r.Route(s, decide(action))
		require.NoError(t, err)
		assert.Equal(t, action, route.Action)
		assert.False(t, route.Forced)
		assert.False(t, route.Overridden)
	}
}

func TestRouteRoundCompletenessOverrides(t *testing.T) {
	r := New(5, nil)

	tests := []struct {
		name        string
		round       debate.RoundProgress
		recommended debate.Action
		want        debate.Action
		overridden  bool
	}{
		{
			name:        "cannot skip feasibility before synthesis",
			round:       debate.RoundProgress{DraftDone: true, QualityDone: true},
			recommended: debate.ActionSynthesize,
			want:        debate.ActionCritiqueFeasibility,
			overridden:  true,
		},
		{
			name:        "cannot redraft before validation",
			round:       debate.RoundProgress{DraftDone: true, QualityDone: true, FeasibilityDone: true, SynthesizeDone: true},
			recommended: debate.ActionDraft,
			want:        debate.ActionValidate,
			overridden:  true,
		},
		{
			name:        "matching recommendation passes",
			round:       debate.RoundProgress{DraftDone: true},
			recommended: debate.ActionCritiqueQuality,
			want:        debate.ActionCritiqueQuality,
			overridden:  false,
		},
		{
			name:        "complete round only drafts",
			round:       debate.RoundProgress{DraftDone: true, QualityDone: true, FeasibilityDone: true, SynthesizeDone: true, ValidateDone: true},
			recommended: debate.ActionSynthesize,
			want:        debate.ActionDraft,
			overridden:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testState()
			s.Round = tt.round
			route, err := r.Route(s, decide(tt.recommended))
			require.NoError(t, err)
			assert.Equal(t, tt.want, route.Action)
			assert.Equal(t, tt.overridden, route.Overridden)
		})
	}
}

func TestRouteRejectsCorruptState(t *testing.T) {
	r := New(5, nil)

	s := testState()
	s.StepCounter = -1
	_, err := r.Route(s, decide(debate.ActionDraft))
	assert.ErrorIs(t, err, ErrInvariantViolation)

	s = testState()
	s.Original = artifact.Artifact{}
	_, err = r.Route(s, decide(debate.ActionDraft))
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestRouteRewritesFlags(t *testing.T) {
	r := New(5, nil)
	s := testState()
	s.Flags = debate.RoutingFlags{NextAction: debate.ActionDraft}
	s.Round = debate.RoundProgress{DraftDone: true}

	route, err := r.Route(s, decide(debate.ActionCritiqueQuality))
	require.NoError(t, err)
	assert.Equal(t, debate.ActionDraft, route.State.Flags.LastNode)
	assert.Equal(t, debate.ActionCritiqueQuality, route.State.Flags.NextAction)
}
