// Package engine drives a debate session: an explicit finite-state machine
// whose transition function is the router's output, with a hard step ceiling
// replacing unbounded revisitation.
package engine

import (
	"fmt"

	"refinery/pkg/debate"
)

// SessionState identifies a node of the debate state machine.
type SessionState string

// Debate session states. Entry is INGRESS; TERMINATED is the only state with
// no outgoing transitions, reached via EXECUTING or SPLIT_PROPOSING.
const (
	StateIngress             SessionState = "INGRESS"
	StateDrafting            SessionState = "DRAFTING"
	StateCritiqueQuality     SessionState = "CRITIQUE_QUALITY"
	StateCritiqueFeasibility SessionState = "CRITIQUE_FEASIBILITY"
	StateSynthesizing        SessionState = "SYNTHESIZING"
	StateValidating          SessionState = "VALIDATING"
	StateSplitProposing      SessionState = "SPLIT_PROPOSING"
	StateExecuting           SessionState = "EXECUTING"
	StateTerminated          SessionState = "TERMINATED"
)

// sessionTransitions is the canonical transition map. Any state that can
// reach the router can be overridden to any in-round step, so the in-round
// states are mutually reachable in canonical order plus the two terminal
// funnels.
//
//nolint:gochecknoglobals // Single source of truth for session transitions
var sessionTransitions = map[SessionState][]SessionState{
	StateIngress: {StateDrafting, StateExecuting},

	// The router may route any in-round step next, including a fresh draft
	// when a new round begins, or funnel into a terminal path.
	StateDrafting:            {StateCritiqueQuality, StateCritiqueFeasibility, StateSynthesizing, StateValidating, StateExecuting, StateSplitProposing},
	StateCritiqueQuality:     {StateCritiqueFeasibility, StateSynthesizing, StateValidating, StateExecuting, StateSplitProposing},
	StateCritiqueFeasibility: {StateSynthesizing, StateValidating, StateExecuting, StateSplitProposing},
	StateSynthesizing:        {StateValidating, StateExecuting, StateSplitProposing},
	StateValidating:          {StateDrafting, StateCritiqueQuality, StateSynthesizing, StateExecuting, StateSplitProposing},

	// A split proposal that fails as a capability falls back to the pinned
	// end decision, which executes before terminating.
	StateSplitProposing: {StateExecuting, StateTerminated},
	StateExecuting:      {StateTerminated},
	StateTerminated:     {},
}

// IsValidTransition checks a transition against the canonical map.
func IsValidTransition(from, to SessionState) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalState reports whether a state ends the session.
func IsTerminalState(s SessionState) bool {
	return s == StateTerminated
}

// AllSessionStates returns every state in deterministic order.
func AllSessionStates() []SessionState {
	return []SessionState{
		StateIngress,
		StateDrafting,
		StateCritiqueQuality,
		StateCritiqueFeasibility,
		StateSynthesizing,
		StateValidating,
		StateSplitProposing,
		StateExecuting,
		StateTerminated,
	}
}

// StateForAction maps a routed action onto the session state that executes it.
func StateForAction(a debate.Action) (SessionState, error) {
	switch a {
	case debate.ActionDraft:
		return StateDrafting, nil
	case debate.ActionCritiqueQuality:
		return StateCritiqueQuality, nil
	case debate.ActionCritiqueFeasibility:
		return StateCritiqueFeasibility, nil
	case debate.ActionSynthesize:
		return StateSynthesizing, nil
	case debate.ActionValidate:
		return StateValidating, nil
	case debate.ActionProposeSplit:
		return StateSplitProposing, nil
	case debate.ActionEnd:
		return StateExecuting, nil
	default:
		return "", fmt.Errorf("no session state for action %q", a)
	}
}
