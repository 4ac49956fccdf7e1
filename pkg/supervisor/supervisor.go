// Package supervisor recommends the next debate action from the current
// state and trend classification. Its output is advisory: the router is the
// sole authority that enforces safety invariants and may override any
// recommendation. The supervisor must never be the only thing standing
// between a session and termination.
package supervisor

import (
	"fmt"

	"refinery/pkg/debate"
	"refinery/pkg/logx"
	"refinery/pkg/trend"
)

// Decision is the supervisor's recommendation for one loop turn.
type Decision struct {
	NextAction     debate.Action
	Reasoning      string
	ShouldContinue bool
	PriorityFocus  debate.Role // empty when no role takes priority
	Confidence     float64     // confidence in this decision, not in the artifact
}

// Policy holds the tunable decision thresholds.
type Policy struct {
	// IterationCeiling is the maximum number of completed rounds.
	IterationCeiling int
	// ConfidenceThreshold is the bar for declaring convergence.
	ConfidenceThreshold float64
	// StagnationWindow is the number of consecutive non-improving rounds
	// that triggers intervention.
	StagnationWindow int
	// Priority is the disagreement tie-break order, highest first. The
	// ordering is policy, not a hard business rule.
	Priority []debate.Role
}

// DefaultPolicy returns the standard decision thresholds.
func DefaultPolicy() Policy {
	return Policy{
		IterationCeiling:    5,
		ConfidenceThreshold: 0.8,
		StagnationWindow:    2,
		Priority:            []debate.Role{debate.RoleQuality, debate.RoleFeasibility},
	}
}

// Supervisor implements the decision policy.
type Supervisor struct {
	policy Policy
	logger *logx.Logger
}

// New creates a supervisor with the given policy. Zero-valued policy fields
// fall back to defaults.
func New(policy Policy, logger *logx.Logger) *Supervisor {
	def := DefaultPolicy()
	if policy.IterationCeiling <= 0 {
		policy.IterationCeiling = def.IterationCeiling
	}
	if policy.ConfidenceThreshold <= 0 {
		policy.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if policy.StagnationWindow <= 0 {
		policy.StagnationWindow = def.StagnationWindow
	}
	if len(policy.Priority) == 0 {
		policy.Priority = def.Priority
	}
	if logger == nil {
		logger = logx.NewLogger("supervisor")
	}
	return &Supervisor{policy: policy, logger: logger}
}

// Decide returns the recommendation for the next action. Checks run in
// strict priority order; the first that applies wins.
func (s *Supervisor) Decide(state debate.State, cls trend.Classification) Decision {
	// Pinned fallback: a capability failed after its own retries. The
	// session must still reach a terminal state, so recommend end rather
	// than propagating the failure.
	if state.CapabilityFailed {
		return Decision{
			NextAction:     debate.ActionEnd,
			Reasoning:      "capability failure: falling back to pinned end decision",
			ShouldContinue: false,
			Confidence:     1.0,
		}
	}

	// 1. Iteration ceiling.
	if state.RoundIndex() >= s.policy.IterationCeiling {
		return Decision{
			NextAction:     debate.ActionEnd,
			Reasoning:      fmt.Sprintf("iteration ceiling reached (%d rounds)", state.RoundIndex()),
			ShouldContinue: false,
			Confidence:     1.0,
		}
	}

	// 2. Repeated sharp disagreement: jump to synthesis focused on the
	// blocking role. The first disagreement falls through to the canonical
	// order; only a repeat warrants skipping ahead.
	if blocking, ok := state.SharpDisagreement(); ok && state.DisagreementRounds >= 2 && !state.Round.SynthesizeDone {
		return Decision{
			NextAction:     debate.ActionSynthesize,
			Reasoning:      fmt.Sprintf("repeated reviewer disagreement, prioritizing %s concerns", blocking),
			ShouldContinue: true,
			PriorityFocus:  s.focusFor(state, blocking),
			Confidence:     0.9,
		}
	}

	// 3. Stagnation.
	if state.StagnantRounds >= s.policy.StagnationWindow {
		if s.hasTooLargeSignal(state) {
			return Decision{
				NextAction:     debate.ActionProposeSplit,
				Reasoning:      fmt.Sprintf("stagnant for %d rounds with a too-large signal", state.StagnantRounds),
				ShouldContinue: false,
				Confidence:     0.85,
			}
		}
		return Decision{
			NextAction:     debate.ActionSynthesize,
			Reasoning:      fmt.Sprintf("stagnant for %d rounds, forcing redraft with accumulated feedback", state.StagnantRounds),
			ShouldContinue: true,
			PriorityFocus:  s.anyBlockingFocus(state),
			Confidence:     0.8,
		}
	}

	// 4. Convergence: validated confidence at the bar with nothing outstanding.
	if state.LastValidation != nil &&
		state.LastValidation.Confidence >= s.policy.ConfidenceThreshold &&
		len(state.LastValidation.Violations) == 0 {
		return Decision{
			NextAction:     debate.ActionEnd,
			Reasoning:      fmt.Sprintf("confidence %.2f meets threshold with zero violations", state.LastValidation.Confidence),
			ShouldContinue: false,
			Confidence:     0.95,
		}
	}

	// 5. Canonical round order: first incomplete mandatory step.
	next, ok := state.Round.NextIncomplete()
	if !ok {
		// Round fully complete but no terminal condition applied; a new
		// round begins with a fresh draft.
		next = debate.ActionDraft
	}
	d := Decision{
		NextAction:     next,
		Reasoning:      "advancing canonical round order",
		ShouldContinue: true,
		Confidence:     0.7,
	}
	// A live disagreement colors the synthesis even on first occurrence.
	if next == debate.ActionSynthesize {
		if blocking, ok := state.SharpDisagreement(); ok {
			d.PriorityFocus = s.focusFor(state, blocking)
			d.Reasoning = fmt.Sprintf("advancing to synthesis, prioritizing %s concerns", d.PriorityFocus)
		}
	}
	return d
}

// focusFor resolves the priority focus for a blocking role through the
// configured tie-break order: if multiple roles block, the earliest in the
// priority list wins.
func (s *Supervisor) focusFor(state debate.State, blocking debate.Role) debate.Role {
	for _, role := range s.policy.Priority {
		if c, ok := state.Critiques[role]; ok && c.HasBlocking() {
			return role
		}
	}
	return blocking
}

// anyBlockingFocus returns the highest-priority blocking role, or empty.
func (s *Supervisor) anyBlockingFocus(state debate.State) debate.Role {
	for _, role := range s.policy.Priority {
		if c, ok := state.Critiques[role]; ok && c.HasBlocking() {
			return role
		}
	}
	return ""
}

// hasTooLargeSignal checks the latest validation and the recent history for
// a split-worthy violation.
func (s *Supervisor) hasTooLargeSignal(state debate.State) bool {
	if state.LastValidation != nil && state.LastValidation.HasTooLarge() {
		return true
	}
	for _, c := range state.Critiques {
		for _, v := range c.Violations {
			if v.IsTooLarge() {
				return true
			}
		}
	}
	if rec, ok := state.LastRecord(); ok && rec.HasTooLarge() {
		return true
	}
	return false
}

// Policy exposes the effective policy, mainly for logging and tests.
func (s *Supervisor) Policy() Policy {
	return s.policy
}
