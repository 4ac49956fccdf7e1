package debate

import (
	"fmt"

	"refinery/pkg/artifact"
)

// OutcomeKind enumerates the terminal results of a debate session.
type OutcomeKind string

const (
	// OutcomeCompleted means the artifact converged on the quality bar.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeSplitProposed means the session ended with a decomposition proposal.
	OutcomeSplitProposed OutcomeKind = "split_proposed"
	// OutcomeCancelled means the caller cancelled the session. Not an error.
	OutcomeCancelled OutcomeKind = "cancelled"
	// OutcomeForcedTermination means a safety guard stopped the session.
	OutcomeForcedTermination OutcomeKind = "forced_termination"
)

// Forced-termination reasons.
const (
	ReasonStepCeiling        = "step_ceiling"
	ReasonIterationCeiling   = "iteration_ceiling"
	ReasonCapabilityFailure  = "capability_failure"
	ReasonInvariantViolation = "invariant_violation"
)

// Outcome is the well-typed terminal result handed back to the caller.
// Callers never see a raw error from the engine; every session ends in
// exactly one of these.
type Outcome struct {
	Kind      OutcomeKind
	Final     artifact.Artifact   // set for Completed and ForcedTermination
	Proposed  []artifact.Artifact // set for SplitProposed, always >= 2
	Rationale string              // set for SplitProposed
	Reason    string              // set for ForcedTermination
	History   []IterationRecord
}

// Completed builds a successful outcome.
func Completed(final artifact.Artifact, history []IterationRecord) Outcome {
	return Outcome{Kind: OutcomeCompleted, Final: final, History: history}
}

// SplitProposed builds a decomposition outcome.
func SplitProposed(proposed []artifact.Artifact, rationale string, history []IterationRecord) Outcome {
	return Outcome{Kind: OutcomeSplitProposed, Proposed: proposed, Rationale: rationale, History: history}
}

// Cancelled builds the cancellation outcome.
func Cancelled(history []IterationRecord) Outcome {
	return Outcome{Kind: OutcomeCancelled, History: history}
}

// ForcedTermination builds a safety-stop outcome.
func ForcedTermination(reason string, final artifact.Artifact, history []IterationRecord) Outcome {
	return Outcome{Kind: OutcomeForcedTermination, Reason: reason, Final: final, History: history}
}

// String renders a one-line outcome description for logs and CLI output.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCompleted:
		return fmt.Sprintf("completed after %d rounds: %s", len(o.History), o.Final.Summary())
	case OutcomeSplitProposed:
		return fmt.Sprintf("split proposed (%d artifacts): %s", len(o.Proposed), o.Rationale)
	case OutcomeCancelled:
		return fmt.Sprintf("cancelled after %d rounds", len(o.History))
	case OutcomeForcedTermination:
		return fmt.Sprintf("forced termination (%s) after %d rounds", o.Reason, len(o.History))
	default:
		return string(o.Kind)
	}
}
