package debate

import (
	"time"

	"refinery/pkg/artifact"
)

// RoundProgress tracks which mandatory steps have completed in the current
// round. The router consults it to enforce round completeness; it is reset
// when a validation folds and the round's IterationRecord is appended.
type RoundProgress struct {
	DraftDone       bool
	QualityDone     bool
	FeasibilityDone bool
	SynthesizeDone  bool
	ValidateDone    bool
}

// NextIncomplete returns the first canonical step not yet completed in this
// round, or false if the round is fully complete.
func (p RoundProgress) NextIncomplete() (Action, bool) {
	switch {
	case !p.DraftDone:
		return ActionDraft, true
	case !p.QualityDone:
		return ActionCritiqueQuality, true
	case !p.FeasibilityDone:
		return ActionCritiqueFeasibility, true
	case !p.SynthesizeDone:
		return ActionSynthesize, true
	case !p.ValidateDone:
		return ActionValidate, true
	default:
		return "", false
	}
}

// Done reports whether a specific step has completed in this round.
func (p RoundProgress) Done(a Action) bool {
	switch a {
	case ActionDraft:
		return p.DraftDone
	case ActionCritiqueQuality:
		return p.QualityDone
	case ActionCritiqueFeasibility:
		return p.FeasibilityDone
	case ActionSynthesize:
		return p.SynthesizeDone
	case ActionValidate:
		return p.ValidateDone
	default:
		return false
	}
}

// RoutingFlags is per-session routing bookkeeping. The fields carry no
// business meaning: they are written by the router each turn and read only
// on the immediately following turn.
type RoutingFlags struct {
	LastNode   Action
	NextAction Action
}

// State is the aggregate passed between debate steps. It is threaded through
// the loop by value: the router derives a new State per decision and the old
// one is never written again.
type State struct {
	SessionID string

	// Original is the pre-debate artifact, captured once at ingress and
	// never replaced, so a later split can recover full original scope.
	Original artifact.Artifact
	Current  artifact.Artifact
	Evidence []artifact.EvidenceItem

	// Critiques holds the most recent critique per reviewer role.
	Critiques      map[Role]Critique
	LastValidation *Validation

	// History is append-only; records are appended strictly in validation
	// completion order and never rewritten.
	History []IterationRecord

	// StepCounter increases by exactly 1 on every router decision.
	StepCounter int

	Round        RoundProgress
	RoundStarted time.Time
	Flags        RoutingFlags

	// DisagreementRounds counts rounds in which the two reviewer roles
	// disagreed sharply (one blocking, the other clean).
	DisagreementRounds int

	// StagnantRounds counts consecutive completed rounds with a
	// non-improving trend classification.
	StagnantRounds int

	// FeedbackSummary accumulates critique summaries across rounds so a
	// forced redraft can carry prior feedback forward.
	FeedbackSummary string

	// CapabilityFailed is set when a capability call exhausted its retries;
	// the supervisor answers it with the pinned fallback decision.
	CapabilityFailed bool
}

// NewState creates the session aggregate at ingress.
func NewState(sessionID string, initial artifact.Artifact, evidence []artifact.EvidenceItem) State {
	return State{
		SessionID:    sessionID,
		Original:     initial.Clone(),
		Current:      initial.Clone(),
		Evidence:     append([]artifact.EvidenceItem{}, evidence...),
		Critiques:    make(map[Role]Critique),
		RoundStarted: time.Now().UTC(),
	}
}

// Clone returns a deep copy. The two values share no mutable storage, so a
// caller may fold results into the copy while earlier snapshots stay intact.
func (s State) Clone() State {
	out := s
	out.Original = s.Original.Clone()
	out.Current = s.Current.Clone()
	out.Evidence = append([]artifact.EvidenceItem{}, s.Evidence...)
	out.Critiques = make(map[Role]Critique, len(s.Critiques))
	for role, c := range s.Critiques {
		cc := c
		cc.Violations = append([]Violation{}, c.Violations...)
		out.Critiques[role] = cc
	}
	if s.LastValidation != nil {
		v := *s.LastValidation
		v.Violations = append([]Violation{}, s.LastValidation.Violations...)
		v.Gaps = append([]string{}, s.LastValidation.Gaps...)
		out.LastValidation = &v
	}
	out.History = append([]IterationRecord{}, s.History...)
	return out
}

// RoundIndex returns the zero-based index of the round in progress.
func (s State) RoundIndex() int {
	return len(s.History)
}

// LastRecord returns the most recent completed round, if any.
func (s State) LastRecord() (IterationRecord, bool) {
	if len(s.History) == 0 {
		return IterationRecord{}, false
	}
	return s.History[len(s.History)-1], true
}

// RolesThatRan lists the reviewer roles with a critique in the current round.
func (s State) RolesThatRan() []Role {
	roles := make([]Role, 0, 2)
	if s.Round.QualityDone {
		roles = append(roles, RoleQuality)
	}
	if s.Round.FeasibilityDone {
		roles = append(roles, RoleFeasibility)
	}
	return roles
}

// SharpDisagreement reports whether exactly one reviewer role is blocking
// while the other reported no blocking concern. Both critiques must be
// present for the comparison to be meaningful.
func (s State) SharpDisagreement() (blocking Role, ok bool) {
	q, haveQ := s.Critiques[RoleQuality]
	f, haveF := s.Critiques[RoleFeasibility]
	if !haveQ || !haveF {
		return "", false
	}
	switch {
	case q.HasBlocking() && !f.HasBlocking():
		return RoleQuality, true
	case f.HasBlocking() && !q.HasBlocking():
		return RoleFeasibility, true
	default:
		return "", false
	}
}

// OutstandingViolations returns the violation count from the last validation,
// or -1 when no validation has run yet.
func (s State) OutstandingViolations() int {
	if s.LastValidation == nil {
		return -1
	}
	return len(s.LastValidation.Violations)
}
