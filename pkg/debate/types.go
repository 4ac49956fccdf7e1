// Package debate defines the data contracts threaded through a refinement
// session: reviewer roles, critiques, validation results, iteration history,
// and the aggregate DebateState. Everything here is a value type; components
// never mutate a DebateState they received — they derive a new one.
package debate

import (
	"strings"
	"time"
)

// Role identifies one of the two fixed reviewer roles.
type Role string

const (
	// RoleQuality reviews clarity, testability, and acceptance coverage.
	RoleQuality Role = "quality"
	// RoleFeasibility reviews technical feasibility and sizing.
	RoleFeasibility Role = "feasibility"
)

// AllRoles returns the reviewer roles in canonical order.
func AllRoles() []Role {
	return []Role{RoleQuality, RoleFeasibility}
}

// Severity grades a violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CategoryTooLarge marks a violation indicating the artifact should be split.
const CategoryTooLarge = "too_large"

// Violation is one quality finding reported by a critique or validation.
type Violation struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Blocking    bool     `json:"blocking"`
}

// IsTooLarge reports whether this violation carries the split signal.
func (v Violation) IsTooLarge() bool {
	return strings.EqualFold(v.Category, CategoryTooLarge)
}

// Critique is the structured output of one reviewer role.
type Critique struct {
	Role       Role        `json:"role"`
	Violations []Violation `json:"violations"`
	Confidence float64     `json:"confidence"`
	Blocking   bool        `json:"blocking"`
	Summary    string      `json:"summary,omitempty"`
}

// HasBlocking reports whether the critique carries any blocking concern.
func (c Critique) HasBlocking() bool {
	if c.Blocking {
		return true
	}
	for _, v := range c.Violations {
		if v.Blocking {
			return true
		}
	}
	return false
}

// Validation is the structured output of the validate capability.
type Validation struct {
	Confidence float64     `json:"confidence"`
	Violations []Violation `json:"violations"`
	Gaps       []string    `json:"gaps,omitempty"`
}

// HasTooLarge reports whether any violation carries the split signal.
func (v Validation) HasTooLarge() bool {
	for _, viol := range v.Violations {
		if viol.IsTooLarge() {
			return true
		}
	}
	return false
}

// IterationRecord is one append-only row per completed debate round.
type IterationRecord struct {
	Index          int         `json:"index"`
	Confidence     float64     `json:"confidence"`
	ViolationCount int         `json:"violation_count"`
	Violations     []Violation `json:"violations,omitempty"`
	RolesRan       []Role      `json:"roles_ran"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// HasTooLarge reports whether the round recorded a split signal.
func (r IterationRecord) HasTooLarge() bool {
	for _, v := range r.Violations {
		if v.IsTooLarge() {
			return true
		}
	}
	return false
}

// Action is one step the supervisor can recommend and the router can schedule.
type Action string

const (
	ActionDraft               Action = "draft"
	ActionCritiqueQuality     Action = "critique_quality"
	ActionCritiqueFeasibility Action = "critique_feasibility"
	ActionSynthesize          Action = "synthesize"
	ActionValidate            Action = "validate"
	ActionProposeSplit        Action = "propose_split"
	ActionEnd                 Action = "end"
)

// IsTerminal reports whether the action ends the session.
func (a Action) IsTerminal() bool {
	return a == ActionEnd || a == ActionProposeSplit
}

// String returns the action name.
func (a Action) String() string {
	return string(a)
}

// CanonicalRoundOrder is the mandatory step sequence of one debate round.
//
//nolint:gochecknoglobals // Fixed ordering shared by supervisor and router
var CanonicalRoundOrder = []Action{
	ActionDraft,
	ActionCritiqueQuality,
	ActionCritiqueFeasibility,
	ActionSynthesize,
	ActionValidate,
}

// StepsPerRound is the number of router decisions one full round consumes.
// It must equal len(CanonicalRoundOrder).
const StepsPerRound = 5

// RoleForAction maps a critique action to its reviewer role.
func RoleForAction(a Action) (Role, bool) {
	switch a {
	case ActionCritiqueQuality:
		return RoleQuality, true
	case ActionCritiqueFeasibility:
		return RoleFeasibility, true
	default:
		return "", false
	}
}

// ActionForRole maps a reviewer role to its critique action.
func ActionForRole(r Role) Action {
	if r == RoleFeasibility {
		return ActionCritiqueFeasibility
	}
	return ActionCritiqueQuality
}
