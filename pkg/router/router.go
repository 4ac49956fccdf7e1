// Package router maps supervisor decisions onto concrete next steps. It is
// the sole enforcement point for the two invariants the supervisor is not
// trusted with: the hard step ceiling and round completeness. The router
// never mutates an incoming state; every decision derives a new one with the
// step counter advanced by exactly one.
package router

import (
	"errors"
	"fmt"

	"refinery/pkg/debate"
	"refinery/pkg/logx"
	"refinery/pkg/supervisor"
)

// ErrInvariantViolation marks an internal inconsistency the router refuses
// to operate on. It is never recovered; the session terminates.
var ErrInvariantViolation = errors.New("router invariant violation")

// Route is the router's output for one loop turn.
type Route struct {
	// Action is the scheduled next step. Terminal actions carry no
	// capability invocation.
	Action debate.Action
	// State is the derived state with the counter advanced and routing
	// flags rewritten. The input state is untouched.
	State debate.State
	// Forced is set when a safety guard overrode the supervisor into a
	// terminal action.
	Forced bool
	// ForcedReason names the guard that fired.
	ForcedReason string
	// Overridden is set when round completeness replaced the recommended
	// action with the next mandatory step.
	Overridden bool
}

// Router enforces routing safety for one debate session.
type Router struct {
	stepCeiling int
	logger      *logx.Logger
}

// New creates a router. The step ceiling is derived from the iteration
// ceiling: a session may consume at most StepsPerRound decisions per
// allowed round.
func New(iterationCeiling int, logger *logx.Logger) *Router {
	if iterationCeiling <= 0 {
		iterationCeiling = supervisor.DefaultPolicy().IterationCeiling
	}
	if logger == nil {
		logger = logx.NewLogger("router")
	}
	return &Router{
		stepCeiling: iterationCeiling * debate.StepsPerRound,
		logger:      logger,
	}
}

// StepCeiling returns the hard limit on router decisions for this session.
func (r *Router) StepCeiling() int {
	return r.stepCeiling
}

// Route turns a supervisor decision into the next scheduled step.
//
// Guard order matters: the step ceiling is checked before anything else and
// is unconditional — this is the property that makes infinite loops
// impossible regardless of what the supervisor recommends.
func (r *Router) Route(state debate.State, d supervisor.Decision) (Route, error) {
	if state.StepCounter < 0 {
		return Route{}, fmt.Errorf("%w: negative step counter %d", ErrInvariantViolation, state.StepCounter)
	}
	if state.Original.IsEmpty() {
		return Route{}, fmt.Errorf("%w: original artifact missing from session state", ErrInvariantViolation)
	}

	next := state.Clone()
	next.StepCounter = state.StepCounter + 1
	next.Flags = debate.RoutingFlags{
		LastNode:   state.Flags.NextAction,
		NextAction: d.NextAction,
	}

	// Hard stop. Once the counter reaches the ceiling the session
	// terminates on this very decision, regardless of the recommendation
	// and regardless of where in the round it lands.
	if next.StepCounter >= r.stepCeiling {
		r.logger.Warn("step ceiling %d reached, forcing end", r.stepCeiling)
		next.Flags.NextAction = debate.ActionEnd
		return Route{
			Action:       debate.ActionEnd,
			State:        next,
			Forced:       true,
			ForcedReason: debate.ReasonStepCeiling,
		}, nil
	}

	action := d.NextAction

	// Terminal recommendations pass through; round completeness binds only
	// the in-round steps.
	if action.IsTerminal() {
		return Route{Action: action, State: next}, nil
	}

	// Round completeness: the supervisor may not skip a mandatory step.
	// Once critique-quality ran, critique-feasibility precedes synthesis;
	// once synthesis ran, validation precedes any new draft. Both reduce
	// to routing the first incomplete step of the canonical order.
	mandatory, incomplete := state.Round.NextIncomplete()
	overridden := false
	if incomplete && action != mandatory {
		r.logger.Debug("overriding %s to %s for round completeness", action, mandatory)
		action = mandatory
		overridden = true
	}
	if !incomplete {
		// Round fully complete: the only legal in-round step is a fresh
		// draft of the next round.
		if action != debate.ActionDraft {
			r.logger.Debug("round complete, overriding %s to %s", action, debate.ActionDraft)
			action = debate.ActionDraft
			overridden = true
		}
	}

	next.Flags.NextAction = action
	return Route{Action: action, State: next, Overridden: overridden}, nil
}
