package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"refinery/pkg/artifact"
	"refinery/pkg/capability"
	"refinery/pkg/debate"
	"refinery/pkg/logx"
	"refinery/pkg/router"
	"refinery/pkg/supervisor"
	"refinery/pkg/trend"
)

// Config enumerates the per-session tunables.
type Config struct {
	IterationCeiling    int
	ConfidenceThreshold float64
	StagnationWindow    int
	PerCallTimeout      time.Duration
	TrendEpsilon        float64
	Retry               capability.RetryConfig
	// Priority is the disagreement tie-break order, highest first.
	Priority []debate.Role
}

// DefaultConfig returns the standard session configuration.
func DefaultConfig() Config {
	return Config{
		IterationCeiling:    5,
		ConfidenceThreshold: 0.8,
		StagnationWindow:    2,
		PerCallTimeout:      2 * time.Minute,
		TrendEpsilon:        trend.DefaultEpsilon,
		Retry:               capability.DefaultRetryConfig,
		Priority:            []debate.Role{debate.RoleQuality, debate.RoleFeasibility},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IterationCeiling <= 0 {
		c.IterationCeiling = def.IterationCeiling
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.StagnationWindow <= 0 {
		c.StagnationWindow = def.StagnationWindow
	}
	if c.PerCallTimeout < 0 {
		c.PerCallTimeout = def.PerCallTimeout
	}
	if c.TrendEpsilon <= 0 {
		c.TrendEpsilon = def.TrendEpsilon
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = def.Retry
	}
	if len(c.Priority) == 0 {
		c.Priority = def.Priority
	}
	return c
}

// Recorder persists session history. Implementations must tolerate being
// called from concurrent sessions; recording failures never fail a session.
type Recorder interface {
	StartSession(ctx context.Context, sessionID string, original artifact.Artifact) error
	RecordIteration(ctx context.Context, sessionID string, rec debate.IterationRecord) error
	FinishSession(ctx context.Context, sessionID string, outcome debate.Outcome) error
}

// Observer receives engine-level events for metrics.
type Observer interface {
	ObserveRound(rec debate.IterationRecord)
	ObserveOutcome(kind string, rounds, steps int)
	ObserveOverride(action string)
}

// Options carries optional engine collaborators.
type Options struct {
	Recorder Recorder
	Observer Observer
	// CallObserver instruments individual capability calls.
	CallObserver capability.Observer
	Logger       *logx.Logger
}

// Engine runs debate sessions. One Engine may serve many concurrent
// sessions; each RunDebate call owns all of its mutable state.
type Engine struct {
	caps     capability.Set
	cfg      Config
	analyzer *trend.Analyzer
	recorder Recorder
	observer Observer
	logger   *logx.Logger
}

// New builds an engine around a raw capability set. Resilience (per-call
// timeout, bounded retry) is applied here, once — nothing above this layer
// retries anything.
func New(caps capability.Set, cfg Config, opts Options) (*Engine, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = logx.NewLogger("engine")
	}

	wrapped := capability.NewResilientSet(caps, cfg.Retry, cfg.PerCallTimeout, logger, opts.CallObserver).Set()

	return &Engine{
		caps:     wrapped,
		cfg:      cfg,
		analyzer: trend.NewAnalyzer(cfg.TrendEpsilon),
		recorder: opts.Recorder,
		observer: opts.Observer,
		logger:   logger,
	}, nil
}

// session is the per-run mutable context. It never outlives one RunDebate
// call, so nothing here needs locking.
type session struct {
	state  debate.State
	fsm    SessionState
	logger *logx.Logger
	// pendingCritiques holds critique results that were produced by the
	// parallel join but whose router decision has not arrived yet.
	pendingCritiques map[debate.Role]debate.Critique
}

// RunDebate executes one full debate session and always returns a well-typed
// outcome. The returned error is non-nil only for caller mistakes detected
// before the session starts (an empty artifact); runtime failures are folded
// into the outcome, never surfaced raw.
func (e *Engine) RunDebate(ctx context.Context, initial artifact.Artifact) (debate.Outcome, error) {
	if initial.IsEmpty() {
		return debate.Outcome{}, errors.New("initial artifact is empty")
	}

	sessionID := uuid.NewString()
	logger := e.logger.WithSessionID(sessionID)
	logger.Info("debate session starting: %s", initial.Summary())

	// Context assembly happens exactly once, at ingress. An empty evidence
	// list is legitimate; a retrieval failure downgrades to no evidence.
	evidence, err := e.caps.Retriever.Retrieve(ctx, initial.Title)
	if err != nil {
		if ctx.Err() != nil {
			return debate.Cancelled(nil), nil
		}
		logger.Warn("context retrieval failed, continuing without evidence: %v", err)
		evidence = nil
	}

	s := &session{
		state:            debate.NewState(sessionID, initial, evidence),
		fsm:              StateIngress,
		logger:           logger,
		pendingCritiques: make(map[debate.Role]debate.Critique),
	}

	if e.recorder != nil {
		if err := e.recorder.StartSession(ctx, sessionID, s.state.Original); err != nil {
			logger.Warn("failed to record session start: %v", err)
		}
	}

	outcome := e.runLoop(ctx, s)

	if e.recorder != nil {
		// Persist the terminal outcome even when the caller's context is
		// gone; give the write its own short budget.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.recorder.FinishSession(finishCtx, sessionID, outcome); err != nil {
			logger.Warn("failed to record session finish: %v", err)
		}
	}
	if e.observer != nil {
		e.observer.ObserveOutcome(string(outcome.Kind), len(outcome.History), s.state.StepCounter)
	}

	logger.Info("debate session finished: %s", outcome)
	return outcome, nil
}

// runLoop drives supervisor → router → capability → fold until terminal.
func (e *Engine) runLoop(ctx context.Context, s *session) debate.Outcome {
	sup := supervisor.New(supervisor.Policy{
		IterationCeiling:    e.cfg.IterationCeiling,
		ConfidenceThreshold: e.cfg.ConfidenceThreshold,
		StagnationWindow:    e.cfg.StagnationWindow,
		Priority:            e.cfg.Priority,
	}, s.logger)
	rtr := router.New(e.cfg.IterationCeiling, s.logger)

	for {
		// Cancellation is observed here, at the top of each turn, so a
		// cancel can never corrupt a half-folded state.
		select {
		case <-ctx.Done():
			s.logger.Info("session cancelled at step %d", s.state.StepCounter)
			return debate.Cancelled(s.state.History)
		default:
		}

		cls := e.analyzer.Analyze(s.state.History)
		decision := sup.Decide(s.state, cls)
		s.logger.DebugDomain("supervisor", "recommend %s (continue=%v): %s",
			decision.NextAction, decision.ShouldContinue, decision.Reasoning)

		route, err := rtr.Route(s.state, decision)
		if err != nil {
			return e.invariantViolation(s, err)
		}
		if route.State.StepCounter != s.state.StepCounter+1 {
			return e.invariantViolation(s, fmt.Errorf("%w: step counter moved %d -> %d",
				router.ErrInvariantViolation, s.state.StepCounter, route.State.StepCounter))
		}
		if route.Overridden && e.observer != nil {
			e.observer.ObserveOverride(string(route.Action))
		}

		nextFSM, err := StateForAction(route.Action)
		if err != nil {
			return e.invariantViolation(s, err)
		}
		if !IsValidTransition(s.fsm, nextFSM) && s.fsm != nextFSM {
			return e.invariantViolation(s, fmt.Errorf("%w: illegal transition %s -> %s",
				router.ErrInvariantViolation, s.fsm, nextFSM))
		}
		s.state = route.State
		s.fsm = nextFSM
		s.logger.DebugDomain("router", "step %d: %s", s.state.StepCounter, route.Action)

		switch route.Action {
		case debate.ActionEnd:
			return e.terminate(s, route, decision)

		case debate.ActionProposeSplit:
			if outcome, done := e.proposeSplit(ctx, s, decision); done {
				return outcome
			}
			// Split failed as a capability; the pinned fallback decision
			// takes over on the next turn.
			continue

		default:
			if outcome, terminal := e.executeStep(ctx, s, route.Action, decision); terminal {
				return outcome
			}
		}
	}
}

// terminate maps a routed end into the proper outcome kind.
func (e *Engine) terminate(s *session, route router.Route, decision supervisor.Decision) debate.Outcome {
	s.fsm = StateTerminated

	switch {
	case route.Forced:
		return debate.ForcedTermination(route.ForcedReason, s.state.Current, s.state.History)
	case s.state.CapabilityFailed:
		return debate.ForcedTermination(debate.ReasonCapabilityFailure, s.state.Current, s.state.History)
	case s.state.LastValidation != nil &&
		s.state.LastValidation.Confidence >= e.cfg.ConfidenceThreshold &&
		len(s.state.LastValidation.Violations) == 0:
		return debate.Completed(s.state.Current, s.state.History)
	default:
		return debate.ForcedTermination(debate.ReasonIterationCeiling, s.state.Current, s.state.History)
	}
}

// proposeSplit invokes the splitter against the original pre-debate
// artifact, preserving full original scope. Returns done=false when the
// failure should fall back to the pinned end decision instead.
func (e *Engine) proposeSplit(ctx context.Context, s *session, decision supervisor.Decision) (debate.Outcome, bool) {
	violations := e.splitViolations(s)
	proposed, err := e.caps.Splitter.ProposeSplit(ctx, s.state.Original, violations)
	if err != nil {
		if ctx.Err() != nil {
			return debate.Cancelled(s.state.History), true
		}
		if capability.IsInvalidResult(err) {
			return e.invariantViolation(s, err), true
		}
		s.logger.Error("split proposal failed: %v", err)
		s.state.CapabilityFailed = true
		return debate.Outcome{}, false
	}
	s.fsm = StateTerminated
	return debate.SplitProposed(proposed, decision.Reasoning, s.state.History), true
}

func (e *Engine) splitViolations(s *session) []debate.Violation {
	var out []debate.Violation
	if s.state.LastValidation != nil {
		out = append(out, s.state.LastValidation.Violations...)
	}
	for _, role := range debate.AllRoles() {
		if c, ok := s.state.Critiques[role]; ok {
			out = append(out, c.Violations...)
		}
	}
	return out
}

// executeStep invokes the capability for one in-round step and folds its
// result into the session state. It returns a terminal outcome only for
// cancellation and invariant violations; plain capability failures set the
// failure flag and let the supervisor's pinned fallback finish the session.
func (e *Engine) executeStep(ctx context.Context, s *session, action debate.Action, decision supervisor.Decision) (debate.Outcome, bool) {
	var err error

	switch action {
	case debate.ActionDraft:
		err = e.stepDraft(ctx, s)
	case debate.ActionCritiqueQuality, debate.ActionCritiqueFeasibility:
		err = e.stepCritique(ctx, s, action)
	case debate.ActionSynthesize:
		err = e.stepSynthesize(ctx, s, decision.PriorityFocus)
	case debate.ActionValidate:
		err = e.stepValidate(ctx, s)
	default:
		err = fmt.Errorf("%w: unexpected in-round action %q", router.ErrInvariantViolation, action)
	}

	if err == nil {
		return debate.Outcome{}, false
	}
	if ctx.Err() != nil {
		return debate.Cancelled(s.state.History), true
	}
	if capability.IsInvalidResult(err) || errors.Is(err, router.ErrInvariantViolation) {
		return e.invariantViolation(s, err), true
	}

	s.logger.Error("%s failed after retries: %v", action, err)
	s.state.CapabilityFailed = true
	return debate.Outcome{}, false
}

func (e *Engine) stepDraft(ctx context.Context, s *session) error {
	drafted, err := e.caps.Drafter.Draft(ctx, s.state.Current, s.state.Evidence, s.state.FeedbackSummary)
	if err != nil {
		return err
	}
	s.state.Current = drafted
	s.state.Round.DraftDone = true
	s.state.RoundStarted = time.Now().UTC()
	return nil
}

// stepCritique runs the reviewer roles. When quality is scheduled and
// feasibility is also still pending for this round, both critiques run as
// two concurrent calls joined before the router proceeds — the one explicit
// parallelism point in the loop. The feasibility result is held until its
// own router decision folds it.
func (e *Engine) stepCritique(ctx context.Context, s *session, action debate.Action) error {
	role, _ := debate.RoleForAction(action)

	// A result pre-joined by an earlier parallel pair folds without a new
	// capability invocation.
	if c, ok := s.pendingCritiques[role]; ok {
		delete(s.pendingCritiques, role)
		e.foldCritique(s, role, c)
		return nil
	}

	if action == debate.ActionCritiqueQuality && !s.state.Round.FeasibilityDone {
		roles := debate.AllRoles()
		results := make([]debate.Critique, len(roles))
		g, gctx := errgroup.WithContext(ctx)
		for i, r := range roles {
			g.Go(func() error {
				c, err := e.caps.Critic.Critique(gctx, r, s.state.Current)
				if err != nil {
					return err
				}
				results[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		e.foldCritique(s, debate.RoleQuality, results[0])
		s.pendingCritiques[debate.RoleFeasibility] = results[1]
		return nil
	}

	c, err := e.caps.Critic.Critique(ctx, role, s.state.Current)
	if err != nil {
		return err
	}
	e.foldCritique(s, role, c)
	return nil
}

func (e *Engine) foldCritique(s *session, role debate.Role, c debate.Critique) {
	s.state.Critiques[role] = c
	switch role {
	case debate.RoleQuality:
		s.state.Round.QualityDone = true
	case debate.RoleFeasibility:
		s.state.Round.FeasibilityDone = true
	}

	// Disagreement is counted once per round, when the second critique
	// lands and the pair becomes comparable.
	if s.state.Round.QualityDone && s.state.Round.FeasibilityDone {
		if _, ok := s.state.SharpDisagreement(); ok {
			s.state.DisagreementRounds++
		}
	}
}

func (e *Engine) stepSynthesize(ctx context.Context, s *session, focus debate.Role) error {
	critiques := make([]debate.Critique, 0, 2)
	for _, role := range debate.AllRoles() {
		if c, ok := s.state.Critiques[role]; ok {
			critiques = append(critiques, c)
		}
	}
	merged, err := e.caps.Synthesizer.Synthesize(ctx, s.state.Current, critiques, focus)
	if err != nil {
		return err
	}
	s.state.Current = merged
	s.state.Round.SynthesizeDone = true
	return nil
}

// stepValidate folds the validation, appends the round's IterationRecord in
// completion order, updates the stagnation counter, and resets the round.
func (e *Engine) stepValidate(ctx context.Context, s *session) error {
	v, err := e.caps.Validator.Validate(ctx, s.state.Current)
	if err != nil {
		return err
	}
	s.state.LastValidation = &v
	s.state.Round.ValidateDone = true

	rec := debate.IterationRecord{
		Index:          len(s.state.History),
		Confidence:     v.Confidence,
		ViolationCount: len(v.Violations),
		Violations:     append([]debate.Violation{}, v.Violations...),
		RolesRan:       s.state.RolesThatRan(),
		StartedAt:      s.state.RoundStarted,
		CompletedAt:    time.Now().UTC(),
	}
	s.state.History = append(s.state.History, rec)

	cls := e.analyzer.Analyze(s.state.History)
	if cls.OverallImproving {
		s.state.StagnantRounds = 0
	} else {
		s.state.StagnantRounds++
	}

	s.accumulateFeedback(v)
	s.state.Round = debate.RoundProgress{}
	s.pendingCritiques = make(map[debate.Role]debate.Critique)

	if e.recorder != nil {
		if err := e.recorder.RecordIteration(ctx, s.state.SessionID, rec); err != nil {
			s.logger.Warn("failed to record iteration %d: %v", rec.Index, err)
		}
	}
	if e.observer != nil {
		e.observer.ObserveRound(rec)
	}

	s.logger.Info("round %d complete: confidence=%.2f violations=%d stagnant=%d",
		rec.Index, rec.Confidence, rec.ViolationCount, s.state.StagnantRounds)
	return nil
}

// accumulateFeedback carries round findings forward so a forced redraft
// sees everything earlier reviewers raised.
func (s *session) accumulateFeedback(v debate.Validation) {
	var parts []string
	if s.state.FeedbackSummary != "" {
		parts = append(parts, s.state.FeedbackSummary)
	}
	for _, role := range debate.AllRoles() {
		if c, ok := s.state.Critiques[role]; ok && c.Summary != "" {
			parts = append(parts, fmt.Sprintf("[%s] %s", role, c.Summary))
		}
	}
	for _, gap := range v.Gaps {
		parts = append(parts, "[gap] "+gap)
	}
	joined := strings.Join(parts, "\n")

	// Keep the summary bounded; older feedback ages out from the front.
	const maxFeedback = 8000
	if len(joined) > maxFeedback {
		joined = joined[len(joined)-maxFeedback:]
	}
	s.state.FeedbackSummary = joined
}

// invariantViolation logs the full state snapshot and terminates. These are
// never recovered: continuing on inconsistent state is worse than stopping.
func (e *Engine) invariantViolation(s *session, err error) debate.Outcome {
	s.logger.Error("invariant violation: %v (session=%s step=%d round=%d fsm=%s history=%d)",
		err, s.state.SessionID, s.state.StepCounter, s.state.RoundIndex(), s.fsm, len(s.state.History))
	s.fsm = StateTerminated
	return debate.ForcedTermination(debate.ReasonInvariantViolation, s.state.Current, s.state.History)
}
