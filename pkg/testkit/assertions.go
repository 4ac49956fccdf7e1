package testkit

import (
	"testing"

	"refinery/pkg/debate"
)

// AssertOutcomeKind verifies the terminal outcome kind.
func AssertOutcomeKind(t *testing.T, outcome debate.Outcome, expected debate.OutcomeKind) {
	t.Helper()
	if outcome.Kind != expected {
		t.Errorf("Expected outcome kind %s, got %s (%s)", expected, outcome.Kind, outcome)
	}
}

// AssertForcedReason verifies a forced termination carries the expected reason.
func AssertForcedReason(t *testing.T, outcome debate.Outcome, expected string) {
	t.Helper()
	if outcome.Kind != debate.OutcomeForcedTermination {
		t.Errorf("Expected forced termination, got %s", outcome.Kind)
		return
	}
	if outcome.Reason != expected {
		t.Errorf("Expected forced reason %q, got %q", expected, outcome.Reason)
	}
}

// AssertRoundCount verifies how many rounds completed.
func AssertRoundCount(t *testing.T, outcome debate.Outcome, expected int) {
	t.Helper()
	if len(outcome.History) != expected {
		t.Errorf("Expected %d completed rounds, got %d", expected, len(outcome.History))
	}
}

// BlockingViolation builds a blocking violation for scripts.
func BlockingViolation(category, description string) debate.Violation {
	return debate.Violation{
		Category:    category,
		Severity:    debate.SeverityHigh,
		Description: description,
		Blocking:    true,
	}
}

// CleanCritique builds a critique with no findings.
func CleanCritique(role debate.Role, confidence float64) debate.Critique {
	return debate.Critique{Role: role, Confidence: confidence}
}
