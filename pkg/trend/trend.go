// Package trend classifies debate progress from iteration history. The
// analysis is a pure function of the ordered record sequence: no side
// effects, no failure modes.
package trend

import (
	"refinery/pkg/debate"
)

// Direction classifies movement of a tracked quantity between rounds.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionStable    Direction = "stable"
	DirectionDeclining Direction = "declining"
)

// DefaultEpsilon absorbs confidence-score noise between rounds.
const DefaultEpsilon = 0.02

// Classification is the analyzer's output tuple.
type Classification struct {
	Confidence Direction
	Violations Direction
	// OverallImproving is true only when confidence is non-declining and
	// the violation count is non-increasing. With fewer than two records
	// it is always false: sparse history must never look like progress.
	OverallImproving bool
}

// Analyzer compares consecutive iteration records.
type Analyzer struct {
	epsilon float64
}

// NewAnalyzer creates an analyzer with the given confidence epsilon.
// Non-positive epsilon falls back to the default.
func NewAnalyzer(epsilon float64) *Analyzer {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Analyzer{epsilon: epsilon}
}

// Analyze classifies the last two records of the history. With fewer than
// two records everything reports stable and overall-improving is false —
// insufficient data must not trigger early termination.
func (a *Analyzer) Analyze(history []debate.IterationRecord) Classification {
	if len(history) < 2 {
		return Classification{
			Confidence:       DirectionStable,
			Violations:       DirectionStable,
			OverallImproving: false,
		}
	}

	prev := history[len(history)-2]
	last := history[len(history)-1]

	out := Classification{
		Confidence: a.classifyConfidence(last.Confidence - prev.Confidence),
		Violations: classifyViolations(last.ViolationCount - prev.ViolationCount),
	}
	out.OverallImproving = out.Confidence != DirectionDeclining && out.Violations != DirectionDeclining
	return out
}

func (a *Analyzer) classifyConfidence(delta float64) Direction {
	switch {
	case delta > a.epsilon:
		return DirectionImproving
	case delta < -a.epsilon:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

// Violation counts are integers; any movement is signal, no epsilon needed.
// A falling count is an improvement.
func classifyViolations(delta int) Direction {
	switch {
	case delta < 0:
		return DirectionImproving
	case delta > 0:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}
