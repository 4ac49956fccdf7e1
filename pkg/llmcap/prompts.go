package llmcap

import (
	"fmt"
	"strings"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
)

const draftSystemPrompt = `You are a senior product analyst drafting user stories.
Rewrite the given story so it is clear, testable, and appropriately scoped.
Respond with a single JSON object:
{"title": "...", "description": "...", "acceptance": ["..."], "depends_on": ["..."]}`

const synthesizeSystemPrompt = `You are a senior product analyst merging reviewer feedback into a user story.
Address every blocking concern. Keep the story's intent intact.
Respond with a single JSON object:
{"title": "...", "description": "...", "acceptance": ["..."], "depends_on": ["..."]}`

const validateSystemPrompt = `You are a quality gate for user stories.
Score the story and list concrete violations and gaps. Use the category "too_large"
when the story should be split. Severity is one of low, medium, high, critical.
Respond with a single JSON object:
{"confidence": 0.0, "violations": [{"category": "...", "severity": "...", "description": "...", "blocking": false}], "gaps": ["..."]}`

const splitSystemPrompt = `You are a senior product analyst decomposing an oversized user story.
Propose two or more smaller stories that together preserve every acceptance
statement of the original. Respond with a single JSON object:
{"artifacts": [{"title": "...", "description": "...", "acceptance": ["..."], "depends_on": ["..."]}]}`

func critiqueSystemPrompt(role debate.Role) string {
	perspective := "clarity, completeness, testability, and acceptance criteria coverage"
	if role == debate.RoleFeasibility {
		perspective = "technical feasibility, sizing, dependency risk, and implementation order"
	}
	return fmt.Sprintf(`You are a reviewer on a story refinement panel, focused on %s.
Report violations with category, severity (low/medium/high/critical), and whether each blocks the story.
Use the category "too_large" if the story should be split.
Respond with a single JSON object:
{"violations": [{"category": "...", "severity": "...", "description": "...", "blocking": false}], "confidence": 0.0, "blocking": false, "summary": "..."}`, perspective)
}

func renderArtifact(a artifact.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Description: %s\n", a.Description)
	if len(a.Acceptance) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, s := range a.Acceptance {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if len(a.DependsOn) > 0 {
		fmt.Fprintf(&b, "Depends on: %s\n", strings.Join(a.DependsOn, ", "))
	}
	return b.String()
}

func draftPrompt(a artifact.Artifact, evidence, feedbackSummary string) string {
	var b strings.Builder
	b.WriteString("Refine this story:\n\n")
	b.WriteString(renderArtifact(a))
	if evidence != "" {
		b.WriteString("\nSupporting context:\n")
		b.WriteString(evidence)
		b.WriteString("\n")
	}
	if feedbackSummary != "" {
		b.WriteString("\nFeedback from earlier review rounds, address all of it:\n")
		b.WriteString(feedbackSummary)
		b.WriteString("\n")
	}
	return b.String()
}

func critiquePrompt(a artifact.Artifact) string {
	return "Review this story:\n\n" + renderArtifact(a)
}

func synthesizePrompt(a artifact.Artifact, critiques []debate.Critique, focus debate.Role) string {
	var b strings.Builder
	b.WriteString("Revise this story:\n\n")
	b.WriteString(renderArtifact(a))
	b.WriteString("\nReviewer findings:\n")
	for _, c := range critiques {
		fmt.Fprintf(&b, "\n[%s reviewer] confidence %.2f, blocking=%v\n", c.Role, c.Confidence, c.HasBlocking())
		if c.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", c.Summary)
		}
		for _, v := range c.Violations {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", v.Category, v.Severity, v.Description)
		}
	}
	if focus != "" {
		fmt.Fprintf(&b, "\nPrioritize the %s reviewer's concerns where findings conflict.\n", focus)
	}
	return b.String()
}

func validatePrompt(a artifact.Artifact) string {
	return "Validate this story:\n\n" + renderArtifact(a)
}

func splitPrompt(original artifact.Artifact, violations []debate.Violation) string {
	var b strings.Builder
	b.WriteString("Split this story:\n\n")
	b.WriteString(renderArtifact(original))
	if len(violations) > 0 {
		b.WriteString("\nFindings that motivated the split:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", v.Category, v.Severity, v.Description)
		}
	}
	return b.String()
}
