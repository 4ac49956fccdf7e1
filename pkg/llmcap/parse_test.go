package llmcap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/pkg/debate"
)

func TestParseArtifact(t *testing.T) {
	content := `{"title": "Checkout flow", "description": "pay for cart", "acceptance": ["payment captured"], "depends_on": ["cart-service"]}`

	rev, err := parseArtifact(content)
	require.NoError(t, err)
	assert.Equal(t, "Checkout flow", rev.Title)
	assert.Equal(t, []string{"payment captured"}, rev.Acceptance)
	assert.Equal(t, []string{"cart-service"}, rev.DependsOn)
}

func TestParseArtifactStripsMarkdownFence(t *testing.T) {
	content := "Here is the revised story:\n```json\n{\"title\": \"Checkout flow\", \"description\": \"pay\"}\n```\nLet me know if you need changes."

	rev, err := parseArtifact(content)
	require.NoError(t, err)
	assert.Equal(t, "Checkout flow", rev.Title)
}

func TestParseArtifactSurroundingProse(t *testing.T) {
	content := `Sure. {"title": "T", "description": "D"} Hope that helps!`
	rev, err := parseArtifact(content)
	require.NoError(t, err)
	assert.Equal(t, "T", rev.Title)
	assert.Equal(t, "D", rev.Description)
}

func TestParseArtifactRejectsGarbage(t *testing.T) {
	for _, content := range []string{"", "no json here", `{"acceptance": []}`} {
		_, err := parseArtifact(content)
		assert.Error(t, err, "content %q", content)
	}
}

func TestParseCritique(t *testing.T) {
	content := `{
		"violations": [{"category": "ambiguity", "severity": "high", "description": "vague", "blocking": true}],
		"confidence": 0.4,
		"blocking": true,
		"summary": "needs sharper acceptance criteria"
	}`

	c, err := parseCritique(content)
	require.NoError(t, err)
	assert.True(t, c.HasBlocking())
	assert.Equal(t, 0.4, c.Confidence)
	require.Len(t, c.Violations, 1)
	assert.Equal(t, debate.SeverityHigh, c.Violations[0].Severity)
}

func TestParseCritiqueRejectsConfidenceOutOfRange(t *testing.T) {
	_, err := parseCritique(`{"confidence": 1.2}`)
	assert.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	content := `{"confidence": 0.85, "violations": [], "gaps": ["no error path"]}`

	v, err := parseValidation(content)
	require.NoError(t, err)
	assert.Equal(t, 0.85, v.Confidence)
	assert.Empty(t, v.Violations)
	assert.Equal(t, []string{"no error path"}, v.Gaps)
}

func TestParseSplit(t *testing.T) {
	content := `{"artifacts": [
		{"title": "Pay by card", "description": "card path"},
		{"title": "Pay by wallet", "description": "wallet path", "depends_on": ["Pay by card"]}
	]}`

	parts, err := parseSplit(content)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "Pay by card", parts[0].Title)
	assert.Equal(t, []string{"Pay by card"}, parts[1].DependsOn)
}

func TestPromptsCarryContext(t *testing.T) {
	a := testStory()

	user := draftPrompt(a, "- wiki: carts hold 50 items", "[quality] tighten criteria")
	assert.Contains(t, user, a.Title)
	assert.Contains(t, user, "carts hold 50 items")
	assert.Contains(t, user, "tighten criteria")

	crit := critiquePrompt(a)
	assert.Contains(t, crit, a.Description)

	synth := synthesizePrompt(a, []debate.Critique{
		{Role: debate.RoleQuality, Violations: []debate.Violation{{Category: "ambiguity", Severity: debate.SeverityHigh, Description: "vague verbs"}}},
	}, debate.RoleQuality)
	assert.Contains(t, synth, "vague verbs")
	assert.Contains(t, synth, string(debate.RoleQuality))

	split := splitPrompt(a, []debate.Violation{{Category: debate.CategoryTooLarge, Severity: debate.SeverityHigh, Description: "too much scope"}})
	assert.Contains(t, split, "too much scope")
}

func TestCritiqueSystemPromptDiffersByRole(t *testing.T) {
	q := critiqueSystemPrompt(debate.RoleQuality)
	f := critiqueSystemPrompt(debate.RoleFeasibility)
	assert.NotEqual(t, q, f)
	assert.Contains(t, q, "testability")
	assert.Contains(t, f, "feasibility")
}
