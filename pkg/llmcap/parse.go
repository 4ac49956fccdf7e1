package llmcap

import (
	"encoding/json"
	"fmt"
	"strings"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
)

// extractJSON pulls the outermost JSON object out of a model response.
// Models wrap JSON in markdown fences or prose often enough that strict
// unmarshalling of the raw content fails on otherwise valid answers.
func extractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

type artifactPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Acceptance  []string `json:"acceptance"`
	DependsOn   []string `json:"depends_on"`
}

func (p artifactPayload) revision() artifact.Revision {
	return artifact.Revision{
		Title:       p.Title,
		Description: p.Description,
		Acceptance:  p.Acceptance,
		DependsOn:   p.DependsOn,
	}
}

func parseArtifact(content string) (artifact.Revision, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return artifact.Revision{}, err
	}
	var p artifactPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return artifact.Revision{}, fmt.Errorf("decode artifact: %w", err)
	}
	if p.Title == "" && p.Description == "" {
		return artifact.Revision{}, fmt.Errorf("artifact payload has no title or description")
	}
	return p.revision(), nil
}

func parseCritique(content string) (debate.Critique, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return debate.Critique{}, err
	}
	var c debate.Critique
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return debate.Critique{}, fmt.Errorf("decode critique: %w", err)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return debate.Critique{}, fmt.Errorf("critique confidence %.3f out of range", c.Confidence)
	}
	return c, nil
}

func parseValidation(content string) (debate.Validation, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return debate.Validation{}, err
	}
	var v debate.Validation
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return debate.Validation{}, fmt.Errorf("decode validation: %w", err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return debate.Validation{}, fmt.Errorf("validation confidence %.3f out of range", v.Confidence)
	}
	return v, nil
}

type splitPayload struct {
	Artifacts []artifactPayload `json:"artifacts"`
}

func parseSplit(content string) ([]artifact.Artifact, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}
	var p splitPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode split: %w", err)
	}
	out := make([]artifact.Artifact, 0, len(p.Artifacts))
	for _, ap := range p.Artifacts {
		out = append(out, artifact.Artifact{
			Title:       ap.Title,
			Description: ap.Description,
			Acceptance:  ap.Acceptance,
			DependsOn:   ap.DependsOn,
		})
	}
	return out, nil
}
