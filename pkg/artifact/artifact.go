// Package artifact defines the work item under refinement and its revision
// operations. Artifacts are value types: nothing in this package or its
// consumers mutates an Artifact in place — every change goes through
// ApplyRevision, which returns a fresh value.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Artifact is the structured work item a debate session refines, e.g. a user story.
type Artifact struct {
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description" yaml:"description"`
	Acceptance  []string          `json:"acceptance" yaml:"acceptance"`
	DependsOn   []string          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Revision describes a replacement proposed by a capability. Empty fields
// mean "keep the current value"; a non-nil empty slice clears the list.
type Revision struct {
	Title       string
	Description string
	Acceptance  []string
	DependsOn   []string
	Metadata    map[string]string
}

// Clone returns a deep copy. Slices and the metadata map are copied so the
// result shares no storage with the receiver.
func (a Artifact) Clone() Artifact {
	out := Artifact{
		Title:       a.Title,
		Description: a.Description,
	}
	if a.Acceptance != nil {
		out.Acceptance = append([]string{}, a.Acceptance...)
	}
	if a.DependsOn != nil {
		out.DependsOn = append([]string{}, a.DependsOn...)
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ApplyRevision produces a new Artifact with the revision folded in.
// The receiver is never modified.
func (a Artifact) ApplyRevision(rev Revision) Artifact {
	out := a.Clone()
	if rev.Title != "" {
		out.Title = rev.Title
	}
	if rev.Description != "" {
		out.Description = rev.Description
	}
	if rev.Acceptance != nil {
		out.Acceptance = append([]string{}, rev.Acceptance...)
	}
	if rev.DependsOn != nil {
		out.DependsOn = append([]string{}, rev.DependsOn...)
	}
	if rev.Metadata != nil {
		if out.Metadata == nil {
			out.Metadata = make(map[string]string, len(rev.Metadata))
		}
		for k, v := range rev.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Fingerprint returns a stable content hash. Metadata keys are sorted so the
// fingerprint is independent of map iteration order.
func (a Artifact) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(a.Title))
	h.Write([]byte{0})
	h.Write([]byte(a.Description))
	h.Write([]byte{0})
	for _, s := range a.Acceptance {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	for _, d := range a.DependsOn {
		h.Write([]byte(d))
		h.Write([]byte{0})
	}
	keys := make([]string, 0, len(a.Metadata))
	for k := range a.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(a.Metadata[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsEmpty reports whether the artifact carries no content at all.
func (a Artifact) IsEmpty() bool {
	return a.Title == "" && a.Description == "" && len(a.Acceptance) == 0
}

// Summary returns a one-line description suitable for log output.
func (a Artifact) Summary() string {
	title := a.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("%s (%d acceptance, %d deps)", title, len(a.Acceptance), len(a.DependsOn))
}

// ToJSON renders the artifact for persistence.
func (a Artifact) ToJSON() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact: %w", err)
	}
	return string(data), nil
}

// FromJSON parses an artifact from its persisted JSON form.
func FromJSON(data string) (Artifact, error) {
	var a Artifact
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return Artifact{}, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	return a, nil
}

// LoadFile reads an artifact from a YAML file.
func LoadFile(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read artifact file %s: %w", path, err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("failed to parse artifact file %s: %w", path, err)
	}
	if a.IsEmpty() {
		return Artifact{}, fmt.Errorf("artifact file %s contains no content", path)
	}
	return a, nil
}

// EvidenceItem is one piece of supporting context attached at ingress.
type EvidenceItem struct {
	Source  string  `json:"source" yaml:"source"`
	Content string  `json:"content" yaml:"content"`
	Score   float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// JoinEvidence renders evidence items into a single prompt block.
func JoinEvidence(items []EvidenceItem) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("[%s] %s", item.Source, item.Content))
	}
	return strings.Join(parts, "\n\n")
}
