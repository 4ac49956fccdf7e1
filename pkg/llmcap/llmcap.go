// Package llmcap implements the debate capability contracts on top of an
// llm.Client: prompts in, structured JSON out. Structurally invalid model
// output surfaces as an error for the capability layer to classify, never a
// panic.
package llmcap

import (
	"context"
	"fmt"

	"refinery/pkg/artifact"
	"refinery/pkg/debate"
	"refinery/pkg/llm"
	"refinery/pkg/llm/anthropic"
	"refinery/pkg/llm/google"
	"refinery/pkg/llm/ollama"
	"refinery/pkg/llm/openai"
	"refinery/pkg/logx"
)

// Provider names an LLM backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderGoogle    Provider = "google"
)

// NewLLMClient constructs the provider client for the given backend. The
// host is only used by Ollama; the API key is unused there.
func NewLLMClient(provider Provider, apiKey, host, model string) (llm.Client, error) {
	switch provider {
	case ProviderAnthropic:
		return anthropic.NewClient(apiKey, model), nil
	case ProviderOpenAI:
		return openai.NewClient(apiKey, model), nil
	case ProviderOllama:
		return ollama.NewClient(host, model), nil
	case ProviderGoogle:
		return google.NewClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// evidenceTokenBudget caps how much retrieved evidence one prompt carries.
const evidenceTokenBudget = 2000

// Capabilities implements every LLM-backed capability over one client.
// It is stateless between calls and safe for concurrent sessions.
type Capabilities struct {
	client  llm.Client
	counter *llm.TokenCounter
	logger  *logx.Logger
}

// New builds the capability implementations. The token counter is optional;
// without it, evidence is trimmed by a character estimate.
func New(client llm.Client, logger *logx.Logger) *Capabilities {
	if logger == nil {
		logger = logx.NewLogger("llmcap")
	}
	counter, err := llm.NewTokenCounter(client.GetModelName())
	if err != nil {
		logger.Warn("token counter unavailable, using estimates: %v", err)
		counter = nil
	}
	client = llm.Chain(client, llm.LoggingMiddleware(logger))
	return &Capabilities{client: client, counter: counter, logger: logger}
}

func (c *Capabilities) complete(ctx context.Context, temperature float32, system, user string) (string, error) {
	req := llm.NewRequest([]llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(user),
	})
	req.Temperature = temperature

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Capabilities) evidenceBlock(evidence []artifact.EvidenceItem) string {
	block := artifact.JoinEvidence(evidence)
	if block == "" {
		return ""
	}
	return c.counter.TrimToBudget(block, evidenceTokenBudget)
}

// Draft implements capability.Drafter.
func (c *Capabilities) Draft(ctx context.Context, a artifact.Artifact, evidence []artifact.EvidenceItem, feedbackSummary string) (artifact.Artifact, error) {
	user := draftPrompt(a, c.evidenceBlock(evidence), feedbackSummary)
	content, err := c.complete(ctx, llm.TemperatureDraft, draftSystemPrompt, user)
	if err != nil {
		return artifact.Artifact{}, err
	}
	drafted, err := parseArtifact(content)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("draft response: %w", err)
	}
	return a.ApplyRevision(drafted), nil
}

// Critique implements capability.Critic.
func (c *Capabilities) Critique(ctx context.Context, role debate.Role, a artifact.Artifact) (debate.Critique, error) {
	content, err := c.complete(ctx, llm.TemperatureReview, critiqueSystemPrompt(role), critiquePrompt(a))
	if err != nil {
		return debate.Critique{}, err
	}
	critique, err := parseCritique(content)
	if err != nil {
		return debate.Critique{}, fmt.Errorf("%s critique response: %w", role, err)
	}
	critique.Role = role
	return critique, nil
}

// Synthesize implements capability.Synthesizer.
func (c *Capabilities) Synthesize(ctx context.Context, a artifact.Artifact, critiques []debate.Critique, focus debate.Role) (artifact.Artifact, error) {
	content, err := c.complete(ctx, llm.TemperatureDraft, synthesizeSystemPrompt, synthesizePrompt(a, critiques, focus))
	if err != nil {
		return artifact.Artifact{}, err
	}
	rev, err := parseArtifact(content)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("synthesis response: %w", err)
	}
	return a.ApplyRevision(rev), nil
}

// Validate implements capability.Validator.
func (c *Capabilities) Validate(ctx context.Context, a artifact.Artifact) (debate.Validation, error) {
	content, err := c.complete(ctx, llm.TemperatureReview, validateSystemPrompt, validatePrompt(a))
	if err != nil {
		return debate.Validation{}, err
	}
	v, err := parseValidation(content)
	if err != nil {
		return debate.Validation{}, fmt.Errorf("validation response: %w", err)
	}
	return v, nil
}

// ProposeSplit implements capability.Splitter.
func (c *Capabilities) ProposeSplit(ctx context.Context, original artifact.Artifact, violations []debate.Violation) ([]artifact.Artifact, error) {
	content, err := c.complete(ctx, llm.TemperatureDraft, splitSystemPrompt, splitPrompt(original, violations))
	if err != nil {
		return nil, err
	}
	parts, err := parseSplit(content)
	if err != nil {
		return nil, fmt.Errorf("split response: %w", err)
	}
	return parts, nil
}
