// Package config loads refinement engine configuration from a JSON file
// with environment-variable fallbacks, and manages encrypted secrets.
package config

import (
	"fmt"
	"time"

	"refinery/pkg/debate"
)

// Config is the full runtime configuration for the engine and its
// capability providers.
type Config struct {
	Debate  DebateConfig  `json:"debate"`
	LLM     LLMConfig     `json:"llm"`
	Storage StorageConfig `json:"storage"`
}

// DebateConfig tunes the session loop and its safety guards.
type DebateConfig struct {
	IterationCeiling     int      `json:"iteration_ceiling"`
	ConfidenceThreshold  float64  `json:"confidence_threshold"`
	StagnationWindow     int      `json:"stagnation_window"`
	TrendEpsilon         float64  `json:"trend_epsilon"`
	PerCallTimeoutSecs   int      `json:"per_call_timeout_secs"`
	DisagreementPriority []string `json:"disagreement_priority"`
}

// LLMConfig selects the provider backing the capability set.
type LLMConfig struct {
	Provider   string `json:"provider"` // anthropic, openai, ollama, google
	Model      string `json:"model"`
	OllamaHost string `json:"ollama_host"`
}

// StorageConfig locates the session database.
type StorageConfig struct {
	DBPath string `json:"db_path"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Debate: DebateConfig{
			IterationCeiling:     5,
			ConfidenceThreshold:  0.8,
			StagnationWindow:     2,
			TrendEpsilon:         0.02,
			PerCallTimeoutSecs:   120,
			DisagreementPriority: []string{string(debate.RoleQuality), string(debate.RoleFeasibility)},
		},
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-20250514",
		},
		Storage: StorageConfig{
			DBPath: "refinery.db",
		},
	}
}

// PerCallTimeout returns the per-capability timeout as a duration.
func (c *Config) PerCallTimeout() time.Duration {
	return time.Duration(c.Debate.PerCallTimeoutSecs) * time.Second
}

// Priority converts the configured disagreement priority into roles.
func (c *Config) Priority() []debate.Role {
	out := make([]debate.Role, 0, len(c.Debate.DisagreementPriority))
	for _, s := range c.Debate.DisagreementPriority {
		out = append(out, debate.Role(s))
	}
	return out
}

// Validate checks ranges and rejects unknown providers and roles.
func (c *Config) Validate() error {
	d := &c.Debate
	if d.IterationCeiling < 1 {
		return fmt.Errorf("iteration_ceiling must be >= 1, got %d", d.IterationCeiling)
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %.3f", d.ConfidenceThreshold)
	}
	if d.StagnationWindow < 1 {
		return fmt.Errorf("stagnation_window must be >= 1, got %d", d.StagnationWindow)
	}
	if d.TrendEpsilon < 0 {
		return fmt.Errorf("trend_epsilon must be >= 0, got %.4f", d.TrendEpsilon)
	}
	if d.PerCallTimeoutSecs < 1 {
		return fmt.Errorf("per_call_timeout_secs must be >= 1, got %d", d.PerCallTimeoutSecs)
	}
	for _, s := range d.DisagreementPriority {
		switch debate.Role(s) {
		case debate.RoleQuality, debate.RoleFeasibility:
		default:
			return fmt.Errorf("unknown role %q in disagreement_priority", s)
		}
	}

	switch c.LLM.Provider {
	case "anthropic", "openai", "ollama", "google", "mock":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "ollama" && c.LLM.OllamaHost == "" {
		return fmt.Errorf("ollama provider requires ollama_host")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	return nil
}
