package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Environment variable overrides. Each takes precedence over the file.
const (
	envProvider   = "REFINERY_LLM_PROVIDER"
	envModel      = "REFINERY_LLM_MODEL"
	envOllamaHost = "REFINERY_OLLAMA_HOST"
	envDBPath     = "REFINERY_DB_PATH"
	envCeiling    = "REFINERY_ITERATION_CEILING"
	envThreshold  = "REFINERY_CONFIDENCE_THRESHOLD"
)

// Load reads configuration from the given JSON file, fills gaps with
// defaults, applies environment overrides, and validates the result.
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envProvider); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv(envModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(envOllamaHost); v != "" {
		cfg.LLM.OllamaHost = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv(envCeiling); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Debate.IterationCeiling = n
		}
	}
	if v := os.Getenv(envThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Debate.ConfidenceThreshold = f
		}
	}
}
