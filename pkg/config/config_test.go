package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/pkg/debate"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refinery.json")
	content := `{
		"debate": {
			"iteration_ceiling": 3,
			"confidence_threshold": 0.9,
			"stagnation_window": 2,
			"trend_epsilon": 0.05,
			"per_call_timeout_secs": 60,
			"disagreement_priority": ["feasibility", "quality"]
		},
		"llm": {"provider": "ollama", "model": "llama3.2", "ollama_host": "http://localhost:11434"},
		"storage": {"db_path": "sessions.db"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Debate.IterationCeiling)
	assert.Equal(t, 0.9, cfg.Debate.ConfidenceThreshold)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, []debate.Role{debate.RoleFeasibility, debate.RoleQuality}, cfg.Priority())
	assert.Equal(t, "sessions.db", cfg.Storage.DBPath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv(envProvider, "openai")
	t.Setenv(envModel, "gpt-5")
	t.Setenv(envCeiling, "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-5", cfg.LLM.Model)
	assert.Equal(t, 7, cfg.Debate.IterationCeiling)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ceiling", func(c *Config) { c.Debate.IterationCeiling = 0 }},
		{"threshold above one", func(c *Config) { c.Debate.ConfidenceThreshold = 1.5 }},
		{"negative epsilon", func(c *Config) { c.Debate.TrendEpsilon = -0.1 }},
		{"zero timeout", func(c *Config) { c.Debate.PerCallTimeoutSecs = 0 }},
		{"unknown role", func(c *Config) { c.Debate.DisagreementPriority = []string{"speed"} }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "hal9000" }},
		{"ollama without host", func(c *Config) { c.LLM.Provider = "ollama"; c.LLM.OllamaHost = "" }},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestSecretsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant-test",
		"OPENAI_API_KEY":    "sk-test",
	}

	require.NoError(t, EncryptSecretsFile(dir, "correct horse", secrets))
	assert.True(t, SecretsFileExists(dir))

	got, err := DecryptSecretsFile(dir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, secrets, got)
}

func TestSecretsWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "right", map[string]string{"K": "v"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	assert.Error(t, err)
}

func TestSecretsFilePermissions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "pw", map[string]string{"K": "v"}))

	info, err := os.Stat(filepath.Join(dir, secretsDirName, secretsFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGetSecretPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })

	t.Setenv("REFINERY_TEST_SECRET", "from-env")
	v, err := GetSecret("REFINERY_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	SetDecryptedSecrets(map[string]string{"REFINERY_TEST_SECRET": "from-file"})
	v, err = GetSecret("REFINERY_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v, "the decrypted file wins over the environment")

	_, err = GetSecret("REFINERY_ABSENT_SECRET")
	assert.Error(t, err)
}
