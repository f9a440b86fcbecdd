package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "check", cfg.Mode)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 10, cfg.Politeness.MaxDomainRequestsPerRun)
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "")
	t.Setenv("PIPELINE_MODE", "")
	t.Setenv("PIPELINE_DRY_RUN", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "pipeline.yaml")

	cfg := DefaultConfig()
	cfg.Mode = "full"
	cfg.Politeness.MaxSourcesPerRun = 5

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "full", loaded.Mode)
	assert.Equal(t, 5, loaded.Politeness.MaxSourcesPerRun)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("PIPELINE_MODE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Mode, cfg.Mode)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PIPELINE_MODE", "acquire")
	t.Setenv("GENAI_API_KEY", "env-genai-key")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "acquire", cfg.Mode)
	assert.Equal(t, "env-genai-key", cfg.Extraction.APIKey)
	assert.Equal(t, "genai", cfg.Extraction.Provider)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Mode = "bogus"
	assert.Error(t, cfg.Validate())

	cfg.Mode = "full"
	cfg.Extraction.Provider = "openai"
	assert.Error(t, cfg.Validate())
}
