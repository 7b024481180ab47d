package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("GENERATOR_URL", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("VISUAL_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:5001", cfg.GeneratorURL)
	assert.Zero(t, cfg.RequestTimeout, "no timeout unless configured")
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "mock", cfg.LLMProvider)
	assert.Equal(t, "https://storage.googleapis.com/scenescript-visuals", cfg.VisualBaseURL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("GENERATOR_URL", "http://gen.internal:7000/")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_MODEL", "llama3.3")
	t.Setenv("VISUAL_BASE_URL", "http://minio:9000/visuals/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://gen.internal:7000", cfg.GeneratorURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "llama3.3", cfg.LLMConfig["default_model"])
	assert.Equal(t, "http://localhost:11434", cfg.LLMConfig["host"])
	assert.Equal(t, "http://minio:9000/visuals", cfg.VisualBaseURL)
}

func TestLoadYAMLFileBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"7070\"\ngenerator_url: http://yaml-host:5001\nsession_ttl: 10m\nllm_config:\n  default_model: mistral\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")
	t.Setenv("GENERATOR_URL", "http://env-host:5001")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("OLLAMA_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "http://env-host:5001", cfg.GeneratorURL)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "mistral", cfg.LLMConfig["default_model"])
	assert.Equal(t, "http://localhost:11434", cfg.LLMConfig["host"])
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("SESSION_TTL", "0s")
	_, err = Load()
	assert.Error(t, err)
}

func TestGetCurrentConfigReturnsCopy(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "8181")

	_, err := InitConfig()
	require.NoError(t, err)

	first := GetCurrentConfig()
	first.Port = "1"
	first.LLMConfig["host"] = "mutated"

	second := GetCurrentConfig()
	assert.Equal(t, "8181", second.Port)
	assert.NotEqual(t, "mutated", second.LLMConfig["host"])
}
