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
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-2024-08-06", cfg.Model)
	assert.Equal(t, 0.0, cfg.Temperature)
	assert.Equal(t, int64(256), cfg.MaxTokens)
	assert.Equal(t, "auto", cfg.ImageDetail)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 512, cfg.ImageMaxSide)
	assert.Equal(t, "sk-test", cfg.APIKey())
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("PROVIDER", ProviderOpenRouter)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	_, err = Load()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		return Config{
			Provider:     ProviderOpenAI,
			OpenAIAPIKey: "sk-test",
			Model:        "gpt-4o",
			MaxTokens:    256,
			ImageDetail:  "low",
			Concurrency:  4,
			ImageMaxSide: 512,
			ImageQuality: 88,
			PollInterval: time.Second,
		}
	}

	ok := base()
	require.NoError(t, ok.Validate())

	for name, mutate := range map[string]func(*Config){
		"detail":      func(c *Config) { c.ImageDetail = "ultra" },
		"provider":    func(c *Config) { c.Provider = "azure" },
		"temperature": func(c *Config) { c.Temperature = 3 },
		"tokens":      func(c *Config) { c.MaxTokens = 0 },
		"concurrency": func(c *Config) { c.Concurrency = 0 },
		"quality":     func(c *Config) { c.ImageQuality = 101 },
		"poll":        func(c *Config) { c.PollInterval = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GARMENT_TEST_VALUE=from-file\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("GARMENT_TEST_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("GARMENT_TEST_VALUE"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
