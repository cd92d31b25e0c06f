package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Policy, cfg.Policy)
	assert.Equal(t, 2, cfg.Policy.ReadinessTurnThreshold)
	assert.Equal(t, 1, cfg.Policy.MaxRetries)
	assert.Equal(t, 0.85, cfg.Policy.ValidationThreshold)
	assert.Equal(t, 90*time.Second, cfg.Policy.AttemptTimeout)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
port: "9000"
log:
  format: console
storage:
  redis_addr: localhost:6379
  session_ttl: 2h
ai:
  provider: gemini
  vision_model: gemini-2.5-pro
policy:
  max_retries: 2
  validation_threshold: 0.9
  attempt_timeout: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2*time.Hour, cfg.Storage.SessionTTL)
	assert.Equal(t, "gemini-2.5-pro", cfg.AI.VisionModel)
	assert.Equal(t, 2, cfg.Policy.MaxRetries)
	assert.Equal(t, 0.9, cfg.Policy.ValidationThreshold)
	assert.Equal(t, 30*time.Second, cfg.Policy.AttemptTimeout)
	assert.Equal(t, 5, cfg.Policy.MaxQuestionTurns)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"port": "7000", "media": {"bucket": "renders", "region": "eu-west-1"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "renders", cfg.Media.Bucket)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "port: \"9000\"\n")
	t.Setenv("APP_PORT", "9100")
	t.Setenv("S3_KEY_PREFIX", "/concepts/")
	t.Setenv("S3_FORCE_PATH_STYLE", "true")
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("VALIDATION_THRESHOLD", "0.7")
	t.Setenv("GENERATION_ATTEMPT_TIMEOUT", "1m")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("EXTRACTION_MODEL", "gpt-4.1-mini")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "concepts", cfg.Media.KeyPrefix)
	assert.True(t, cfg.Media.ForcePathStyle)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 0.7, cfg.Policy.ValidationThreshold)
	assert.Equal(t, time.Minute, cfg.Policy.AttemptTimeout)
	assert.Equal(t, 0, cfg.Storage.RedisDB)
	assert.Equal(t, "gpt-4.1-mini", cfg.AI.ExtractionModel)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty port":       func(c *Config) { c.Port = " " },
		"bad log format":   func(c *Config) { c.Log.Format = "xml" },
		"bad provider":     func(c *Config) { c.AI.Provider = "bard" },
		"bad backend":      func(c *Config) { c.AI.ImageBackend = "dalle" },
		"zero threshold":   func(c *Config) { c.Policy.ValidationThreshold = 0 },
		"negative retries": func(c *Config) { c.Policy.MaxRetries = -1 },
		"too many":         func(c *Config) { c.Policy.DefaultConceptCount = 5 },
		"zero turns":       func(c *Config) { c.Policy.MaxQuestionTurns = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "policy: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}
