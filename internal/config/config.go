package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lpernett/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration values.
type Config struct {
	Port    string        `yaml:"port"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Media   MediaConfig   `yaml:"media"`
	AI      AIConfig      `yaml:"ai"`
	Policy  PolicyConfig  `yaml:"policy"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects the session store. Postgres wins over Redis; with
// neither set sessions live in memory.
type StorageConfig struct {
	DatabaseURL   string        `yaml:"database_url"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	PublicURL      string `yaml:"public_url"`
	KeyPrefix      string `yaml:"key_prefix"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	// Static keys; empty means the SDK's default credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// AIConfig holds provider credentials and model names.
type AIConfig struct {
	// Provider selects the chat backend for preference extraction:
	// "gemini", "openai" or "" for keyword extraction only.
	Provider string `yaml:"provider"`

	GeminiAPIKey       string `yaml:"gemini_api_key"`
	OpenAIAPIKey       string `yaml:"openai_api_key"`
	ProjectID          string `yaml:"project_id"`
	Location           string `yaml:"location"`
	ServiceAccount     string `yaml:"service_account"`
	ServiceAccountJSON string `yaml:"service_account_json"`

	// ImageBackend is "gemini" (default) or "imagen".
	ImageBackend    string `yaml:"image_backend"`
	VisionModel     string `yaml:"vision_model"`
	ImageModel      string `yaml:"image_model"`
	ImagenModel     string `yaml:"imagen_model"`
	ValidationModel string `yaml:"validation_model"`
	ChatModel       string `yaml:"chat_model"`
	// ExtractionModel overrides ChatModel for preference extraction calls.
	ExtractionModel string `yaml:"extraction_model"`
}

// PolicyConfig carries the conversation and generation tunables.
type PolicyConfig struct {
	ReadinessTurnThreshold int           `yaml:"readiness_turn_threshold"`
	MaxQuestionTurns       int           `yaml:"max_question_turns"`
	MaxRetries             int           `yaml:"max_retries"`
	ValidationAttempts     int           `yaml:"validation_attempts"`
	ValidationThreshold    float64       `yaml:"validation_threshold"`
	AttemptTimeout         time.Duration `yaml:"attempt_timeout"`
	ValidationTimeout      time.Duration `yaml:"validation_timeout"`
	AnalysisTimeout        time.Duration `yaml:"analysis_timeout"`
	AnalysisCacheTTL       time.Duration `yaml:"analysis_cache_ttl"`
	DefaultConceptCount    int           `yaml:"default_concept_count"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port: "8080",
		Log:  LogConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{
			SessionTTL: 24 * time.Hour,
		},
		AI: AIConfig{
			Location:     "us-central1",
			ImageBackend: "gemini",
			ImagenModel:  "imagen-3.0-capability-001",
		},
		Policy: PolicyConfig{
			ReadinessTurnThreshold: 2,
			MaxQuestionTurns:       5,
			MaxRetries:             1,
			ValidationAttempts:     2,
			ValidationThreshold:    0.85,
			AttemptTimeout:         90 * time.Second,
			ValidationTimeout:      45 * time.Second,
			AnalysisTimeout:        45 * time.Second,
			AnalysisCacheTTL:       30 * time.Minute,
			DefaultConceptCount:    4,
		},
	}
}

// Load reads .env (if present), then the optional config file at path, then
// environment overrides. The file may be YAML or JSON; a missing file is not
// an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			// YAML is a superset of JSON, so one decoder serves both.
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() (Config, error) {
	return Load("")
}

func applyEnv(cfg *Config) {
	cfg.Port = getenv("APP_PORT", cfg.Port)
	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)

	cfg.Storage.DatabaseURL = getenv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.RedisAddr = getenv("REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.RedisPassword = getenv("REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = getenvInt("REDIS_DB", cfg.Storage.RedisDB)
	cfg.Storage.SessionTTL = getenvDuration("SESSION_TTL", cfg.Storage.SessionTTL)

	cfg.Media.Bucket = getenv("S3_BUCKET", cfg.Media.Bucket)
	cfg.Media.Region = getenv("S3_REGION", cfg.Media.Region)
	cfg.Media.Endpoint = getenv("S3_ENDPOINT", cfg.Media.Endpoint)
	cfg.Media.PublicURL = getenv("S3_PUBLIC_URL", cfg.Media.PublicURL)
	cfg.Media.KeyPrefix = strings.Trim(getenv("S3_KEY_PREFIX", cfg.Media.KeyPrefix), "/")
	cfg.Media.ForcePathStyle = getenvBool("S3_FORCE_PATH_STYLE", cfg.Media.ForcePathStyle)
	cfg.Media.AccessKeyID = getenv("S3_ACCESS_KEY_ID", cfg.Media.AccessKeyID)
	cfg.Media.SecretAccessKey = getenv("S3_SECRET_ACCESS_KEY", cfg.Media.SecretAccessKey)

	cfg.AI.Provider = strings.ToLower(getenv("AI_PROVIDER", cfg.AI.Provider))
	cfg.AI.GeminiAPIKey = getenv("GEMINI_API_KEY", cfg.AI.GeminiAPIKey)
	cfg.AI.OpenAIAPIKey = getenv("OPENAI_API_KEY", cfg.AI.OpenAIAPIKey)
	cfg.AI.ProjectID = getenv("GOOGLE_CLOUD_PROJECT", cfg.AI.ProjectID)
	cfg.AI.Location = getenv("GOOGLE_CLOUD_LOCATION", cfg.AI.Location)
	cfg.AI.ServiceAccount = getenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.AI.ServiceAccount)
	cfg.AI.ServiceAccountJSON = getenv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.AI.ServiceAccountJSON)
	cfg.AI.ImageBackend = strings.ToLower(getenv("IMAGE_BACKEND", cfg.AI.ImageBackend))
	cfg.AI.VisionModel = getenv("VISION_MODEL", cfg.AI.VisionModel)
	cfg.AI.ImageModel = getenv("IMAGE_MODEL", cfg.AI.ImageModel)
	cfg.AI.ImagenModel = getenv("IMAGEN_MODEL", cfg.AI.ImagenModel)
	cfg.AI.ValidationModel = getenv("VALIDATION_MODEL", cfg.AI.ValidationModel)
	cfg.AI.ChatModel = getenv("CHAT_MODEL", cfg.AI.ChatModel)
	cfg.AI.ExtractionModel = getenv("EXTRACTION_MODEL", cfg.AI.ExtractionModel)

	p := &cfg.Policy
	p.ReadinessTurnThreshold = getenvInt("READINESS_TURN_THRESHOLD", p.ReadinessTurnThreshold)
	p.MaxQuestionTurns = getenvInt("MAX_QUESTION_TURNS", p.MaxQuestionTurns)
	p.MaxRetries = getenvInt("GENERATION_MAX_RETRIES", p.MaxRetries)
	p.ValidationAttempts = getenvInt("VALIDATION_ATTEMPTS", p.ValidationAttempts)
	p.ValidationThreshold = getenvFloat("VALIDATION_THRESHOLD", p.ValidationThreshold)
	p.AttemptTimeout = getenvDuration("GENERATION_ATTEMPT_TIMEOUT", p.AttemptTimeout)
	p.ValidationTimeout = getenvDuration("VALIDATION_TIMEOUT", p.ValidationTimeout)
	p.AnalysisTimeout = getenvDuration("ANALYSIS_TIMEOUT", p.AnalysisTimeout)
	p.AnalysisCacheTTL = getenvDuration("ANALYSIS_CACHE_TTL", p.AnalysisCacheTTL)
	p.DefaultConceptCount = getenvInt("DEFAULT_CONCEPT_COUNT", p.DefaultConceptCount)
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("config: port cannot be empty")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	switch c.AI.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown ai.provider %q", c.AI.Provider)
	}
	switch c.AI.ImageBackend {
	case "gemini", "imagen":
	default:
		return fmt.Errorf("config: unknown ai.image_backend %q", c.AI.ImageBackend)
	}

	p := c.Policy
	if p.ReadinessTurnThreshold < 1 || p.MaxQuestionTurns < 1 {
		return fmt.Errorf("config: turn thresholds must be positive")
	}
	if p.MaxRetries < 0 || p.ValidationAttempts < 0 {
		return fmt.Errorf("config: retry budgets cannot be negative")
	}
	if p.ValidationThreshold <= 0 || p.ValidationThreshold > 1 {
		return fmt.Errorf("config: validation_threshold must be in (0, 1]")
	}
	if p.DefaultConceptCount < 1 || p.DefaultConceptCount > 4 {
		return fmt.Errorf("config: default_concept_count must be between 1 and 4")
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}
