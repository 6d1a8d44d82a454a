package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

var ErrMissingAPIKey = errors.New("missing API key")

type Config struct {
	Provider         string `env:"PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	BaseURL          string `env:"OPENAI_BASE_URL"`

	Model       string        `env:"OPENAI_VISION_MODEL" envDefault:"gpt-4o-2024-08-06"`
	Temperature float64       `env:"OPENAI_TEMPERATURE" envDefault:"0"`
	MaxTokens   int64         `env:"OPENAI_MAX_TOKENS" envDefault:"256"`
	ImageDetail string        `env:"OPENAI_IMAGE_DETAIL" envDefault:"auto"`
	MaxRetries  int           `env:"OPENAI_MAX_RETRIES" envDefault:"2"`
	Timeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	Concurrency  int           `env:"CLASSIFY_CONCURRENCY" envDefault:"8"`
	ImageMaxSide int           `env:"IMAGE_MAX_SIDE" envDefault:"512"`
	ImageQuality int           `env:"IMAGE_QUALITY" envDefault:"88"`
	PollInterval time.Duration `env:"BATCH_POLL_INTERVAL" envDefault:"30s"`
	WorkDir      string        `env:"WORK_DIR" envDefault:"."`

	MetricsFile string `env:"METRICS_FILE"`
	LogFile     string `env:"LOG_FILE"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

// LoadEnvFile loads variables from a .env file. An empty path falls back to
// ./.env when present.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading, continuing with environment variables")
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APIKey returns the credential for the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderOpenRouter {
		return c.OpenRouterAPIKey
	}
	return c.OpenAIAPIKey
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY must be set", ErrMissingAPIKey)
		}
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("%w: OPENROUTER_API_KEY must be set", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("invalid PROVIDER %q: must be %q or %q", c.Provider, ProviderOpenAI, ProviderOpenRouter)
	}

	switch c.ImageDetail {
	case "low", "auto", "high":
	default:
		return fmt.Errorf("invalid OPENAI_IMAGE_DETAIL %q: must be low, auto or high", c.ImageDetail)
	}

	if c.Model == "" {
		return fmt.Errorf("OPENAI_VISION_MODEL must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be within [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("CLASSIFY_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.ImageMaxSide <= 0 {
		return fmt.Errorf("IMAGE_MAX_SIDE must be positive, got %d", c.ImageMaxSide)
	}
	if c.ImageQuality <= 0 || c.ImageQuality > 100 {
		return fmt.Errorf("IMAGE_QUALITY must be within (0, 100], got %d", c.ImageQuality)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("BATCH_POLL_INTERVAL must be positive, got %v", c.PollInterval)
	}

	if c.S3EndpointURL != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
		log.Println("Warning: S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing.")
	}

	return nil
}
