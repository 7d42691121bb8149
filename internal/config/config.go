package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	LLMProvider          string        `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey            string        `env:"LLM_API_KEY"`
	LLMBaseURL           string        `env:"LLM_BASE_URL" envDefault:"https://api.together.xyz/v1"`
	LLMModel             string        `env:"LLM_MODEL" envDefault:"meta-llama/Llama-3.3-70B-Instruct-Turbo-Free"`
	LLMTimeout           time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMMaxTokens         int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	LLMTemperature       float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMTopP              float64       `env:"LLM_TOP_P" envDefault:"0.7"`
	LLMTopK              int           `env:"LLM_TOP_K" envDefault:"50"`
	LLMRepetitionPenalty float64       `env:"LLM_REPETITION_PENALTY" envDefault:"1.1"`
	EmbeddingModel       string        `env:"EMBEDDING_MODEL" envDefault:"togethercomputer/m2-bert-80M-32k-retrieval"`
	EmbeddingDim         int           `env:"EMBEDDING_DIM" envDefault:"768"`

	DatabaseURL string  `env:"DATABASE_URL"`
	VectorTable string  `env:"VECTOR_TABLE" envDefault:"chunks"`
	HybridAlpha float64 `env:"HYBRID_ALPHA" envDefault:"0.5"`

	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	EmbeddingCacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" envDefault:"24h"`

	MaxMessageLength      int      `env:"MAX_MESSAGE_LENGTH" envDefault:"1000"`
	MaxMessagesPerSession int      `env:"MAX_MESSAGES_PER_SESSION" envDefault:"100"`
	AllowedOrigins        []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

var (
	ErrInvalidProvider = errors.New("LLM_PROVIDER must be openai or gemini")
	ErrInvalidLimits   = errors.New("MAX_MESSAGE_LENGTH, MAX_MESSAGES_PER_SESSION and EMBEDDING_DIM must be positive")
	ErrInvalidAlpha    = errors.New("HYBRID_ALPHA must be between 0 and 1")
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normaliza y verifica los valores que no se pueden expresar con tags.
func (c *Config) Validate() error {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return ErrInvalidProvider
	}
	if c.MaxMessageLength <= 0 || c.MaxMessagesPerSession <= 0 || c.EmbeddingDim <= 0 {
		return ErrInvalidLimits
	}
	if c.HybridAlpha < 0 || c.HybridAlpha > 1 {
		return ErrInvalidAlpha
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
	return nil
}
