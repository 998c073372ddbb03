package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config selects and configures an embedding provider
type Config struct {
	Provider  string        `mapstructure:"provider" validate:"omitempty,oneof=jina openai ollama local"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url" validate:"omitempty,url"`
	Dimension int           `mapstructure:"dimension" validate:"gte=0"`
	CacheSize int           `mapstructure:"cache_size" validate:"gte=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

var validate = validator.New()

// New creates the configured embedder wrapped with an LRU cache. An empty
// provider selects jina when an API key is present, otherwise local.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		return WithCache(e, NewCache(cfg.CacheSize)), nil
	}
	return e, nil
}

func newProvider(ctx context.Context, cfg Config) (Embedder, error) {
	switch DetectProvider(cfg) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	case ProviderOpenAI:
		return NewOpenAIProvider(ctx, cfg.APIKey, cfg.Model)
	case ProviderOllama:
		return NewOllamaProvider(ctx, cfg.BaseURL, cfg.Model)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderJina
	}
	return ProviderLocal
}
