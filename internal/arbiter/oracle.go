package arbiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Oracle providers
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOllamaModel = "llama3.1"
	DefaultOllamaURL   = "http://localhost:11434"
)

// Oracle is an external reasoning service. It answers one system/user
// prompt pair with free text.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OracleConfig selects the chat model behind an Oracle
type OracleConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=none openai ollama"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Attempts int           `mapstructure:"attempts" validate:"gte=0,lte=5"`
}

// ChatOracle adapts an eino chat model to Oracle
type ChatOracle struct {
	model model.BaseChatModel
}

// NewChatOracle wraps an eino chat model
func NewChatOracle(m model.BaseChatModel) *ChatOracle {
	return &ChatOracle{model: m}
}

// NewOracle builds the configured chat model. Provider none, or an empty
// provider, returns a nil Oracle and arbitration is skipped.
func NewOracle(ctx context.Context, cfg OracleConfig) (Oracle, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		name := cfg.Model
		if name == "" {
			name = DefaultOpenAIModel
		}
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:  name,
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return NewChatOracle(m), nil

	case ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		name := cfg.Model
		if name == "" {
			name = DefaultOllamaModel
		}
		m, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   name,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama chat model: %w", err)
		}
		return NewChatOracle(m), nil

	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s (supported: openai, ollama, none)", cfg.Provider)
	}
}

// Complete sends the prompt pair and returns the model's reply
func (o *ChatOracle) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := o.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("llm generate: empty response")
	}
	return resp.Content, nil
}
