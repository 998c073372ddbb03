package embedder

import (
	"context"
	"fmt"
	"sync/atomic"

	ollamaEmbed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// EinoProvider adapts an eino embedding component to Embedder. The
// dimension is learned from the first successful response.
type EinoProvider struct {
	embedder  embedding.Embedder
	provider  string
	model     string
	dimension atomic.Int64
}

// NewEinoProvider wraps an already constructed eino embedder
func NewEinoProvider(e embedding.Embedder, provider, model string) *EinoProvider {
	return &EinoProvider{embedder: e, provider: provider, model: model}
}

// NewOpenAIProvider creates an OpenAI embedder through eino
func NewOpenAIProvider(ctx context.Context, apiKey, model string) (*EinoProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	e, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		Model:  model,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return NewEinoProvider(e, ProviderOpenAI, model), nil
}

// NewOllamaProvider creates an embedder backed by a local Ollama server
func NewOllamaProvider(ctx context.Context, baseURL, model string) (*EinoProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	e, err := ollamaEmbed.NewEmbedder(ctx, &ollamaEmbed.EmbeddingConfig{
		BaseURL: baseURL,
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return NewEinoProvider(e, ProviderOllama, model), nil
}

func (p *EinoProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (p *EinoProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	vectors, err := p.embedder.EmbedStrings(ctx, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.provider, err)
	}
	if len(vectors) != len(req.Texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(req.Texts), len(vectors))
	}

	embeddings := make([]*Embedding, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for text %d", ErrProviderFailed, i)
		}
		vec := make([]float32, len(v))
		for j, f := range v {
			vec[j] = float32(f)
		}
		embeddings[i] = &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  p.provider,
			Model:     p.model,
			Hash:      ComputeHash(req.Texts[i]),
		}
	}
	p.dimension.Store(int64(len(embeddings[0].Vector)))

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.provider,
		Model:      p.model,
	}, nil
}

func (p *EinoProvider) Dimension() int {
	return int(p.dimension.Load())
}

func (p *EinoProvider) Provider() string {
	return p.provider
}

func (p *EinoProvider) Model() string {
	return p.model
}

func (p *EinoProvider) Close() error {
	return nil
}
