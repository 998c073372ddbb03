package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dshills/entityres/internal/retry"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-trigram"

	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOllamaURL = "http://localhost:11434"

	// Dimensions
	JinaDimension  = 1024
	LocalDimension = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100
)

// JinaProvider implements Embedder against Jina AI's embeddings endpoint
type JinaProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	retry      retry.Config
}

// NewJinaProvider creates a Jina embedder. An empty endpoint selects the
// public API.
func NewJinaProvider(apiKey, model, endpoint string, timeout time.Duration) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: jina api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if endpoint == "" {
		endpoint = DefaultJinaURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &JinaProvider{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.Default(),
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := j.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	embeddings, err := retry.Do(ctx, j.retry, func(ctx context.Context) ([]*Embedding, error) {
		return j.callAPI(ctx, req.Texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if len(embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(req.Texts), len(embeddings))
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderJina,
		Model:      j.model,
	}, nil
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": j.model,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		// client errors other than rate limiting will not succeed on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// the API may return data out of order
	sort.Slice(apiResp.Data, func(a, b int) bool { return apiResp.Data[a].Index < apiResp.Data[b].Index })

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderJina,
			Model:     j.model,
			Hash:      ComputeHash(texts[min(i, len(texts)-1)]),
		}
	}
	return embeddings, nil
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider hashes character trigrams into a fixed-size vector. It
// needs no network or model files, is deterministic, and gives texts that
// share spelling a high cosine similarity. Suited to tests and offline use.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local embedder. Non-positive dimension selects
// LocalDimension.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Embedding{
		Vector:    l.vector(req.Text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     DefaultLocalModel,
		Hash:      ComputeHash(req.Text),
	}, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      DefaultLocalModel,
	}, nil
}

// vector accumulates signed trigram buckets and normalizes to unit length
func (l *LocalProvider) vector(text string) []float32 {
	v := make([]float32, l.dimension)
	runes := []rune(" " + strings.ToLower(text) + " ")
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		sum := h.Sum32()
		bucket := int(sum % uint32(l.dimension))
		if sum&(1<<31) != 0 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}
	return NormalizeVector(v)
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}
