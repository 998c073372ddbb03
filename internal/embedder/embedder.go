package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Hash of the embedded text
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse represents a batch response. Embeddings are in the
// order of the request texts.
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder generates vectors for canonical entity text. The same Embedder
// must be used for registry entries and queries.
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts efficiently
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension, 0 when not yet known
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by text hash
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedding cache: %v", err))
	}
	return &Cache{cache: cache}
}

// Get returns a copy of a cached embedding so callers cannot mutate the
// cached vector
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	cp := *emb
	cp.Vector = append([]float32(nil), emb.Vector...)
	return &cp, true
}

// Set stores an embedding in cache
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// cachedEmbedder serves repeated texts from a Cache
type cachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e so that texts already embedded are served from cache.
// A nil cache returns e unchanged.
func WithCache(e Embedder, cache *Cache) Embedder {
	if cache == nil {
		return e
	}
	return &cachedEmbedder{Embedder: e, cache: cache}
}

func (c *cachedEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	hash := ComputeHash(req.Text)
	if emb, ok := c.cache.Get(hash); ok {
		return emb, nil
	}
	emb, err := c.Embedder.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}
	emb.Hash = hash
	c.cache.Set(hash, emb)
	return emb, nil
}

// GenerateBatch only sends texts that miss the cache to the provider
func (c *cachedEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	out := make([]*Embedding, len(req.Texts))
	var missing []string
	var missingIdx []int
	for i, text := range req.Texts {
		if emb, ok := c.cache.Get(ComputeHash(text)); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		resp, err := c.Embedder.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: missing})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(missing) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(missing), len(resp.Embeddings))
		}
		for j, emb := range resp.Embeddings {
			hash := ComputeHash(missing[j])
			emb.Hash = hash
			c.cache.Set(hash, emb)
			out[missingIdx[j]] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   c.Provider(),
		Model:      c.Model(),
	}, nil
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
