package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts the texts sent to the provider
type countingEmbedder struct {
	*LocalProvider
	texts atomic.Int64
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	c.texts.Add(1)
	return c.LocalProvider.GenerateEmbedding(ctx, req)
}

func (c *countingEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	c.texts.Add(int64(len(req.Texts)))
	return c.LocalProvider.GenerateBatch(ctx, req)
}

func TestLocalProvider_Deterministic(t *testing.T) {
	p := NewLocalProvider(0)
	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "acme promotional products | austin tx"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "acme promotional products | austin tx"})
	require.NoError(t, err)

	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, ComputeHash("acme promotional products | austin tx"), a.Hash)
}

func TestLocalProvider_SimilarTextsAreCloser(t *testing.T) {
	p := NewLocalProvider(256)
	ctx := context.Background()

	embed := func(text string) []float32 {
		e, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		require.NoError(t, err)
		return e.Vector
	}

	base := embed("creative marketing specialists")
	near := embed("creative marketing specialist")
	far := embed("zebra plumbing warehouse")

	assert.Greater(t, dot(base, near), dot(base, far))
	assert.InDelta(t, 1.0, dot(base, base), 1e-5)
}

func TestLocalProvider_Errors(t *testing.T) {
	p := NewLocalProvider(0)

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", ""}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithCache(t *testing.T) {
	inner := &countingEmbedder{LocalProvider: NewLocalProvider(32)}
	e := WithCache(inner, NewCache(10))
	ctx := context.Background()

	first, err := e.GenerateEmbedding(ctx, EmbeddingRequest{Text: "acme"})
	require.NoError(t, err)
	second, err := e.GenerateEmbedding(ctx, EmbeddingRequest{Text: "acme"})
	require.NoError(t, err)
	assert.Equal(t, first.Vector, second.Vector)
	assert.EqualValues(t, 1, inner.texts.Load())

	// cached vectors are copies
	second.Vector[0] = 42
	third, err := e.GenerateEmbedding(ctx, EmbeddingRequest{Text: "acme"})
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), third.Vector[0])

	resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"acme", "globex", "initech"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.EqualValues(t, 3, inner.texts.Load(), "only the two misses reach the provider")
	assert.Equal(t, ComputeHash("globex"), resp.Embeddings[1].Hash)
	assert.Equal(t, ProviderLocal, resp.Provider)
}

func TestWithCache_Nil(t *testing.T) {
	p := NewLocalProvider(0)
	assert.Same(t, Embedder(p), WithCache(p, nil))
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func TestJinaProvider(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultJinaModel, req.Model)

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		// reversed order exercises the index sort
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(i), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
	defer server.Close()

	p, err := NewJinaProvider("test-key", "", server.URL, time.Second)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	for i, e := range resp.Embeddings {
		assert.Equal(t, float32(i), e.Vector[0])
		assert.Equal(t, 2, e.Dimension)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestJinaProvider_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewJinaProvider("bad", "", server.URL, time.Second)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "acme"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.EqualValues(t, 1, calls.Load())
}

func TestJinaProvider_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
	}))
	defer server.Close()

	p, err := NewJinaProvider("key", "", server.URL, time.Second)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, emb.Vector)
	assert.EqualValues(t, 2, calls.Load())
}

func TestJinaProvider_RequiresKey(t *testing.T) {
	_, err := NewJinaProvider("", "", "", 0)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

// fakeEino implements embedding.Embedder
type fakeEino struct {
	vectors [][]float64
	err     error
}

func (f *fakeEino) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestEinoProvider(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeEino
		texts   []string
		wantErr error
	}{
		{
			name:  "converts vectors",
			fake:  &fakeEino{vectors: [][]float64{{0.5, 0.25, 0}, {1, 0, 0}}},
			texts: []string{"a", "b"},
		},
		{
			name:    "provider error",
			fake:    &fakeEino{err: errors.New("connection refused")},
			texts:   []string{"a"},
			wantErr: ErrProviderFailed,
		},
		{
			name:    "count mismatch",
			fake:    &fakeEino{vectors: [][]float64{{1}}},
			texts:   []string{"a", "b"},
			wantErr: ErrProviderFailed,
		},
		{
			name:    "empty vector",
			fake:    &fakeEino{vectors: [][]float64{{}}},
			texts:   []string{"a"},
			wantErr: ErrProviderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEinoProvider(tt.fake, ProviderOllama, DefaultOllamaModel)
			assert.Equal(t, 0, p.Dimension())

			resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []float32{0.5, 0.25, 0}, resp.Embeddings[0].Vector)
			assert.Equal(t, 3, p.Dimension())
			assert.Equal(t, ProviderOllama, resp.Embeddings[1].Provider)
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, Config{Provider: "LOCAL", CacheSize: 100})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())
	_, cached := e.(*cachedEmbedder)
	assert.True(t, cached)

	e, err = New(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	e, err = New(ctx, Config{Provider: " Local "})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	_, err = New(ctx, Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(ctx, Config{Provider: "jina"})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestDetectProvider(t *testing.T) {
	assert.Equal(t, ProviderJina, DetectProvider(Config{APIKey: "k"}))
	assert.Equal(t, ProviderOllama, DetectProvider(Config{Provider: "Ollama"}))
	assert.Equal(t, ProviderLocal, DetectProvider(Config{}))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
