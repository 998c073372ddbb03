package storage

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/pkg/types"
)

// seedVectors stores one active customer per vector, named E0, E1, ...
func seedVectors(t *testing.T, storage *SQLiteStorage, vectors [][]float32) {
	t.Helper()
	ctx := context.Background()
	for i, v := range vectors {
		entry := &types.Entry{
			ID:     fmt.Sprintf("E%d", i),
			Kind:   types.KindCustomer,
			Name:   fmt.Sprintf("Vendor %d", i),
			Email:  fmt.Sprintf("sales@vendor%d.com", i),
			Active: true,
		}
		require.NoError(t, storage.UpsertEntry(ctx, entry))
		require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
			EntryID:    entry.ID,
			Vector:     SerializeVector(v),
			Dimension:  len(v),
			Provider:   "local",
			Model:      "test",
			SourceHash: normalize.SourceHash(normalize.EntryText(entry)),
		}))
	}
}

func TestVectorSearch(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedVectors(t, storage, [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
		{0, 0, 1},
	})

	results, err := storage.VectorSearch(ctx, []float32{1, 0, 0}, nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "E0", results[0].EntryID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-4)
	assert.Equal(t, "E1", results[1].EntryID)

	// sorted descending
	all, err := storage.VectorSearch(ctx, []float32{1, 0, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Similarity, all[i].Similarity)
	}

	// minimum similarity
	filtered, err := storage.VectorSearch(ctx, []float32{1, 0, 0}, &VectorFilter{MinSimilarity: 0.5}, 10)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	// domain prefilter
	scoped, err := storage.VectorSearch(ctx, []float32{1, 0, 0}, &VectorFilter{Domain: "vendor3.com"}, 10)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "E3", scoped[0].EntryID)

	// domain or name prefilter
	either, err := storage.VectorSearch(ctx, []float32{1, 0, 0}, &VectorFilter{Domain: "vendor3.com", NameTerm: "vendor 2"}, 10)
	require.NoError(t, err)
	assert.Len(t, either, 2)

	// kind restriction
	none, err := storage.VectorSearch(ctx, []float32{1, 0, 0}, &VectorFilter{Kind: types.KindContact}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorSearch_SkipsStaleAndInactive(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedVectors(t, storage, [][]float32{{1, 0}, {0.8, 0.2}})

	// E0 changes its name: embedding is dropped
	e0, err := storage.GetEntry(ctx, "E0")
	require.NoError(t, err)
	e0.Name = "Renamed Vendor"
	require.NoError(t, storage.UpsertEntry(ctx, e0))

	// E1 deactivated: embedding stays but the entry is excluded
	e1, err := storage.GetEntry(ctx, "E1")
	require.NoError(t, err)
	e1.Active = false
	require.NoError(t, storage.UpsertEntry(ctx, e1))

	results, err := storage.VectorSearch(ctx, []float32{1, 0}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorSearchEdgeCases(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	seedVectors(t, storage, [][]float32{{1, 0, 0}})

	testCases := []struct {
		name        string
		queryVector []float32
		limit       int
	}{
		{"empty query vector", []float32{}, 10},
		{"zero limit", []float32{1, 0, 0}, 0},
		{"negative limit", []float32{1, 0, 0}, -1},
		{"dimension mismatch", []float32{1, 0}, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := storage.VectorSearch(ctx, tc.queryVector, nil, tc.limit)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestVectorSearchOptimization(t *testing.T) {
	if !VectorExtensionAvailable {
		t.Skip("Skipping test: sqlite-vec extension not available")
	}

	storage := setupTestDB(t)
	ctx := context.Background()

	vectors := make([][]float32, 20)
	for i := range vectors {
		v := make([]float32, 16)
		for j := range v {
			v[j] = float32(math.Sin(float64(i*16 + j)))
		}
		vectors[i] = v
	}
	seedVectors(t, storage, vectors)

	query := vectors[3]
	optimized, err := searchVectorOptimized(ctx, storage.db, query, 5, nil)
	require.NoError(t, err)
	fallback, err := searchVectorFallback(ctx, storage.db, query, 5, nil)
	require.NoError(t, err)

	require.Equal(t, len(fallback), len(optimized))
	assert.Equal(t, fallback[0].EntryID, optimized[0].EntryID)
	for i := range optimized {
		assert.InDelta(t, fallback[i].Similarity, optimized[i].Similarity, 1e-3)
	}
}

func TestSerializeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25, math.MaxFloat32}
	blob := SerializeVector(in)
	assert.Len(t, blob, len(in)*4)
	assert.Equal(t, in, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
