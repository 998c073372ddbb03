package regcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

// countingRegistry counts reads reaching the underlying registry
type countingRegistry struct {
	storage.Registry
	exactCalls   int
	lexicalCalls int
	fail         bool
}

func (r *countingRegistry) ExactLookup(ctx context.Context, kind types.Kind, field storage.Field, value string) ([]*types.Entry, error) {
	r.exactCalls++
	if r.fail {
		return nil, errors.New("boom")
	}
	return []*types.Entry{{ID: value}}, nil
}

func (r *countingRegistry) LexicalSearch(ctx context.Context, q storage.LexicalQuery) ([]*types.Entry, error) {
	r.lexicalCalls++
	if r.fail {
		return nil, errors.New("boom")
	}
	return []*types.Entry{{ID: q.Term}}, nil
}

func (r *countingRegistry) UpsertEntry(ctx context.Context, e *types.Entry) error {
	return nil
}

func TestCache_ExactLookup(t *testing.T) {
	reg := &countingRegistry{}
	c := New(reg, 16, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.ExactLookup(ctx, types.KindCustomer, storage.FieldEmail, "a@b.com")
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, 1, reg.exactCalls)

	// distinct kind is a distinct key
	_, err := c.ExactLookup(ctx, types.KindContact, storage.FieldEmail, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.exactCalls)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.ExactLen)
}

func TestCache_LexicalSearch(t *testing.T) {
	reg := &countingRegistry{}
	c := New(reg, 16, time.Minute, nil)
	ctx := context.Background()

	q := storage.LexicalQuery{Term: "acme", Scope: storage.ScopeName, Limit: 25}
	_, err := c.LexicalSearch(ctx, q)
	require.NoError(t, err)
	_, err = c.LexicalSearch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.lexicalCalls)

	q.Limit = 10
	_, err = c.LexicalSearch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.lexicalCalls)
}

func TestCache_Invalidate(t *testing.T) {
	reg := &countingRegistry{}
	c := New(reg, 16, time.Minute, nil)
	ctx := context.Background()

	_, _ = c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	c.Invalidate()
	_, _ = c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	assert.Equal(t, 2, reg.exactCalls)

	require.NoError(t, c.UpsertEntry(ctx, &types.Entry{ID: "C-1"}))
	_, _ = c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	assert.Equal(t, 3, reg.exactCalls)
	assert.Equal(t, int64(2), c.Stats().Invalidations)
}

func TestCache_Expiry(t *testing.T) {
	reg := &countingRegistry{}
	c := New(reg, 16, 20*time.Millisecond, nil)
	ctx := context.Background()

	_, _ = c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	time.Sleep(60 * time.Millisecond)
	_, _ = c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	assert.Equal(t, 2, reg.exactCalls)
}

func TestCache_ErrorsNotCached(t *testing.T) {
	reg := &countingRegistry{fail: true}
	c := New(reg, 16, time.Minute, nil)
	ctx := context.Background()

	_, err := c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	assert.Error(t, err)
	_, err = c.LexicalSearch(ctx, storage.LexicalQuery{Term: "x", Scope: storage.ScopeName})
	assert.Error(t, err)

	reg.fail = false
	_, err = c.ExactLookup(ctx, "", storage.FieldID, "C-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.exactCalls)
}
