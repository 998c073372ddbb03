package regcache

import (
	"context"
	"crypto/sha256"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

const (
	// DefaultTTL bounds how stale a cached lookup may be
	DefaultTTL = 5 * time.Minute
	// DefaultSize is the number of cached lookups per kind of read
	DefaultSize = 4096
)

// Stats reports cache effectiveness
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
	ExactLen      int
	LexicalLen    int
}

// Cache is a read-through cache over the registry's exact and lexical
// lookups. Entries expire after the TTL; Invalidate clears everything and
// must be called after batch writes that bypass the cache.
//
// Cached slices are shared between callers and must not be modified.
// Every other Registry method passes straight through.
type Cache struct {
	storage.Registry

	exact   *expirable.LRU[[32]byte, []*types.Entry]
	lexical *expirable.LRU[[32]byte, []*types.Entry]
	logger  *zap.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// New wraps reg. Non-positive size or ttl select the defaults.
func New(reg storage.Registry, size int, ttl time.Duration, logger *zap.Logger) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		Registry: reg,
		exact:    expirable.NewLRU[[32]byte, []*types.Entry](size, nil, ttl),
		lexical:  expirable.NewLRU[[32]byte, []*types.Entry](size, nil, ttl),
		logger:   logger,
	}
}

// ExactLookup serves from cache when possible. Errors are never cached.
func (c *Cache) ExactLookup(ctx context.Context, kind types.Kind, field storage.Field, value string) ([]*types.Entry, error) {
	key := hashKey("exact", string(kind), string(field), value)
	if entries, ok := c.exact.Get(key); ok {
		c.hits.Add(1)
		return entries, nil
	}
	c.misses.Add(1)

	entries, err := c.Registry.ExactLookup(ctx, kind, field, value)
	if err != nil {
		return nil, err
	}
	c.exact.Add(key, entries)
	return entries, nil
}

// LexicalSearch serves from cache when possible. Errors are never cached.
func (c *Cache) LexicalSearch(ctx context.Context, query storage.LexicalQuery) ([]*types.Entry, error) {
	key := hashKey("lexical", string(query.Kind), string(query.Scope), query.Term, strconv.Itoa(query.Limit))
	if entries, ok := c.lexical.Get(key); ok {
		c.hits.Add(1)
		return entries, nil
	}
	c.misses.Add(1)

	entries, err := c.Registry.LexicalSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	c.lexical.Add(key, entries)
	return entries, nil
}

// UpsertEntry writes through and invalidates the cache
func (c *Cache) UpsertEntry(ctx context.Context, entry *types.Entry) error {
	if err := c.Registry.UpsertEntry(ctx, entry); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate drops every cached lookup
func (c *Cache) Invalidate() {
	c.exact.Purge()
	c.lexical.Purge()
	c.invalidations.Add(1)
	c.logger.Debug("registry cache invalidated")
}

// Stats returns current counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		ExactLen:      c.exact.Len(),
		LexicalLen:    c.lexical.Len(),
	}
}

// hashKey builds a collision-safe key from its parts
func hashKey(parts ...string) [32]byte {
	return sha256.Sum256([]byte(strings.Join(parts, "\x00")))
}
