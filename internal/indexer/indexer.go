package indexer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/entityres/internal/embedder"
	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

// maxLineBytes bounds one JSON line of an import stream
const maxLineBytes = 1 << 20

var (
	// ErrBusy is returned when another maintenance job holds the lock
	ErrBusy = errors.New("registry maintenance already running")
	// ErrNoEmbedder is returned by Reembed when no embedder is configured
	ErrNoEmbedder = errors.New("no embedder configured")
)

// Invalidator drops cached registry reads after writes
type Invalidator interface {
	Invalidate()
}

// Indexer runs the registry maintenance jobs: bulk import and embedding
// refresh. Only one job runs at a time per Indexer.
type Indexer struct {
	registry storage.Registry
	embedder embedder.Embedder
	cache    Invalidator
	logger   *zap.Logger

	lock IndexLock
}

// Config contains configuration for a maintenance job
type Config struct {
	Workers   int // Concurrent embedding calls (default: runtime.NumCPU())
	BatchSize int // Entries per transaction or embedding call (default: 50)
}

// Statistics contains statistics about a maintenance job
type Statistics struct {
	EntriesImported       int
	EntriesFailed         int
	EmbeddingsInvalidated int
	EmbeddingsCreated     int
	EmbeddingsFailed      int
	Duration              time.Duration
	ErrorMessages         []string
}

// New creates an Indexer. emb and cache may be nil.
func New(registry storage.Registry, emb embedder.Embedder, cache Invalidator, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		registry: registry,
		embedder: emb,
		cache:    cache,
		logger:   logger,
	}
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.BatchSize <= 0 {
		out.BatchSize = embedder.DefaultBatchSize
	}
	out.BatchSize = min(out.BatchSize, embedder.MaxBatchSize)
	return out
}

// importRecord is one line of an import stream. Entries are active unless
// the line says otherwise.
type importRecord struct {
	types.Entry
	Active *bool `json:"active"`
}

type pendingEntry struct {
	line  int
	entry *types.Entry
}

// Import reads JSON lines of registry entries from r and upserts them in
// batched transactions. Invalid lines are counted and skipped; a storage
// failure aborts the import. Changing an entry's canonical text invalidates
// its embedding until the next Reembed.
func (idx *Indexer) Import(ctx context.Context, r io.Reader, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer idx.lock.Release()

	cfg := config.withDefaults()
	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}
	defer idx.invalidate()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := make([]pendingEntry, 0, cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := idx.importBatch(ctx, batch, stats)
		batch = batch[:0]
		return err
	}

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var rec importRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.fail(line, err)
			continue
		}
		e := rec.Entry
		e.Active = rec.Active == nil || *rec.Active
		if err := e.Validate(); err != nil {
			stats.fail(line, err)
			continue
		}

		batch = append(batch, pendingEntry{line: line, entry: &e})
		if len(batch) == cfg.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import stream: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("registry import complete",
		zap.Int("imported", stats.EntriesImported),
		zap.Int("failed", stats.EntriesFailed),
		zap.Int("embeddings_invalidated", stats.EmbeddingsInvalidated),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// importBatch upserts one batch within a transaction
func (idx *Indexer) importBatch(ctx context.Context, batch []pendingEntry, stats *Statistics) error {
	tx, err := idx.registry.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	imported, invalidated := 0, 0
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		changed, err := textChanged(ctx, tx, p.entry)
		if err != nil {
			return err
		}
		if err := tx.UpsertEntry(ctx, p.entry); err != nil {
			return fmt.Errorf("line %d: %w", p.line, err)
		}
		imported++
		if changed {
			invalidated++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	stats.EntriesImported += imported
	stats.EmbeddingsInvalidated += invalidated
	return nil
}

// textChanged reports whether e replaces an embedded entry whose canonical
// text differs
func textChanged(ctx context.Context, reg storage.Registry, e *types.Entry) (bool, error) {
	existing, err := reg.GetEntry(ctx, e.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.Embedding == nil {
		return false, nil
	}
	return normalize.EntryText(existing) != normalize.EntryText(e), nil
}

// Reembed generates embeddings for every active entry whose stored vector
// is missing or was built from a different canonical text. Batches are
// embedded concurrently; a failed batch is recorded and retried on the next
// run.
func (idx *Indexer) Reembed(ctx context.Context, config *Config) (*Statistics, error) {
	if idx.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if !idx.lock.TryAcquire() {
		return nil, ErrBusy
	}
	defer idx.lock.Release()

	cfg := config.withDefaults()
	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}
	defer idx.invalidate()

	var (
		created atomic.Int32
		mu      sync.Mutex
	)
	failed := make(map[string]bool)
	embedded := make(map[string]bool)

	for {
		// failed entries stay stale, so look past them
		page, err := idx.registry.ListStaleEntries(ctx, len(failed)+cfg.BatchSize*cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("failed to list stale entries: %w", err)
		}
		pending := make([]*types.Entry, 0, len(page))
		for _, e := range page {
			switch {
			case failed[e.ID]:
			case embedded[e.ID]:
				// written this run yet still stale: the stored text and the
				// embedded text disagree, and another pass cannot fix that
				failed[e.ID] = true
				created.Add(-1)
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("entry %s: still stale after embedding", e.ID))
			default:
				pending = append(pending, e)
			}
		}
		if len(pending) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Workers)
		for i := 0; i < len(pending); i += cfg.BatchSize {
			batch := pending[i:min(i+cfg.BatchSize, len(pending))]
			g.Go(func() error {
				n, err := idx.embedBatch(gctx, batch)
				created.Add(int32(n))
				mu.Lock()
				for _, e := range batch[:n] {
					embedded[e.ID] = true
				}
				mu.Unlock()
				if err == nil {
					return nil
				}
				if errors.Is(err, types.ErrStorage) || gctx.Err() != nil {
					return err
				}
				mu.Lock()
				for _, e := range batch[n:] {
					failed[e.ID] = true
				}
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("batch at %s: %v", batch[0].ID, err))
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	stats.EmbeddingsCreated = int(created.Load())
	stats.EmbeddingsFailed = len(failed)
	stats.Duration = time.Since(start)
	idx.logger.Info("embedding refresh complete",
		zap.Int("created", stats.EmbeddingsCreated),
		zap.Int("failed", stats.EmbeddingsFailed),
		zap.String("provider", idx.embedder.Provider()),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// embedBatch embeds and stores one batch, returning how many embeddings
// were written before any error
func (idx *Indexer) embedBatch(ctx context.Context, batch []*types.Entry) (int, error) {
	texts := make([]string, len(batch))
	for i, e := range batch {
		texts[i] = normalize.EntryText(e)
	}

	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrProvider, err)
	}
	if len(resp.Embeddings) != len(batch) {
		return 0, fmt.Errorf("%w: expected %d embeddings, got %d", types.ErrProvider, len(batch), len(resp.Embeddings))
	}

	provider, model := resp.Provider, resp.Model
	if provider == "" {
		provider, model = idx.embedder.Provider(), idx.embedder.Model()
	}
	for i, emb := range resp.Embeddings {
		err := idx.registry.UpsertEmbedding(ctx, &storage.Embedding{
			EntryID:    batch[i].ID,
			Vector:     storage.SerializeVector(emb.Vector),
			Dimension:  len(emb.Vector),
			Provider:   provider,
			Model:      model,
			SourceHash: normalize.SourceHash(texts[i]),
		})
		if err != nil {
			return i, fmt.Errorf("%w: %v", types.ErrStorage, err)
		}
	}
	return len(batch), nil
}

func (idx *Indexer) invalidate() {
	if idx.cache != nil {
		idx.cache.Invalidate()
	}
}

func (s *Statistics) fail(line int, err error) {
	s.EntriesFailed++
	s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf("line %d: %v", line, err))
}

// Running reports whether a maintenance job is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}
