package searcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/entityres/internal/embedder"
	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

const (
	// DefaultLimit is the maximum number of candidates returned
	DefaultLimit = 25
	// DefaultEmbedTimeout bounds the query embedding call
	DefaultEmbedTimeout = 5 * time.Second

	// minContainment is the shortest name that counts for substring matching
	minContainment = 3
)

// Options configures a Searcher
type Options struct {
	Limit        int
	EmbedTimeout time.Duration
	// Prefilter restricts vector search to entries sharing the query's
	// domain or containing its root name
	Prefilter     bool
	MinSimilarity float64
}

// Request describes one retrieval
type Request struct {
	Query *types.NormalizedQuery
	// Vector is the query embedding. Nil restricts retrieval to lexical.
	Vector []float32
}

// Response contains the annotated candidates and retrieval metadata
type Response struct {
	Candidates     []*types.Candidate
	LexicalResults int
	VectorResults  int
	Duration       time.Duration
}

// Searcher is the candidate retriever. It unions lexical containment search
// and vector similarity search over the registry.
type Searcher struct {
	registry storage.Registry
	embedder embedder.Embedder
	opts     Options
	logger   *zap.Logger
}

// NewSearcher creates a Searcher. A nil embedder disables vector retrieval.
func NewSearcher(registry storage.Registry, emb embedder.Embedder, opts Options, logger *zap.Logger) *Searcher {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		registry: registry,
		embedder: emb,
		opts:     opts,
		logger:   logger,
	}
}

// EmbedQuery embeds the canonical projection of nq under the embed timeout.
// Failures wrap types.ErrProvider.
func (s *Searcher) EmbedQuery(ctx context.Context, nq *types.NormalizedQuery) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", types.ErrProvider)
	}
	text := normalize.QueryText(nq)
	if text == "" {
		return nil, fmt.Errorf("%w: query has no embeddable text", types.ErrProvider)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProvider, err)
	}
	return emb.Vector, nil
}

// Retrieve runs lexical and vector retrieval concurrently and returns the
// deduplicated, annotated union capped at the configured limit. Registry
// failures wrap types.ErrStorage.
func (s *Searcher) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if req.Query == nil {
		return nil, errors.New("query cannot be nil")
	}

	var lexical []*types.Entry
	var vector []storage.VectorResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = s.lexicalSearch(gctx, req.Query)
		return err
	})
	if len(req.Vector) > 0 {
		g.Go(func() error {
			var err error
			vector, err = s.registry.VectorSearch(gctx, req.Vector, s.vectorFilter(req.Query), s.opts.Limit)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	candidates, err := s.union(ctx, req, lexical, vector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	return &Response{
		Candidates:     candidates,
		LexicalResults: len(lexical),
		VectorResults:  len(vector),
		Duration:       time.Since(start),
	}, nil
}

// lexicalSearch runs the name, email and domain containment searches
func (s *Searcher) lexicalSearch(ctx context.Context, nq *types.NormalizedQuery) ([]*types.Entry, error) {
	var queries []storage.LexicalQuery
	for _, term := range nameTerms(nq) {
		// a guessed domain expansion
		if strings.Contains(term, ".") {
			queries = append(queries, storage.LexicalQuery{Term: term, Scope: storage.ScopeDomain})
			continue
		}
		queries = append(queries, storage.LexicalQuery{Term: term, Scope: storage.ScopeName})
		if compact := strings.ReplaceAll(term, " ", ""); len(compact) >= minContainment {
			queries = append(queries, storage.LexicalQuery{Term: compact, Scope: storage.ScopeEmail})
		}
	}
	if domain, ok := nq.Domain.Get(); ok && !normalize.IsFreeMail(domain) {
		queries = append(queries, storage.LexicalQuery{Term: domain, Scope: storage.ScopeDomain})
	}

	seen := make(map[string]bool)
	var entries []*types.Entry
	for _, q := range queries {
		q.Kind = nq.Kind
		q.Limit = s.opts.Limit
		found, err := s.registry.LexicalSearch(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("lexical search %s %q: %w", q.Scope, q.Term, err)
		}
		for _, e := range found {
			if !seen[e.ID] {
				seen[e.ID] = true
				entries = append(entries, e)
			}
		}
	}
	return entries, nil
}

// nameTerms returns the name, root and expansions, deduplicated
func nameTerms(nq *types.NormalizedQuery) []string {
	var terms []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}
	add(nq.Name.OrElse(""))
	add(nq.Root.OrElse(""))
	for _, e := range nq.Expansions {
		add(e)
	}
	return terms
}

func (s *Searcher) vectorFilter(nq *types.NormalizedQuery) *storage.VectorFilter {
	filter := &storage.VectorFilter{Kind: nq.Kind, MinSimilarity: s.opts.MinSimilarity}
	if !s.opts.Prefilter {
		return filter
	}
	if domain, ok := nq.Domain.Get(); ok && !normalize.IsFreeMail(domain) {
		filter.Domain = domain
	}
	if root, ok := nq.Root.Get(); ok && len(root) >= minContainment {
		filter.NameTerm = root
	}
	return filter
}

// union merges both result sets by entry ID and annotates every candidate
func (s *Searcher) union(ctx context.Context, req Request, lexical []*types.Entry, vector []storage.VectorResult) ([]*types.Candidate, error) {
	byID := make(map[string]*types.Candidate, len(lexical)+len(vector))

	for _, e := range lexical {
		c := Annotate(req.Query, e, req.Vector)
		c.Sources |= types.SourceLexical
		byID[e.ID] = c
	}

	var missing []string
	for _, vr := range vector {
		if _, ok := byID[vr.EntryID]; !ok {
			missing = append(missing, vr.EntryID)
		}
	}
	if len(missing) > 0 {
		entries, err := s.registry.GetEntries(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load vector candidates: %w", err)
		}
		for _, e := range entries {
			byID[e.ID] = Annotate(req.Query, e, req.Vector)
		}
	}
	for _, vr := range vector {
		c, ok := byID[vr.EntryID]
		if !ok {
			// deleted or deactivated between search and load
			continue
		}
		c.Sources |= types.SourceVector
		c.CosineSim = clamp01(vr.Similarity)
		c.HasCosine = true
	}

	candidates := make([]*types.Candidate, 0, len(byID))
	for _, c := range byID {
		candidates = append(candidates, c)
	}
	sortByRelevance(candidates)
	if len(candidates) > s.opts.Limit {
		s.logger.Debug("truncating candidate pool",
			zap.Int("found", len(candidates)),
			zap.Int("limit", s.opts.Limit))
		candidates = candidates[:s.opts.Limit]
	}
	return candidates, nil
}

// sortByRelevance orders candidates by exact signals, then by their best
// similarity, ties by ID
func sortByRelevance(candidates []*types.Candidate) {
	rank := func(c *types.Candidate) (int, float64) {
		exact := 0
		if c.EmailMatch {
			exact = 2
		} else if c.DomainMatch {
			exact = 1
		}
		return exact, max(c.CosineSim, c.LexicalSim)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ei, si := rank(candidates[i])
		ej, sj := rank(candidates[j])
		if ei != ej {
			return ei > ej
		}
		if si != sj {
			return si > sj
		}
		return candidates[i].Entry.ID < candidates[j].Entry.ID
	})
}

// Annotate computes the per-query signals of e. When both the query vector
// and the entry's stored embedding are present, CosineSim is their cosine.
func Annotate(nq *types.NormalizedQuery, e *types.Entry, queryVector []float32) *types.Candidate {
	c := &types.Candidate{Entry: e}

	entryEmails := make([]string, 0, 2)
	entryDomains := make([]string, 0, 2)
	for _, raw := range e.Emails() {
		if email := normalize.Email(raw); email != "" {
			entryEmails = append(entryEmails, email)
			entryDomains = append(entryDomains, normalize.Domain(email))
		}
	}

	for _, qe := range nq.Emails() {
		for _, ee := range entryEmails {
			if qe == ee {
				c.EmailMatch = true
			}
		}
	}
	if domain, ok := nq.Domain.Get(); ok && !c.EmailMatch && !normalize.IsFreeMail(domain) {
		for _, ed := range entryDomains {
			if domain == ed {
				c.DomainMatch = true
			}
		}
	}

	entryNames := make([]string, 0, 1+len(e.Aliases))
	for _, n := range e.AllNames() {
		if norm := normalize.Name(n); norm != "" {
			entryNames = append(entryNames, norm)
		}
	}
	if name, ok := nq.Name.Get(); ok {
		forms := []string{name, nq.Key.OrElse(""), nq.Root.OrElse("")}
		for _, en := range entryNames {
			c.LexicalSim = max(c.LexicalSim, LexicalSimilarity(name, en))
			for _, p := range forms {
				if contains(en, p) || contains(p, en) || contains(normalize.Key(en), p) {
					c.NameMatch = true
				}
			}
		}
	}

	if len(queryVector) > 0 && len(e.Embedding) == len(queryVector) {
		c.CosineSim = clamp01(storage.CosineSimilarity(queryVector, e.Embedding))
		c.HasCosine = true
	}
	return c
}

// contains reports whether sub, at least minContainment long, occurs in s
// on word boundaries
func contains(s, sub string) bool {
	if len(sub) < minContainment || len(s) < len(sub) {
		return false
	}
	return strings.Contains(" "+s+" ", " "+sub+" ")
}

// LexicalSimilarity is 1 minus the Levenshtein distance normalized by the
// longer string's rune count
func LexicalSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
