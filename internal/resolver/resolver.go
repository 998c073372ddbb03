package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/entityres/internal/arbiter"
	"github.com/dshills/entityres/internal/embedder"
	"github.com/dshills/entityres/internal/matcher"
	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/internal/override"
	"github.com/dshills/entityres/internal/recorder"
	"github.com/dshills/entityres/internal/scorer"
	"github.com/dshills/entityres/internal/searcher"
	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

// DefaultBatchConcurrency bounds concurrent resolutions in ResolveBatch
const DefaultBatchConcurrency = 4

// Deps are the collaborators of a Resolver. Registry is required; a nil
// Embedder restricts retrieval to lexical search and a nil Oracle turns
// every arbitration into a low-confidence fallback.
type Deps struct {
	Registry  storage.Registry
	Embedder  embedder.Embedder
	Oracle    arbiter.Oracle
	Overrides *override.Table
	Logger    *zap.Logger
}

// Options tune a Resolver. Zero values select defaults.
type Options struct {
	OwnDomains       []string
	Scorer           *scorer.Config
	Searcher         searcher.Options
	OracleTimeout    time.Duration
	OracleAttempts   int
	VerifyThreshold  float64
	BatchConcurrency int
	// Timeout bounds one Resolve call when the caller sets no deadline
	Timeout time.Duration
}

// Resolver runs the full resolution pipeline
type Resolver struct {
	normalizer *normalize.Normalizer
	overrides  *override.Table
	matcher    *matcher.Matcher
	searcher   *searcher.Searcher
	scorer     *scorer.Scorer
	arbiter    *arbiter.Arbiter
	recorder   *recorder.Recorder
	logger     *zap.Logger

	embedding        bool
	batchConcurrency int
	timeout          time.Duration
}

// New wires a Resolver
func New(deps Deps, opts Options) (*Resolver, error) {
	if deps.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	overrides := deps.Overrides
	if overrides == nil {
		var err error
		overrides, err = override.New(nil)
		if err != nil {
			return nil, err
		}
	}

	sc := scorer.Default()
	if opts.Scorer != nil {
		var err error
		sc, err = scorer.New(*opts.Scorer)
		if err != nil {
			return nil, err
		}
	}

	batch := opts.BatchConcurrency
	if batch <= 0 {
		batch = DefaultBatchConcurrency
	}

	return &Resolver{
		normalizer:       normalize.New(opts.OwnDomains),
		overrides:        overrides,
		matcher:          matcher.New(deps.Registry, logger.Named("matcher")),
		searcher:         searcher.NewSearcher(deps.Registry, deps.Embedder, opts.Searcher, logger.Named("searcher")),
		scorer:           sc,
		arbiter:          arbiter.New(deps.Oracle, opts.OracleTimeout, opts.OracleAttempts, logger.Named("arbiter")),
		recorder:         recorder.New(deps.Registry, opts.VerifyThreshold, logger.Named("recorder")),
		logger:           logger,
		embedding:        deps.Embedder != nil,
		batchConcurrency: batch,
		timeout:          opts.Timeout,
	}, nil
}

// Resolve matches q against the registry. The result is always well formed;
// the only error is a registry read failure wrapping types.ErrStorage, or
// the caller's context ending.
func (r *Resolver) Resolve(ctx context.Context, q types.Query) (*types.MatchResult, error) {
	start := time.Now()
	if _, ok := ctx.Deadline(); !ok && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	nq := r.normalizer.Normalize(q)
	result, err := r.resolve(ctx, &nq)
	if err != nil {
		r.logger.Warn("resolution failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	if id, ok := result.ID.Get(); ok {
		r.recorder.Record(ctx, id, result.Method, result.Confidence)
	}

	r.logger.Debug("resolved",
		zap.String("method", string(result.Method)),
		zap.String("id", result.ID.OrElse("")),
		zap.Float64("confidence", result.Confidence),
		zap.Strings("evidence", result.Evidence),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, nq *types.NormalizedQuery) (*types.MatchResult, error) {
	if !nq.Usable() {
		return types.Unmatched(nq, types.EvidenceNoUsableField), nil
	}

	// the sender's domain can qualify a rule even when the customer email is free-mail
	domains := []string{nq.Domain.OrElse("")}
	if sender, ok := nq.SenderEmail.Get(); ok {
		domains = append(domains, normalize.Domain(sender))
	}
	if rule, ok := r.overrides.Lookup(nq.Key.OrElse(""), domains...); ok {
		return &types.MatchResult{
			ID:           types.Some(rule.ID),
			Name:         types.Some(rule.Name),
			Confidence:   1.0,
			Method:       types.MethodOverride,
			Alternatives: []types.Alternative{},
			Evidence:     []string{types.EvidenceOverride},
		}, nil
	}

	pre, err := r.matchAndEmbed(ctx, nq)
	if err != nil {
		return nil, err
	}
	outcome, vector := pre.outcome, pre.vector

	if outcome.Unique() {
		e := outcome.Entries[0]
		return &types.MatchResult{
			ID:           types.Some(e.ID),
			Name:         types.Some(e.Name),
			Confidence:   1.0,
			Method:       types.MethodExact,
			Alternatives: []types.Alternative{},
			Evidence:     []string{outcome.Evidence()},
		}, nil
	}

	var evidence []string
	if r.embedding && pre.embedErr != nil {
		r.logger.Info("query embedding unavailable, continuing lexical only", zap.Error(pre.embedErr))
		evidence = append(evidence, types.EvidenceEmbeddingFailed)
	}

	var candidates []*types.Candidate
	if outcome.Ambiguous() {
		evidence = append(evidence, outcome.Evidence(), types.EvidenceExactAmbiguous)
		for _, e := range outcome.Entries {
			c := searcher.Annotate(nq, e, vector)
			c.Sources |= types.SourceExact
			candidates = append(candidates, c)
		}
	} else {
		resp, err := r.searcher.Retrieve(ctx, searcher.Request{Query: nq, Vector: vector})
		if err != nil {
			return nil, err
		}
		candidates = resp.Candidates
	}

	r.scorer.Rank(candidates)
	return r.decide(ctx, nq, candidates, evidence), nil
}

// preliminary holds the results of the concurrent first phase
type preliminary struct {
	outcome  *matcher.Outcome
	vector   []float32
	embedErr error
}

// matchAndEmbed runs the deterministic lookups and the query embedding
// concurrently. A unique exact hit cancels the embedding.
func (r *Resolver) matchAndEmbed(ctx context.Context, nq *types.NormalizedQuery) (*preliminary, error) {
	embedCtx, cancelEmbed := context.WithCancel(ctx)
	defer cancelEmbed()

	pre := &preliminary{}
	var g errgroup.Group
	if r.embedding {
		g.Go(func() error {
			pre.vector, pre.embedErr = r.searcher.EmbedQuery(embedCtx, nq)
			return nil
		})
	}
	g.Go(func() error {
		outcome, err := r.matcher.Match(ctx, nq)
		if err != nil || outcome.Unique() {
			cancelEmbed()
		}
		pre.outcome = outcome
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pre, nil
}

// decide applies the decision policy and arbitration to ranked candidates
func (r *Resolver) decide(ctx context.Context, nq *types.NormalizedQuery, ranked []*types.Candidate, evidence []string) *types.MatchResult {
	d := r.scorer.Decide(ranked)

	switch d.Action {
	case scorer.ActionNoMatch:
		return types.Unmatched(nq, append(evidence, types.EvidenceNoCandidates)...)

	case scorer.ActionAccept:
		return accepted(d.Top, ranked, d.Method, d.Confidence, append(evidence, scorer.Evidence(d.Top)...))

	case scorer.ActionArbitrate:
		sel, err := r.arbiter.Arbitrate(ctx, nq, d.Contenders)
		if err != nil {
			r.logger.Info("arbitration failed, using top candidate", zap.Error(err))
			return r.lowConfidence(d.Top, ranked, append(evidence, types.EvidenceArbitrationFailed))
		}
		id, ok := sel.ID.Get()
		if !ok {
			return r.lowConfidence(d.Top, ranked, append(evidence, types.EvidenceArbitrationAbstain))
		}
		chosen := d.Top
		for _, c := range d.Contenders {
			if c.Entry.ID == id {
				chosen = c
			}
		}
		tags := append(evidence, types.EvidenceArbitrated)
		return accepted(chosen, ranked, types.MethodArbitrated, chosen.Score, append(tags, scorer.Evidence(chosen)...))

	default:
		return r.lowConfidence(d.Top, ranked, evidence)
	}
}

func (r *Resolver) lowConfidence(top *types.Candidate, ranked []*types.Candidate, evidence []string) *types.MatchResult {
	tags := append(evidence, scorer.Evidence(top)...)
	res := accepted(top, ranked, types.MethodLowConfidence, r.scorer.LowConfidence(top.Score), append(tags, types.EvidenceNeedsReview))
	res.NeedsReview = true
	return res
}

func accepted(c *types.Candidate, ranked []*types.Candidate, method types.Method, confidence float64, evidence []string) *types.MatchResult {
	return &types.MatchResult{
		ID:           types.Some(c.Entry.ID),
		Name:         types.Some(c.Entry.Name),
		Confidence:   min(max(confidence, 0), 1),
		Method:       method,
		Alternatives: scorer.Alternatives(ranked, c.Entry.ID),
		Evidence:     evidence,
	}
}

// ResolveBatch resolves queries with bounded concurrency. Results are in
// query order. The first registry failure cancels the remaining work.
func (r *Resolver) ResolveBatch(ctx context.Context, queries []types.Query) ([]*types.MatchResult, error) {
	results := make([]*types.MatchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.Resolve(gctx, q)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Normalize exposes the normalized form of q, as Resolve would see it
func (r *Resolver) Normalize(q types.Query) types.NormalizedQuery {
	return r.normalizer.Normalize(q)
}
