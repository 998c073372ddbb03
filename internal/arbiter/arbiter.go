package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/internal/retry"
	"github.com/dshills/entityres/pkg/types"
)

const (
	// MaxCandidates is the most candidates ever shown to the oracle
	MaxCandidates = 3
	// DefaultTimeout bounds one oracle call
	DefaultTimeout = 20 * time.Second
	// DefaultAttempts is the number of oracle calls before giving up
	DefaultAttempts = 2
)

const systemPrompt = `You are a data steward matching a business reference to a registry record.

You are given one QUERY and a short list of CANDIDATES. Choose the single candidate that
refers to the same organization or person as the query, or abstain if none clearly does.

Rules:
- selected_id must be copied exactly from a candidate "id", or be "NONE".
- Never invent an identifier. Never choose a record that is not in the list.
- Prefer abstaining over guessing.

Respond with JSON only, no prose, in exactly this shape:
{"selected_id": "<candidate id or NONE>", "rationale": "<one short sentence>"}`

// Selection is the outcome of a successful arbitration. ID is absent when
// the oracle abstained or named an identifier outside the candidates.
type Selection struct {
	ID        types.Optional[string]
	Rationale string
	// Rejected holds an identifier the oracle returned that was not a candidate
	Rejected string
}

// Arbiter asks an oracle to choose among a few ambiguous candidates
type Arbiter struct {
	oracle  Oracle
	timeout time.Duration
	retry   retry.Config
	logger  *zap.Logger
}

// New creates an Arbiter. Non-positive timeout or attempts select the
// defaults.
func New(oracle Oracle, timeout time.Duration, attempts int, logger *zap.Logger) *Arbiter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := retry.Default()
	cfg.MaxAttempts = attempts
	cfg.BaseDelay = 200 * time.Millisecond
	return &Arbiter{oracle: oracle, timeout: timeout, retry: cfg, logger: logger}
}

// Arbitrate presents nq and at most MaxCandidates candidates to the oracle.
// Calls that fail, time out or keep returning malformed replies return an
// error wrapping types.ErrOracle. The oracle can never select an entry
// outside candidates.
func (a *Arbiter) Arbitrate(ctx context.Context, nq *types.NormalizedQuery, candidates []*types.Candidate) (*Selection, error) {
	if a == nil || a.oracle == nil {
		return nil, fmt.Errorf("%w: no oracle configured", types.ErrOracle)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to arbitrate", types.ErrOracle)
	}
	candidates = candidates[:min(len(candidates), MaxCandidates)]

	prompt, err := buildPrompt(nq, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrOracle, err)
	}

	verdict, err := retry.Do(ctx, a.retry, func(ctx context.Context) (*Verdict, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		reply, err := a.oracle.Complete(callCtx, systemPrompt, prompt)
		if err != nil {
			return nil, err
		}
		v, err := ParseVerdict(reply)
		if err != nil {
			a.logger.Warn("rejecting arbitration reply", zap.Error(err))
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrOracle, err)
	}

	sel := &Selection{Rationale: verdict.Rationale}
	if verdict.Abstained() {
		return sel, nil
	}
	for _, c := range candidates {
		if c.Entry.ID == verdict.SelectedID {
			sel.ID = types.Some(c.Entry.ID)
			return sel, nil
		}
	}

	a.logger.Warn("oracle selected an identifier outside the candidates",
		zap.String("selected_id", verdict.SelectedID))
	sel.Rejected = verdict.SelectedID
	return sel, nil
}

// promptCandidate is the projection of an entry shown to the oracle
type promptCandidate struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Email   string   `json:"email,omitempty"`
	Domain  string   `json:"domain,omitempty"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Score   float64  `json:"score"`
}

type promptQuery struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Sender   string `json:"sender_email,omitempty"`
	Domain   string `json:"domain,omitempty"`
	JobTitle string `json:"job_title,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

func buildPrompt(nq *types.NormalizedQuery, candidates []*types.Candidate) (string, error) {
	payload := struct {
		Query      promptQuery       `json:"query"`
		Candidates []promptCandidate `json:"candidates"`
	}{
		Query: promptQuery{
			Name:     nq.Name.OrElse(""),
			Email:    nq.Email.OrElse(""),
			Sender:   nq.SenderEmail.OrElse(""),
			Domain:   nq.Domain.OrElse(""),
			JobTitle: nq.JobTitle.OrElse(""),
			City:     nq.City.OrElse(""),
			State:    nq.State.OrElse(""),
			Phone:    nq.Phone.OrElse(""),
		},
	}
	for _, c := range candidates {
		e := c.Entry
		email := normalize.Email(e.Email)
		payload.Candidates = append(payload.Candidates, promptCandidate{
			ID:      e.ID,
			Name:    e.Name,
			Aliases: e.Aliases,
			Email:   email,
			Domain:  normalize.Domain(email),
			City:    e.Address.City,
			State:   e.Address.State,
			Phone:   e.Phone,
			Score:   c.Score,
		})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return "QUERY AND CANDIDATES:\n" + string(data), nil
}
