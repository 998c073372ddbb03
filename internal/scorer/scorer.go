package scorer

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/entityres/pkg/types"
)

// Weights of the composite score. They sum to 1.
type Weights struct {
	Cosine float64 `mapstructure:"cosine" validate:"gte=0,lte=1"`
	Email  float64 `mapstructure:"email" validate:"gte=0,lte=1"`
	Domain float64 `mapstructure:"domain" validate:"gte=0,lte=1"`
	Name   float64 `mapstructure:"name" validate:"gte=0,lte=1"`
}

// Thresholds of the decision policy
type Thresholds struct {
	Accept    float64 `mapstructure:"accept" validate:"gt=0,lte=1"`
	Margin    float64 `mapstructure:"margin" validate:"gte=0,lte=1"`
	Arbitrate float64 `mapstructure:"arbitrate" validate:"gt=0,lte=1,ltefield=Accept"`
	// Floor and Ceiling bound the confidence of low-confidence accepts
	Floor   float64 `mapstructure:"floor" validate:"gte=0,lte=1"`
	Ceiling float64 `mapstructure:"ceiling" validate:"gte=0,lte=1,gtefield=Floor"`
}

// Config configures a Scorer
type Config struct {
	Weights    Weights    `mapstructure:"weights"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	// LexicalBaseline replaces the cosine of candidates without one
	LexicalBaseline float64 `mapstructure:"lexical_baseline" validate:"gte=0,lte=1"`
	// ArbitrationSize is the number of top candidates sent to arbitration
	ArbitrationSize int `mapstructure:"arbitration_size" validate:"gte=2,lte=10"`
}

// DefaultConfig returns the canonical weights and thresholds
func DefaultConfig() Config {
	return Config{
		Weights: Weights{Cosine: 0.60, Email: 0.25, Domain: 0.10, Name: 0.05},
		Thresholds: Thresholds{
			Accept:    0.85,
			Margin:    0.03,
			Arbitrate: 0.75,
			Floor:     0.30,
			Ceiling:   0.65,
		},
		LexicalBaseline: 0.5,
		ArbitrationSize: 3,
	}
}

var validate = validator.New()

// Action is what the decision policy chose
type Action int

const (
	ActionNoMatch Action = iota
	ActionAccept
	ActionArbitrate
	ActionLowConfidence
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionArbitrate:
		return "arbitrate"
	case ActionLowConfidence:
		return "low-confidence"
	default:
		return "no-match"
	}
}

// Decision is the outcome of the decision policy over ranked candidates
type Decision struct {
	Action Action
	// Top is the highest scored candidate, nil for ActionNoMatch
	Top    *types.Candidate
	Margin float64
	// Method and Confidence apply to ActionAccept and ActionLowConfidence
	Method     types.Method
	Confidence float64
	// Contenders are the candidates handed to arbitration
	Contenders []*types.Candidate
}

// Scorer assigns composite scores and applies the decision policy
type Scorer struct {
	cfg Config
}

// New creates a Scorer from a validated config
func New(cfg Config) (*Scorer, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid scorer config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// Default returns a Scorer with DefaultConfig
func Default() *Scorer {
	return &Scorer{cfg: DefaultConfig()}
}

// Config returns the scorer configuration
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score computes the composite score of c
func (s *Scorer) Score(c *types.Candidate) float64 {
	w := s.cfg.Weights

	cos := s.cfg.LexicalBaseline
	if c.HasCosine {
		cos = c.CosineSim
	}

	score := w.Cosine * cos
	if c.EmailMatch {
		score += w.Email
	} else if c.DomainMatch {
		score += w.Domain
	}
	if c.NameMatch {
		score += w.Name
	}
	return min(max(score, 0), 1)
}

// Rank scores every candidate and sorts them by score descending, ties
// by entry ID
func (s *Scorer) Rank(candidates []*types.Candidate) {
	for _, c := range candidates {
		c.Score = s.Score(c)
	}
	sortCandidates(candidates)
}

// Decide applies the decision policy to candidates already sorted by Rank
func (s *Scorer) Decide(ranked []*types.Candidate) Decision {
	if len(ranked) == 0 {
		return Decision{Action: ActionNoMatch, Method: types.MethodUnmatched}
	}

	t := s.cfg.Thresholds
	top := ranked[0]
	second := 0.0
	if len(ranked) > 1 {
		second = ranked[1].Score
	}
	d := Decision{Top: top, Margin: top.Score - second}

	switch {
	case atLeast(top.Score, t.Accept) && atLeast(d.Margin, t.Margin):
		d.Action = ActionAccept
		d.Method = acceptMethod(top)
		d.Confidence = top.Score
	case atLeast(top.Score, t.Arbitrate) && len(ranked) >= 2:
		d.Action = ActionArbitrate
		d.Contenders = ranked[:min(s.cfg.ArbitrationSize, len(ranked))]
	default:
		d.Action = ActionLowConfidence
		d.Method = types.MethodLowConfidence
		d.Confidence = s.LowConfidence(top.Score)
	}
	return d
}

// epsilon absorbs float rounding so that a score or margin landing exactly
// on a threshold counts as reaching it
const epsilon = 1e-9

func atLeast(v, threshold float64) bool {
	return v >= threshold-epsilon
}

// LowConfidence maps a score to the reduced confidence of an accept that
// needs review
func (s *Scorer) LowConfidence(score float64) float64 {
	t := s.cfg.Thresholds
	return min(max(score, t.Floor), t.Ceiling)
}

// acceptMethod is vector when a real cosine drove the score, otherwise the
// candidate only ever had lexical evidence
func acceptMethod(c *types.Candidate) types.Method {
	if c.HasCosine {
		return types.MethodVector
	}
	return types.MethodLexical
}

func sortCandidates(candidates []*types.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Entry.ID < candidates[j].Entry.ID
	})
}

// Alternatives lists the candidates other than selectedID
func Alternatives(ranked []*types.Candidate, selectedID string) []types.Alternative {
	alts := make([]types.Alternative, 0, len(ranked))
	for _, c := range ranked {
		if c.Entry.ID == selectedID {
			continue
		}
		alts = append(alts, types.Alternative{ID: c.Entry.ID, Name: c.Entry.Name, Score: c.Score})
	}
	return alts
}

// Evidence returns the signal tags of c
func Evidence(c *types.Candidate) []string {
	var tags []string
	if c.EmailMatch {
		tags = append(tags, types.EvidenceEmailMatch)
	}
	if c.DomainMatch {
		tags = append(tags, types.EvidenceDomainMatch)
	}
	if c.NameMatch {
		tags = append(tags, types.EvidenceNameMatch)
	}
	if !c.HasCosine {
		tags = append(tags, types.EvidenceLexicalOnly)
	}
	return tags
}
