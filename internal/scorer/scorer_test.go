package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityres/pkg/types"
)

func candidate(id string, score float64) *types.Candidate {
	return &types.Candidate{
		Entry:     &types.Entry{ID: id, Name: "Entry " + id},
		Score:     score,
		HasCosine: true,
		Sources:   types.SourceVector,
	}
}

func TestScore(t *testing.T) {
	s := Default()

	tests := []struct {
		name string
		c    types.Candidate
		want float64
	}{
		{"CosineOnly", types.Candidate{HasCosine: true, CosineSim: 0.9}, 0.54},
		{"LexicalBaseline", types.Candidate{}, 0.30},
		{"EmailAndName", types.Candidate{HasCosine: true, CosineSim: 1, EmailMatch: true, NameMatch: true}, 0.90},
		{"DomainIgnoredWithEmail", types.Candidate{HasCosine: true, CosineSim: 1, EmailMatch: true, DomainMatch: true}, 0.85},
		{"DomainWithoutEmail", types.Candidate{HasCosine: true, CosineSim: 0.5, DomainMatch: true}, 0.40},
		{"LexicalWithName", types.Candidate{NameMatch: true}, 0.35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(&tt.c), 1e-9)
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	s := Default()
	partial := types.Candidate{NameMatch: true, LexicalSim: 0.6}
	withEmail := partial
	withEmail.EmailMatch = true

	assert.Greater(t, s.Score(&withEmail), s.Score(&partial))

	withDomain := partial
	withDomain.DomainMatch = true
	assert.Greater(t, s.Score(&withDomain), s.Score(&partial))
	assert.Greater(t, s.Score(&withEmail), s.Score(&withDomain))
}

func TestRank(t *testing.T) {
	s := Default()
	cands := []*types.Candidate{
		{Entry: &types.Entry{ID: "b"}},
		{Entry: &types.Entry{ID: "c"}, HasCosine: true, CosineSim: 0.9},
		{Entry: &types.Entry{ID: "a"}},
	}
	s.Rank(cands)

	assert.Equal(t, "c", cands[0].Entry.ID)
	assert.Equal(t, "a", cands[1].Entry.ID, "ties sort by ID")
	assert.Equal(t, "b", cands[2].Entry.ID)
	assert.InDelta(t, 0.54, cands[0].Score, 1e-9)
}

func TestDecide(t *testing.T) {
	s := Default()

	t.Run("AutoAccept", func(t *testing.T) {
		d := s.Decide([]*types.Candidate{candidate("a", 0.91), candidate("b", 0.84)})
		assert.Equal(t, ActionAccept, d.Action)
		assert.Equal(t, "a", d.Top.Entry.ID)
		assert.Equal(t, types.MethodVector, d.Method)
		assert.InDelta(t, 0.91, d.Confidence, 1e-9)
		assert.InDelta(t, 0.07, d.Margin, 1e-9)
		assert.Empty(t, d.Contenders)
	})

	t.Run("MarginExactlyAtThresholdAccepts", func(t *testing.T) {
		// 0.95 - 0.92 is 0.029999999999999916 in float64
		d := s.Decide([]*types.Candidate{candidate("a", 0.95), candidate("b", 0.92)})
		assert.Equal(t, ActionAccept, d.Action)
		assert.Equal(t, "a", d.Top.Entry.ID)
	})

	t.Run("ScoreExactlyAtThresholds", func(t *testing.T) {
		d := s.Decide([]*types.Candidate{candidate("a", 0.85), candidate("b", 0.82)})
		assert.Equal(t, ActionAccept, d.Action)

		d = s.Decide([]*types.Candidate{candidate("a", 0.75), candidate("b", 0.74)})
		assert.Equal(t, ActionArbitrate, d.Action)
	})

	t.Run("AcceptLexical", func(t *testing.T) {
		top := candidate("a", 0.9)
		top.HasCosine = false
		top.Sources = types.SourceLexical
		d := s.Decide([]*types.Candidate{top})
		assert.Equal(t, ActionAccept, d.Action)
		assert.Equal(t, types.MethodLexical, d.Method)
	})

	t.Run("NarrowMarginArbitrates", func(t *testing.T) {
		ranked := []*types.Candidate{candidate("a", 0.80), candidate("b", 0.79)}
		d := s.Decide(ranked)
		assert.Equal(t, ActionArbitrate, d.Action)
		require.Len(t, d.Contenders, 2)
		assert.Equal(t, "a", d.Contenders[0].Entry.ID)
		assert.Equal(t, "b", d.Contenders[1].Entry.ID)
	})

	t.Run("HighScoreNarrowMarginArbitrates", func(t *testing.T) {
		d := s.Decide([]*types.Candidate{candidate("a", 0.90), candidate("b", 0.89)})
		assert.Equal(t, ActionArbitrate, d.Action)
	})

	t.Run("ArbitratesAtMostThree", func(t *testing.T) {
		ranked := []*types.Candidate{
			candidate("a", 0.80), candidate("b", 0.79), candidate("c", 0.78), candidate("d", 0.77),
		}
		d := s.Decide(ranked)
		assert.Equal(t, ActionArbitrate, d.Action)
		assert.Len(t, d.Contenders, 3)
	})

	t.Run("SingleAmbiguousCandidateIsLowConfidence", func(t *testing.T) {
		d := s.Decide([]*types.Candidate{candidate("a", 0.80)})
		assert.Equal(t, ActionLowConfidence, d.Action)
		assert.Equal(t, types.MethodLowConfidence, d.Method)
		assert.InDelta(t, 0.65, d.Confidence, 1e-9)
	})

	t.Run("WeakCandidateFloored", func(t *testing.T) {
		d := s.Decide([]*types.Candidate{candidate("a", 0.12), candidate("b", 0.1)})
		assert.Equal(t, ActionLowConfidence, d.Action)
		assert.InDelta(t, 0.30, d.Confidence, 1e-9)
	})

	t.Run("NoCandidates", func(t *testing.T) {
		d := s.Decide(nil)
		assert.Equal(t, ActionNoMatch, d.Action)
		assert.Equal(t, types.MethodUnmatched, d.Method)
		assert.Nil(t, d.Top)
	})
}

func TestNew(t *testing.T) {
	_, err := New(DefaultConfig())
	require.NoError(t, err)

	bad := DefaultConfig()
	bad.Thresholds.Arbitrate = 0.9
	_, err = New(bad)
	assert.Error(t, err)

	bad = DefaultConfig()
	bad.ArbitrationSize = 1
	_, err = New(bad)
	assert.Error(t, err)
}

func TestAlternativesAndEvidence(t *testing.T) {
	ranked := []*types.Candidate{candidate("a", 0.9), candidate("b", 0.5)}
	alts := Alternatives(ranked, "a")
	require.Len(t, alts, 1)
	assert.Equal(t, types.Alternative{ID: "b", Name: "Entry b", Score: 0.5}, alts[0])

	tags := Evidence(&types.Candidate{EmailMatch: true, NameMatch: true})
	assert.Equal(t, []string{types.EvidenceEmailMatch, types.EvidenceNameMatch, types.EvidenceLexicalOnly}, tags)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "arbitrate", ActionArbitrate.String())
	assert.Equal(t, "no-match", ActionNoMatch.String())
}
