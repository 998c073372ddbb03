package arbiter

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityres/pkg/types"
)

// scriptedOracle replays replies in order, repeating the last one
type scriptedOracle struct {
	replies []string
	err     error
	calls   atomic.Int64
	lastMsg string
}

func (s *scriptedOracle) Complete(ctx context.Context, system, user string) (string, error) {
	n := int(s.calls.Add(1))
	s.lastMsg = user
	if s.err != nil {
		return "", s.err
	}
	return s.replies[min(n, len(s.replies))-1], nil
}

// slowOracle blocks until its context ends
type slowOracle struct{}

func (slowOracle) Complete(ctx context.Context, system, user string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func testCandidates() []*types.Candidate {
	return []*types.Candidate{
		{Entry: &types.Entry{ID: "C-1", Name: "Staples Inc", Email: "ap@staples.com"}, Score: 0.80},
		{Entry: &types.Entry{ID: "C-2", Name: "Staples Canada", Email: "ap@staples.ca"}, Score: 0.79},
	}
}

func testQuery() *types.NormalizedQuery {
	return &types.NormalizedQuery{
		Name:   types.Some("staples"),
		Email:  types.Some("buyer@staples.ca"),
		Domain: types.Some("staples.ca"),
	}
}

func TestArbitrate(t *testing.T) {
	tests := []struct {
		name         string
		replies      []string
		wantID       string
		wantRejected string
		wantCalls    int64
	}{
		{
			name:      "Selects",
			replies:   []string{`{"selected_id": "C-2", "rationale": "canadian domain"}`},
			wantID:    "C-2",
			wantCalls: 1,
		},
		{
			name:      "FencedReply",
			replies:   []string{"```json\n{\"selected_id\": \"C-1\", \"rationale\": \"name\"}\n```"},
			wantID:    "C-1",
			wantCalls: 1,
		},
		{
			name:      "Abstains",
			replies:   []string{`{"selected_id": "NONE", "rationale": "unclear"}`},
			wantCalls: 1,
		},
		{
			name:         "UnknownIDIsAbstention",
			replies:      []string{`{"selected_id": "C-999", "rationale": "hallucinated"}`},
			wantRejected: "C-999",
			wantCalls:    1,
		},
		{
			name: "RetriesMalformed",
			replies: []string{
				`I think it is C-2`,
				`{"selected_id": "C-2", "rationale": "domain"}`,
			},
			wantID:    "C-2",
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &scriptedOracle{replies: tt.replies}
			a := New(oracle, time.Second, 2, nil)

			sel, err := a.Arbitrate(context.Background(), testQuery(), testCandidates())
			require.NoError(t, err)

			id, ok := sel.ID.Get()
			assert.Equal(t, tt.wantID != "", ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantRejected, sel.Rejected)
			assert.Equal(t, tt.wantCalls, oracle.calls.Load())
		})
	}
}

func TestArbitrate_Failures(t *testing.T) {
	t.Run("AlwaysMalformed", func(t *testing.T) {
		oracle := &scriptedOracle{replies: []string{`{"selected_id": "C-1", "confidence": 0.9}`}}
		_, err := New(oracle, time.Second, 2, nil).Arbitrate(context.Background(), testQuery(), testCandidates())
		assert.ErrorIs(t, err, types.ErrOracle)
		assert.EqualValues(t, 2, oracle.calls.Load())
	})

	t.Run("OracleError", func(t *testing.T) {
		oracle := &scriptedOracle{err: errors.New("503 service unavailable")}
		_, err := New(oracle, time.Second, 1, nil).Arbitrate(context.Background(), testQuery(), testCandidates())
		assert.ErrorIs(t, err, types.ErrOracle)
	})

	t.Run("Timeout", func(t *testing.T) {
		start := time.Now()
		_, err := New(slowOracle{}, 20*time.Millisecond, 1, nil).Arbitrate(context.Background(), testQuery(), testCandidates())
		assert.ErrorIs(t, err, types.ErrOracle)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("NoOracle", func(t *testing.T) {
		_, err := New(nil, 0, 0, nil).Arbitrate(context.Background(), testQuery(), testCandidates())
		assert.ErrorIs(t, err, types.ErrOracle)
	})

	t.Run("NoCandidates", func(t *testing.T) {
		_, err := New(&scriptedOracle{}, 0, 0, nil).Arbitrate(context.Background(), testQuery(), nil)
		assert.ErrorIs(t, err, types.ErrOracle)
	})
}

func TestArbitrate_PromptShowsOnlyCandidates(t *testing.T) {
	cands := append(testCandidates(),
		&types.Candidate{Entry: &types.Entry{ID: "C-3", Name: "Third"}},
		&types.Candidate{Entry: &types.Entry{ID: "C-4", Name: "Fourth"}},
	)
	oracle := &scriptedOracle{replies: []string{`{"selected_id": "C-4", "rationale": "x"}`}}

	sel, err := New(oracle, time.Second, 1, nil).Arbitrate(context.Background(), testQuery(), cands)
	require.NoError(t, err)

	assert.Contains(t, oracle.lastMsg, `"C-3"`)
	assert.NotContains(t, oracle.lastMsg, `"C-4"`)
	assert.Contains(t, oracle.lastMsg, "staples.ca")
	assert.False(t, sel.ID.IsSome(), "fourth candidate was never offered")
	assert.Equal(t, "C-4", sel.Rejected)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Plain", `{"selected_id":"C-1","rationale":"r"}`, "C-1", false},
		{"Padded", "  {\"selected_id\":\" C-1 \"}  ", "C-1", false},
		{"Fenced", "```\n{\"selected_id\":\"NONE\",\"rationale\":\"\"}\n```", "NONE", false},
		{"UnknownField", `{"selected_id":"C-1","score":1}`, "", true},
		{"MissingID", `{"rationale":"r"}`, "", true},
		{"TrailingData", `{"selected_id":"C-1"} {"selected_id":"C-2"}`, "", true},
		{"Prose", `The answer is C-1`, "", true},
		{"WrongType", `{"selected_id": 12}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.SelectedID)
		})
	}
}

func TestVerdict_Abstained(t *testing.T) {
	assert.True(t, (&Verdict{SelectedID: "none"}).Abstained())
	assert.False(t, (&Verdict{SelectedID: "C-1"}).Abstained())
}

// fakeChatModel implements model.BaseChatModel
type fakeChatModel struct {
	reply    string
	err      error
	received []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.received = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func TestChatOracle(t *testing.T) {
	m := &fakeChatModel{reply: `{"selected_id":"C-1","rationale":"ok"}`}
	o := NewChatOracle(m)

	reply, err := o.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, m.reply, reply)
	require.Len(t, m.received, 2)
	assert.Equal(t, schema.System, m.received[0].Role)
	assert.Equal(t, schema.User, m.received[1].Role)

	m.err = errors.New("rate limited")
	_, err = o.Complete(context.Background(), "system", "user")
	assert.Error(t, err)
}

func TestNewOracle(t *testing.T) {
	o, err := NewOracle(context.Background(), OracleConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, o)

	_, err = NewOracle(context.Background(), OracleConfig{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewOracle(context.Background(), OracleConfig{Provider: "palm"})
	assert.True(t, err != nil && strings.Contains(err.Error(), "unsupported"))
}
