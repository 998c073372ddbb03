package override

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityres/internal/normalize"
)

const staplesRules = "testdata/staples.yaml"

func key(name string) string {
	return normalize.Key(normalize.Name(name))
}

func TestLoad_NoFileIsEmpty(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	_, ok := table.Lookup(key("Staples Promotional Products"), "staplespromo.com")
	assert.False(t, ok)
}

func TestLookup_QualifiedDivision(t *testing.T) {
	table, err := Load(staplesRules)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	tests := []struct {
		name    string
		query   string
		domains []string
		wantID  string
	}{
		{"qualified by name", "Staples Canada", nil, "CUST-STAPLES-CA"},
		{"qualified by domain suffix", "Staples", []string{"staples.ca"}, "CUST-STAPLES-CA"},
		{"domain only", "", []string{"staples.ca"}, "CUST-STAPLES-CA"},
		{"second domain qualifies", "Staples", []string{"gmail.com", "staples.ca"}, "CUST-STAPLES-CA"},
		{"unqualified name", "Staples", nil, "CUST-STAPLES"},
		{"unqualified with us domain", "STAPLES", []string{"staples.com"}, "CUST-STAPLES"},
		{"singular spelling", "Staple", nil, "CUST-STAPLES"},
		{"subdomain", "", []string{"orders.staples.com"}, "CUST-STAPLES"},
		{"domain case", "", []string{"Staples.COM"}, "CUST-STAPLES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := table.Lookup(key(tt.query), tt.domains...)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, rule.ID)
		})
	}
}

func TestLookup_NoMatch(t *testing.T) {
	table, err := Load(staplesRules)
	require.NoError(t, err)

	_, ok := table.Lookup(key("Acme Widgets"), "acme.com")
	assert.False(t, ok)

	_, ok = table.Lookup("")
	assert.False(t, ok)

	_, ok = table.Lookup("", "", "")
	assert.False(t, ok)

	// token must sit on word boundaries
	_, ok = table.Lookup(key("Staplesville Hardware"))
	assert.False(t, ok)

	// domain must match on label boundaries
	_, ok = table.Lookup("", "notstaples.com")
	assert.False(t, ok)
}

func TestLoad_FileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	doc := `
rules:
  - id: CUST-4IMPRINT
    name: 4imprint
    tokens: ["4 imprint", "4imprint"]
    domains: [4imprint.com]
  - id: CUST-STAPLES-HOUSE
    name: Staples (house account)
    tokens: [staples]
  - id: CUST-STAPLES
    name: Staples
    tokens: [staples]
  - id: CUST-STAPLES-CA
    name: Staples Canada
    tokens: [staples]
    qualifier:
      name_tokens: [canada]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len())

	rule, ok := table.Lookup(key("4 Imprint Inc"))
	require.True(t, ok)
	assert.Equal(t, "CUST-4IMPRINT", rule.ID)

	// first rule in file order wins within the unqualified group
	rule, ok = table.Lookup(key("Staples"))
	require.True(t, ok)
	assert.Equal(t, "CUST-STAPLES-HOUSE", rule.ID)

	// qualified rules are evaluated first regardless of file position
	rule, ok = table.Lookup(key("Staples Canada"))
	require.True(t, ok)
	assert.Equal(t, "CUST-STAPLES-CA", rule.ID)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New([]Rule{{Name: "missing id", Tokens: []string{"x"}}})
	assert.Error(t, err)

	_, err = New([]Rule{{ID: "X", Name: "no match keys"}})
	assert.ErrorIs(t, err, ErrEmptyRule)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("rules: [unterminated"))
	assert.Error(t, err)
}
