package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityres/pkg/types"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_ImportResolveStatus(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data", "registry.db")
	t.Setenv("ENTITYRES_EMBEDDING_PROVIDER", "local")
	t.Setenv("ENTITYRES_EMBEDDING_DIMENSION", "64")
	t.Setenv("ENTITYRES_LOG_LEVEL", "error")

	entries := filepath.Join(dir, "entries.jsonl")
	require.NoError(t, os.WriteFile(entries, []byte(
		`{"id":"C-1","kind":"customer","name":"Acme Promotional Products","email":"orders@acme.com"}
{"id":"C-2","kind":"customer","name":"Globex","email":"info@globex.com"}
not json
`), 0o600))

	out, err := runCLI(t, "", "import", entries, "--db", db, "--reembed")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 entries (1 failed")
	assert.Contains(t, out, "created 2 embeddings (0 failed)")

	out, err = runCLI(t, "", "resolve", "--db", db, "--query", `{"name":"ACME Promo","email":"Orders@Acme.com"}`)
	require.NoError(t, err)
	var got types.MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, types.Some("C-1"), got.ID)
	assert.Equal(t, types.MethodExact, got.Method)

	out, err = runCLI(t, `{"email":"info@globex.com"}

{}
`, "resolve", "--db", db, "--batch")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var first, second types.MatchResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, types.Some("C-2"), first.ID)
	assert.Equal(t, types.MethodUnmatched, second.Method)

	out, err = runCLI(t, "", "status", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries:             2 (2 active)")
	assert.Contains(t, out, "Embedder:            local/")
}

func TestReadQueries(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		batch   bool
		stdin   string
		want    int
		wantErr bool
	}{
		{"flag", `{"name":"Acme"}`, false, "", 1, false},
		{"stdin object", "", false, `{"email":"a@b.com"}`, 1, false},
		{"stdin lines", "", true, "{\"name\":\"a\"}\n\n{\"name\":\"b\"}\n", 2, false},
		{"flag and batch", `{"name":"Acme"}`, true, "", 0, true},
		{"unknown field", `{"company":"Acme"}`, false, "", 0, true},
		{"bad kind", `{"kind":"vendor"}`, false, "", 0, true},
		{"empty batch", "", true, "\n", 0, true},
		{"bad line", "", true, "{\"name\":\"a\"}\nnope\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readQueries(tt.query, tt.batch, strings.NewReader(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}
