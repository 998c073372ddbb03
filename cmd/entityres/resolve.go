package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/entityres/pkg/types"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		query string
		batch bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve queries and print match results as JSON",
		Long: `Resolve one query given with --query, or read queries from stdin.
With --batch, stdin holds one JSON query per line and one result per line
is printed in the same order.`,
		Example: `  entityres resolve --query '{"name":"Acme Promo","email":"orders@acme.com"}'
  entityres resolve --batch < queries.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			queries, err := readQueries(query, batch, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.resolver.ResolveBatch(ctx, queries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !batch {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results[0])
			}
			enc := json.NewEncoder(out)
			for _, r := range results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "query as a JSON object")
	cmd.Flags().BoolVar(&batch, "batch", false, "read one JSON query per line from stdin")
	return cmd
}

func readQueries(query string, batch bool, stdin io.Reader) ([]types.Query, error) {
	if query != "" {
		if batch {
			return nil, fmt.Errorf("--query and --batch are mutually exclusive")
		}
		q, err := decodeQuery([]byte(query))
		if err != nil {
			return nil, err
		}
		return []types.Query{q}, nil
	}

	if !batch {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		q, err := decodeQuery(data)
		if err != nil {
			return nil, err
		}
		return []types.Query{q}, nil
	}

	var queries []types.Query
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		q, err := decodeQuery(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		queries = append(queries, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries on stdin")
	}
	return queries, nil
}

func decodeQuery(data []byte) (types.Query, error) {
	var q types.Query
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return q, fmt.Errorf("invalid query: %w", err)
	}
	switch q.Kind {
	case "", types.KindCustomer, types.KindContact:
	default:
		return q, fmt.Errorf("invalid query: unknown kind %q", q.Kind)
	}
	return q, nil
}
