package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/entityres/internal/indexer"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		batchSize int
		reembed   bool
	)
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import registry entries from a JSON lines file",
		Long: `Upsert registry entries, one JSON object per line. Reads stdin when the
file is omitted or "-". Entries whose canonical text changed lose their
embedding until the next reembed; pass --reembed to refresh immediately.`,
		Example: `  entityres import customers.jsonl --reembed`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := &indexer.Config{BatchSize: batchSize}
			stats, err := a.indexer.Import(ctx, r, cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "imported %d entries (%d failed, %d embeddings invalidated) in %s\n",
				stats.EntriesImported, stats.EntriesFailed, stats.EmbeddingsInvalidated, stats.Duration)
			printErrors(out, stats.ErrorMessages)

			if !reembed {
				return nil
			}
			stats, err = a.indexer.Reembed(ctx, cfg)
			if err != nil {
				return err
			}
			printReembed(out, stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "entries per transaction (default 50)")
	cmd.Flags().BoolVar(&reembed, "reembed", false, "refresh stale embeddings after importing")
	return cmd
}

func newReembedCmd(opts *rootOptions) *cobra.Command {
	var cfg indexer.Config
	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Generate embeddings for entries that lack a current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.indexer.Reembed(ctx, &cfg)
			if err != nil {
				return err
			}
			printReembed(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Workers, "workers", 0, "concurrent embedding calls (default NumCPU)")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 0, "texts per embedding call (default 50)")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print registry statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.store.GetStatus(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Schema version:      %s\n", st.SchemaVersion)
			_, _ = fmt.Fprintf(out, "Build mode:          %s\n", st.BuildMode)
			_, _ = fmt.Fprintf(out, "Entries:             %d (%d active)\n", st.EntriesCount, st.ActiveCount)
			_, _ = fmt.Fprintf(out, "Embeddings:          %d (%d stale)\n", st.EmbeddingsCount, st.StaleCount)
			_, _ = fmt.Fprintf(out, "Verified entries:    %d\n", st.VerifiedCount)
			_, _ = fmt.Fprintf(out, "Verification events: %d\n", st.VerificationEvents)
			_, _ = fmt.Fprintf(out, "Database size:       %.2f MB\n", st.SizeMB)
			if a.embedder != nil {
				_, _ = fmt.Fprintf(out, "Embedder:            %s/%s\n", a.embedder.Provider(), a.embedder.Model())
			} else {
				_, _ = fmt.Fprintln(out, "Embedder:            none")
			}
			return nil
		},
	}
}

func printReembed(out io.Writer, stats *indexer.Statistics) {
	_, _ = fmt.Fprintf(out, "created %d embeddings (%d failed) in %s\n",
		stats.EmbeddingsCreated, stats.EmbeddingsFailed, stats.Duration)
	printErrors(out, stats.ErrorMessages)
}

func printErrors(out io.Writer, msgs []string) {
	const shown = 10
	for _, m := range msgs[:min(len(msgs), shown)] {
		_, _ = fmt.Fprintf(out, "  %s\n", m)
	}
	if len(msgs) > shown {
		_, _ = fmt.Fprintf(out, "  ... and %d more\n", len(msgs)-shown)
	}
}
