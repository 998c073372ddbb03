package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/arbiter"
	"github.com/dshills/entityres/internal/config"
	"github.com/dshills/entityres/internal/embedder"
	"github.com/dshills/entityres/internal/indexer"
	"github.com/dshills/entityres/internal/logging"
	"github.com/dshills/entityres/internal/override"
	"github.com/dshills/entityres/internal/regcache"
	"github.com/dshills/entityres/internal/resolver"
	"github.com/dshills/entityres/internal/storage"
)

type rootOptions struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "entityres",
		Short: "Resolve free-form customer and supplier references to registry IDs",
		Long: `entityres matches the names, emails and IDs found in inbound orders against
a registry of known customers and suppliers. It combines exact lookups,
curated overrides, lexical and vector retrieval, and an optional LLM
arbiter for close calls.`,
		Version:      fmt.Sprintf("%s (built %s, %s/%s)", version, buildTime, storage.BuildMode, storage.DriverName),
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "config file (default ./entityres.yaml or ~/.entityres/entityres.yaml)")
	flags.String("db", "", "registry database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = opts.v.BindPFlag("database.path", flags.Lookup("db"))
	_ = opts.v.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newServeCmd(opts),
		newResolveCmd(opts),
		newImportCmd(opts),
		newReembedCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

// app holds the wired components shared by every command
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *storage.SQLiteStorage
	registry storage.Registry
	cache    *regcache.Cache
	embedder embedder.Embedder
	resolver *resolver.Resolver
	indexer  *indexer.Indexer
}

// openApp loads configuration and wires storage, cache, embedder, oracle,
// resolver and indexer. The embedder is optional: a provider that cannot
// be built is logged and resolution continues lexically.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.v, opts.cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	if used := config.ConfigFileUsed(opts.v); used != "" {
		logger.Debug("loaded config", zap.String("file", used))
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: store, registry: store}
	if cfg.Cache.Size > 0 {
		a.cache = regcache.New(store, cfg.Cache.Size, cfg.Cache.TTL, logger.Named("regcache"))
		a.registry = a.cache
	}

	emb, err := embedder.New(ctx, cfg.Embedding)
	if err != nil {
		logger.Warn("embedder unavailable, vector retrieval disabled", zap.Error(err))
		emb = nil
	}
	a.embedder = emb

	oracle, err := arbiter.NewOracle(ctx, cfg.Oracle)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create oracle: %w", err)
	}

	overrides, err := override.Load(cfg.Resolver.OverridesFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.resolver, err = resolver.New(resolver.Deps{
		Registry:  a.registry,
		Embedder:  emb,
		Oracle:    oracle,
		Overrides: overrides,
		Logger:    logger.Named("resolver"),
	}, cfg.ResolverOptions())
	if err != nil {
		a.Close()
		return nil, err
	}

	var inv indexer.Invalidator
	if a.cache != nil {
		inv = a.cache
	}
	a.indexer = indexer.New(store, emb, inv, logger.Named("indexer"))
	return a, nil
}

// Close releases the embedder and the database
func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close registry", zap.Error(err))
	}
	_ = a.logger.Sync()
}
