package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symgraph/internal/cache"
	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/extract"
	"github.com/standardbeagle/symgraph/internal/gitx"
	"github.com/standardbeagle/symgraph/internal/indexer"
	"github.com/standardbeagle/symgraph/internal/lsp"
	"github.com/standardbeagle/symgraph/internal/store"
)

// app bundles everything one command invocation needs.
type app struct {
	cfg  *config.Config
	ix   *indexer.Indexer
	pool *lsp.Pool
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.ix != nil {
		_ = a.ix.Store().Close()
	}
}

// openApp loads configuration and wires the store, caches, pool,
// extraction pipeline and indexer together.
func openApp(c *cli.Context) (*app, error) {
	root := c.String("root")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = cwd
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if c.Bool("fallback-only") {
		cfg.Lsp.FallbackOnly = true
	}

	adapters, err := config.LoadAdapters(cfg.Project.Root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StoreFile()), 0o755); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreFile())
	if err != nil {
		return nil, err
	}

	caches := cache.New(cfg.Cache.L1Entries, cfg.ScratchDir(), cfg.Cache.L2MaxBytes)

	var pool *lsp.Pool
	deps := extract.Deps{Adapters: adapters, RootDir: cfg.Project.Root}
	if !cfg.Lsp.FallbackOnly {
		pool = lsp.NewPool(adapters, cfg.Project.Root, lsp.NewTimeoutPolicy(),
			cfg.Lsp.PoolSize, time.Duration(cfg.Lsp.MaxIdleMinutes)*time.Minute)
		deps.Pool = pool
	}

	pipeline := extract.NewPipeline(caches, extract.DefaultStrategies(deps, cfg.Lsp.FallbackOnly)...)
	var relations *extract.RelationCollector
	if deps.Pool != nil {
		relations = extract.NewRelationCollector(deps, cfg.EffectiveParallelism())
	}

	var lister gitx.Lister
	if provider, err := gitx.NewProvider(cfg.Project.Root); err == nil {
		lister = provider
	}

	ix, err := indexer.Open(indexer.Options{
		Config:    cfg,
		Adapters:  adapters,
		Store:     st,
		Pipeline:  pipeline,
		Relations: relations,
		Lister:    lister,
		Caches:    caches,
	})
	if err != nil {
		st.Close()
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &app{cfg: cfg, ix: ix, pool: pool}, nil
}

// parsePosition turns line/column argument strings into integers.
func parsePosition(lineArg, columnArg string) (int, int, error) {
	var line, column int
	if _, err := fmt.Sscanf(lineArg, "%d", &line); err != nil || line < 1 {
		return 0, 0, fmt.Errorf("invalid line %q", lineArg)
	}
	if _, err := fmt.Sscanf(columnArg, "%d", &column); err != nil || column < 1 {
		return 0, 0, fmt.Errorf("invalid column %q", columnArg)
	}
	return line, column, nil
}
