package extract

import (
	"context"
	"os"

	"github.com/standardbeagle/symgraph/internal/config"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
	"github.com/standardbeagle/symgraph/internal/lsp"
	"github.com/standardbeagle/symgraph/internal/types"
	"github.com/standardbeagle/symgraph/pkg/pathutil"
)

// ClientPool is the slice of the language-server pool the strategies
// need. *lsp.Pool satisfies it; tests substitute fakes.
type ClientPool interface {
	Do(ctx context.Context, language string, fn func(*lsp.Client) error) error
}

// PrimaryStrategy opens one file in a pooled client and requests its
// hierarchical symbol tree.
type PrimaryStrategy struct {
	pool     ClientPool
	adapters []config.Adapter
	rootDir  string
}

// NewPrimaryStrategy builds the documentSymbol strategy.
func NewPrimaryStrategy(deps Deps) *PrimaryStrategy {
	return &PrimaryStrategy{pool: deps.Pool, adapters: deps.Adapters, rootDir: deps.RootDir}
}

func (s *PrimaryStrategy) Name() string  { return "primary-file" }
func (s *PrimaryStrategy) Priority() int { return PriorityPrimary }

func (s *PrimaryStrategy) Supports(file string) bool {
	return config.AdapterForFile(s.adapters, file) != nil
}

func (s *PrimaryStrategy) Extract(ctx context.Context, file string) (*types.ExtractionResult, error) {
	language := config.LanguageForFile(s.adapters, file)
	absPath := pathutil.ToAbsolute(file, s.rootDir)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, sgerrors.NewFileError("read", file, err)
	}

	var symbols []*types.Symbol
	var edges []types.Edge
	err = s.pool.Do(ctx, language, func(c *lsp.Client) error {
		if err := c.DidOpen(absPath, string(content)); err != nil {
			return err
		}
		tree, flat, err := c.DocumentSymbols(ctx, absPath)
		if err != nil {
			return err
		}
		if len(tree) > 0 {
			symbols, edges = fromDocumentSymbols(file, language, tree)
		} else {
			symbols, edges = fromSymbolInformation(file, language, flat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &types.ExtractionResult{
		File:    file,
		Symbols: symbols,
		Edges:   edges,
		Source:  types.SourcePrimary,
	}, nil
}

// relPathFromURI maps a server-reported URI back into the project.
func relPathFromURI(uri, rootDir string) string {
	return pathutil.ToRelative(lsp.URIToPath(uri), rootDir)
}
