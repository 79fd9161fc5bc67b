package extract

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/debug"
	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/lsp"
	"github.com/standardbeagle/symgraph/internal/types"
	"github.com/standardbeagle/symgraph/pkg/pathutil"
)

// RelationCollector runs the second extraction pass: for every symbol
// of a file whose symbol set changed, ask the language server for
// references, call-hierarchy items, type definitions and
// implementations, and translate them into edges. Edges are buffered
// and only committed once both endpoints are known; buffers whose
// target never materializes are discarded at the end of the cycle.
type RelationCollector struct {
	pool        ClientPool
	adapters    []config.Adapter
	rootDir     string
	parallelism int
}

// NewRelationCollector builds a collector; parallelism<=0 means serial.
func NewRelationCollector(deps Deps, parallelism int) *RelationCollector {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &RelationCollector{
		pool:        deps.Pool,
		adapters:    deps.Adapters,
		rootDir:     deps.RootDir,
		parallelism: parallelism,
	}
}

// edgeBuffer accumulates candidate edges until resolution.
type edgeBuffer struct {
	mu    sync.Mutex
	edges []types.Edge
}

func (b *edgeBuffer) add(e types.Edge) {
	b.mu.Lock()
	b.edges = append(b.edges, e)
	b.mu.Unlock()
}

// Collect gathers relation edges for the given files against the
// current graph. Language-server failures degrade to fewer edges, never
// to an error: a file with no reachable server simply contributes none.
func (rc *RelationCollector) Collect(ctx context.Context, g *graph.Graph, files []string) []types.Edge {
	if rc.pool == nil || len(files) == 0 {
		return nil
	}

	buffer := &edgeBuffer{}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(rc.parallelism)
	for _, file := range files {
		eg.Go(func() error {
			rc.collectFile(egCtx, g, file, buffer)
			return nil // per-file problems never abort the pass
		})
	}
	_ = eg.Wait()

	// Resolve: keep only edges whose endpoints both exist now.
	resolved := make([]types.Edge, 0, len(buffer.edges))
	dropped := 0
	for _, e := range buffer.edges {
		if e.Src == e.Dst {
			continue
		}
		if g.Has(e.Src) && g.Has(e.Dst) {
			resolved = append(resolved, e)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		debug.Verbosef("RELATIONS", "discarded %d buffered edges with missing endpoints", dropped)
	}
	return resolved
}

func (rc *RelationCollector) collectFile(ctx context.Context, g *graph.Graph, file string, buffer *edgeBuffer) {
	language := config.LanguageForFile(rc.adapters, file)
	if language == "" {
		return
	}
	absPath := pathutil.ToAbsolute(file, rc.rootDir)

	for _, sym := range g.SymbolsIn(file) {
		if ctx.Err() != nil {
			return
		}
		pos := lsp.Position{
			Line:      sym.SelectionRange.Start.Line - 1,
			Character: sym.SelectionRange.Start.Column - 1,
		}

		rc.collectReferences(ctx, g, language, absPath, pos, sym, buffer)

		switch sym.Kind {
		case types.KindFunction, types.KindMethod:
			rc.collectCalls(ctx, g, language, absPath, pos, sym, buffer)
		case types.KindVariable, types.KindField, types.KindConstant, types.KindParameter:
			rc.collectTypeOf(ctx, g, language, absPath, pos, sym, buffer)
		case types.KindInterface:
			rc.collectImplementations(ctx, g, language, absPath, pos, sym, buffer)
		}
	}
}

func (rc *RelationCollector) collectReferences(ctx context.Context, g *graph.Graph, language, absPath string, pos lsp.Position, sym *types.Symbol, buffer *edgeBuffer) {
	var locations []lsp.Location
	err := rc.pool.Do(ctx, language, func(c *lsp.Client) error {
		locs, err := c.References(ctx, absPath, pos, false)
		if err != nil {
			return err
		}
		locations = locs
		return nil
	})
	if err != nil {
		return
	}
	for _, loc := range locations {
		rel := relPathFromURI(loc.URI, rc.rootDir)
		at := types.Position{Line: loc.Range.Start.Line + 1, Column: loc.Range.Start.Character + 1}
		if referrer := g.FindByPosition(rel, at); referrer != nil && referrer.ID != sym.ID {
			buffer.add(types.Edge{Src: referrer.ID, Dst: sym.ID, Kind: types.EdgeReferences})
		}
	}
}

func (rc *RelationCollector) collectCalls(ctx context.Context, g *graph.Graph, language, absPath string, pos lsp.Position, sym *types.Symbol, buffer *edgeBuffer) {
	err := rc.pool.Do(ctx, language, func(c *lsp.Client) error {
		items, err := c.PrepareCallHierarchy(ctx, absPath, pos)
		if err != nil {
			return err
		}
		for _, item := range items {
			outgoing, err := c.OutgoingCalls(ctx, item)
			if err != nil {
				return err
			}
			for _, call := range outgoing {
				rel := relPathFromURI(call.To.URI, rc.rootDir)
				at := types.Position{
					Line:   call.To.SelectionRange.Start.Line + 1,
					Column: call.To.SelectionRange.Start.Character + 1,
				}
				if callee := g.FindByPosition(rel, at); callee != nil {
					buffer.add(types.Edge{Src: sym.ID, Dst: callee.ID, Kind: types.EdgeCalls})
				}
			}
		}
		return nil
	})
	_ = err
}

func (rc *RelationCollector) collectTypeOf(ctx context.Context, g *graph.Graph, language, absPath string, pos lsp.Position, sym *types.Symbol, buffer *edgeBuffer) {
	err := rc.pool.Do(ctx, language, func(c *lsp.Client) error {
		locations, err := c.TypeDefinition(ctx, absPath, pos)
		if err != nil {
			return err
		}
		for _, loc := range locations {
			rel := relPathFromURI(loc.URI, rc.rootDir)
			at := types.Position{Line: loc.Range.Start.Line + 1, Column: loc.Range.Start.Character + 1}
			if typeSym := g.FindByPosition(rel, at); typeSym != nil {
				buffer.add(types.Edge{Src: sym.ID, Dst: typeSym.ID, Kind: types.EdgeHasType})
			}
		}
		return nil
	})
	_ = err
}

func (rc *RelationCollector) collectImplementations(ctx context.Context, g *graph.Graph, language, absPath string, pos lsp.Position, sym *types.Symbol, buffer *edgeBuffer) {
	err := rc.pool.Do(ctx, language, func(c *lsp.Client) error {
		locations, err := c.Implementation(ctx, absPath, pos)
		if err != nil {
			return err
		}
		for _, loc := range locations {
			rel := relPathFromURI(loc.URI, rc.rootDir)
			at := types.Position{Line: loc.Range.Start.Line + 1, Column: loc.Range.Start.Character + 1}
			if impl := g.FindByPosition(rel, at); impl != nil {
				buffer.add(types.Edge{Src: impl.ID, Dst: sym.ID, Kind: types.EdgeImplements})
			}
		}
		return nil
	})
	_ = err
}
