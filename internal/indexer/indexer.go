// Package indexer orchestrates the differential update cycle:
// detect -> extract -> mutate -> commit. The in-memory graph mutates
// through exactly one goroutine per cycle; the persisted store moves
// between complete states in single transactions.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/symgraph/internal/cache"
	"github.com/standardbeagle/symgraph/internal/config"
	"github.com/standardbeagle/symgraph/internal/debug"
	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
	"github.com/standardbeagle/symgraph/internal/extract"
	"github.com/standardbeagle/symgraph/internal/gitx"
	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/store"
	"github.com/standardbeagle/symgraph/internal/types"
)

// relation edge kinds the second pass owns. Rebuilding a changed file
// drops these around its symbols before re-collection; contains edges
// belong to the first pass and move with the symbols themselves.
var outgoingRelationKinds = []types.EdgeKind{types.EdgeCalls, types.EdgeHasType, types.EdgeReturnsType, types.EdgeTakesType}
var incomingRelationKinds = []types.EdgeKind{types.EdgeReferences, types.EdgeImplements}

// CycleStats summarizes one committed update cycle.
type CycleStats struct {
	FilesAdded     int
	FilesModified  int
	FilesDeleted   int
	FilesRenamed   int
	FilesUnchanged int
	SymbolsAdded   int
	SymbolsRemoved int
	EdgesAdded     int
	EdgesRemoved   int
	Duration       time.Duration
}

// Indexer owns the graph, the store, and the extraction machinery for
// one project. One update cycle runs at a time; queries may read the
// graph concurrently and observe only committed state through the
// store.
type Indexer struct {
	cfg       *config.Config
	adapters  []config.Adapter
	store     *store.Store
	graph     *graph.Graph
	pipeline  *extract.Pipeline
	relations *extract.RelationCollector
	detector  *gitx.Detector
	lister    gitx.Lister
	caches    *cache.Hierarchy

	cycleMu sync.Mutex
}

// Options bundles the collaborators Open wires together. Tests inject
// fakes; the CLI wires the real store, pool and pipeline.
type Options struct {
	Config    *config.Config
	Adapters  []config.Adapter
	Store     *store.Store
	Pipeline  *extract.Pipeline
	Relations *extract.RelationCollector
	Lister    gitx.Lister
	Caches    *cache.Hierarchy
}

// Open loads the persisted graph and assembles an indexer.
func Open(opts Options) (*Indexer, error) {
	g, err := opts.Store.LoadGraph()
	if err != nil {
		return nil, err
	}

	adapters := opts.Adapters
	var extensions []string
	for _, adapter := range adapters {
		extensions = append(extensions, adapter.Extensions...)
	}
	filter := gitx.NewFileFilter(
		opts.Config.Project.Root,
		opts.Config.Index.Include,
		opts.Config.Index.Exclude,
		opts.Config.Index.RespectGitignore,
		opts.Config.Index.MaxFileSize,
		extensions,
	)

	return &Indexer{
		cfg:       opts.Config,
		adapters:  adapters,
		store:     opts.Store,
		graph:     g,
		pipeline:  opts.Pipeline,
		relations: opts.Relations,
		detector:  gitx.NewDetector(opts.Lister, opts.Config.Project.Root, filter),
		lister:    opts.Lister,
		caches:    opts.Caches,
	}, nil
}

// Graph exposes the current in-memory graph for the query engine.
func (ix *Indexer) Graph() *graph.Graph {
	return ix.graph
}

// Store exposes the underlying store.
func (ix *Indexer) Store() *store.Store {
	return ix.store
}

// Index rebuilds from scratch: the store is cleared and every source
// file treated as added.
func (ix *Indexer) Index(ctx context.Context) (*CycleStats, error) {
	ix.cycleMu.Lock()
	defer ix.cycleMu.Unlock()
	if err := ix.store.Reset(); err != nil {
		return nil, err
	}
	// Clearing the recorded revision forces initial-index semantics:
	// every source file classifies as added.
	if err := ix.store.PutMeta(store.MetaLastRevision, ""); err != nil {
		return nil, err
	}
	ix.graph = graph.New()
	return ix.runCycle(ctx)
}

// Update executes one differential cycle.
func (ix *Indexer) Update(ctx context.Context) (*CycleStats, error) {
	ix.cycleMu.Lock()
	defer ix.cycleMu.Unlock()
	return ix.runCycle(ctx)
}

func (ix *Indexer) runCycle(ctx context.Context) (*CycleStats, error) {
	started := time.Now()
	if ix.cfg.Performance.CycleTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ix.cfg.Performance.CycleTimeoutSec)*time.Second)
		defer cancel()
	}

	records, err := ix.store.AllFileRecords()
	if err != nil {
		return nil, err
	}
	revision, err := ix.store.Meta(store.MetaLastRevision)
	if err != nil {
		return nil, err
	}

	cs, err := ix.detector.Detect(ctx, revision, records)
	if err != nil {
		return nil, err
	}

	stats := &CycleStats{
		FilesAdded:     len(cs.Added),
		FilesModified:  len(cs.Modified),
		FilesDeleted:   len(cs.Deleted),
		FilesRenamed:   len(cs.Renamed),
		FilesUnchanged: len(cs.Unchanged),
	}
	delta := store.NewDelta()

	// Deletions first: their symbols and edges leave graph and delta.
	for _, path := range cs.Deleted {
		ix.removeFile(path, delta, stats)
	}

	// Renames rewrite ids in place; content-changed renames then go
	// through extraction like a modification. The delta's put side is
	// staged only after every rename has run, so an edge between two
	// renamed files is re-keyed once, with both endpoints final.
	var live []string
	for _, rename := range cs.Renamed {
		ix.renameRemove(rename, delta)
	}
	for _, rename := range cs.Renamed {
		ix.renamePut(rename, cs.Hashes[rename.New], delta)
		if rename.ContentChanged {
			live = append(live, rename.New)
		}
	}
	live = append(live, cs.Added...)
	live = append(live, cs.Modified...)

	changedFiles, err := ix.extractAndApply(ctx, live, cs.Hashes, records, delta, stats)
	if err != nil {
		ix.reloadFromStore()
		return nil, err
	}

	// Second pass: relation edges around the changed files.
	if len(changedFiles) > 0 && ix.relations != nil {
		ix.rebuildRelations(ctx, changedFiles, delta, stats)
	}

	if ctx.Err() != nil {
		// Cancelled: abandon everything. The store still holds the
		// last committed state; the in-memory graph rolls back to it.
		ix.reloadFromStore()
		return nil, fmt.Errorf("%w: %v", sgerrors.ErrCancelled, ctx.Err())
	}

	if ix.lister != nil {
		if current, err := ix.lister.CurrentRevision(ctx); err == nil && current != "" {
			delta.Meta[store.MetaLastRevision] = current
		}
	}

	if !delta.Empty() {
		if err := ix.store.ApplyDelta(delta); err != nil {
			ix.reloadFromStore()
			return nil, err
		}
	}
	stats.Duration = time.Since(started)
	debug.Logf("INDEX", "cycle: +%d ~%d -%d files, +%d -%d symbols in %s",
		stats.FilesAdded, stats.FilesModified, stats.FilesDeleted,
		stats.SymbolsAdded, stats.SymbolsRemoved, stats.Duration)
	return stats, nil
}

// reloadFromStore discards in-memory mutations after an aborted cycle
// so the graph matches the last committed state again.
func (ix *Indexer) reloadFromStore() {
	if g, err := ix.store.LoadGraph(); err == nil {
		ix.graph = g
	} else {
		debug.Logf("INDEX", "rollback reload failed: %v", err)
	}
}

func (ix *Indexer) removeFile(path string, delta *store.Delta, stats *CycleStats) {
	for _, sym := range ix.graph.SymbolsIn(path) {
		for _, edge := range ix.graph.IncidentEdges(sym.ID) {
			delta.RemoveEdge(edge)
			stats.EdgesRemoved++
		}
		delta.RemoveSymbol(sym.ID)
		stats.SymbolsRemoved++
	}
	ix.graph.RemoveFile(path)
	delta.RemoveFile(path)
	if ix.pipeline != nil {
		ix.pipeline.Invalidate(path)
	}
}

// renameRemove stages the delete side of a rename (the keys as the
// store currently holds them) and rewrites ids in the graph.
func (ix *Indexer) renameRemove(rename gitx.Rename, delta *store.Delta) {
	for _, sym := range ix.graph.SymbolsIn(rename.Old) {
		for _, edge := range ix.graph.IncidentEdges(sym.ID) {
			delta.RemoveEdge(edge)
		}
		delta.RemoveSymbol(sym.ID)
	}
	delta.RemoveFile(rename.Old)

	ix.graph.RenameFile(rename.Old, rename.New)

	if ix.pipeline != nil {
		ix.pipeline.Invalidate(rename.Old)
		ix.pipeline.Invalidate(rename.New)
	}
}

// renamePut stages the put side once every rename has already reshaped
// the graph, so edge keys carry final ids only.
func (ix *Indexer) renamePut(rename gitx.Rename, newHash uint64, delta *store.Delta) {
	symbols := ix.graph.SymbolsIn(rename.New)
	ids := make([]types.SymbolID, 0, len(symbols))
	seenEdges := make(map[types.Edge]bool)
	for _, sym := range symbols {
		delta.AddSymbol(sym)
		ids = append(ids, sym.ID)
		for _, edge := range ix.graph.IncidentEdges(sym.ID) {
			if !seenEdges[edge] {
				seenEdges[edge] = true
				delta.AddEdge(edge)
			}
		}
	}
	delta.AddFile(types.FileRecord{
		Path:          rename.New,
		Hash:          newHash,
		LastIndexedAt: time.Now().UTC(),
		Symbols:       ids,
	})
}

// extractAndApply fans extraction out over a bounded worker pool and
// funnels results into a single consumer applying graph mutations.
// Returns the files whose symbol set actually changed.
func (ix *Indexer) extractAndApply(ctx context.Context, files []string, hashes map[string]uint64, records map[string]types.FileRecord, delta *store.Delta, stats *CycleStats) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	for _, file := range files {
		if _, known := records[file]; known && ix.pipeline != nil {
			// Hash changed: stale cache entries go before re-extraction.
			ix.pipeline.Invalidate(file)
		}
	}

	results := make(chan *types.ExtractionResult, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ix.cfg.EffectiveParallelism())
	for _, file := range files {
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			results <- ix.pipeline.ExtractFile(egCtx, file, hashes[file])
			return nil
		})
	}
	go func() {
		_ = eg.Wait()
		close(results)
	}()

	var changed []string
	for result := range results {
		if ix.applyFileResult(result, hashes[result.File], delta, stats) {
			changed = append(changed, result.File)
		}
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", sgerrors.ErrCancelled, ctx.Err())
	}
	return changed, nil
}

// applyFileResult diffs one extraction result against the file's prior
// symbols and mutates graph and delta. Reports whether the owned
// symbol set changed.
func (ix *Indexer) applyFileResult(result *types.ExtractionResult, hash uint64, delta *store.Delta, stats *CycleStats) bool {
	prior := make(map[types.SymbolID]*types.Symbol)
	for _, sym := range ix.graph.SymbolsIn(result.File) {
		prior[sym.ID] = sym
	}

	next := make(map[types.SymbolID]bool, len(result.Symbols))
	changed := false

	for _, sym := range result.Symbols {
		next[sym.ID] = true
		if old, exists := prior[sym.ID]; exists {
			if old.Range == sym.Range && old.Signature == sym.Signature && old.Kind == sym.Kind {
				continue // identical declaration, keep as-is
			}
		}
		isNew, err := ix.graph.Add(sym, false)
		if err != nil {
			// Incompatible replacement: delete and re-add.
			for _, edge := range ix.graph.IncidentEdges(sym.ID) {
				delta.RemoveEdge(edge)
				stats.EdgesRemoved++
			}
			ix.graph.Remove(sym.ID)
			delta.RemoveSymbol(sym.ID)
			isNew, _ = ix.graph.Add(sym, false)
		}
		delta.AddSymbol(sym)
		changed = true
		if isNew {
			stats.SymbolsAdded++
		}
	}

	for id := range prior {
		if next[id] {
			continue
		}
		for _, edge := range ix.graph.IncidentEdges(id) {
			delta.RemoveEdge(edge)
			stats.EdgesRemoved++
		}
		ix.graph.Remove(id)
		delta.RemoveSymbol(id)
		stats.SymbolsRemoved++
		changed = true
	}

	// First-pass edges (contains) ride along with the symbols.
	for _, edge := range result.Edges {
		if err := ix.graph.AddEdge(edge.Src, edge.Dst, edge.Kind); err == nil {
			delta.AddEdge(edge)
			stats.EdgesAdded++
		}
	}

	ids := make([]types.SymbolID, 0, len(result.Symbols))
	for _, sym := range result.Symbols {
		ids = append(ids, sym.ID)
	}
	delta.AddFile(types.FileRecord{
		Path:          result.File,
		Hash:          hash,
		LastIndexedAt: time.Now().UTC(),
		Symbols:       ids,
	})
	return changed
}

// rebuildRelations drops the relation edges around changed files and
// re-collects them through the language-server pass.
func (ix *Indexer) rebuildRelations(ctx context.Context, changedFiles []string, delta *store.Delta, stats *CycleStats) {
	for _, file := range changedFiles {
		for _, sym := range ix.graph.SymbolsIn(file) {
			for _, kind := range outgoingRelationKinds {
				for _, dst := range ix.graph.Neighbors(sym.ID, kind, graph.Outgoing) {
					delta.RemoveEdge(types.Edge{Src: sym.ID, Dst: dst, Kind: kind})
					stats.EdgesRemoved++
				}
				ix.graph.RemoveOutgoing(sym.ID, kind)
			}
			for _, kind := range incomingRelationKinds {
				for _, src := range ix.graph.Neighbors(sym.ID, kind, graph.Incoming) {
					delta.RemoveEdge(types.Edge{Src: src, Dst: sym.ID, Kind: kind})
					stats.EdgesRemoved++
				}
				ix.graph.RemoveIncoming(sym.ID, kind)
			}
		}
	}

	for _, edge := range ix.relations.Collect(ctx, ix.graph, changedFiles) {
		if err := ix.graph.AddEdge(edge.Src, edge.Dst, edge.Kind); err == nil {
			delta.AddEdge(edge)
			stats.EdgesAdded++
		}
	}
}
