// Package graph implements the in-memory directed multigraph of symbols
// and typed edges. It is a single-writer / many-reader structure: the
// differential indexer owns all mutation, queries read concurrently.
package graph

import (
	"sort"
	"sync"

	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
	"github.com/standardbeagle/symgraph/internal/types"
)

// Direction selects which end of an edge to follow.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// edgeSet is the adjacency index for one edge kind: src -> set of dst
// (or dst -> set of src for the reverse index). The nested map makes
// AddEdge idempotent for free.
type edgeSet map[types.SymbolID]map[types.SymbolID]struct{}

func (es edgeSet) add(a, b types.SymbolID) bool {
	peers, ok := es[a]
	if !ok {
		peers = make(map[types.SymbolID]struct{})
		es[a] = peers
	}
	if _, exists := peers[b]; exists {
		return false
	}
	peers[b] = struct{}{}
	return true
}

func (es edgeSet) remove(a, b types.SymbolID) {
	if peers, ok := es[a]; ok {
		delete(peers, b)
		if len(peers) == 0 {
			delete(es, a)
		}
	}
}

// Graph holds symbols indexed by id, file and name, plus forward and
// reverse adjacency per edge kind.
type Graph struct {
	mu sync.RWMutex

	nodes map[types.SymbolID]*types.Symbol

	// fileIndex maps a relative path to the symbols it owns.
	fileIndex map[string]map[types.SymbolID]struct{}

	// nameIndex maps a bare identifier to every symbol carrying it.
	nameIndex map[string]map[types.SymbolID]struct{}

	forward map[types.EdgeKind]edgeSet
	reverse map[types.EdgeKind]edgeSet

	edgeCount int
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{
		nodes:     make(map[types.SymbolID]*types.Symbol),
		fileIndex: make(map[string]map[types.SymbolID]struct{}),
		nameIndex: make(map[string]map[types.SymbolID]struct{}),
		forward:   make(map[types.EdgeKind]edgeSet),
		reverse:   make(map[types.EdgeKind]edgeSet),
	}
	for _, kind := range types.AllEdgeKinds {
		g.forward[kind] = make(edgeSet)
		g.reverse[kind] = make(edgeSet)
	}
	return g
}

// Add inserts a symbol, replacing any prior symbol with the same id
// atomically. Incident edges are preserved unless replaceEdges is set.
// Returns whether the symbol is new. Replacing a container kind with a
// non-container kind while children exist fails with
// ErrDuplicateIncompatible; callers must Remove and re-Add instead.
func (g *Graph) Add(s *types.Symbol, replaceEdges bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prior, exists := g.nodes[s.ID]
	if exists {
		if prior.Kind.IsContainer() && !s.Kind.IsContainer() {
			if children := g.forward[types.EdgeContains][s.ID]; len(children) > 0 {
				return false, sgerrors.ErrDuplicateIncompatible
			}
		}
		g.unindexLocked(prior)
		if replaceEdges {
			g.dropEdgesLocked(s.ID)
		}
	}

	g.nodes[s.ID] = s
	g.indexLocked(s)
	return !exists, nil
}

// Remove deletes the symbol and every incident edge. No-op if absent.
func (g *Graph) Remove(id types.SymbolID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(id)
}

func (g *Graph) removeLocked(id types.SymbolID) {
	s, ok := g.nodes[id]
	if !ok {
		return
	}
	g.dropEdgesLocked(id)
	g.unindexLocked(s)
	delete(g.nodes, id)
}

func (g *Graph) indexLocked(s *types.Symbol) {
	byFile, ok := g.fileIndex[s.File]
	if !ok {
		byFile = make(map[types.SymbolID]struct{})
		g.fileIndex[s.File] = byFile
	}
	byFile[s.ID] = struct{}{}

	byName, ok := g.nameIndex[s.Name]
	if !ok {
		byName = make(map[types.SymbolID]struct{})
		g.nameIndex[s.Name] = byName
	}
	byName[s.ID] = struct{}{}
}

func (g *Graph) unindexLocked(s *types.Symbol) {
	if byFile, ok := g.fileIndex[s.File]; ok {
		delete(byFile, s.ID)
		if len(byFile) == 0 {
			delete(g.fileIndex, s.File)
		}
	}
	if byName, ok := g.nameIndex[s.Name]; ok {
		delete(byName, s.ID)
		if len(byName) == 0 {
			delete(g.nameIndex, s.Name)
		}
	}
}

func (g *Graph) dropEdgesLocked(id types.SymbolID) {
	for _, kind := range types.AllEdgeKinds {
		fwd := g.forward[kind]
		for dst := range fwd[id] {
			g.reverse[kind].remove(dst, id)
			g.edgeCount--
		}
		delete(fwd, id)

		rev := g.reverse[kind]
		for src := range rev[id] {
			g.forward[kind].remove(src, id)
			g.edgeCount--
		}
		delete(rev, id)
	}
}

// AddEdge records a typed edge. Idempotent; at most one edge of a given
// kind exists per ordered pair. Both endpoints must exist or the call
// fails with ErrUnknownSymbol.
func (g *Graph) AddEdge(src, dst types.SymbolID, kind types.EdgeKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[src]; !ok {
		return sgerrors.ErrUnknownSymbol
	}
	if _, ok := g.nodes[dst]; !ok {
		return sgerrors.ErrUnknownSymbol
	}
	if g.forward[kind].add(src, dst) {
		g.reverse[kind].add(dst, src)
		g.edgeCount++
	}
	return nil
}

// RemoveEdge deletes one edge if present.
func (g *Graph) RemoveEdge(src, dst types.SymbolID, kind types.EdgeKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if peers, ok := g.forward[kind][src]; ok {
		if _, exists := peers[dst]; exists {
			g.forward[kind].remove(src, dst)
			g.reverse[kind].remove(dst, src)
			g.edgeCount--
		}
	}
}

// IncidentEdges returns every edge touching id, in both directions.
// The indexer captures these before a removal so the store delta can
// mirror the mutation.
func (g *Graph) IncidentEdges(id types.SymbolID) []types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []types.Edge
	for _, kind := range types.AllEdgeKinds {
		for dst := range g.forward[kind][id] {
			out = append(out, types.Edge{Src: id, Dst: dst, Kind: kind})
		}
		for src := range g.reverse[kind][id] {
			out = append(out, types.Edge{Src: src, Dst: id, Kind: kind})
		}
	}
	return out
}

// RemoveIncoming drops every incoming edge of one kind into dst.
func (g *Graph) RemoveIncoming(dst types.SymbolID, kind types.EdgeKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for src := range g.reverse[kind][dst] {
		g.forward[kind].remove(src, dst)
		g.edgeCount--
	}
	delete(g.reverse[kind], dst)
}

// RemoveOutgoing drops every outgoing edge of one kind from src. Used by
// the indexer when rebuilding a changed file's relations.
func (g *Graph) RemoveOutgoing(src types.SymbolID, kind types.EdgeKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for dst := range g.forward[kind][src] {
		g.reverse[kind].remove(dst, src)
		g.edgeCount--
	}
	delete(g.forward[kind], src)
}

// Symbol returns the symbol for an id, or nil.
func (g *Graph) Symbol(id types.SymbolID) *types.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Has reports whether an id exists.
func (g *Graph) Has(id types.SymbolID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// SymbolsIn enumerates the symbols owned by a file, ordered by position.
func (g *Graph) SymbolsIn(file string) []*types.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.fileIndex[file]
	out := make([]*types.Symbol, 0, len(ids))
	for id := range ids {
		out = append(out, g.nodes[id])
	}
	sortSymbols(out)
	return out
}

// ByName enumerates symbols with an exactly matching name.
func (g *Graph) ByName(name string) []*types.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.nameIndex[name]
	out := make([]*types.Symbol, 0, len(ids))
	for id := range ids {
		out = append(out, g.nodes[id])
	}
	sortSymbols(out)
	return out
}

// Names returns every distinct symbol name, sorted. The fuzzy matcher
// scores against this list rather than against every symbol.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.nameIndex))
	for name := range g.nameIndex {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Neighbors enumerates the far endpoints of edges of one kind in one
// direction, sorted by id for determinism.
func (g *Graph) Neighbors(id types.SymbolID, kind types.EdgeKind, dir Direction) []types.SymbolID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	index := g.forward
	if dir == Incoming {
		index = g.reverse
	}
	peers := index[kind][id]
	out := make([]types.SymbolID, 0, len(peers))
	for peer := range peers {
		out = append(out, peer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Files enumerates every indexed file path, sorted.
func (g *Graph) Files() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.fileIndex))
	for file := range g.fileIndex {
		out = append(out, file)
	}
	sort.Strings(out)
	return out
}

// Symbols enumerates all symbols, sorted by id. Used by the store,
// export, and whole-graph traversals.
func (g *Graph) Symbols() []*types.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*types.Symbol, 0, len(g.nodes))
	for _, s := range g.nodes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges enumerates all edges, sorted by (src, kind, dst).
func (g *Graph) Edges() []types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]types.Edge, 0, g.edgeCount)
	for _, kind := range types.AllEdgeKinds {
		for src, peers := range g.forward[kind] {
			for dst := range peers {
				out = append(out, types.Edge{Src: src, Dst: dst, Kind: kind})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

// Len returns the symbol count.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeLen returns the edge count.
func (g *Graph) EdgeLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}

// RemoveFile drops every symbol owned by a file and all incident edges,
// returning the removed ids. The graph never keeps dangling edges.
func (g *Graph) RemoveFile(file string) []types.SymbolID {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]types.SymbolID, 0, len(g.fileIndex[file]))
	for id := range g.fileIndex[file] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		g.removeLocked(id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RenameFile rewrites every owned symbol's file and id from oldPath to
// newPath and remaps edge endpoints to the new ids. Edge count and
// kinds are preserved.
func (g *Graph) RenameFile(oldPath, newPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]types.SymbolID, 0, len(g.fileIndex[oldPath]))
	for id := range g.fileIndex[oldPath] {
		ids = append(ids, id)
	}
	remap := make(map[types.SymbolID]types.SymbolID, len(ids))
	for _, id := range ids {
		remap[id] = id.WithFile(newPath)
	}

	// Collect edges touching any renamed id before mutating indexes.
	type edgeRec struct {
		src, dst types.SymbolID
		kind     types.EdgeKind
	}
	var touched []edgeRec
	for _, kind := range types.AllEdgeKinds {
		for src, peers := range g.forward[kind] {
			for dst := range peers {
				_, srcHit := remap[src]
				_, dstHit := remap[dst]
				if srcHit || dstHit {
					touched = append(touched, edgeRec{src, dst, kind})
				}
			}
		}
	}
	for _, e := range touched {
		g.forward[e.kind].remove(e.src, e.dst)
		g.reverse[e.kind].remove(e.dst, e.src)
		g.edgeCount--
	}

	for _, id := range ids {
		s := g.nodes[id]
		g.unindexLocked(s)
		delete(g.nodes, id)
		s.ID = remap[id]
		s.File = newPath
		if mapped, ok := remap[s.Container]; ok {
			s.Container = mapped
		}
		g.nodes[s.ID] = s
		g.indexLocked(s)
	}

	for _, e := range touched {
		src, dst := e.src, e.dst
		if mapped, ok := remap[src]; ok {
			src = mapped
		}
		if mapped, ok := remap[dst]; ok {
			dst = mapped
		}
		if g.forward[e.kind].add(src, dst) {
			g.reverse[e.kind].add(dst, src)
			g.edgeCount++
		}
	}
}

func sortSymbols(out []*types.Symbol) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Range.Start != b.Range.Start {
			return a.Range.Start.Before(b.Range.Start)
		}
		return a.ID < b.ID
	})
}
