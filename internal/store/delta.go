package store

import (
	"github.com/standardbeagle/symgraph/internal/types"
)

// Delta is the buffered mutation set of one update cycle. The indexer
// accumulates into a Delta while the in-memory graph mutates, then
// commits everything with one ApplyDelta call so readers only ever see
// complete states.
//
// Entries are last-write-wins: staging a put cancels a pending delete
// of the same key and vice versa. Mutation steps inside one cycle
// (delete, rename, re-extract) may touch the same key several times;
// only the final intent reaches the store.
type Delta struct {
	putSymbols map[types.SymbolID]*types.Symbol
	delSymbols map[types.SymbolID]bool
	putEdges   map[types.Edge]bool
	delEdges   map[types.Edge]bool
	putFiles   map[string]types.FileRecord
	delFiles   map[string]bool

	Meta map[string]string
}

// NewDelta returns an empty delta.
func NewDelta() *Delta {
	return &Delta{
		putSymbols: make(map[types.SymbolID]*types.Symbol),
		delSymbols: make(map[types.SymbolID]bool),
		putEdges:   make(map[types.Edge]bool),
		delEdges:   make(map[types.Edge]bool),
		putFiles:   make(map[string]types.FileRecord),
		delFiles:   make(map[string]bool),
		Meta:       make(map[string]string),
	}
}

// Empty reports whether the delta carries no writes at all.
func (d *Delta) Empty() bool {
	return len(d.putSymbols) == 0 && len(d.delSymbols) == 0 &&
		len(d.putEdges) == 0 && len(d.delEdges) == 0 &&
		len(d.putFiles) == 0 && len(d.delFiles) == 0 && len(d.Meta) == 0
}

// AddSymbol stages a symbol write.
func (d *Delta) AddSymbol(s *types.Symbol) {
	delete(d.delSymbols, s.ID)
	d.putSymbols[s.ID] = s
}

// RemoveSymbol stages a symbol delete.
func (d *Delta) RemoveSymbol(id types.SymbolID) {
	delete(d.putSymbols, id)
	d.delSymbols[id] = true
}

// AddEdge stages an edge write.
func (d *Delta) AddEdge(e types.Edge) {
	delete(d.delEdges, e)
	d.putEdges[e] = true
}

// RemoveEdge stages an edge delete.
func (d *Delta) RemoveEdge(e types.Edge) {
	delete(d.putEdges, e)
	d.delEdges[e] = true
}

// AddFile stages a file-record write.
func (d *Delta) AddFile(rec types.FileRecord) {
	delete(d.delFiles, rec.Path)
	d.putFiles[rec.Path] = rec
}

// RemoveFile stages a file-record delete.
func (d *Delta) RemoveFile(path string) {
	delete(d.putFiles, path)
	d.delFiles[path] = true
}
