package query

import (
	"sort"
	"strings"

	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// UnusedOptions filters dead-code results.
type UnusedOptions struct {
	Kinds      []types.SymbolKind // empty = all kinds
	PublicOnly bool               // report exported symbols only
}

// Unused reports every symbol not reachable from a root through
// references, calls, implements (interface to implementor) or downward
// contains edges. Roots are entry points, test symbols, and symbols
// whose container chain bottoms out in an exported module. This is a
// whole-graph traversal over the committed state; nothing re-indexes.
func (e *Engine) Unused(opts UnusedOptions) []*types.Symbol {
	reachable := make(map[types.SymbolID]bool)
	var queue []types.SymbolID

	for _, sym := range e.g.Symbols() {
		if e.isRoot(sym) {
			reachable[sym.ID] = true
			queue = append(queue, sym.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		next := make([]types.SymbolID, 0, 8)
		next = append(next, e.g.Neighbors(id, types.EdgeCalls, graph.Outgoing)...)
		next = append(next, e.g.Neighbors(id, types.EdgeReferences, graph.Outgoing)...)
		next = append(next, e.g.Neighbors(id, types.EdgeContains, graph.Outgoing)...)
		next = append(next, e.g.Neighbors(id, types.EdgeImplements, graph.Incoming)...)
		for _, peer := range next {
			if !reachable[peer] {
				reachable[peer] = true
				queue = append(queue, peer)
			}
		}
	}

	kindSet := make(map[types.SymbolKind]bool, len(opts.Kinds))
	for _, kind := range opts.Kinds {
		kindSet[kind] = true
	}

	var out []*types.Symbol
	for _, sym := range e.g.Symbols() {
		if reachable[sym.ID] {
			continue
		}
		if len(kindSet) > 0 && !kindSet[sym.Kind] {
			continue
		}
		if opts.PublicOnly && !sym.Exported {
			continue
		}
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// isRoot decides whether a symbol anchors reachability: program entry
// points, test symbols, and members of exported modules.
func (e *Engine) isRoot(sym *types.Symbol) bool {
	switch sym.Name {
	case "main", "init", "__init__":
		return true
	}
	if strings.HasPrefix(sym.Name, "Test") || strings.HasPrefix(sym.Name, "Benchmark") ||
		strings.HasPrefix(sym.Name, "test_") || strings.HasSuffix(sym.File, "_test.go") {
		return true
	}
	// Container chain bottoming out in an exported module.
	for container := sym.Container; container != ""; {
		parent := e.g.Symbol(container)
		if parent == nil {
			break
		}
		if parent.Container == "" {
			return parent.Kind == types.KindModule && parent.Exported
		}
		container = parent.Container
	}
	return false
}
