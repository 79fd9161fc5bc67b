package query

import (
	"sort"

	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// TypeNode is one node of a type hierarchy tree.
type TypeNode struct {
	Symbol   *types.Symbol  `json:"symbol"`
	Relation types.EdgeKind `json:"relation"`
	Children []*TypeNode    `json:"children,omitempty"`
}

// TypeHierarchyResult holds the supertypes (extends/implements targets)
// and subtypes (sources) of a type symbol.
type TypeHierarchyResult struct {
	Root       *types.Symbol `json:"root"`
	Supertypes []*TypeNode   `json:"supertypes,omitempty"`
	Subtypes   []*TypeNode   `json:"subtypes,omitempty"`
}

// TypeHierarchy traverses extends and implements edges up and down from
// a type symbol. Returns nil when the id does not exist.
func (e *Engine) TypeHierarchy(root types.SymbolID) *TypeHierarchyResult {
	rootSym := e.g.Symbol(root)
	if rootSym == nil {
		return nil
	}
	return &TypeHierarchyResult{
		Root:       rootSym,
		Supertypes: e.walkTypes(root, graph.Outgoing, map[types.SymbolID]bool{root: true}),
		Subtypes:   e.walkTypes(root, graph.Incoming, map[types.SymbolID]bool{root: true}),
	}
}

func (e *Engine) walkTypes(id types.SymbolID, dir graph.Direction, visited map[types.SymbolID]bool) []*TypeNode {
	var nodes []*TypeNode
	for _, kind := range []types.EdgeKind{types.EdgeExtends, types.EdgeImplements} {
		for _, peer := range e.g.Neighbors(id, kind, dir) {
			if visited[peer] {
				continue
			}
			visited[peer] = true
			sym := e.g.Symbol(peer)
			if sym == nil {
				continue
			}
			node := &TypeNode{Symbol: sym, Relation: kind}
			node.Children = e.walkTypes(peer, dir, visited)
			nodes = append(nodes, node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Symbol.ID < nodes[j].Symbol.ID })
	return nodes
}

// GroupByKind buckets a flat symbol list by kind, each bucket sorted by
// id. Used by the CLI's grouped type-hierarchy output.
func GroupByKind(symbols []*types.Symbol) map[types.SymbolKind][]*types.Symbol {
	out := make(map[types.SymbolKind][]*types.Symbol)
	for _, sym := range symbols {
		out[sym.Kind] = append(out[sym.Kind], sym)
	}
	for kind := range out {
		sort.Slice(out[kind], func(i, j int) bool { return out[kind][i].ID < out[kind][j].ID })
	}
	return out
}
