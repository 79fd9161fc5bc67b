package query

import (
	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// DefaultCallDepth bounds call-hierarchy traversal.
const DefaultCallDepth = 3

// HierarchyDirection selects which way to walk calls edges.
type HierarchyDirection string

const (
	CallsIncoming HierarchyDirection = "incoming"
	CallsOutgoing HierarchyDirection = "outgoing"
	CallsBoth     HierarchyDirection = "both"
)

// CallNode is one node of a call tree. Each symbol appears at its
// shallowest depth only; cycles are cut by the visited set.
type CallNode struct {
	Symbol   *types.Symbol `json:"symbol"`
	Depth    int           `json:"depth"`
	Children []*CallNode   `json:"children,omitempty"`
}

// CallHierarchyResult carries one or both traversal directions.
type CallHierarchyResult struct {
	Root     *types.Symbol `json:"root"`
	Incoming []*CallNode   `json:"incoming,omitempty"`
	Outgoing []*CallNode   `json:"outgoing,omitempty"`
}

// CallHierarchy walks calls edges from a root id, breadth-first and
// depth-bounded. Returns nil when the root does not exist.
func (e *Engine) CallHierarchy(root types.SymbolID, direction HierarchyDirection, maxDepth int) *CallHierarchyResult {
	rootSym := e.g.Symbol(root)
	if rootSym == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultCallDepth
	}

	result := &CallHierarchyResult{Root: rootSym}
	if direction == CallsIncoming || direction == CallsBoth {
		result.Incoming = e.walkCalls(root, graph.Incoming, maxDepth)
	}
	if direction == CallsOutgoing || direction == CallsBoth {
		result.Outgoing = e.walkCalls(root, graph.Outgoing, maxDepth)
	}
	return result
}

// walkCalls is a breadth-first traversal so every symbol lands at its
// shallowest depth.
func (e *Engine) walkCalls(root types.SymbolID, dir graph.Direction, maxDepth int) []*CallNode {
	visited := map[types.SymbolID]bool{root: true}

	type frame struct {
		id       types.SymbolID
		depth    int
		children *[]*CallNode
	}
	var top []*CallNode
	queue := []frame{{id: root, depth: 0, children: &top}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, peer := range e.g.Neighbors(cur.id, types.EdgeCalls, dir) {
			if visited[peer] {
				continue
			}
			visited[peer] = true
			sym := e.g.Symbol(peer)
			if sym == nil {
				continue
			}
			node := &CallNode{Symbol: sym, Depth: cur.depth + 1}
			*cur.children = append(*cur.children, node)
			queue = append(queue, frame{id: peer, depth: cur.depth + 1, children: &node.Children})
		}
	}
	return top
}
