// Package query answers graph questions: definition, references,
// workspace symbol search, call hierarchy, dead-code detection and
// type hierarchy. Every operation reads committed graph state;
// missing symbols yield empty results, never errors.
package query

import (
	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// Engine wraps a graph snapshot.
type Engine struct {
	g *graph.Graph
}

// New creates an engine over a graph.
func New(g *graph.Graph) *Engine {
	return &Engine{g: g}
}

// At resolves a (file, position) to the innermost symbol, or nil.
func (e *Engine) At(file string, pos types.Position) *types.Symbol {
	return e.g.FindByPosition(file, pos)
}

// Definition resolves the position to its enclosing symbol and returns
// the definitions it points at: the targets of its calls and
// references edges.
func (e *Engine) Definition(file string, pos types.Position) []*types.Symbol {
	sym := e.g.FindByPosition(file, pos)
	if sym == nil {
		return nil
	}
	return e.collect(
		e.g.Neighbors(sym.ID, types.EdgeCalls, graph.Outgoing),
		e.g.Neighbors(sym.ID, types.EdgeReferences, graph.Outgoing),
	)
}

// References returns every symbol referencing or calling the symbol at
// the position.
func (e *Engine) References(file string, pos types.Position) []*types.Symbol {
	sym := e.g.FindByPosition(file, pos)
	if sym == nil {
		return nil
	}
	return e.ReferencesTo(sym.ID)
}

// ReferencesTo returns the referrers and callers of an id.
func (e *Engine) ReferencesTo(id types.SymbolID) []*types.Symbol {
	return e.collect(
		e.g.Neighbors(id, types.EdgeReferences, graph.Incoming),
		e.g.Neighbors(id, types.EdgeCalls, graph.Incoming),
	)
}

// TypeDefinition returns the type symbols of the symbol at the position.
func (e *Engine) TypeDefinition(file string, pos types.Position) []*types.Symbol {
	sym := e.g.FindByPosition(file, pos)
	if sym == nil {
		return nil
	}
	return e.collect(e.g.Neighbors(sym.ID, types.EdgeHasType, graph.Outgoing))
}

// Implementations returns the implementors of the symbol at the
// position (an interface or trait).
func (e *Engine) Implementations(file string, pos types.Position) []*types.Symbol {
	sym := e.g.FindByPosition(file, pos)
	if sym == nil {
		return nil
	}
	return e.collect(e.g.Neighbors(sym.ID, types.EdgeImplements, graph.Incoming))
}

// collect maps id lists to deduplicated symbols, preserving order.
func (e *Engine) collect(idLists ...[]types.SymbolID) []*types.Symbol {
	seen := make(map[types.SymbolID]bool)
	var out []*types.Symbol
	for _, ids := range idLists {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if sym := e.g.Symbol(id); sym != nil {
				out = append(out, sym)
			}
		}
	}
	return out
}
