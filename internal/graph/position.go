package graph

import (
	"github.com/standardbeagle/symgraph/internal/types"
)

// FindByPosition returns the innermost symbol whose range contains the
// position. Ties are broken by smallest range, then by selection-range
// membership. Returns nil when nothing covers the position.
func (g *Graph) FindByPosition(file string, pos types.Position) *types.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *types.Symbol
	for id := range g.fileIndex[file] {
		s := g.nodes[id]
		if !s.Range.Contains(pos) {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		switch {
		case s.Range.Span() < best.Range.Span():
			best = s
		case s.Range.Span() == best.Range.Span():
			// Same extent: prefer the one whose selection range holds
			// the position, then the smaller id for determinism.
			sSel := s.SelectionRange.Contains(pos)
			bSel := best.SelectionRange.Contains(pos)
			if sSel && !bSel {
				best = s
			} else if sSel == bSel && s.ID < best.ID {
				best = s
			}
		}
	}
	return best
}
