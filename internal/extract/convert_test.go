package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/lsp"
	"github.com/standardbeagle/symgraph/internal/types"
)

func TestFromDocumentSymbolsBuildsContainsEdges(t *testing.T) {
	tree := []lsp.DocumentSymbol{{
		Name: "Server", Kind: lsp.SKStruct,
		Range:          lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 9, Character: 1}},
		SelectionRange: lsp.Range{Start: lsp.Position{Line: 0, Character: 5}, End: lsp.Position{Line: 0, Character: 11}},
		Children: []lsp.DocumentSymbol{{
			Name: "Handle", Kind: lsp.SKMethod, Detail: "func (s *Server) Handle()",
			Range:          lsp.Range{Start: lsp.Position{Line: 2, Character: 0}, End: lsp.Position{Line: 4, Character: 1}},
			SelectionRange: lsp.Range{Start: lsp.Position{Line: 2, Character: 17}, End: lsp.Position{Line: 2, Character: 23}},
		}},
	}}

	symbols, edges := fromDocumentSymbols("srv.go", "go", tree)
	require.Len(t, symbols, 2)
	require.Len(t, edges, 1)

	server, handle := symbols[0], symbols[1]
	assert.Equal(t, types.SymbolID("srv.go#1:6:Server"), server.ID, "ids use the 1-based selection position")
	assert.Equal(t, types.KindStruct, server.Kind)
	assert.Equal(t, types.KindMethod, handle.Kind)
	assert.Equal(t, server.ID, handle.Container)
	assert.Equal(t, types.Edge{Src: server.ID, Dst: handle.ID, Kind: types.EdgeContains}, edges[0])
	assert.True(t, server.Exported, "capitalized Go name")
}

func TestFromSymbolInformationResolvesContainerByName(t *testing.T) {
	infos := []lsp.SymbolInformation{
		{Name: "Config", Kind: lsp.SKStruct,
			Location: lsp.Location{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 5, Character: 1}}}},
		{Name: "timeout", Kind: lsp.SKField, ContainerName: "Config",
			Location: lsp.Location{Range: lsp.Range{Start: lsp.Position{Line: 1, Character: 4}, End: lsp.Position{Line: 1, Character: 20}}}},
	}

	symbols, edges := fromSymbolInformation("cfg.go", "go", infos)
	require.Len(t, symbols, 2)
	require.Len(t, edges, 1)
	assert.Equal(t, symbols[0].ID, symbols[1].Container)
	assert.Equal(t, types.EdgeContains, edges[0].Kind)
}

func TestIsExportedHeuristics(t *testing.T) {
	assert.True(t, isExported("go", "Public", ""))
	assert.False(t, isExported("go", "private", ""))
	assert.True(t, isExported("rust", "run", "pub fn run()"))
	assert.False(t, isExported("rust", "run", "fn run()"))
	assert.True(t, isExported("python", "fetch", ""))
	assert.False(t, isExported("python", "_fetch", ""))
	assert.False(t, isExported("typescript", "#secret", ""))
}
