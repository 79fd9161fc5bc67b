package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

func testSymbol(file string, line int, name string) *types.Symbol {
	return &types.Symbol{
		ID:   types.MakeSymbolID(file, line, 1, name),
		Name: name,
		Kind: types.KindFunction,
		File: file,
		Range: types.Range{
			Start: types.Position{Line: line, Column: 1},
			End:   types.Position{Line: line + 1, Column: 1},
		},
		SelectionRange: types.Range{
			Start: types.Position{Line: line, Column: 4},
			End:   types.Position{Line: line, Column: 4 + len(name)},
		},
		Language: "rust",
	}
}

func TestApplyDeltaAndLoadGraphRoundTrip(t *testing.T) {
	s := openTemp(t)

	main := testSymbol("a.rs", 1, "main")
	helper := testSymbol("a.rs", 2, "helper")

	delta := NewDelta()
	delta.AddSymbol(main)
	delta.AddSymbol(helper)
	delta.AddEdge(types.Edge{Src: main.ID, Dst: helper.ID, Kind: types.EdgeCalls})
	delta.AddFile(types.FileRecord{
		Path:          "a.rs",
		Hash:          42,
		LastIndexedAt: time.Now().UTC(),
		Symbols:       []types.SymbolID{main.ID, helper.ID},
	})
	delta.Meta[MetaLastRevision] = "rev1"
	require.NoError(t, s.ApplyDelta(delta))

	// P3: the reloaded graph equals the source of the writes over
	// logical content.
	g, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, 1, g.EdgeLen())
	loaded := g.Symbol(main.ID)
	require.NotNil(t, loaded)
	assert.Equal(t, *main, *loaded)
	assert.Equal(t, []types.SymbolID{helper.ID}, g.Neighbors(main.ID, types.EdgeCalls, graph.Outgoing))

	rec, ok, err := s.FileRecord("a.rs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), rec.Hash)
	assert.Equal(t, []types.SymbolID{main.ID, helper.ID}, rec.Symbols)

	revision, err := s.Meta(MetaLastRevision)
	require.NoError(t, err)
	assert.Equal(t, "rev1", revision)
}

func TestSerializeRoundTripIsStable(t *testing.T) {
	s := openTemp(t)

	delta := NewDelta()
	for i := 1; i <= 5; i++ {
		delta.AddSymbol(testSymbol("lib.rs", i, "f"+string(rune('a'+i))))
	}
	require.NoError(t, s.ApplyDelta(delta))

	g1, err := s.LoadGraph()
	require.NoError(t, err)

	// Write what was loaded into a second store and reload; the two
	// graphs must agree symbol-for-symbol and edge-for-edge.
	s2 := openTemp(t)
	delta2 := NewDelta()
	for _, sym := range g1.Symbols() {
		delta2.AddSymbol(sym)
	}
	for _, edge := range g1.Edges() {
		delta2.AddEdge(edge)
	}
	require.NoError(t, s2.ApplyDelta(delta2))
	g2, err := s2.LoadGraph()
	require.NoError(t, err)

	assert.Equal(t, g1.Symbols(), g2.Symbols())
	assert.Equal(t, g1.Edges(), g2.Edges())
}

func TestApplyDeltaDeleteThenPutSameKey(t *testing.T) {
	s := openTemp(t)
	old := testSymbol("a.rs", 1, "main")
	seed := NewDelta()
	seed.AddSymbol(old)
	require.NoError(t, s.ApplyDelta(seed))

	// A replace staged as delete+put of the same id lands in the put
	// state.
	updated := old.Clone()
	updated.Signature = "fn main()"
	delta := NewDelta()
	delta.RemoveSymbol(old.ID)
	delta.AddSymbol(updated)
	require.NoError(t, s.ApplyDelta(delta))

	g, err := s.LoadGraph()
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
	assert.Equal(t, "fn main()", g.Symbol(old.ID).Signature)
}

func TestDeltaLastWriteWins(t *testing.T) {
	s := openTemp(t)
	sym := testSymbol("a.rs", 1, "main")
	edge := types.Edge{Src: sym.ID, Dst: sym.ID + "x", Kind: types.EdgeCalls}

	// Put then remove within one delta: the key never lands.
	delta := NewDelta()
	delta.AddSymbol(sym)
	delta.AddEdge(edge)
	delta.RemoveEdge(edge)
	delta.RemoveSymbol(sym.ID)
	delta.AddSymbol(sym) // and a final re-add wins over the delete
	require.NoError(t, s.ApplyDelta(delta))

	g, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 0, g.EdgeLen())
}

func TestEdgeKeyEscaping(t *testing.T) {
	// Symbol ids carry slashes from paths; the key codec must invert
	// exactly.
	e := types.Edge{
		Src:  types.MakeSymbolID("src/deep/dir/a.rs", 1, 1, "x"),
		Dst:  types.MakeSymbolID("src/b.rs", 9, 1, "y"),
		Kind: types.EdgeReferences,
	}
	key := edgeKey(e)
	parsed, err := parseEdgeKey(key[len(prefixEdge):])
	require.NoError(t, err)
	assert.Equal(t, e, parsed)
}

func TestResetClearsGraphNotMeta(t *testing.T) {
	s := openTemp(t)
	delta := NewDelta()
	delta.AddSymbol(testSymbol("a.rs", 1, "main"))
	delta.AddFile(types.FileRecord{Path: "a.rs", Hash: 1})
	require.NoError(t, s.ApplyDelta(delta))

	require.NoError(t, s.Reset())

	g, err := s.LoadGraph()
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	records, err := s.AllFileRecords()
	require.NoError(t, err)
	assert.Empty(t, records)

	version, err := s.Meta(MetaSchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}
