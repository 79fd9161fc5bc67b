package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

func exportGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	main := &types.Symbol{
		ID: types.MakeSymbolID("a.rs", 1, 4, "main"), Name: "main",
		Kind: types.KindFunction, File: "a.rs",
		Range: types.Range{Start: types.Position{Line: 1, Column: 1}, End: types.Position{Line: 2, Column: 1}},
	}
	helper := &types.Symbol{
		ID: types.MakeSymbolID("a.rs", 2, 4, "helper"), Name: "helper",
		Kind: types.KindFunction, File: "a.rs",
		Range: types.Range{Start: types.Position{Line: 2, Column: 1}, End: types.Position{Line: 3, Column: 1}},
	}
	_, err := g.Add(main, false)
	require.NoError(t, err)
	_, err = g.Add(helper, false)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(main.ID, helper.ID, types.EdgeCalls))
	return g
}

func TestExportJSONRoundTrips(t *testing.T) {
	g := exportGraph(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, g, FormatJSON))

	var dump struct {
		Symbols []*types.Symbol `json:"symbols"`
		Edges   []types.Edge    `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &dump))
	assert.Len(t, dump.Symbols, 2)
	require.Len(t, dump.Edges, 1)
	assert.Equal(t, types.EdgeCalls, dump.Edges[0].Kind)
}

func TestExportLSIFStructure(t *testing.T) {
	g := exportGraph(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, g, FormatLSIF))

	ids := make(map[uint64]string) // id -> type
	var edges []lsifEdge
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var probe struct {
			ID    uint64 `json:"id"`
			Type  string `json:"type"`
			Label string `json:"label"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &probe), "every line is one JSON object")
		ids[probe.ID] = probe.Type
		if probe.Type == "edge" {
			var e lsifEdge
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
			edges = append(edges, e)
		}
	}

	require.Len(t, edges, 1)
	assert.Equal(t, string(types.EdgeCalls), edges[0].Label)
	// Edges only reference previously emitted vertices.
	assert.Equal(t, "vertex", ids[edges[0].OutV])
	assert.Equal(t, "vertex", ids[edges[0].InV])
}

func TestExportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, exportGraph(t), "protobuf")
	assert.Error(t, err)
}
