// Package export serializes the graph for external consumers: an
// LSIF-style JSON-lines stream of vertices and edges, or a structured
// JSON dump of the full graph state.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// Format names accepted by Write.
const (
	FormatLSIF = "lsif"
	FormatJSON = "json"
)

// Write serializes the graph in the named format.
func Write(w io.Writer, g *graph.Graph, format string) error {
	switch format {
	case FormatLSIF:
		return writeLSIF(w, g)
	case FormatJSON:
		return writeJSON(w, g)
	default:
		return fmt.Errorf("unknown export format %q (want %s or %s)", format, FormatLSIF, FormatJSON)
	}
}

// jsonDump is the structured-data dump shape.
type jsonDump struct {
	Symbols []*types.Symbol `json:"symbols"`
	Edges   []types.Edge    `json:"edges"`
}

func writeJSON(w io.Writer, g *graph.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonDump{Symbols: g.Symbols(), Edges: g.Edges()})
}

// lsifVertex / lsifEdge follow the LSIF dump framing: one JSON object
// per line, vertices before the edges that mention them.
type lsifVertex struct {
	ID    uint64      `json:"id"`
	Type  string      `json:"type"` // "vertex"
	Label string      `json:"label"`
	Data  interface{} `json:"data,omitempty"`
}

type lsifEdge struct {
	ID    uint64 `json:"id"`
	Type  string `json:"type"` // "edge"
	Label string `json:"label"`
	OutV  uint64 `json:"outV"`
	InV   uint64 `json:"inV"`
}

type lsifRange struct {
	Symbol string      `json:"symbol"`
	Kind   string      `json:"kind"`
	File   string      `json:"file"`
	Range  types.Range `json:"range"`
}

func writeLSIF(w io.Writer, g *graph.Graph) error {
	enc := json.NewEncoder(w)
	nextID := uint64(0)
	vertexIDs := make(map[types.SymbolID]uint64)

	emit := func(v interface{}) error { return enc.Encode(v) }

	nextID++
	if err := emit(lsifVertex{ID: nextID, Type: "vertex", Label: "metaData",
		Data: map[string]string{"version": "0.5.0", "positionEncoding": "utf-8"}}); err != nil {
		return err
	}

	for _, sym := range g.Symbols() {
		nextID++
		vertexIDs[sym.ID] = nextID
		if err := emit(lsifVertex{ID: nextID, Type: "vertex", Label: "range", Data: lsifRange{
			Symbol: string(sym.ID),
			Kind:   string(sym.Kind),
			File:   sym.File,
			Range:  sym.Range,
		}}); err != nil {
			return err
		}
	}

	for _, edge := range g.Edges() {
		outV, okOut := vertexIDs[edge.Src]
		inV, okIn := vertexIDs[edge.Dst]
		if !okOut || !okIn {
			continue
		}
		nextID++
		if err := emit(lsifEdge{ID: nextID, Type: "edge", Label: string(edge.Kind), OutV: outV, InV: inV}); err != nil {
			return err
		}
	}
	return nil
}
