// Package extract turns files into symbols and edges through an ordered
// chain of strategies: a language-server documentSymbol extractor, a
// workspace-wide extractor, a hybrid of the two, and a regex fallback.
package extract

import (
	"strings"
	"unicode"

	"github.com/standardbeagle/symgraph/internal/lsp"
	"github.com/standardbeagle/symgraph/internal/types"
)

// kindFromLSP maps the protocol's numeric symbol kinds onto the model.
func kindFromLSP(kind int) types.SymbolKind {
	switch kind {
	case lsp.SKFunction, lsp.SKConstructor:
		return types.KindFunction
	case lsp.SKMethod:
		return types.KindMethod
	case lsp.SKClass, lsp.SKStruct, lsp.SKObject:
		return types.KindStruct
	case lsp.SKInterface:
		return types.KindInterface
	case lsp.SKEnum:
		return types.KindEnum
	case lsp.SKEnumMember:
		return types.KindEnumMember
	case lsp.SKField, lsp.SKProperty, lsp.SKKey:
		return types.KindField
	case lsp.SKVariable:
		return types.KindVariable
	case lsp.SKConstant:
		return types.KindConstant
	case lsp.SKModule, lsp.SKNamespace, lsp.SKPackage:
		return types.KindModule
	case lsp.SKTypeParameter:
		return types.KindParameter
	}
	return types.KindOther
}

// fromWire converts a 0-based wire position to the 1-based model.
func fromWire(p lsp.Position) types.Position {
	return types.Position{Line: p.Line + 1, Column: p.Character + 1}
}

func rangeFromWire(r lsp.Range) types.Range {
	return types.Range{Start: fromWire(r.Start), End: fromWire(r.End)}
}

// isExported applies the per-language visibility heuristic the
// dead-code detector roots on. Servers do not report visibility through
// documentSymbol, so this is a name/signature convention check.
func isExported(language, name, signature string) bool {
	switch language {
	case "go":
		r := []rune(name)
		return len(r) > 0 && unicode.IsUpper(r[0])
	case "rust":
		return strings.Contains(signature, "pub ") || strings.HasPrefix(signature, "pub")
	case "python":
		return !strings.HasPrefix(name, "_")
	case "typescript":
		return !strings.HasPrefix(name, "#") && !strings.HasPrefix(name, "_")
	}
	return true
}

// fromDocumentSymbols flattens a hierarchical documentSymbol tree into
// symbols plus parent->child contains edges.
func fromDocumentSymbols(file, language string, nodes []lsp.DocumentSymbol) ([]*types.Symbol, []types.Edge) {
	var symbols []*types.Symbol
	var edges []types.Edge

	var walk func(node lsp.DocumentSymbol, parent types.SymbolID)
	walk = func(node lsp.DocumentSymbol, parent types.SymbolID) {
		sel := rangeFromWire(node.SelectionRange)
		s := &types.Symbol{
			ID:             types.MakeSymbolID(file, sel.Start.Line, sel.Start.Column, node.Name),
			Name:           node.Name,
			Kind:           kindFromLSP(node.Kind),
			File:           file,
			Range:          rangeFromWire(node.Range),
			SelectionRange: sel,
			Container:      parent,
			Signature:      node.Detail,
			Language:       language,
			Exported:       isExported(language, node.Name, node.Detail),
		}
		symbols = append(symbols, s)
		if parent != "" {
			edges = append(edges, types.Edge{Src: parent, Dst: s.ID, Kind: types.EdgeContains})
		}
		for _, child := range node.Children {
			walk(child, s.ID)
		}
	}
	for _, node := range nodes {
		walk(node, "")
	}
	return symbols, edges
}

// fromSymbolInformation converts the flat wire form. Container linkage
// arrives as a name only, so contains edges are resolved by matching
// the container name among the same file's symbols.
func fromSymbolInformation(file, language string, infos []lsp.SymbolInformation) ([]*types.Symbol, []types.Edge) {
	symbols := make([]*types.Symbol, 0, len(infos))
	byName := make(map[string]types.SymbolID, len(infos))

	for _, info := range infos {
		r := rangeFromWire(info.Location.Range)
		s := &types.Symbol{
			ID:             types.MakeSymbolID(file, r.Start.Line, r.Start.Column, info.Name),
			Name:           info.Name,
			Kind:           kindFromLSP(info.Kind),
			File:           file,
			Range:          r,
			SelectionRange: r,
			Language:       language,
			Exported:       isExported(language, info.Name, ""),
		}
		symbols = append(symbols, s)
		byName[info.Name] = s.ID
	}

	var edges []types.Edge
	for i, info := range infos {
		if info.ContainerName == "" {
			continue
		}
		if parent, ok := byName[info.ContainerName]; ok && parent != symbols[i].ID {
			symbols[i].Container = parent
			edges = append(edges, types.Edge{Src: parent, Dst: symbols[i].ID, Kind: types.EdgeContains})
		}
	}
	return symbols, edges
}
