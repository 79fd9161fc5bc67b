package query

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// DefaultSearchLimit caps workspace symbol search results.
const DefaultSearchLimit = 50

// stemScore is what a porter-stem equality earns when none of the
// primary clauses match. Sits above the threshold but under every
// explicit clause so stem hits only pad the tail of the ranking.
const stemScore = 0.40

// SearchOptions filters and shapes a workspace symbol search.
type SearchOptions struct {
	Fuzzy      bool
	Kind       types.SymbolKind // empty = all kinds
	FileGlob   string
	ReturnType string // substring over the signature's return position
	ParamType  string // substring over the signature's parameter list
	FieldType  string // substring over field signatures
	Implements string // name of an implemented interface/trait
	Limit      int
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Symbol *types.Symbol
	Score  float64
}

// Search runs exact-name lookup, or fuzzy ranking over every candidate
// name when opts.Fuzzy is set. Results are sorted by descending score,
// tie-broken by shorter name then file path.
func (e *Engine) Search(query string, opts SearchOptions) []SearchResult {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var results []SearchResult
	if !opts.Fuzzy {
		for _, sym := range e.g.ByName(query) {
			if e.matchesFilters(sym, opts) {
				results = append(results, SearchResult{Symbol: sym, Score: ScoreEqual})
			}
		}
	} else {
		queryStem := porter2.Stem(strings.ToLower(query))
		for _, name := range e.g.Names() {
			score := FuzzyScore(query, name)
			if score == 0 && queryStem != "" && porter2.Stem(strings.ToLower(name)) == queryStem {
				score = stemScore
			}
			if score == 0 {
				continue
			}
			for _, sym := range e.g.ByName(name) {
				if e.matchesFilters(sym, opts) {
					results = append(results, SearchResult{Symbol: sym, Score: score})
				}
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Symbol.Name) != len(b.Symbol.Name) {
			return len(a.Symbol.Name) < len(b.Symbol.Name)
		}
		if a.Symbol.File != b.Symbol.File {
			return a.Symbol.File < b.Symbol.File
		}
		return a.Symbol.ID < b.Symbol.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (e *Engine) matchesFilters(sym *types.Symbol, opts SearchOptions) bool {
	if opts.Kind != "" && sym.Kind != opts.Kind {
		return false
	}
	if opts.FileGlob != "" {
		if ok, _ := doublestar.Match(opts.FileGlob, sym.File); !ok {
			return false
		}
	}
	if opts.ReturnType != "" && !strings.Contains(returnPart(sym.Signature), opts.ReturnType) {
		return false
	}
	if opts.ParamType != "" && !strings.Contains(paramPart(sym.Signature), opts.ParamType) {
		return false
	}
	if opts.FieldType != "" {
		if sym.Kind != types.KindField || !strings.Contains(sym.Signature, opts.FieldType) {
			return false
		}
	}
	if opts.Implements != "" && !e.implementsNamed(sym, opts.Implements) {
		return false
	}
	return true
}

// returnPart isolates the return position of a signature: everything
// after "->" (Rust, Python hints) or after the closing parenthesis.
func returnPart(signature string) string {
	if i := strings.LastIndex(signature, "->"); i >= 0 {
		return signature[i+2:]
	}
	if i := strings.LastIndex(signature, ")"); i >= 0 {
		return signature[i+1:]
	}
	return ""
}

// paramPart isolates the parenthesized parameter list.
func paramPart(signature string) string {
	open := strings.Index(signature, "(")
	end := strings.LastIndex(signature, ")")
	if open >= 0 && end > open {
		return signature[open+1 : end]
	}
	return ""
}

func (e *Engine) implementsNamed(sym *types.Symbol, interfaceName string) bool {
	for _, target := range e.g.Neighbors(sym.ID, types.EdgeImplements, graph.Outgoing) {
		if iface := e.g.Symbol(target); iface != nil && iface.Name == interfaceName {
			return true
		}
	}
	return false
}

// kindAliases maps user spellings to model kinds before the edit-
// distance resolver takes over.
var kindAliases = map[string]types.SymbolKind{
	"fn":        types.KindFunction,
	"func":      types.KindFunction,
	"function":  types.KindFunction,
	"method":    types.KindMethod,
	"class":     types.KindStruct,
	"struct":    types.KindStruct,
	"trait":     types.KindInterface,
	"interface": types.KindInterface,
	"enum":      types.KindEnum,
	"field":     types.KindField,
	"var":       types.KindVariable,
	"variable":  types.KindVariable,
	"const":     types.KindConstant,
	"constant":  types.KindConstant,
	"module":    types.KindModule,
	"namespace": types.KindModule,
	"type":      types.KindTypeAlias,
	"alias":     types.KindTypeAlias,
	"param":     types.KindParameter,
	"parameter": types.KindParameter,
}

// ResolveKind maps a user-supplied kind string to the nearest symbol
// kind, tolerating typos via edit distance. Returns "" when nothing is
// plausibly close.
func ResolveKind(input string) types.SymbolKind {
	if input == "" {
		return ""
	}
	lower := strings.ToLower(input)
	if kind, ok := kindAliases[lower]; ok {
		return kind
	}

	best := types.SymbolKind("")
	bestDistance := 3 // tolerate at most two edits
	for alias, kind := range kindAliases {
		distance := edlib.LevenshteinDistance(lower, alias)
		if distance < bestDistance {
			bestDistance = distance
			best = kind
		}
	}
	return best
}
