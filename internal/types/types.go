// Package types defines the language-agnostic symbol model shared by the
// extraction pipeline, the graph, the store, and the query engine.
package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindFunction   SymbolKind = "function"
	KindMethod     SymbolKind = "method"
	KindStruct     SymbolKind = "struct"
	KindInterface  SymbolKind = "interface"
	KindEnum       SymbolKind = "enum"
	KindEnumMember SymbolKind = "enum-member"
	KindField      SymbolKind = "field"
	KindVariable   SymbolKind = "variable"
	KindConstant   SymbolKind = "constant"
	KindModule     SymbolKind = "module"
	KindTypeAlias  SymbolKind = "type-alias"
	KindParameter  SymbolKind = "parameter"
	KindOther      SymbolKind = "other"
)

// IsContainer reports whether symbols of this kind may own child symbols.
func (k SymbolKind) IsContainer() bool {
	switch k {
	case KindStruct, KindInterface, KindEnum, KindModule:
		return true
	}
	return false
}

// EdgeKind is the type of a directed relation between two symbols.
type EdgeKind string

const (
	EdgeDefines     EdgeKind = "defines"
	EdgeReferences  EdgeKind = "references"
	EdgeCalls       EdgeKind = "calls"
	EdgeImplements  EdgeKind = "implements"
	EdgeExtends     EdgeKind = "extends"
	EdgeHasType     EdgeKind = "has-type"
	EdgeReturnsType EdgeKind = "returns-type"
	EdgeTakesType   EdgeKind = "takes-type"
	EdgeHasField    EdgeKind = "has-field"
	EdgeContains    EdgeKind = "contains"
)

// AllEdgeKinds lists every edge kind in a stable order. Used by the graph
// to build and walk its per-kind adjacency indexes.
var AllEdgeKinds = []EdgeKind{
	EdgeDefines, EdgeReferences, EdgeCalls, EdgeImplements, EdgeExtends,
	EdgeHasType, EdgeReturnsType, EdgeTakesType, EdgeHasField, EdgeContains,
}

// Position is a 1-based (line, column) location in a file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Range is a half-open [Start, End) span over positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos falls inside the half-open range.
func (r Range) Contains(pos Position) bool {
	if pos.Before(r.Start) {
		return false
	}
	return pos.Before(r.End)
}

// Span returns an ordering measure for "smallest range wins" tie-breaks.
// Line distance dominates; column distance breaks same-line ties.
func (r Range) Span() int {
	return (r.End.Line-r.Start.Line)*10000 + (r.End.Column - r.Start.Column)
}

// SymbolID is the stable textual identity of a symbol:
// <relative-file-path>#<line>:<column>:<name>, with a 1-based defining
// position. The file path participates in identity, so renaming a file
// rewrites the ids of everything it owns.
type SymbolID string

// MakeSymbolID assembles an id from its parts.
func MakeSymbolID(file string, line, column int, name string) SymbolID {
	return SymbolID(file + "#" + strconv.Itoa(line) + ":" + strconv.Itoa(column) + ":" + name)
}

// ParseSymbolID splits an id back into its parts. The name may itself
// contain colons (operators, C++ qualified names), so only the first two
// colon-separated fields after '#' are positional.
func ParseSymbolID(id SymbolID) (file string, line, column int, name string, err error) {
	s := string(id)
	hash := strings.LastIndex(s, "#")
	if hash < 0 {
		return "", 0, 0, "", fmt.Errorf("malformed symbol id %q: missing '#'", id)
	}
	file = s[:hash]
	rest := s[hash+1:]
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return "", 0, 0, "", fmt.Errorf("malformed symbol id %q: want line:column:name", id)
	}
	line, err = strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("malformed symbol id %q: bad line: %w", id, err)
	}
	column, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, "", fmt.Errorf("malformed symbol id %q: bad column: %w", id, err)
	}
	return file, line, column, parts[2], nil
}

// File returns the path component of the id, or "" if malformed.
func (id SymbolID) File() string {
	if i := strings.LastIndex(string(id), "#"); i >= 0 {
		return string(id)[:i]
	}
	return ""
}

// WithFile returns the id rewritten onto a new file path, keeping the
// position and name. Used when a file is renamed.
func (id SymbolID) WithFile(newFile string) SymbolID {
	if i := strings.LastIndex(string(id), "#"); i >= 0 {
		return SymbolID(newFile + string(id)[i:])
	}
	return id
}

// Symbol is a uniquely identified declaration.
type Symbol struct {
	ID             SymbolID   `json:"id"`
	Name           string     `json:"name"`
	Kind           SymbolKind `json:"kind"`
	File           string     `json:"file"`
	Range          Range      `json:"range"`
	SelectionRange Range      `json:"selection_range"`
	Container      SymbolID   `json:"container,omitempty"`
	Documentation  string     `json:"documentation,omitempty"`
	Signature      string     `json:"signature,omitempty"`
	Language       string     `json:"language,omitempty"`
	Exported       bool       `json:"exported,omitempty"`
}

// Clone returns a copy of the symbol.
func (s *Symbol) Clone() *Symbol {
	c := *s
	return &c
}

// Edge is a typed, directed relation between two symbol ids. At most one
// edge of a given kind exists per ordered (Src, Dst) pair.
type Edge struct {
	Src  SymbolID `json:"src"`
	Dst  SymbolID `json:"dst"`
	Kind EdgeKind `json:"kind"`
}

// FileRecord is the per-file bookkeeping the store keeps between cycles:
// content fingerprint, index timestamp and the set of owned symbol ids.
type FileRecord struct {
	Path          string     `json:"path"`
	Hash          uint64     `json:"hash"`
	LastIndexedAt time.Time  `json:"last_indexed_at"`
	Symbols       []SymbolID `json:"symbols"`
}

// ExtractionSource identifies which strategy produced a result. It is
// informational only: tests and metrics read it, nothing downstream
// branches on it.
type ExtractionSource string

const (
	SourcePrimary   ExtractionSource = "primary"
	SourceWorkspace ExtractionSource = "workspace"
	SourceFallback  ExtractionSource = "fallback"
)

// ExtractionResult is the pure bundle one strategy yields for one file.
type ExtractionResult struct {
	File    string           `json:"file"`
	Symbols []*Symbol        `json:"symbols"`
	Edges   []Edge           `json:"edges"`
	Source  ExtractionSource `json:"source"`
}

// Empty reports whether the result carries no symbols.
func (r *ExtractionResult) Empty() bool {
	return r == nil || len(r.Symbols) == 0
}

// Fingerprint computes the fast non-cryptographic 64-bit digest used for
// change detection and cache keys.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// FingerprintString hashes a string without copying.
func FingerprintString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// FingerprintFile hashes a file's contents on disk.
func FingerprintFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
