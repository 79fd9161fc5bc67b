// Package lsp speaks the language-server wire protocol over a child
// process's standard input/output and pools clients per language.
package lsp

import (
	"encoding/json"
)

// JSON-RPC 2.0 framing types.

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error object.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// LSP structures, the subset extraction and query need. Positions are
// 0-based on the wire; the extract layer converts to the 1-based model.

type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type InitializeParams struct {
	ProcessID    int                `json:"processId,omitempty"`
	RootURI      string             `json:"rootUri,omitempty"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

// ClientCapabilities advertises hierarchical document symbols so servers
// return trees instead of flat lists.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type TextDocumentClientCapabilities struct {
	DocumentSymbol *DocumentSymbolClientCapabilities `json:"documentSymbol,omitempty"`
}

type DocumentSymbolClientCapabilities struct {
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities keeps provider fields as raw JSON: servers send
// either booleans or option objects, and only presence matters here.
type ServerCapabilities struct {
	DocumentSymbolProvider  json.RawMessage `json:"documentSymbolProvider,omitempty"`
	WorkspaceSymbolProvider json.RawMessage `json:"workspaceSymbolProvider,omitempty"`
	DefinitionProvider      json.RawMessage `json:"definitionProvider,omitempty"`
	ReferencesProvider      json.RawMessage `json:"referencesProvider,omitempty"`
	TypeDefinitionProvider  json.RawMessage `json:"typeDefinitionProvider,omitempty"`
	ImplementationProvider  json.RawMessage `json:"implementationProvider,omitempty"`
	CallHierarchyProvider   json.RawMessage `json:"callHierarchyProvider,omitempty"`
	HoverProvider           json.RawMessage `json:"hoverProvider,omitempty"`
}

// providerEnabled interprets a provider capability value: absent or
// literal false means unsupported, anything else supported.
func providerEnabled(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return true // an options object
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol is the hierarchical symbol node.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           int              `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat form returned by workspace/symbol and
// by servers without hierarchical support.
type SymbolInformation struct {
	Name          string   `json:"name"`
	Kind          int      `json:"kind"`
	Location      Location `json:"location"`
	ContainerName string   `json:"containerName,omitempty"`
}

type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type CallHierarchyPrepareParams struct {
	TextDocumentPositionParams
}

type CallHierarchyItem struct {
	Name           string `json:"name"`
	Kind           int    `json:"kind"`
	Detail         string `json:"detail,omitempty"`
	URI            string `json:"uri"`
	Range          Range  `json:"range"`
	SelectionRange Range  `json:"selectionRange"`
}

type CallHierarchyIncomingCallsParams struct {
	Item CallHierarchyItem `json:"item"`
}

type CallHierarchyOutgoingCallsParams struct {
	Item CallHierarchyItem `json:"item"`
}

type CallHierarchyIncomingCall struct {
	From       CallHierarchyItem `json:"from"`
	FromRanges []Range           `json:"fromRanges"`
}

type CallHierarchyOutgoingCall struct {
	To         CallHierarchyItem `json:"to"`
	FromRanges []Range           `json:"fromRanges"`
}

type Hover struct {
	Contents json.RawMessage `json:"contents"`
}

// LSP SymbolKind values (the protocol's own numbering).
const (
	SKFile          = 1
	SKModule        = 2
	SKNamespace     = 3
	SKPackage       = 4
	SKClass         = 5
	SKMethod        = 6
	SKProperty      = 7
	SKField         = 8
	SKConstructor   = 9
	SKEnum          = 10
	SKInterface     = 11
	SKFunction      = 12
	SKVariable      = 13
	SKConstant      = 14
	SKString        = 15
	SKNumber        = 16
	SKBoolean       = 17
	SKArray         = 18
	SKObject        = 19
	SKKey           = 20
	SKNull          = 21
	SKEnumMember    = 22
	SKStruct        = 23
	SKEvent         = 24
	SKOperator      = 25
	SKTypeParameter = 26
)
