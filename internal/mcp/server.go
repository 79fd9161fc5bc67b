// Package mcp exposes the index's query operations as MCP tools over
// stdio, so assistants can ask the graph questions without shelling out
// to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/symgraph/internal/debug"
	"github.com/standardbeagle/symgraph/internal/indexer"
	"github.com/standardbeagle/symgraph/internal/query"
	"github.com/standardbeagle/symgraph/internal/types"
	"github.com/standardbeagle/symgraph/internal/version"
)

// Server wires the indexer and query engine behind MCP tools.
type Server struct {
	ix     *indexer.Indexer
	server *mcp.Server
}

// NewServer builds the tool surface over an opened indexer.
func NewServer(ix *indexer.Indexer) *Server {
	s := &Server{
		ix: ix,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "symgraph",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until ctx is done. Debug output is
// suppressed to keep the protocol stream clean.
func (s *Server) Run(ctx context.Context) error {
	debug.SetMCPMode(true)
	defer debug.SetMCPMode(false)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

type UpdateArgs struct {
	Full bool `json:"full" jsonschema:"description:Rebuild the index from scratch instead of a differential update"`
}

type DefinitionArgs struct {
	File   string `json:"file" jsonschema:"required,description:Project-relative file path"`
	Line   int    `json:"line" jsonschema:"required,description:1-based line"`
	Column int    `json:"column" jsonschema:"required,description:1-based column"`
}

type SearchArgs struct {
	Query string `json:"query" jsonschema:"required,description:Symbol name or fuzzy pattern"`
	Fuzzy bool   `json:"fuzzy" jsonschema:"description:Enable fuzzy ranking"`
	Kind  string `json:"kind" jsonschema:"description:Restrict to a symbol kind (function, struct, ...)"`
	Limit int    `json:"limit" jsonschema:"description:Maximum results"`
}

type CallsArgs struct {
	Symbol    string `json:"symbol" jsonschema:"required,description:Symbol id (path#line:col:name)"`
	Direction string `json:"direction" jsonschema:"description:incoming, outgoing or both"`
	Depth     int    `json:"depth" jsonschema:"description:Maximum traversal depth"`
}

type UnusedArgs struct {
	PublicOnly bool   `json:"public_only" jsonschema:"description:Report exported symbols only"`
	Kind       string `json:"kind" jsonschema:"description:Restrict to a symbol kind"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update",
		Description: "Run one differential index cycle (or a full rebuild) over the project",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args UpdateArgs) (*mcp.CallToolResult, any, error) {
		var stats *indexer.CycleStats
		var err error
		if args.Full {
			stats, err = s.ix.Index(ctx)
		} else {
			stats, err = s.ix.Update(ctx)
		}
		if err != nil {
			return errorResult(fmt.Sprintf("index cycle failed: %v", err)), nil, nil
		}
		return jsonResult(stats), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "definition",
		Description: "Resolve the definitions referenced from a file position",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DefinitionArgs) (*mcp.CallToolResult, any, error) {
		engine := query.New(s.ix.Graph())
		symbols := engine.Definition(args.File, types.Position{Line: args.Line, Column: args.Column})
		return jsonResult(symbols), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "references",
		Description: "List every symbol referencing or calling the symbol at a file position",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DefinitionArgs) (*mcp.CallToolResult, any, error) {
		engine := query.New(s.ix.Graph())
		symbols := engine.References(args.File, types.Position{Line: args.Line, Column: args.Column})
		return jsonResult(symbols), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_symbols",
		Description: "Search workspace symbols by exact name or fuzzy pattern",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
		engine := query.New(s.ix.Graph())
		results := engine.Search(args.Query, query.SearchOptions{
			Fuzzy: args.Fuzzy,
			Kind:  query.ResolveKind(args.Kind),
			Limit: args.Limit,
		})
		return jsonResult(results), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "call_hierarchy",
		Description: "Walk incoming/outgoing call edges from a symbol",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CallsArgs) (*mcp.CallToolResult, any, error) {
		engine := query.New(s.ix.Graph())
		direction := query.HierarchyDirection(args.Direction)
		if direction == "" {
			direction = query.CallsBoth
		}
		result := engine.CallHierarchy(types.SymbolID(args.Symbol), direction, args.Depth)
		if result == nil {
			return errorResult(fmt.Sprintf("unknown symbol %q", args.Symbol)), nil, nil
		}
		return jsonResult(result), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "unused",
		Description: "Report symbols unreachable from any entry point, test or exported module",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args UnusedArgs) (*mcp.CallToolResult, any, error) {
		engine := query.New(s.ix.Graph())
		opts := query.UnusedOptions{PublicOnly: args.PublicOnly}
		if kind := query.ResolveKind(args.Kind); kind != "" {
			opts.Kinds = []types.SymbolKind{kind}
		}
		return jsonResult(engine.Unused(opts)), nil, nil
	})
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
