package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symgraph/internal/export"
	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/indexer"
	"github.com/standardbeagle/symgraph/internal/mcp"
	"github.com/standardbeagle/symgraph/internal/query"
	"github.com/standardbeagle/symgraph/internal/store"
	"github.com/standardbeagle/symgraph/internal/types"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSymbols(c *cli.Context, symbols []*types.Symbol) error {
	if c.Bool("json") {
		return printJSON(symbols)
	}
	if len(symbols) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, sym := range symbols {
		fmt.Printf("%s:%d:%d  %-10s %s\n",
			sym.File, sym.SelectionRange.Start.Line, sym.SelectionRange.Start.Column, sym.Kind, sym.Name)
	}
	return nil
}

func printStats(c *cli.Context, stats *indexer.CycleStats) error {
	if c.Bool("json") {
		return printJSON(stats)
	}
	fmt.Printf("files: +%d ~%d -%d renamed %d unchanged %d\n",
		stats.FilesAdded, stats.FilesModified, stats.FilesDeleted, stats.FilesRenamed, stats.FilesUnchanged)
	fmt.Printf("symbols: +%d -%d  edges: +%d -%d  (%s)\n",
		stats.SymbolsAdded, stats.SymbolsRemoved, stats.EdgesAdded, stats.EdgesRemoved, stats.Duration.Round(1e6))
	return nil
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Build the index from scratch",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			stats, err := a.ix.Index(c.Context)
			if err != nil {
				return err
			}
			return printStats(c, stats)
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Run one differential update cycle",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			stats, err := a.ix.Update(c.Context)
			if err != nil {
				return err
			}
			return printStats(c, stats)
		},
	}
}

func positionAction(run func(*query.Engine, string, types.Position) []*types.Symbol) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 3 {
			return fmt.Errorf("usage: <file> <line> <column>")
		}
		line, column, err := parsePosition(c.Args().Get(1), c.Args().Get(2))
		if err != nil {
			return err
		}
		a, err := openApp(c)
		if err != nil {
			return err
		}
		defer a.close()
		engine := query.New(a.ix.Graph())
		symbols := run(engine, c.Args().Get(0), types.Position{Line: line, Column: column})
		return printSymbols(c, symbols)
	}
}

func definitionCommand() *cli.Command {
	return &cli.Command{
		Name:      "definition",
		Usage:     "Resolve the definitions referenced from a position",
		ArgsUsage: "<file> <line> <column>",
		Action:    positionAction((*query.Engine).Definition),
	}
}

func referencesCommand() *cli.Command {
	return &cli.Command{
		Name:      "references",
		Usage:     "List referrers and callers of the symbol at a position",
		ArgsUsage: "<file> <line> <column>",
		Action:    positionAction((*query.Engine).References),
	}
}

func symbolsCommand() *cli.Command {
	return &cli.Command{
		Name:      "symbols",
		Usage:     "Search workspace symbols",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fuzzy", Aliases: []string{"f"}, Usage: "Fuzzy ranking instead of exact-name lookup"},
			&cli.StringFlag{Name: "kind", Usage: "Restrict to a symbol kind"},
			&cli.StringFlag{Name: "file", Usage: "Restrict to files matching a glob"},
			&cli.StringFlag{Name: "returns", Usage: "Require a return-type substring"},
			&cli.StringFlag{Name: "takes", Usage: "Require a parameter-type substring"},
			&cli.StringFlag{Name: "field-type", Usage: "Require a field-type substring"},
			&cli.StringFlag{Name: "implements", Usage: "Require an implemented interface/trait name"},
			&cli.IntFlag{Name: "limit", Value: query.DefaultSearchLimit, Usage: "Maximum results"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: symbols <query>")
			}
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			engine := query.New(a.ix.Graph())
			results := engine.Search(c.Args().First(), query.SearchOptions{
				Fuzzy:      c.Bool("fuzzy"),
				Kind:       query.ResolveKind(c.String("kind")),
				FileGlob:   c.String("file"),
				ReturnType: c.String("returns"),
				ParamType:  c.String("takes"),
				FieldType:  c.String("field-type"),
				Implements: c.String("implements"),
				Limit:      c.Int("limit"),
			})
			if c.Bool("json") {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for _, result := range results {
				sym := result.Symbol
				fmt.Printf("%.2f  %s:%d:%d  %-10s %s\n", result.Score,
					sym.File, sym.SelectionRange.Start.Line, sym.SelectionRange.Start.Column, sym.Kind, sym.Name)
			}
			return nil
		},
	}
}

// resolveSymbolArg accepts either a full symbol id or a bare name with
// a unique exact match.
func resolveSymbolArg(g *graph.Graph, arg string) (types.SymbolID, error) {
	if strings.Contains(arg, "#") {
		if g.Symbol(types.SymbolID(arg)) == nil {
			return "", fmt.Errorf("unknown symbol id %q", arg)
		}
		return types.SymbolID(arg), nil
	}
	matches := g.ByName(arg)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no symbol named %q", arg)
	case 1:
		return matches[0].ID, nil
	default:
		var ids []string
		for _, sym := range matches {
			ids = append(ids, string(sym.ID))
		}
		return "", fmt.Errorf("ambiguous name %q, candidates:\n  %s", arg, strings.Join(ids, "\n  "))
	}
}

func callsCommand() *cli.Command {
	return &cli.Command{
		Name:      "calls",
		Usage:     "Walk the call hierarchy from a symbol",
		ArgsUsage: "<symbol-id-or-name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "direction", Aliases: []string{"d"}, Value: "both", Usage: "incoming, outgoing or both"},
			&cli.IntFlag{Name: "depth", Value: query.DefaultCallDepth, Usage: "Maximum traversal depth"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: calls <symbol>")
			}
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			engine := query.New(a.ix.Graph())
			id, err := resolveSymbolArg(a.ix.Graph(), c.Args().First())
			if err != nil {
				return err
			}
			result := engine.CallHierarchy(id, query.HierarchyDirection(c.String("direction")), c.Int("depth"))
			if c.Bool("json") {
				return printJSON(result)
			}
			fmt.Printf("%s\n", result.Root.ID)
			printCallNodes(result.Incoming, "<- ")
			printCallNodes(result.Outgoing, "-> ")
			return nil
		},
	}
}

func printCallNodes(nodes []*query.CallNode, arrow string) {
	for _, node := range nodes {
		fmt.Printf("%s%s%s\n", strings.Repeat("  ", node.Depth), arrow, node.Symbol.ID)
		printCallNodes(node.Children, arrow)
	}
}

func unusedCommand() *cli.Command {
	return &cli.Command{
		Name:  "unused",
		Usage: "Report symbols unreachable from any root",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "public-only", Usage: "Report exported symbols only"},
			&cli.StringFlag{Name: "kind", Usage: "Restrict to a symbol kind"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			engine := query.New(a.ix.Graph())
			opts := query.UnusedOptions{PublicOnly: c.Bool("public-only")}
			if kind := query.ResolveKind(c.String("kind")); kind != "" {
				opts.Kinds = []types.SymbolKind{kind}
			}
			return printSymbols(c, engine.Unused(opts))
		},
	}
}

func typesCommand() *cli.Command {
	return &cli.Command{
		Name:      "types",
		Usage:     "Show the type hierarchy around a symbol",
		ArgsUsage: "<symbol-id-or-name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: types <symbol>")
			}
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			engine := query.New(a.ix.Graph())
			id, err := resolveSymbolArg(a.ix.Graph(), c.Args().First())
			if err != nil {
				return err
			}
			result := engine.TypeHierarchy(id)
			if c.Bool("json") {
				return printJSON(result)
			}
			fmt.Printf("%s\n", result.Root.ID)
			printTypeNodes(result.Supertypes, "^ ")
			printTypeNodes(result.Subtypes, "v ")
			return nil
		},
	}
}

func printTypeNodes(nodes []*query.TypeNode, arrow string) {
	for _, node := range nodes {
		fmt.Printf("  %s%s (%s)\n", arrow, node.Symbol.ID, node.Relation)
		printTypeNodes(node.Children, arrow)
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the graph (lsif or json)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: export.FormatJSON, Usage: "lsif or json"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (defaults to stdout)"},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			out := os.Stdout
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return export.Write(out, a.ix.Graph(), c.String("format"))
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show index statistics",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			revision, _ := a.ix.Store().Meta(store.MetaLastRevision)
			schema, _ := a.ix.Store().Meta(store.MetaSchemaVersion)
			records, err := a.ix.Store().AllFileRecords()
			if err != nil {
				return err
			}
			status := map[string]interface{}{
				"store":         a.ix.Store().Path(),
				"schemaVersion": schema,
				"lastRevision":  revision,
				"files":         len(records),
				"symbols":       a.ix.Graph().Len(),
				"edges":         a.ix.Graph().EdgeLen(),
			}
			if c.Bool("json") {
				return printJSON(status)
			}
			fmt.Printf("store:     %s (schema v%s)\n", status["store"], schema)
			fmt.Printf("revision:  %s\n", revision)
			fmt.Printf("files:     %d\n", status["files"])
			fmt.Printf("symbols:   %d\n", status["symbols"])
			fmt.Printf("edges:     %d\n", status["edges"])
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the tree and update the index on changes",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			if _, err := a.ix.Update(c.Context); err != nil {
				return err
			}
			w, err := indexer.NewWatcher(a.ix)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "watching for changes (ctrl-c to stop)")
			err = w.Run(c.Context, func(stats *indexer.CycleStats, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "update failed: %v\n", err)
					return
				}
				_ = printStats(c, stats)
			})
			if err == c.Context.Err() {
				return nil
			}
			return err
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the index over MCP stdio",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.close()
			return mcp.NewServer(a.ix).Run(c.Context)
		},
	}
}
