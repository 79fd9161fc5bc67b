package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/symgraph/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "symgraph",
		Usage:                  "Persistent symbol-graph code index",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (defaults to the working directory)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit JSON instead of human-readable output",
			},
			&cli.BoolFlag{
				Name:  "fallback-only",
				Usage: "Skip language servers, use regex extraction only",
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			updateCommand(),
			definitionCommand(),
			referencesCommand(),
			symbolsCommand(),
			callsCommand(),
			unusedCommand(),
			typesCommand(),
			exportCommand(),
			statusCommand(),
			watchCommand(),
			serveCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "symgraph: %v\n", err)
		os.Exit(1)
	}
}
