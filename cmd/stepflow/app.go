package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/dukex/stepflow/pkg/export"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/templates"
	cli "github.com/urfave/cli/v3"
)

var errMissingFile = errors.New("a workflow file (.hcl or .json) is required")

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "stepflow",
		Usage: "Check, render and export workflow files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Check a workflow file against the document schema and graph rules",
				ArgsUsage: "<file>",
				Action: func(_ context.Context, command *cli.Command) error {
					store, err := load(command)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintf(w, "%s: ok (%d steps, %d connections)\n",
						store.Name(), store.Len(), len(store.Connections()))

					return err
				},
			},
			{
				Name:      "render",
				Usage:     "Print the canvas nodes and edges of a workflow file as JSON",
				ArgsUsage: "<file>",
				Action: func(_ context.Context, command *cli.Command) error {
					store, err := load(command)
					if err != nil {
						return err
					}

					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")

					return enc.Encode(canvas.Project(store))
				},
			},
			{
				Name:      "export",
				Usage:     "Normalise a workflow file and write it as an export file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Directory to write the export file to",
						Value:   ".",
					},
				},
				Action: func(_ context.Context, command *cli.Command) error {
					store, err := load(command)
					if err != nil {
						return err
					}

					doc := store.Document()

					path, err := export.NewExporter(command.String("out")).Write(&doc)
					if err != nil {
						return err
					}

					_, err = fmt.Fprintln(w, path)

					return err
				},
			},
		},
	}
}

func load(command *cli.Command) (*graph.Store, error) {
	path := command.Args().First()
	if path == "" {
		return nil, errMissingFile
	}

	doc, err := templates.ParseFile(path)
	if err != nil {
		return nil, err
	}

	store, err := graph.FromDocument(doc, graph.WithLogger(log.WithModule("graph")))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return store, nil
}
