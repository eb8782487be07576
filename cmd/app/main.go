package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/archgraph/internal"
	"github.com/starford/archgraph/internal/apperr"
	pkgconfig "github.com/starford/archgraph/pkg/config"
)

var version = "dev"

type entrypoint func(ctx context.Context, opts ...internal.Option) error

func action(run entrypoint, extra ...internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOrDefault(cmd.String("config"), cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if root := cmd.String("root"); root != "" {
			cfg.Corpus.Root = root
		}

		opts := append([]internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}, extra...)
		return run(ctx, opts...)
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "archgraph",
		Usage:   "Index and validate an architecture documentation corpus",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("ARCHGRAPH_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root (overrides corpus.root)",
				Sources: cli.EnvVars("ARCHGRAPH_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build the reference index and the query mirror",
				Action: action(internal.Index),
			},
			{
				Name:   "check",
				Usage:  "Validate the corpus without writing anything",
				Action: action(internal.Check),
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP query API and rebuild on corpus changes",
				Action: action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the query tools over MCP stdio",
				Action: action(internal.MCP, internal.WithLogOutput(os.Stderr)),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, apperr.ErrValidation) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
