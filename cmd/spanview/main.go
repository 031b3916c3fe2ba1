// spanview CLI: import OTLP trace exports, query the trace store and
// dump waterfall rows without a terminal UI.
//
// Usage:
//
//	spanview <command> [flags]
//
// Commands:
//
//	import    Import OTLP JSON Lines files (or stdin)
//	query     List traces, spans of a trace, or search span content
//	rows      Print the visible waterfall rows of a trace
//	version   Print version information
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mr-Dark-debug/spanview/internal/config"
	"github.com/Mr-Dark-debug/spanview/internal/database"

	"github.com/urfave/cli/v3"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	app := &cli.Command{
		Name:    "spanview",
		Usage:   "Distributed trace waterfall viewer",
		Version: Version,
		Commands: []*cli.Command{
			importCommand(),
			queryCommand(),
			rowsCommand(),
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("spanview v%s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// storeFlags are accepted by every command touching the database.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config file (default: ~/.spanview/config.yaml)",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "Path to SQLite database file (overrides config)",
		},
	}
}

// loadConfig resolves the config and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("db") {
		cfg.DBPath = cmd.String("db")
	}
	return cfg, nil
}

// openStore opens the configured database, creating its directory.
func openStore(cfg *config.Config) (*database.DBService, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	store, err := database.NewDBService(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", cfg.DBPath, err)
	}
	return store, nil
}
