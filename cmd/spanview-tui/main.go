// spanview TUI: interactive trace waterfall viewer.
//
// Usage:
//
//	spanview-tui [flags]
//
// Flags:
//
//	--config  Path to config file (default: ~/.spanview/config.yaml)
//	--db      Path to SQLite database file (overrides config)
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Mr-Dark-debug/spanview/internal/config"
	"github.com/Mr-Dark-debug/spanview/internal/database"
	"github.com/Mr-Dark-debug/spanview/internal/tui"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "spanview-tui",
		Usage: "Interactive trace waterfall viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file (default: ~/.spanview/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to SQLite database file (overrides config)",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("db") {
		cfg.DBPath = cmd.String("db")
	}

	// The alt screen owns stdout, so logs go to a file.
	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "spanview")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	store, err := database.NewDBService(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database at %s: %w\n"+
			"Import traces first with: spanview import <file>", cfg.DBPath, err)
	}
	defer store.Close()

	model := tui.NewModel(store, tui.Options{
		SpanNameColumnWidth: cfg.SpanNameColumnWidth,
		ViewRange:           waterfall.ViewRange{Start: cfg.ViewStart, End: cfg.ViewEnd},
		TraceLimit:          cfg.TraceLimit,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
