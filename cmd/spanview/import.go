package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mr-Dark-debug/spanview/internal/importer"

	"github.com/urfave/cli/v3"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import OTLP JSON Lines trace exports",
		ArgsUsage: "[file...]",
		Description: `Reads TracesData messages, one per line, as written by the OpenTelemetry
Collector file exporter. With no files, reads stdin. With --watch, keeps
following the files and imports lines as they are appended.`,
		Flags: append(storeFlags(),
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Follow the files after importing them",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Spans per database transaction (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log per-file progress",
			},
		),
		Action: runImport,
	}
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("batch-size") {
		cfg.ImportBatchSize = int(cmd.Int("batch-size"))
	}
	watch := cfg.Watch || cmd.Bool("watch")
	files := cmd.Args().Slice()
	if watch && len(files) == 0 {
		return fmt.Errorf("--watch needs at least one file")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	im := importer.New(importer.Config{
		BatchSize:     cfg.ImportBatchSize,
		FlushInterval: cfg.ImportFlushInterval,
		Verbose:       cmd.Bool("verbose"),
	}, store)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case watch:
		err = im.Watch(ctx, files...)
	case len(files) == 0:
		_, err = im.ImportReader(ctx, os.Stdin, "stdin")
	default:
		for _, f := range files {
			if _, err = im.ImportFile(ctx, f); err != nil {
				break
			}
		}
	}

	m := im.Metrics()
	log.Printf("[INFO] Imported %d spans in %d batches (%d lines, %d skipped, %d errors)",
		m.Spans, m.Batches, m.Lines, m.BadLines, m.Errors)
	return err
}
