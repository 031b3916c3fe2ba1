package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Mr-Dark-debug/spanview/internal/database"

	"github.com/urfave/cli/v3"
)

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Query traces and spans",
		Flags: append(storeFlags(),
			&cli.StringFlag{
				Name:  "trace",
				Usage: "Show the spans of a specific trace",
			},
			&cli.StringFlag{
				Name:  "search",
				Usage: "Substring search over span names, services and tags",
			},
			&cli.StringFlag{
				Name:  "service",
				Usage: "Filter traces by root service",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter traces by status: ok, error",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum results",
				Value: 20,
			},
		),
		Action: runQuery,
	}
}

func runQuery(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	limit := int(cmd.Int("limit"))

	if q := cmd.String("search"); q != "" {
		results, err := store.SearchContent(q, limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return printJSON(os.Stdout, results)
	}

	if id := cmd.String("trace"); id != "" {
		spans, err := store.QueryTimeline(id)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return printJSON(os.Stdout, spans)
	}

	filter := database.TraceFilter{Limit: limit}
	if s := cmd.String("service"); s != "" {
		filter.Service = &s
	}
	if s := cmd.String("status"); s != "" {
		filter.Status = &s
	}
	traces, err := store.QueryTraces(filter)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printJSON(os.Stdout, traces)
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
