package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Mr-Dark-debug/spanview/internal/search"
	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
	"github.com/Mr-Dark-debug/spanview/pkg/timeutil"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"
)

func rowsCommand() *cli.Command {
	return &cli.Command{
		Name:  "rows",
		Usage: "Print the visible waterfall rows of a trace",
		Description: `Lays out a trace the way the waterfall view does and prints one line per
row. Collapsed spans hide their descendants; expanded spans get a detail
row under their bar row.`,
		Flags: append(storeFlags(),
			&cli.StringFlag{
				Name:     "trace",
				Usage:    "Trace ID",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "collapse",
				Usage: "Span IDs whose children are hidden",
			},
			&cli.BoolFlag{
				Name:  "collapse-all",
				Usage: "Hide the children of every span",
			},
			&cli.StringSliceFlag{
				Name:  "expand",
				Usage: "Span IDs shown with a detail row",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Search text; matching spans are flagged",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print rows as JSON",
			},
		),
		Action: runRows,
	}
}

func runRows(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	id := cmd.String("trace")
	rec, err := store.GetTrace(id)
	if err != nil {
		return err
	}
	spans, err := store.QueryTimeline(id)
	if err != nil {
		return err
	}
	tr, err := trace.Transform(rec, spans)
	if err != nil {
		return err
	}

	rows, err := buildRows(tr, rowsOptions{
		Collapse:    cmd.StringSlice("collapse"),
		CollapseAll: cmd.Bool("collapse-all"),
		Expand:      cmd.StringSlice("expand"),
		Filter:      cmd.String("filter"),
		ViewRange:   waterfall.ViewRange{Start: cfg.ViewStart, End: cfg.ViewEnd},
		ColumnWidth: cfg.SpanNameColumnWidth,
	})
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return printJSON(os.Stdout, rows)
	}
	return printRows(os.Stdout, rows)
}

type rowsOptions struct {
	Collapse    []string
	CollapseAll bool
	Expand      []string
	Filter      string
	ViewRange   waterfall.ViewRange
	ColumnWidth float64
}

type rowOutput struct {
	Row       int    `json:"row"`
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	SpanIndex int    `json:"span_index"`
	Depth     int    `json:"depth"`
	Service   string `json:"service"`
	Operation string `json:"operation"`
	Duration  string `json:"duration"`
	Collapsed bool   `json:"collapsed,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Match     bool   `json:"match,omitempty"`
}

// immediateMatcher searches synchronously; the result is read right
// after the coordinator asked for it.
type immediateMatcher struct {
	matches waterfall.IDSet
}

func (m *immediateMatcher) Find(tr *trace.Trace, text string) {
	m.matches = search.Filter(tr, text)
}

// buildRows runs the trace through a coordinator and describes every
// row it maps.
func buildRows(tr *trace.Trace, opts rowsOptions) ([]rowOutput, error) {
	collapsed := waterfall.NewIDSet()
	for _, id := range opts.Collapse {
		if tr.SpanIndex(id) < 0 {
			return nil, fmt.Errorf("collapsing span %s: not in trace %s", id, tr.TraceID)
		}
		collapsed = collapsed.With(id)
	}
	if opts.CollapseAll {
		for _, s := range tr.Spans {
			if s.HasChildren {
				collapsed = collapsed.With(s.SpanID)
			}
		}
	}
	details := waterfall.DetailStates{}
	for _, id := range opts.Expand {
		if tr.SpanIndex(id) < 0 {
			return nil, fmt.Errorf("expanding span %s: not in trace %s", id, tr.TraceID)
		}
		details[id] = waterfall.NewDetailState()
	}
	if opts.ViewRange.End <= opts.ViewRange.Start {
		opts.ViewRange = waterfall.FullViewRange
	}

	matcher := &immediateMatcher{}
	props := waterfall.Props{
		Trace:               tr,
		ChildrenHidden:      collapsed,
		DetailStates:        details,
		ViewRange:           opts.ViewRange,
		TextFilter:          opts.Filter,
		SpanNameColumnWidth: opts.ColumnWidth,
	}
	coord := waterfall.NewCoordinator(nil, matcher, props)
	if opts.Filter != "" {
		props.FindMatches = matcher.matches
		coord.SetProps(props)
	}

	n := coord.RowCount()
	out := make([]rowOutput, 0, n)
	for i := 0; i < n; i++ {
		key, err := coord.KeyFromIndex(i)
		if err != nil {
			return nil, err
		}
		el, err := coord.RenderRow(key, i)
		if err != nil {
			return nil, err
		}
		spanIndex, err := coord.RowIndexToSpanIndex(i)
		if err != nil {
			return nil, err
		}
		s := tr.Spans[spanIndex]
		r := rowOutput{
			Row:       i,
			Key:       key,
			Kind:      el.Kind.String(),
			SpanIndex: spanIndex,
			Depth:     s.Depth,
			Service:   s.Process.ServiceName,
			Operation: s.OperationName,
			Duration:  timeutil.FormatDuration(s.Duration),
			Match:     props.FindMatches.Has(s.SpanID),
		}
		if el.Bar != nil {
			r.Collapsed = el.Bar.IsParent && !el.Bar.IsChildrenExpanded
			r.Error = el.Bar.ShowErrorIcon
		}
		out = append(out, r)
	}
	return out, nil
}

func printRows(w io.Writer, rows []rowOutput) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ROW", "KIND", "SERVICE", "OPERATION", "DURATION", "FLAGS")
	for _, r := range rows {
		var flags []string
		if r.Collapsed {
			flags = append(flags, "collapsed")
		}
		if r.Error {
			flags = append(flags, "error")
		}
		if r.Match {
			flags = append(flags, "match")
		}
		t.Row(
			strconv.Itoa(r.Row),
			r.Kind,
			r.Service,
			strings.Repeat("  ", r.Depth)+r.Operation,
			r.Duration,
			strings.Join(flags, ","),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
