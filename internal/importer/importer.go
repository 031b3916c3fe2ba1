// Package importer loads OTLP trace exports into the spanview store.
//
// Input is JSON Lines as written by the OpenTelemetry Collector file
// exporter: one TracesData message per line. Spans are buffered and
// written with BatchInsertSpans once BatchSize spans accumulate or, in
// watch mode, every FlushInterval. After each flush the summary record
// of every touched trace is refreshed.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/encoding/protojson"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/Mr-Dark-debug/spanview/internal/database"
)

const (
	readBufferSize = 1 * 1024 * 1024  // initial line buffer
	maxLineSize    = 10 * 1024 * 1024 // longer lines are skipped
)

// Config holds importer settings.
type Config struct {
	// BatchSize is the number of spans buffered before a flush.
	BatchSize int

	// FlushInterval bounds how long spans stay buffered in watch mode.
	FlushInterval time.Duration

	// Verbose logs per-file progress.
	Verbose bool
}

// DefaultConfig returns the default batching parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: 500 * time.Millisecond,
	}
}

// Metrics counts import progress.
type Metrics struct {
	Lines    int64 `json:"lines"`
	BadLines int64 `json:"bad_lines"`
	Spans    int64 `json:"spans"`
	Batches  int64 `json:"batches"`
	Errors   int64 `json:"errors"`
}

// Importer reads OTLP JSONL into a store. It is not safe for concurrent
// use, except for Metrics.
type Importer struct {
	config  Config
	store   database.Store
	metrics Metrics

	offsets map[string]int64
	pending []*database.Span
}

// New creates an importer writing to store.
func New(config Config, store database.Store) *Importer {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	return &Importer{
		config:  config,
		store:   store,
		offsets: make(map[string]int64),
		pending: make([]*database.Span, 0, config.BatchSize),
	}
}

// Metrics returns a snapshot of the counters.
func (im *Importer) Metrics() Metrics {
	return Metrics{
		Lines:    atomic.LoadInt64(&im.metrics.Lines),
		BadLines: atomic.LoadInt64(&im.metrics.BadLines),
		Spans:    atomic.LoadInt64(&im.metrics.Spans),
		Batches:  atomic.LoadInt64(&im.metrics.Batches),
		Errors:   atomic.LoadInt64(&im.metrics.Errors),
	}
}

// ImportReader imports every line of r and flushes. name labels log
// output. It returns the number of lines that carried spans.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, name string) (int, error) {
	n, _, err := im.consume(ctx, r, name, true)
	if err != nil {
		return n, err
	}
	return n, im.Flush()
}

// ImportFile imports path from where the previous import of the same
// path stopped, then flushes.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	n, err := im.importFile(ctx, path, true)
	if err != nil {
		return n, err
	}
	return n, im.Flush()
}

// importFile reads path from its recorded offset. When final is false a
// trailing line without newline is left for the next read, since the
// writer may still be appending to it.
func (im *Importer) importFile(ctx context.Context, path string, final bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	offset := im.offsets[path]
	if offset > 0 {
		info, err := f.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() < offset {
			// truncated or replaced
			log.Printf("[WARN] %s shrank below offset %d, re-reading from start", path, offset)
			offset = 0
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return 0, fmt.Errorf("seeking %s: %w", path, err)
		}
	}

	n, consumed, err := im.consume(ctx, f, path, final)
	im.offsets[path] = offset + consumed
	if im.config.Verbose && n > 0 {
		log.Printf("[INFO] Imported %d lines from %s", n, filepath.Base(path))
	}
	return n, err
}

// consume reads lines from r. Malformed lines are logged and skipped;
// store errors abort.
func (im *Importer) consume(ctx context.Context, r io.Reader, name string, final bool) (int, int64, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	var consumed int64
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, consumed, err
		}

		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return count, consumed, fmt.Errorf("reading %s: %w", name, readErr)
		}
		atEOF := readErr != nil
		if atEOF && !final {
			return count, consumed, nil
		}
		consumed += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			atomic.AddInt64(&im.metrics.Lines, 1)
			spans, err := parseLine(line)
			if err != nil {
				atomic.AddInt64(&im.metrics.BadLines, 1)
				log.Printf("[WARN] %s: skipping line: %v", name, err)
			} else if len(spans) > 0 {
				count++
				if err := im.add(spans); err != nil {
					return count, consumed, err
				}
			}
		}

		if atEOF {
			return count, consumed, nil
		}
	}
}

func parseLine(line []byte) ([]*database.Span, error) {
	if len(line) > maxLineSize {
		return nil, fmt.Errorf("line of %d bytes exceeds %d", len(line), maxLineSize)
	}
	var data tracepb.TracesData
	if err := protojson.Unmarshal(line, &data); err != nil {
		return nil, fmt.Errorf("parse trace JSON: %w", err)
	}
	return ConvertResourceSpans(data.GetResourceSpans()), nil
}

func (im *Importer) add(spans []*database.Span) error {
	im.pending = append(im.pending, spans...)
	if len(im.pending) >= im.config.BatchSize {
		return im.Flush()
	}
	return nil
}

// Flush writes buffered spans and refreshes their trace records.
func (im *Importer) Flush() error {
	if len(im.pending) == 0 {
		return nil
	}
	batch := im.pending
	im.pending = make([]*database.Span, 0, im.config.BatchSize)

	if err := im.store.BatchInsertSpans(batch); err != nil {
		atomic.AddInt64(&im.metrics.Errors, 1)
		return fmt.Errorf("flushing %d spans: %w", len(batch), err)
	}
	atomic.AddInt64(&im.metrics.Spans, int64(len(batch)))
	atomic.AddInt64(&im.metrics.Batches, 1)

	if err := im.upsertTraces(batch); err != nil {
		atomic.AddInt64(&im.metrics.Errors, 1)
		return err
	}
	return nil
}

// upsertTraces merges the batch into the trace summary records. The
// store widens time bounds and keeps an error status once set; the span
// count is re-read since a trace may span several batches.
func (im *Importer) upsertTraces(batch []*database.Span) error {
	byTrace := make(map[string]*database.Trace)
	var order []string
	for _, s := range batch {
		end := s.StartTime + s.DurationNs
		t, ok := byTrace[s.TraceID]
		if !ok {
			t = &database.Trace{TraceID: s.TraceID, StartTime: s.StartTime, EndTime: end, Status: "ok"}
			byTrace[s.TraceID] = t
			order = append(order, s.TraceID)
		}
		if s.StartTime < t.StartTime {
			t.StartTime = s.StartTime
		}
		if end > t.EndTime {
			t.EndTime = end
		}
		if s.ParentSpanID == nil {
			t.RootService = s.ServiceName
			t.RootOperation = s.OperationName
		}
		if database.IsErrorStatus(s.StatusCode) {
			t.Status = "error"
		}
	}

	for _, id := range order {
		t := byTrace[id]
		stats, err := im.store.GetTraceStats(id)
		if err != nil {
			return fmt.Errorf("counting spans of trace %s: %w", id, err)
		}
		t.SpanCount = stats.TotalSpans
		if err := im.store.InsertTrace(t); err != nil {
			return fmt.Errorf("updating trace %s: %w", id, err)
		}
	}
	return nil
}

// Watch imports paths and then follows them, importing lines as they are
// appended, until ctx is cancelled. Buffered spans are flushed on exit.
func (im *Importer) Watch(ctx context.Context, paths ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	sorted := make([]string, 0, len(targets))
	for p := range targets {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	for _, p := range sorted {
		if _, err := os.Stat(p); err != nil {
			log.Printf("[INFO] Waiting for %s to appear", p)
			continue
		}
		if _, err := im.importFile(ctx, p, false); err != nil {
			return err
		}
	}
	if err := im.Flush(); err != nil {
		return err
	}
	log.Printf("[INFO] Watching %d file(s) for new spans", len(targets))

	ticker := time.NewTicker(im.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return im.Flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return im.Flush()
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !targets[event.Name] {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				im.offsets[event.Name] = 0
			}
			if _, err := im.importFile(ctx, event.Name, false); err != nil {
				if ctx.Err() != nil {
					return im.Flush()
				}
				atomic.AddInt64(&im.metrics.Errors, 1)
				log.Printf("[ERROR] Importing %s: %v", event.Name, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return im.Flush()
			}
			log.Printf("[WARN] File watcher: %v", err)

		case <-ticker.C:
			if err := im.Flush(); err != nil {
				log.Printf("[ERROR] %v", err)
			}
		}
	}
}
