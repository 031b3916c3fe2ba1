// Package database provides the storage layer for spanview.
//
// It implements the Store interface using SQLite with WAL mode and
// indexes tuned for loading a whole trace at once. The DBService
// struct is the primary entry point for all database operations.
package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/Mr-Dark-debug/spanview/pkg/jsonutil"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store defines the interface for trace data persistence.
// The TUI, the CLI and the importer depend on this interface so
// tests can substitute an in-memory database.
type Store interface {
	// InsertTrace persists a trace record, merging with an existing one.
	InsertTrace(trace *Trace) error
	// InsertSpan persists a single span and its logs.
	InsertSpan(span *Span) error
	// BatchInsertSpans inserts multiple spans and their logs in one transaction.
	BatchInsertSpans(spans []*Span) error

	// QueryTraces returns traces matching the filter, newest first.
	QueryTraces(filter TraceFilter) ([]*Trace, error)
	// GetTrace returns a single trace record.
	GetTrace(traceID string) (*Trace, error)
	// QueryTimeline returns all spans of a trace with their logs, ordered by start_time.
	QueryTimeline(traceID string) ([]*Span, error)
	// SearchContent finds spans whose operation, service or tags contain query.
	SearchContent(query string, limit int) ([]*Span, error)
	// GetTraceStats returns aggregated statistics for a trace.
	GetTraceStats(traceID string) (*TraceStats, error)

	// Close gracefully shuts down the database connection.
	Close() error
}

// ============================================================
// Domain Models
// ============================================================

// KeyValue is a single tag, process tag, or log field.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Trace is the summary record of one distributed trace.
type Trace struct {
	TraceID       string            `json:"trace_id"`
	RootService   string            `json:"root_service"`
	RootOperation string            `json:"root_operation"`
	StartTime     int64             `json:"start_time"`
	EndTime       int64             `json:"end_time"`
	SpanCount     int               `json:"span_count"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Span is a stored span. Hierarchy is expressed through ParentSpanID;
// depth-first ordering is computed by the trace package.
type Span struct {
	SpanID        string     `json:"span_id"`
	TraceID       string     `json:"trace_id"`
	ParentSpanID  *string    `json:"parent_span_id,omitempty"`
	ServiceName   string     `json:"service_name"`
	OperationName string     `json:"operation_name"`
	Kind          string     `json:"kind"`
	StartTime     int64      `json:"start_time"`
	DurationNs    int64      `json:"duration_ns"`
	StatusCode    string     `json:"status_code"`
	StatusMessage *string    `json:"status_message,omitempty"`
	Tags          []KeyValue `json:"tags,omitempty"`
	ProcessTags   []KeyValue `json:"process_tags,omitempty"`
	Logs          []SpanLog  `json:"logs,omitempty"`
}

// SpanLog is a timestamped event recorded on a span.
type SpanLog struct {
	Timestamp int64      `json:"timestamp"`
	Fields    []KeyValue `json:"fields"`
}

// TraceFilter defines query parameters for trace listing.
type TraceFilter struct {
	Service *string `json:"service,omitempty"`
	Status  *string `json:"status,omitempty"`
	Since   *int64  `json:"since,omitempty"` // Unix nanoseconds
	Until   *int64  `json:"until,omitempty"` // Unix nanoseconds
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// TraceStats holds aggregated statistics for a single trace.
type TraceStats struct {
	TraceID      string `json:"trace_id"`
	TotalSpans   int    `json:"total_spans"`
	ErrorSpans   int    `json:"error_spans"`
	ServiceCount int    `json:"service_count"`
	LogCount     int    `json:"log_count"`
	MaxDepth     int    `json:"max_depth"`
	DurationNs   int64  `json:"duration_ns"`
}

// IsErrorStatus reports whether an OTLP-style status code means failure.
func IsErrorStatus(code string) bool {
	switch code {
	case "ERROR", "STATUS_CODE_ERROR", "error":
		return true
	}
	return false
}

// ============================================================
// DBService Implementation
// ============================================================

// DBService implements the Store interface using SQLite.
// It manages the connection, prepared statements, and serializes
// writers through a read-write mutex.
type DBService struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	stmtInsertTrace *sql.Stmt
	stmtInsertSpan  *sql.Stmt
	stmtInsertLog   *sql.Stmt
	stmtDeleteLogs  *sql.Stmt
}

// NewDBService creates a new database service, initializes the schema,
// and prepares frequently-used statements.
//
// Use ":memory:" for in-memory databases (useful for testing).
func NewDBService(path string) (*DBService, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON&_cache_size=-64000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	// SQLite only supports one writer at a time; a single connection
	// also keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	svc := &DBService{
		db:   db,
		path: path,
	}

	if err := svc.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if err := svc.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}

	return svc, nil
}

// initSchema executes the embedded schema.sql.
func (s *DBService) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

func (s *DBService) prepareStatements() error {
	var err error

	s.stmtInsertTrace, err = s.db.Prepare(`
		INSERT INTO traces (trace_id, root_service, root_operation, start_time, end_time,
			span_count, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id) DO UPDATE SET
			root_service = CASE WHEN excluded.root_service != '' THEN excluded.root_service ELSE traces.root_service END,
			root_operation = CASE WHEN excluded.root_operation != '' THEN excluded.root_operation ELSE traces.root_operation END,
			start_time = MIN(traces.start_time, excluded.start_time),
			end_time = MAX(traces.end_time, excluded.end_time),
			span_count = MAX(traces.span_count, excluded.span_count),
			status = CASE WHEN traces.status = 'error' THEN 'error' ELSE excluded.status END,
			metadata = COALESCE(excluded.metadata, traces.metadata)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertTrace: %w", err)
	}

	s.stmtInsertSpan, err = s.db.Prepare(`
		INSERT INTO spans (span_id, trace_id, parent_span_id, service_name, operation_name,
			kind, start_time, duration_ns, status_code, status_message, tags, process_tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(span_id) DO UPDATE SET
			duration_ns = excluded.duration_ns,
			status_code = excluded.status_code,
			status_message = excluded.status_message,
			tags = COALESCE(excluded.tags, spans.tags)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertSpan: %w", err)
	}

	s.stmtInsertLog, err = s.db.Prepare(`
		INSERT INTO span_logs (span_id, timestamp, fields) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertLog: %w", err)
	}

	s.stmtDeleteLogs, err = s.db.Prepare(`DELETE FROM span_logs WHERE span_id = ?`)
	if err != nil {
		return fmt.Errorf("preparing DeleteLogs: %w", err)
	}

	return nil
}

// InsertTrace persists a trace record. An existing record is widened
// to cover the new time bounds; an error status is sticky.
func (s *DBService) InsertTrace(trace *Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, err := jsonutil.EncodeNullable(trace.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling trace metadata: %w", err)
	}

	status := trace.Status
	if status == "" {
		status = "ok"
	}

	_, err = s.stmtInsertTrace.Exec(
		trace.TraceID, trace.RootService, trace.RootOperation, trace.StartTime,
		trace.EndTime, trace.SpanCount, status, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting trace %s: %w", trace.TraceID, err)
	}
	return nil
}

// InsertSpan persists a single span and replaces its logs.
func (s *DBService) InsertSpan(span *Span) error {
	return s.BatchInsertSpans([]*Span{span})
}

// BatchInsertSpans inserts multiple spans within a single transaction
// for improved throughput during import.
func (s *DBService) BatchInsertSpans(spans []*Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch span transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	spanStmt := tx.Stmt(s.stmtInsertSpan)
	logStmt := tx.Stmt(s.stmtInsertLog)
	delStmt := tx.Stmt(s.stmtDeleteLogs)

	for _, span := range spans {
		tags, err := jsonutil.EncodeNullable(span.Tags)
		if err != nil {
			return fmt.Errorf("encoding tags of span %s: %w", span.SpanID, err)
		}
		procTags, err := jsonutil.EncodeNullable(span.ProcessTags)
		if err != nil {
			return fmt.Errorf("encoding process tags of span %s: %w", span.SpanID, err)
		}

		if _, err := spanStmt.Exec(
			span.SpanID, span.TraceID, span.ParentSpanID, span.ServiceName,
			span.OperationName, span.Kind, span.StartTime, span.DurationNs,
			span.StatusCode, span.StatusMessage, tags, procTags,
		); err != nil {
			return fmt.Errorf("batch inserting span %s: %w", span.SpanID, err)
		}

		if len(span.Logs) == 0 {
			continue
		}
		if _, err := delStmt.Exec(span.SpanID); err != nil {
			return fmt.Errorf("clearing logs of span %s: %w", span.SpanID, err)
		}
		for _, l := range span.Logs {
			fields, err := jsonutil.EncodeNullable(l.Fields)
			if err != nil {
				return fmt.Errorf("encoding log fields of span %s: %w", span.SpanID, err)
			}
			if _, err := logStmt.Exec(span.SpanID, l.Timestamp, fields); err != nil {
				return fmt.Errorf("inserting log of span %s: %w", span.SpanID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch span transaction: %w", err)
	}
	return nil
}

// QueryTraces returns traces matching the given filter criteria,
// ordered by start_time descending (most recent first).
func (s *DBService) QueryTraces(filter TraceFilter) ([]*Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT trace_id, root_service, root_operation, start_time, end_time,
		span_count, status, metadata FROM traces WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.Service != nil {
		query += ` AND root_service = ?`
		args = append(args, *filter.Service)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, *filter.Status)
	}
	if filter.Since != nil {
		query += ` AND start_time >= ?`
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += ` AND start_time <= ?`
		args = append(args, *filter.Until)
	}

	query += ` ORDER BY start_time DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else {
		query += ` LIMIT 100`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var traces []*Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// GetTrace returns the trace record with the given id.
func (s *DBService) GetTrace(traceID string) (*Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT trace_id, root_service, root_operation, start_time, end_time,
		span_count, status, metadata FROM traces WHERE trace_id = ?`, traceID)
	t, err := scanTrace(row)
	if err != nil {
		return nil, fmt.Errorf("getting trace %s: %w", traceID, err)
	}
	return t, nil
}

// QueryTimeline returns all spans for a given trace with their logs,
// ordered by start_time. This is the primary query for the waterfall.
func (s *DBService) QueryTimeline(traceID string) ([]*Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT span_id, trace_id, parent_span_id, service_name, operation_name, kind,
			start_time, duration_ns, status_code, status_message, tags, process_tags
		FROM spans
		WHERE trace_id = ?
		ORDER BY start_time ASC, span_id ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("querying timeline for trace %s: %w", traceID, err)
	}
	spans, err := scanSpans(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := s.attachLogs(traceID, spans); err != nil {
		return nil, err
	}
	return spans, nil
}

func (s *DBService) attachLogs(traceID string, spans []*Span) error {
	if len(spans) == 0 {
		return nil
	}
	byID := make(map[string]*Span, len(spans))
	for _, sp := range spans {
		byID[sp.SpanID] = sp
	}

	rows, err := s.db.Query(`
		SELECT l.span_id, l.timestamp, l.fields
		FROM span_logs l
		INNER JOIN spans s ON s.span_id = l.span_id
		WHERE s.trace_id = ?
		ORDER BY l.timestamp ASC, l.log_id ASC
	`, traceID)
	if err != nil {
		return fmt.Errorf("querying logs for trace %s: %w", traceID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var spanID string
		var l SpanLog
		var fields *string
		if err := rows.Scan(&spanID, &l.Timestamp, &fields); err != nil {
			return fmt.Errorf("scanning span log row: %w", err)
		}
		if err := jsonutil.DecodeNullable(fields, &l.Fields); err != nil {
			return fmt.Errorf("span %s log fields: %w", spanID, err)
		}
		if sp, ok := byID[spanID]; ok {
			sp.Logs = append(sp.Logs, l)
		}
	}
	return rows.Err()
}

// SearchContent finds spans across all traces whose operation name,
// service name or tags contain query (case-insensitive).
func (s *DBService) SearchContent(query string, limit int) ([]*Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := s.db.Query(`
		SELECT span_id, trace_id, parent_span_id, service_name, operation_name, kind,
			start_time, duration_ns, status_code, status_message, tags, process_tags
		FROM spans
		WHERE lower(operation_name) LIKE ? ESCAPE '\'
			OR lower(service_name) LIKE ? ESCAPE '\'
			OR lower(COALESCE(tags, '')) LIKE ? ESCAPE '\'
		ORDER BY start_time DESC
		LIMIT ?
	`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching content for %q: %w", query, err)
	}
	defer rows.Close()

	return scanSpans(rows)
}

// GetTraceStats returns aggregated statistics for a trace.
func (s *DBService) GetTraceStats(traceID string) (*TraceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &TraceStats{TraceID: traceID}

	var minStart, maxEnd sql.NullInt64
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status_code IN ('ERROR', 'STATUS_CODE_ERROR', 'error') THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT service_name),
			MIN(start_time),
			MAX(start_time + duration_ns)
		FROM spans
		WHERE trace_id = ?
	`, traceID).Scan(&stats.TotalSpans, &stats.ErrorSpans, &stats.ServiceCount, &minStart, &maxEnd)
	if err != nil {
		return nil, fmt.Errorf("querying trace stats for %s: %w", traceID, err)
	}
	if minStart.Valid && maxEnd.Valid {
		stats.DurationNs = maxEnd.Int64 - minStart.Int64
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM span_logs l
		INNER JOIN spans s ON l.span_id = s.span_id
		WHERE s.trace_id = ?
	`, traceID).Scan(&stats.LogCount)
	if err != nil {
		return nil, fmt.Errorf("counting logs for trace %s: %w", traceID, err)
	}

	err = s.db.QueryRow(`
		WITH RECURSIVE tree(span_id, depth) AS (
			SELECT span_id, 0 FROM spans
			WHERE trace_id = ? AND (parent_span_id IS NULL OR parent_span_id = ''
				OR parent_span_id NOT IN (SELECT span_id FROM spans WHERE trace_id = ?))
			UNION ALL
			SELECT c.span_id, tree.depth + 1 FROM spans c
			INNER JOIN tree ON c.parent_span_id = tree.span_id
			WHERE tree.depth < 1000
		)
		SELECT COALESCE(MAX(depth), 0) FROM tree
	`, traceID, traceID).Scan(&stats.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("computing depth for trace %s: %w", traceID, err)
	}

	return stats, nil
}

// Close gracefully shuts down the database, closing all prepared statements
// and the underlying connection pool.
func (s *DBService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []*sql.Stmt{
		s.stmtInsertTrace, s.stmtInsertSpan, s.stmtInsertLog, s.stmtDeleteLogs,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}

// ============================================================
// Scan Helpers
// ============================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrace(row rowScanner) (*Trace, error) {
	t := &Trace{}
	var metadataStr *string
	if err := row.Scan(&t.TraceID, &t.RootService, &t.RootOperation, &t.StartTime,
		&t.EndTime, &t.SpanCount, &t.Status, &metadataStr); err != nil {
		return nil, fmt.Errorf("scanning trace row: %w", err)
	}
	if metadataStr != nil {
		t.Metadata = make(map[string]string)
		if err := jsonutil.DecodeNullable(metadataStr, &t.Metadata); err != nil {
			// Non-fatal: metadata is supplementary
			t.Metadata = map[string]string{"_raw": *metadataStr}
		}
	}
	return t, nil
}

func scanSpans(rows *sql.Rows) ([]*Span, error) {
	var spans []*Span
	for rows.Next() {
		sp := &Span{}
		var tags, procTags *string
		if err := rows.Scan(
			&sp.SpanID, &sp.TraceID, &sp.ParentSpanID, &sp.ServiceName,
			&sp.OperationName, &sp.Kind, &sp.StartTime, &sp.DurationNs,
			&sp.StatusCode, &sp.StatusMessage, &tags, &procTags,
		); err != nil {
			return nil, fmt.Errorf("scanning span row: %w", err)
		}
		if err := jsonutil.DecodeNullable(tags, &sp.Tags); err != nil {
			return nil, fmt.Errorf("span %s tags: %w", sp.SpanID, err)
		}
		if err := jsonutil.DecodeNullable(procTags, &sp.ProcessTags); err != nil {
			return nil, fmt.Errorf("span %s process tags: %w", sp.SpanID, err)
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
