package waterfall

import (
	"fmt"
	"strings"
)

// Row keys identify rows to the list view across re-renders. They only
// exist at that boundary; inside the package rows are Row values.
const (
	barKeySuffix    = "--bar"
	detailKeySuffix = "--detail"
)

// FormatKey builds the key of a span's row of the given kind.
func FormatKey(spanID string, kind RowKind) string {
	if kind == RowDetail {
		return spanID + detailKeySuffix
	}
	return spanID + barKeySuffix
}

// ParseKey splits a row key into span id and row kind.
func ParseKey(key string) (spanID string, kind RowKind, err error) {
	switch {
	case strings.HasSuffix(key, detailKeySuffix):
		spanID, kind = strings.TrimSuffix(key, detailKeySuffix), RowDetail
	case strings.HasSuffix(key, barKeySuffix):
		spanID, kind = strings.TrimSuffix(key, barKeySuffix), RowBar
	default:
		return "", 0, &KeyDecodeError{Key: key, Reason: "missing --bar or --detail suffix"}
	}
	if spanID == "" {
		return "", 0, &KeyDecodeError{Key: key, Reason: "empty span id"}
	}
	return spanID, kind, nil
}

// KeyFromIndex returns the key of the row at rowIndex.
func (l Layout) KeyFromIndex(rowIndex int) (string, error) {
	row, err := l.Row(rowIndex)
	if err != nil {
		return "", err
	}
	return FormatKey(l.Spans[row.SpanIndex].SpanID, row.Kind), nil
}

// IndexFromKey returns the row index a key currently refers to. It is the
// inverse of KeyFromIndex for every valid row.
func (l Layout) IndexFromKey(key string) (int, error) {
	spanID, kind, err := ParseKey(key)
	if err != nil {
		return -1, err
	}
	spanIndex := -1
	for i, s := range l.Spans {
		if s.SpanID == spanID {
			spanIndex = i
			break
		}
	}
	if spanIndex < 0 {
		return -1, &KeyDecodeError{Key: key, Reason: "unknown span id"}
	}
	if kind == RowDetail && !l.Details.Has(spanID) {
		return -1, &KeyDecodeError{Key: key, Reason: "detail row is not expanded"}
	}
	rowIndex, err := l.SpanIndexToRowIndex(spanIndex)
	if err != nil {
		return -1, fmt.Errorf("decoding row key %q: %w", key, err)
	}
	if kind == RowDetail {
		rowIndex++
	}
	return rowIndex, nil
}
