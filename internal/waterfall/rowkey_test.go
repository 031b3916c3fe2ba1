package waterfall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		key      string
		wantID   string
		wantKind RowKind
		wantErr  bool
	}{
		{key: "abc--bar", wantID: "abc", wantKind: RowBar},
		{key: "abc--detail", wantID: "abc", wantKind: RowDetail},
		{key: "a--bar--detail", wantID: "a--bar", wantKind: RowDetail},
		{key: "a--detail--bar", wantID: "a--detail", wantKind: RowBar},
		{key: "abc", wantErr: true},
		{key: "abc--row", wantErr: true},
		{key: "--bar", wantErr: true},
		{key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, kind, err := ParseKey(tt.key)
			if tt.wantErr {
				var keyErr *KeyDecodeError
				require.ErrorAs(t, err, &keyErr)
				assert.Equal(t, tt.key, keyErr.Key)
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.key, FormatKey(id, kind))
		})
	}
}

func TestKeyFromIndex_Flat(t *testing.T) {
	l := Layout{Spans: newFixtureTrace().Spans}
	for i, want := range []string{"span-0--bar", "span-1--bar", "span-2--bar"} {
		key, err := l.KeyFromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, want, key)
	}
}

func TestKeyFromIndex_DetailExpanded(t *testing.T) {
	l := Layout{
		Spans:   newFixtureTrace().Spans,
		Details: DetailStates{"span-1": NewDetailState()},
	}
	want := []string{"span-0--bar", "span-1--bar", "span-1--detail", "span-2--bar"}
	for i, w := range want {
		key, err := l.KeyFromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, w, key)

		back, err := l.IndexFromKey(key)
		require.NoError(t, err)
		assert.Equal(t, i, back)
	}
}

func TestKeys_CollapsedParent(t *testing.T) {
	spans, id := withCollapsedInsert(newFixtureTrace())
	l := Layout{Spans: spans, Collapsed: NewIDSet(id)}

	want := []string{"span-0--bar", "some-id--bar", "span-1--bar", "span-2--bar"}
	for i, w := range want {
		key, err := l.KeyFromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, w, key)
	}

	got, err := l.IndexFromKey("span-1--bar")
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = l.IndexFromKey("hidden-a--bar")
	var mapErr *IndexMappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, 2, mapErr.Index)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndexFromKey_Errors(t *testing.T) {
	l := Layout{
		Spans:   newFixtureTrace().Spans,
		Details: DetailStates{"span-1": NewDetailState()},
	}

	tests := []struct {
		name string
		key  string
	}{
		{name: "unknown span", key: "nope--bar"},
		{name: "detail not expanded", key: "span-2--detail"},
		{name: "malformed", key: "span-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.IndexFromKey(tt.key)
			var keyErr *KeyDecodeError
			require.ErrorAs(t, err, &keyErr)
			assert.Equal(t, tt.key, keyErr.Key)
		})
	}
}

func TestKeyFromIndex_OutOfRange(t *testing.T) {
	l := Layout{Spans: newFixtureTrace().Spans}
	_, err := l.KeyFromIndex(10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRowKind_String(t *testing.T) {
	assert.Equal(t, "bar", RowBar.String())
	assert.Equal(t, "detail", RowDetail.String())
	assert.Equal(t, "RowKind(7)", RowKind(7).String())
}
