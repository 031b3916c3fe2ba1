package waterfall

// scan calls fn with the index of every visible span, in order, until
// fn returns false. A span is hidden when it falls inside the
// depth-first block of a visible span whose children are collapsed.
func (l Layout) scan(fn func(spanIndex int) bool) {
	hideDeeperThan := -1
	for i, s := range l.Spans {
		if hideDeeperThan >= 0 {
			if s.Depth > hideDeeperThan {
				continue
			}
			hideDeeperThan = -1
		}
		if !fn(i) {
			return
		}
		if l.Collapsed.Has(s.SpanID) {
			hideDeeperThan = s.Depth
		}
	}
}

// IsVisible reports whether the span at spanIndex has a bar row.
func (l Layout) IsVisible(spanIndex int) bool {
	if spanIndex < 0 || spanIndex >= len(l.Spans) {
		return false
	}
	visible := false
	l.scan(func(i int) bool {
		if i >= spanIndex {
			visible = i == spanIndex
			return false
		}
		return true
	})
	return visible
}

// Visibility returns the visibility of every span in one pass.
func (l Layout) Visibility() []bool {
	vis := make([]bool, len(l.Spans))
	l.scan(func(i int) bool {
		vis[i] = true
		return true
	})
	return vis
}
