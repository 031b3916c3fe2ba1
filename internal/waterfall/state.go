package waterfall

// IDSet is a set of span ids. A nil IDSet is empty; for search
// matches nil additionally means "no search active".
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership. Safe on a nil set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// With returns a copy of s that also holds id.
func (s IDSet) With(id string) IDSet {
	out := make(IDSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

// Without returns a copy of s without id.
func (s IDSet) Without(id string) IDSet {
	out := make(IDSet, len(s))
	for k := range s {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}

// Toggle returns a copy of s with id's membership flipped.
func (s IDSet) Toggle(id string) IDSet {
	if s.Has(id) {
		return s.Without(id)
	}
	return s.With(id)
}

// DetailStates maps span ids to the state of their expanded detail row.
// Presence means the detail row is shown.
type DetailStates map[string]*DetailState

// Has reports whether spanID's detail row is expanded.
func (d DetailStates) Has(spanID string) bool {
	_, ok := d[spanID]
	return ok
}

// ViewRange is the visible time window as fractions of the trace duration.
type ViewRange struct {
	Start float64
	End   float64
}

// FullViewRange covers the whole trace.
var FullViewRange = ViewRange{Start: 0, End: 1}

// IsFull reports whether the range covers the whole trace.
func (v ViewRange) IsFull() bool {
	return v.Start == 0 && v.End == 1
}
