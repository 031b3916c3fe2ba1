package search

import (
	"github.com/Mr-Dark-debug/spanview/internal/trace"
	"github.com/Mr-Dark-debug/spanview/internal/waterfall"
)

// Request is one pending search. Run may be called on any goroutine.
type Request struct {
	Generation uint64
	Trace      *trace.Trace
	Text       string
}

// Result is the outcome of a Request.
type Result struct {
	Generation uint64
	TraceID    string
	Text       string
	Matches    waterfall.IDSet
}

// Run performs the search.
func (r Request) Run() Result {
	res := Result{Generation: r.Generation, Text: r.Text}
	if r.Trace != nil {
		res.TraceID = r.Trace.TraceID
	}
	res.Matches = Filter(r.Trace, r.Text)
	return res
}

// Tracker numbers search requests. Results from any request older than
// the latest one are stale and must be dropped. It is owned by a single
// goroutine; only Request.Run leaves it.
type Tracker struct {
	generation uint64
}

// Begin starts a new search, making every earlier request stale.
func (t *Tracker) Begin(tr *trace.Trace, text string) Request {
	t.generation++
	return Request{Generation: t.generation, Trace: tr, Text: text}
}

// Cancel makes every outstanding request stale.
func (t *Tracker) Cancel() {
	t.generation++
}

// Accept reports whether res belongs to the latest request.
func (t *Tracker) Accept(res Result) bool {
	return res.Generation == t.generation
}
