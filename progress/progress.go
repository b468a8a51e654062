package progress

import (
	"context"
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by a running suite.
// The fields are signed and therefore can be either positive (increment) or
// negative (decrement).
type Delta struct {
	Requests  int
	Successes int
	Failures  int
}

// Snapshot is a point-in-time copy of a tracker, safe to retain and read
// without synchronisation.
type Snapshot struct {
	RunID     string
	Suite     string
	StartedAt time.Time
	Requests  int
	Successes int
	Failures  int
}

// Progress keeps aggregated request counters for a single run.  It is safe
// for concurrent use.
type Progress struct {
	runID     string
	suite     string
	startedAt time.Time

	mux       sync.Mutex
	requests  int
	successes int
	failures  int
	onChange  func(Snapshot)
}

// Update applies the supplied delta to the tracker.  It is safe to call from
// multiple goroutines.  If an onChange callback has been registered it will
// be invoked with a copy of the updated counters outside the critical
// section so that the callback can perform slow operations (e.g. I/O)
// without blocking the suite loop.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}

	p.mux.Lock()

	p.requests += d.Requests
	p.successes += d.Successes
	p.failures += d.Failures

	snapshot := p.snapshot()
	cb := p.onChange

	p.mux.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (p *Progress) snapshot() Snapshot {
	return Snapshot{
		RunID:     p.runID,
		Suite:     p.suite,
		StartedAt: p.startedAt,
		Requests:  p.requests,
		Successes: p.successes,
		Failures:  p.failures,
	}
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.snapshot()
}

// OnChange registers a callback that is invoked after every Update.  Passing
// nil disables the callback.  Only one callback can be active; subsequent
// calls overwrite the previous value.
func (p *Progress) OnChange(cb func(Snapshot)) {
	if p == nil {
		return
	}
	p.mux.Lock()
	p.onChange = cb
	p.mux.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a new Progress tracker, embeds it in a derived
// context and returns both.
func WithNewTracker(ctx context.Context, runID, suite string) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tracker := &Progress{
		runID:     runID,
		suite:     suite,
		startedAt: time.Now(),
	}
	return context.WithValue(ctx, trackerKey, tracker), tracker
}

// FromContext returns the tracker stored in ctx or nil when absent.
func FromContext(ctx context.Context) *Progress {
	if ctx == nil {
		return nil
	}
	if tracker, ok := ctx.Value(trackerKey).(*Progress); ok {
		return tracker
	}
	return nil
}
