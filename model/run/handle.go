package run

import (
	"context"
	"sync"
)

// Handle tracks one launched run so that shutdown can enumerate and await
// every outstanding task instead of losing track of fire-and-forget work.
type Handle struct {
	done chan struct{}
	once sync.Once
}

// NewHandle creates a handle for a launched run.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Finish signals completion; safe to call more than once.
func (h *Handle) Finish() {
	h.once.Do(func() { close(h.done) })
}

// Done returns a channel closed once the run finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finished or ctx expired.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
