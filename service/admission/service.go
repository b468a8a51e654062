package admission

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned to waiters when the controller shuts down.
var ErrClosed = errors.New("admission: controller closed")

// Permit is one unit of concurrency capacity.  Release is idempotent and has
// an effect exactly once, so deferred release on every exit path is safe.
type Permit struct {
	service *Service
	once    sync.Once
}

// Release returns the permit's capacity; the oldest waiter (if any) is
// admitted directly without the slot ever becoming observable as free.
func (p *Permit) Release() {
	p.once.Do(p.service.release)
}

// Ticket represents a registered position in the FIFO waiter queue.
type Ticket struct {
	service *Service
	element *list.Element
	ready   chan *Permit
}

// Wait blocks until a permit is granted, the context expires or the
// controller closes.  A permit granted concurrently with a context expiry is
// returned to the pool rather than leaked.
func (t *Ticket) Wait(ctx context.Context) (*Permit, error) {
	select {
	case permit := <-t.ready:
		if permit == nil {
			return nil, ErrClosed
		}
		return permit, nil
	case <-ctx.Done():
		t.service.mux.Lock()
		select {
		case permit := <-t.ready:
			t.service.mux.Unlock()
			if permit != nil {
				permit.Release()
			}
		default:
			if t.element != nil {
				t.service.waiters.Remove(t.element)
			}
			t.service.mux.Unlock()
		}
		return nil, ctx.Err()
	}
}

// Service enforces the global concurrency ceiling.  Slots are granted in
// FIFO order of ticket registration; there is no priority and no starvation
// beyond FIFO fairness.
type Service struct {
	mux       sync.Mutex
	limit     int
	available int
	waiters   *list.List
	closed    bool
}

// New creates an admission controller with a fixed ceiling.
func New(limit int) *Service {
	if limit <= 0 {
		limit = 1
	}
	return &Service{
		limit:     limit,
		available: limit,
		waiters:   list.New(),
	}
}

// Limit returns the configured ceiling.
func (s *Service) Limit() int {
	return s.limit
}

// TryAcquire grants a permit when a slot is free without waiting.
func (s *Service) TryAcquire() (*Permit, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed || s.available == 0 {
		return nil, false
	}
	s.available--
	return &Permit{service: s}, true
}

// Enqueue registers a waiter at the back of the FIFO queue.  Registration is
// synchronous so that submission order is admission order.
func (s *Service) Enqueue() (*Ticket, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	ticket := &Ticket{service: s, ready: make(chan *Permit, 1)}
	if s.available > 0 {
		s.available--
		ticket.ready <- &Permit{service: s}
		return ticket, nil
	}
	ticket.element = s.waiters.PushBack(ticket)
	return ticket, nil
}

// Acquire is a convenience wrapper combining Enqueue and Wait.
func (s *Service) Acquire(ctx context.Context) (*Permit, error) {
	ticket, err := s.Enqueue()
	if err != nil {
		return nil, err
	}
	return ticket.Wait(ctx)
}

// Close wakes every waiter with ErrClosed and rejects further acquisition.
// Outstanding permits may still be released after Close.
func (s *Service) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for element := s.waiters.Front(); element != nil; element = element.Next() {
		element.Value.(*Ticket).ready <- nil
	}
	s.waiters.Init()
}

func (s *Service) release() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if element := s.waiters.Front(); element != nil {
		s.waiters.Remove(element)
		ticket := element.Value.(*Ticket)
		ticket.element = nil
		ticket.ready <- &Permit{service: s}
		return
	}
	if s.available < s.limit {
		s.available++
	}
}
