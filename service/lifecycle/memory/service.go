package memory

import (
	"context"
	"sync"

	"github.com/BerriAI/litellm-observatory/model/run"
	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/BerriAI/litellm-observatory/service/lifecycle"
)

// DefaultCompletedLimit bounds the terminal history when no limit is given.
const DefaultCompletedLimit = 100

// Service implements an in-memory, thread-safe lifecycle store.  All API
// methods return copies to eliminate data races between goroutines; the
// authoritative records are only mutated under the lock.
type Service struct {
	active         map[string]*run.Run
	handles        map[string]*run.Handle
	completed      []*run.Run
	completedLimit int
	mux            sync.RWMutex
}

var _ lifecycle.Store = (*Service)(nil)

func (s *Service) InsertQueued(_ context.Context, aRun *run.Run) (*run.Run, error) {
	if aRun == nil {
		return nil, lifecycle.ErrNilRun
	}
	if aRun.IdentityKey == "" {
		return nil, lifecycle.ErrInvalidKey
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if existing, ok := s.active[aRun.IdentityKey]; ok {
		return existing.Clone(), lifecycle.ErrDuplicate
	}
	s.active[aRun.IdentityKey] = aRun
	return aRun.Clone(), nil
}

func (s *Service) MarkRunning(_ context.Context, identityKey string, handle *run.Handle) (*run.Run, error) {
	if identityKey == "" {
		return nil, lifecycle.ErrInvalidKey
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	aRun, ok := s.active[identityKey]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	if aRun.Status != run.StatusQueued {
		return nil, lifecycle.ErrInvalidTransition
	}
	aRun.Start()
	if handle != nil {
		s.handles[identityKey] = handle
	}
	return aRun.Clone(), nil
}

func (s *Service) MarkTerminal(_ context.Context, identityKey string, status run.Status, result *types.Result, cause error) (*run.Run, error) {
	if identityKey == "" {
		return nil, lifecycle.ErrInvalidKey
	}
	if !status.Terminal() {
		return nil, lifecycle.ErrInvalidTransition
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	aRun, ok := s.active[identityKey]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	switch status {
	case run.StatusCompleted:
		aRun.Complete(result)
	case run.StatusFailed:
		aRun.Fail(cause)
	}
	delete(s.active, identityKey)
	delete(s.handles, identityKey)

	// Terminal history is FIFO on completion time: the identity key becomes
	// reusable immediately, older completions are evicted first.
	s.completed = append(s.completed, aRun)
	if len(s.completed) > s.completedLimit {
		s.completed = s.completed[len(s.completed)-s.completedLimit:]
	}
	return aRun.Clone(), nil
}

func (s *Service) FindActive(_ context.Context, identityKey string) (*run.Run, error) {
	if identityKey == "" {
		return nil, lifecycle.ErrInvalidKey
	}

	s.mux.RLock()
	defer s.mux.RUnlock()

	aRun, ok := s.active[identityKey]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	return aRun.Clone(), nil
}

func (s *Service) Running(_ context.Context) ([]*run.Run, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*run.Run, 0, len(s.active))
	for _, aRun := range s.active {
		if aRun.Status == run.StatusRunning {
			out = append(out, aRun.Clone())
		}
	}
	return out, nil
}

func (s *Service) Completed(_ context.Context) ([]*run.Run, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*run.Run, 0, len(s.completed))
	for _, aRun := range s.completed {
		out = append(out, aRun.Clone())
	}
	return out, nil
}

func (s *Service) ActiveHandles(_ context.Context) (map[string]*run.Handle, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make(map[string]*run.Handle, len(s.handles))
	for key, handle := range s.handles {
		out[key] = handle
	}
	return out, nil
}

func (s *Service) Snapshot(_ context.Context) (*lifecycle.Snapshot, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	snapshot := &lifecycle.Snapshot{CompletedCount: len(s.completed)}
	for _, aRun := range s.active {
		switch aRun.Status {
		case run.StatusRunning:
			snapshot.Running = append(snapshot.Running, aRun.Clone())
		case run.StatusQueued:
			snapshot.QueuedCount++
		}
	}
	return snapshot, nil
}

// New creates an in-memory lifecycle store retaining up to completedLimit
// terminal runs.
func New(completedLimit int) *Service {
	if completedLimit <= 0 {
		completedLimit = DefaultCompletedLimit
	}
	return &Service{
		active:         map[string]*run.Run{},
		handles:        map[string]*run.Handle{},
		completedLimit: completedLimit,
	}
}
