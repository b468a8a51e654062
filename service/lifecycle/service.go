package lifecycle

import (
	"context"

	"github.com/BerriAI/litellm-observatory/model/run"
	"github.com/BerriAI/litellm-observatory/model/types"
)

// Snapshot is a consistent view of the store for status reporting.
type Snapshot struct {
	Running        []*run.Run
	QueuedCount    int
	CompletedCount int
}

// Store is the single source of truth for run lifecycle state, keyed by
// identity key. At most one non-terminal run per key may exist at any
// instant; implementations must make the duplicate check-and-insert atomic.
type Store interface {
	// InsertQueued inserts a queued run unless a non-terminal run with the
	// same identity key already exists, in which case it returns a clone of
	// the existing run together with ErrDuplicate.
	InsertQueued(ctx context.Context, aRun *run.Run) (*run.Run, error)

	// MarkRunning transitions an active run from queued to running and
	// registers its task handle. Any other transition yields
	// ErrInvalidTransition.
	MarkRunning(ctx context.Context, identityKey string, handle *run.Handle) (*run.Run, error)

	// MarkTerminal transitions an active run to completed or failed, moves it
	// into the bounded completed history and evicts the oldest completion
	// once the retention limit is exceeded.
	MarkTerminal(ctx context.Context, identityKey string, status run.Status, result *types.Result, cause error) (*run.Run, error)

	// FindActive returns a clone of the non-terminal run for the key, or
	// ErrNotFound.
	FindActive(ctx context.Context, identityKey string) (*run.Run, error)

	// Running returns clones of all runs currently in the running state.
	Running(ctx context.Context) ([]*run.Run, error)

	// Completed returns clones of the retained terminal runs, oldest first.
	Completed(ctx context.Context) ([]*run.Run, error)

	// ActiveHandles returns the task handles of all running runs keyed by
	// identity key so that shutdown can await or abandon them.
	ActiveHandles(ctx context.Context) (map[string]*run.Handle, error)

	// Snapshot returns a consistent view for status reporting.
	Snapshot(ctx context.Context) (*Snapshot, error)
}
