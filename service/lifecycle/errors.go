package lifecycle

import "errors"

// Common, reusable store errors.  Using sentinel variables allows callers to
// reliably detect error conditions via errors.Is instead of brittle string
// comparisons.

var (
	// ErrNotFound is returned when no active run exists for the requested
	// identity key.
	ErrNotFound = errors.New("lifecycle: not found")

	// ErrDuplicate indicates a non-terminal run with the same identity key
	// already exists.
	ErrDuplicate = errors.New("lifecycle: duplicate submission")

	// ErrInvalidKey indicates that the supplied identity key is empty.
	ErrInvalidKey = errors.New("lifecycle: invalid identity key")

	// ErrNilRun is returned when the caller attempts to insert a nil run.
	ErrNilRun = errors.New("lifecycle: nil run")

	// ErrInvalidTransition is returned on any transition other than
	// queued -> running -> completed/failed.
	ErrInvalidTransition = errors.New("lifecycle: invalid status transition")
)
