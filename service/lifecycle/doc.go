// Package lifecycle defines the store that tracks every submission from
// queued through running to its terminal state.  The store is the only
// shared mutable resource of the admission layer; all mutations are
// serialized and the duplicate check-and-insert is a single atomic step.
package lifecycle
