// Package executor bridges admitted runs with the registered suite
// implementations.  It is effectively a glue layer between the lifecycle
// model and the concrete validation work, and owns the terminal transition
// plus the notification dispatch of every run.
package executor
