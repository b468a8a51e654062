// Package progress provides a lightweight tracker that keeps aggregated
// request counters (issued, succeeded, failed) for a single run.  The tracker
// instance lives in the execution context – every component that receives the
// context can atomically update the counters via the Delta helper without
// requiring a global registry.
package progress
