// Package gateway exposes the observatory façade over HTTP: test
// submission, real-time queue status, service information and a health
// probe, guarded by an API-key header.
package gateway
