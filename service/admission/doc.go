// Package admission enforces the global concurrency ceiling for test runs.
// Capacity is handed out as permits; waiters are admitted strictly in first
// come, first served order.
package admission
