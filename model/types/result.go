package types

import "time"

// ModelStat aggregates the outcome of one model within a run.
type ModelStat struct {
	TotalRequests int           `json:"total_requests"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	FailureRate   float64       `json:"failure_rate"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// Result is the outcome document a suite produces, whether it passed or not.
// A suite returning an error instead signals that it could not run at all.
type Result struct {
	Name           string                `json:"test_name"`
	Passed         bool                  `json:"test_passed"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	Duration       time.Duration         `json:"duration"`
	ModelsTested   []string              `json:"models_tested"`
	TotalRequests  int                   `json:"total_requests"`
	TotalSuccesses int                   `json:"total_successes"`
	TotalFailures  int                   `json:"total_failures"`
	FailureRate    float64               `json:"overall_failure_rate"`
	MaxFailureRate float64               `json:"max_failure_rate"`
	ModelStats     map[string]*ModelStat `json:"model_statistics,omitempty"`
	Error          string                `json:"error,omitempty"`
}
