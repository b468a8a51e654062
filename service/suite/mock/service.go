package mock

import (
	"context"
	"time"

	"github.com/BerriAI/litellm-observatory/internal/clock"
	"github.com/BerriAI/litellm-observatory/model/types"
)

const Name = "TestMock"

// Tuning controls the simulated run.
type Tuning struct {
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	ShouldPass      bool    `json:"should_pass" yaml:"should_pass"`
	FailureRate     float64 `json:"failure_rate" yaml:"failure_rate"`
	TotalRequests   int     `json:"total_requests" yaml:"total_requests"`
}

// Service simulates a test run without making any HTTP requests. Useful for
// exercising the admission layer without waiting for long-running suites.
type Service struct{}

// New creates a mock suite.
func New() *Service {
	return &Service{}
}

// Name returns the suite Name
func (s *Service) Name() string {
	return Name
}

// Tuning returns the default tuning prototype.
func (s *Service) Tuning() interface{} {
	return &Tuning{
		DurationSeconds: 1.0,
		ShouldPass:      true,
		FailureRate:     0.0,
		TotalRequests:   10,
	}
}

// Run simulates a test of the configured duration and fabricates per-model
// statistics matching the configured failure rate.
func (s *Service) Run(ctx context.Context, target *types.Target, tuning interface{}) (*types.Result, error) {
	cfg, ok := tuning.(*Tuning)
	if !ok {
		cfg = s.Tuning().(*Tuning)
	}

	startedAt := clock.Now()
	duration := time.Duration(cfg.DurationSeconds * float64(time.Second))
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	totalFailures := int(float64(cfg.TotalRequests) * cfg.FailureRate)
	totalSuccesses := cfg.TotalRequests - totalFailures

	modelStats := map[string]*types.ModelStat{}
	if len(target.Models) > 0 {
		perModel := cfg.TotalRequests / len(target.Models)
		remainder := cfg.TotalRequests % len(target.Models)
		for i, model := range target.Models {
			requests := perModel
			if i < remainder {
				requests++
			}
			failures := int(float64(requests) * cfg.FailureRate)
			modelStats[model] = &types.ModelStat{
				TotalRequests: requests,
				Successes:     requests - failures,
				Failures:      failures,
				FailureRate:   cfg.FailureRate,
				AvgDuration:   100 * time.Millisecond,
			}
		}
	}

	finishedAt := clock.Now()
	return &types.Result{
		Name:           "Mock Test",
		Passed:         cfg.ShouldPass && cfg.FailureRate < 0.01,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Duration:       finishedAt.Sub(startedAt),
		ModelsTested:   target.Models,
		TotalRequests:  cfg.TotalRequests,
		TotalSuccesses: totalSuccesses,
		TotalFailures:  totalFailures,
		FailureRate:    cfg.FailureRate,
		MaxFailureRate: 0.01,
		ModelStats:     modelStats,
	}, nil
}
