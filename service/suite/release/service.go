// Package release implements the provider release reliability suite.  It was
// built to catch HTTP client lifecycle regressions where pooled clients
// expire after roughly one hour of operation: the suite keeps one client for
// the whole run and issues requests continuously, cycling through the
// configured models, so that a client invalidated mid-run surfaces as a
// failure-rate spike rather than going unnoticed.
package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BerriAI/litellm-observatory/internal/clock"
	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/BerriAI/litellm-observatory/progress"
)

const Name = "TestOAIAzureRelease"

const (
	requestTimeout = 60 * time.Second
	testMessage    = "Hello! This is a OpenAI/Azure release test."
	maxTokens      = 50
)

// Tuning controls the release reliability loop.
type Tuning struct {
	DurationHours          float64 `json:"duration_hours" yaml:"duration_hours"`
	MaxFailureRate         float64 `json:"max_failure_rate" yaml:"max_failure_rate"`
	RequestIntervalSeconds float64 `json:"request_interval_seconds" yaml:"request_interval_seconds"`
}

// Service runs the release reliability test: continuous chat-completion
// requests for the configured duration, passing when the overall failure
// rate stays under the ceiling.
type Service struct {
	client *http.Client
}

// New creates a release suite.
func New() *Service {
	// One client for the whole run; the lifecycle behaviour under test
	// depends on client reuse.
	return &Service{client: &http.Client{Timeout: requestTimeout}}
}

// Name returns the suite Name
func (s *Service) Name() string {
	return Name
}

// Tuning returns the default tuning prototype: three hours, 1% failure
// ceiling, one request per second.
func (s *Service) Tuning() interface{} {
	return &Tuning{
		DurationHours:          3.0,
		MaxFailureRate:         0.01,
		RequestIntervalSeconds: 1.0,
	}
}

type modelOutcome struct {
	requests  int
	successes int
	failures  int
	total     time.Duration
	lastError string
}

// Run drives the request loop until the duration elapses or ctx is
// cancelled.
func (s *Service) Run(ctx context.Context, target *types.Target, tuning interface{}) (*types.Result, error) {
	cfg, ok := tuning.(*Tuning)
	if !ok {
		cfg = s.Tuning().(*Tuning)
	}
	if len(target.Models) == 0 {
		return nil, fmt.Errorf("release suite requires at least one model")
	}

	startedAt := clock.Now()
	deadline := startedAt.Add(time.Duration(cfg.DurationHours * float64(time.Hour)))
	interval := time.Duration(cfg.RequestIntervalSeconds * float64(time.Second))
	tracker := progress.FromContext(ctx)

	outcomes := map[string]*modelOutcome{}
	for _, model := range target.Models {
		outcomes[model] = &modelOutcome{}
	}

	modelIndex := 0
	for clock.Now().Before(deadline) {
		model := target.Models[modelIndex%len(target.Models)]
		modelIndex++

		outcome := outcomes[model]
		duration, err := s.makeRequest(ctx, target, model)
		outcome.requests++
		outcome.total += duration
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			outcome.failures++
			outcome.lastError = err.Error()
			tracker.Update(progress.Delta{Requests: 1, Failures: 1})
		} else {
			outcome.successes++
			tracker.Update(progress.Delta{Requests: 1, Successes: 1})
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return s.calculateResult(target, cfg, outcomes, startedAt), nil
}

func (s *Service) makeRequest(ctx context.Context, target *types.Target, model string) (time.Duration, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model":      model,
		"messages":   []map[string]string{{"role": "user", "content": testMessage}},
		"max_tokens": maxTokens,
	})
	if err != nil {
		return 0, err
	}

	requestStart := clock.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.DeploymentURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+target.APIKey)

	resp, err := s.client.Do(req)
	elapsed := clock.Now().Sub(requestStart)
	if err != nil {
		return elapsed, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return elapsed, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return elapsed, nil
}

func (s *Service) calculateResult(target *types.Target, cfg *Tuning, outcomes map[string]*modelOutcome, startedAt time.Time) *types.Result {
	finishedAt := clock.Now()
	result := &types.Result{
		Name:           "OpenAI/Azure Release Test",
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Duration:       finishedAt.Sub(startedAt),
		ModelsTested:   target.Models,
		MaxFailureRate: cfg.MaxFailureRate,
		ModelStats:     map[string]*types.ModelStat{},
	}
	var lastError string
	for model, outcome := range outcomes {
		stat := &types.ModelStat{
			TotalRequests: outcome.requests,
			Successes:     outcome.successes,
			Failures:      outcome.failures,
		}
		if outcome.requests > 0 {
			stat.FailureRate = float64(outcome.failures) / float64(outcome.requests)
			stat.AvgDuration = outcome.total / time.Duration(outcome.requests)
		}
		result.ModelStats[model] = stat
		result.TotalRequests += outcome.requests
		result.TotalSuccesses += outcome.successes
		result.TotalFailures += outcome.failures
		if outcome.lastError != "" {
			lastError = outcome.lastError
		}
	}
	if result.TotalRequests > 0 {
		result.FailureRate = float64(result.TotalFailures) / float64(result.TotalRequests)
	}
	result.Passed = result.FailureRate <= cfg.MaxFailureRate
	if !result.Passed {
		result.Error = lastError
	}
	return result
}
