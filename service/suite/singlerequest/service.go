package singlerequest

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
)

const Name = "TestMockSingleRequest"

const requestTimeout = 60 * time.Second

// Tuning controls the single connectivity request.
type Tuning struct {
	Message   string `json:"message" yaml:"message"`
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens"`
}

// Service makes a single real chat-completion request against the deployment
// to verify reachability, credential validity and endpoint behaviour without
// a long test duration.
type Service struct {
	client *http.Client
}

// New creates a single-request suite.
func New() *Service {
	return &Service{client: &http.Client{Timeout: requestTimeout}}
}

// Name returns the suite Name
func (s *Service) Name() string {
	return Name
}

// Tuning returns the default tuning prototype.
func (s *Service) Tuning() interface{} {
	return &Tuning{
		Message:   "Hello! This is a connectivity test.",
		MaxTokens: 50,
	}
}

// Run issues one chat-completion request using the first model.
func (s *Service) Run(ctx context.Context, target *types.Target, tuning interface{}) (*types.Result, error) {
	cfg, ok := tuning.(*Tuning)
	if !ok {
		cfg = s.Tuning().(*Tuning)
	}
	model := "gpt-4"
	if len(target.Models) > 0 {
		model = target.Models[0]
	}

	startedAt := clock.Now()
	requestStart := clock.Now()
	success, failureDetail := s.makeRequest(ctx, target, model, cfg)
	requestDuration := clock.Now().Sub(requestStart)

	modelStats := map[string]*types.ModelStat{}
	for _, name := range target.Models {
		stat := &types.ModelStat{}
		if name == model {
			stat.TotalRequests = 1
			stat.AvgDuration = requestDuration
			if success {
				stat.Successes = 1
			} else {
				stat.Failures = 1
				stat.FailureRate = 1.0
			}
		}
		modelStats[name] = stat
	}

	failureRate := 0.0
	totalFailures := 0
	if !success {
		failureRate = 1.0
		totalFailures = 1
	}
	finishedAt := clock.Now()
	return &types.Result{
		Name:           "Single Request Connectivity Test",
		Passed:         success,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Duration:       finishedAt.Sub(startedAt),
		ModelsTested:   target.Models,
		TotalRequests:  1,
		TotalSuccesses: 1 - totalFailures,
		TotalFailures:  totalFailures,
		FailureRate:    failureRate,
		ModelStats:     modelStats,
		Error:          failureDetail,
	}, nil
}

func (s *Service) makeRequest(ctx context.Context, target *types.Target, model string, cfg *Tuning) (bool, string) {
	payload, err := json.Marshal(map[string]interface{}{
		"model":      model,
		"messages":   []map[string]string{{"role": "user", "content": cfg.Message}},
		"max_tokens": cfg.MaxTokens,
	})
	if err != nil {
		return false, err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.DeploymentURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+target.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("status %d: %s", resp.StatusCode, string(body))
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Sprintf("failed to parse response: %v", err)
	}
	return true, ""
}
