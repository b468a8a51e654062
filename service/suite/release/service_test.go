package release

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/BerriAI/litellm-observatory/progress"
	"github.com/stretchr/testify/assert"
)

func newDeployment(t *testing.T, failEvery int) (*httptest.Server, *int64) {
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/v1/chat/completions", request.URL.Path)
		assert.Equal(t, "Bearer sk-secret", request.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.Nil(t, json.NewDecoder(request.Body).Decode(&body))
		assert.NotEmpty(t, body["model"])

		n := atomic.AddInt64(&requests, 1)
		if failEvery > 0 && n%int64(failEvery) == 0 {
			http.Error(writer, `{"error": "rate limited"}`, http.StatusTooManyRequests)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	return server, &requests
}

func shortTuning() *Tuning {
	return &Tuning{
		DurationHours:          0.2 / 3600, // 200ms
		MaxFailureRate:         0.01,
		RequestIntervalSeconds: 0.001,
	}
}

func TestService_RunPasses(t *testing.T) {
	server, requests := newDeployment(t, 0)
	defer server.Close()

	target := &types.Target{
		DeploymentURL: server.URL,
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4", "azure-gpt-4"},
	}
	result, err := New().Run(context.Background(), target, shortTuning())
	assert.Nil(t, err)
	assert.True(t, result.Passed)
	assert.True(t, result.TotalRequests > 0)
	assert.EqualValues(t, *requests, result.TotalRequests)
	assert.Equal(t, 0, result.TotalFailures)
	assert.Equal(t, 2, len(result.ModelStats))
	// round-robin spreads requests across both models
	assert.True(t, result.ModelStats["gpt-4"].TotalRequests > 0)
	assert.True(t, result.ModelStats["azure-gpt-4"].TotalRequests > 0)
}

func TestService_RunFailsAboveCeiling(t *testing.T) {
	server, _ := newDeployment(t, 2) // every second request fails
	defer server.Close()

	target := &types.Target{
		DeploymentURL: server.URL,
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4"},
	}
	result, err := New().Run(context.Background(), target, shortTuning())
	assert.Nil(t, err)
	assert.False(t, result.Passed)
	assert.True(t, result.FailureRate > result.MaxFailureRate)
	assert.Contains(t, result.Error, "429")
}

func TestService_RunReportsProgress(t *testing.T) {
	server, _ := newDeployment(t, 0)
	defer server.Close()

	ctx, tracker := progress.WithNewTracker(context.Background(), "run-1", Name)
	target := &types.Target{
		DeploymentURL: server.URL,
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4"},
	}
	result, err := New().Run(ctx, target, shortTuning())
	assert.Nil(t, err)

	snapshot := tracker.Snapshot()
	assert.Equal(t, result.TotalRequests, snapshot.Requests)
	assert.Equal(t, result.TotalSuccesses, snapshot.Successes)
}

func TestService_RunHonoursCancellation(t *testing.T) {
	server, _ := newDeployment(t, 0)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := &types.Target{
		DeploymentURL: server.URL,
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4"},
	}
	_, err := New().Run(ctx, target, &Tuning{DurationHours: 1, MaxFailureRate: 0.01, RequestIntervalSeconds: 1})
	assert.NotNil(t, err)
}

func TestService_RunRequiresModels(t *testing.T) {
	_, err := New().Run(context.Background(), &types.Target{DeploymentURL: "https://proxy.example.com"}, nil)
	assert.NotNil(t, err)
}
