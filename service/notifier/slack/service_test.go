package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BerriAI/litellm-observatory/service/notifier"
	"github.com/stretchr/testify/assert"
)

func TestService_Notify(t *testing.T) {
	var received payload
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
		body, err := io.ReadAll(request.Body)
		assert.Nil(t, err)
		assert.Nil(t, json.Unmarshal(body, &received))
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := New(server.URL)
	err := service.Notify(context.Background(), &notifier.Summary{
		TestSuite:     "TestOAIAzureRelease",
		IdentityKey:   "abcdef0123456789",
		DeploymentURL: "https://proxy.example.com",
		Status:        "completed",
		Passed:        true,
		Duration:      3 * time.Hour,
		TotalRequests: 10800,
		FailureRate:   0.002,
	})
	assert.Nil(t, err)
	assert.Contains(t, received.Text, "TestOAIAzureRelease")
	assert.Contains(t, received.Text, "PASSED")
	if assert.True(t, len(received.Blocks) >= 2) {
		assert.Equal(t, "header", received.Blocks[0].Type)
		assert.Equal(t, 4, len(received.Blocks[1].Fields))
	}
}

func TestService_NotifyFailure(t *testing.T) {
	var received payload
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		assert.Nil(t, json.Unmarshal(body, &received))
	}))
	defer server.Close()

	service := New(server.URL)
	err := service.Notify(context.Background(), &notifier.Summary{
		TestSuite: "TestMock",
		Status:    "failed",
		Error:     "connection reset by peer",
	})
	assert.Nil(t, err)
	assert.Contains(t, received.Text, "FAILED")
	// the error is carried as an extra section block
	last := received.Blocks[len(received.Blocks)-1]
	assert.NotNil(t, last.Text)
	assert.Contains(t, last.Text.Text, "connection reset by peer")
}

func TestService_NotifyNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "invalid_payload", http.StatusBadRequest)
	}))
	defer server.Close()

	service := New(server.URL)
	err := service.Notify(context.Background(), &notifier.Summary{TestSuite: "TestMock"})
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestService_NotifyUnconfigured(t *testing.T) {
	service := New("")
	err := service.Notify(context.Background(), &notifier.Summary{TestSuite: "TestMock"})
	assert.NotNil(t, err)
}
