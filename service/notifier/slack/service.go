package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BerriAI/litellm-observatory/service/notifier"
)

const defaultTimeout = 10 * time.Second

// Service posts run summaries to a Slack incoming webhook using block kit
// formatting.
type Service struct {
	webhookURL string
	client     *http.Client
}

var _ notifier.Notifier = (*Service)(nil)

// New creates a Slack notifier for the given webhook URL.
func New(webhookURL string) *Service {
	return &Service{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

type block struct {
	Type   string  `json:"type"`
	Text   *text   `json:"text,omitempty"`
	Fields []*text `json:"fields,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type payload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks,omitempty"`
}

// Notify delivers the summary; a non-2xx response is an error so that the
// caller can log the failed dispatch.
func (s *Service) Notify(ctx context.Context, summary *notifier.Summary) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	statusEmoji, statusText := ":white_check_mark:", "PASSED"
	if !summary.Passed {
		statusEmoji, statusText = ":x:", "FAILED"
	}

	blocks := []block{
		{
			Type: "header",
			Text: &text{Type: "plain_text", Text: fmt.Sprintf("%s %s - %s", statusEmoji, summary.TestSuite, statusText)},
		},
		{
			Type: "section",
			Fields: []*text{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Deployment:*\n%s", summary.DeploymentURL)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:*\n%.2f hours", summary.Duration.Hours())},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Total Requests:*\n%d", summary.TotalRequests)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Failure Rate:*\n%.2f%%", summary.FailureRate*100)},
			},
		},
	}
	if summary.Error != "" {
		blocks = append(blocks, block{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n```%s```", summary.Error)},
		})
	}

	body, err := json.Marshal(payload{
		Text:   fmt.Sprintf("%s %s - %s", statusEmoji, summary.TestSuite, statusText),
		Blocks: blocks,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
