package notifier

import (
	"context"
	"log"
	"time"
)

// maxErrorDetail bounds the error text carried in a summary.
const maxErrorDetail = 500

// Summary is the formatted outcome dispatched once per finished run.
type Summary struct {
	TestSuite     string        `json:"testSuite"`
	IdentityKey   string        `json:"identityKey"`
	DeploymentURL string        `json:"deploymentURL"`
	Status        string        `json:"status"`
	Passed        bool          `json:"passed"`
	Duration      time.Duration `json:"duration"`
	TotalRequests int           `json:"totalRequests"`
	FailureRate   float64       `json:"failureRate"`
	Error         string        `json:"error,omitempty"`
}

// TruncateError bounds err's text for inclusion in a summary.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	if len(text) > maxErrorDetail {
		text = text[:maxErrorDetail] + "..."
	}
	return text
}

// Notifier delivers run summaries to an external sink.  Delivery is
// best-effort and at-most-once: a failed dispatch is logged by the caller
// and never retried, and never alters the run's terminal status.
type Notifier interface {
	Notify(ctx context.Context, summary *Summary) error
}

// LogNotifier writes summaries to the process log.  It is the default sink
// when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, summary *Summary) error {
	if summary.Error != "" {
		log.Printf("run %s (%s) %s: %v", summary.IdentityKey, summary.TestSuite, summary.Status, summary.Error)
		return nil
	}
	log.Printf("run %s (%s) %s: passed=%v requests=%d failureRate=%.2f%%",
		summary.IdentityKey, summary.TestSuite, summary.Status, summary.Passed,
		summary.TotalRequests, summary.FailureRate*100)
	return nil
}
