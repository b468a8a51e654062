package run

import (
	"time"

	"github.com/BerriAI/litellm-observatory/internal/clock"
	"github.com/BerriAI/litellm-observatory/model"
	"github.com/BerriAI/litellm-observatory/model/types"
)

// Status of a tracked run. Completed and Failed are terminal.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is the tracked lifecycle state of one submission attempt, keyed by the
// identity key of its request.
type Run struct {
	ID          string         `json:"id"`
	IdentityKey string         `json:"identityKey"`
	Request     *model.Request `json:"request"`
	Status      Status         `json:"status"`
	SubmittedAt time.Time      `json:"submittedAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	FinishedAt  *time.Time     `json:"finishedAt,omitempty"`
	Result      *types.Result  `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`

	// tuning is the suite prototype with submission overrides merged; it is
	// resolved once at submission and handed to the suite at execution.
	tuning interface{}
}

// New creates a queued run for the given identity key.
func New(id, identityKey string, request *model.Request, tuning interface{}) *Run {
	return &Run{
		ID:          id,
		IdentityKey: identityKey,
		Request:     request,
		Status:      StatusQueued,
		SubmittedAt: clock.Now(),
		tuning:      tuning,
	}
}

// Tuning returns the resolved suite tuning.
func (r *Run) Tuning() interface{} {
	return r.tuning
}

// Start marks the run as running.
func (r *Run) Start() {
	now := clock.Now()
	r.StartedAt = &now
	r.Status = StatusRunning
}

// Complete marks the run as completed with the suite result.
func (r *Run) Complete(result *types.Result) {
	now := clock.Now()
	r.FinishedAt = &now
	r.Result = result
	r.Status = StatusCompleted
}

// Fail marks the run as failed with the causing error.
func (r *Run) Fail(err error) {
	now := clock.Now()
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
	r.Status = StatusFailed
}

// Clone returns a shallow copy so that readers never observe a torn record.
// Request, Result and tuning are treated as immutable once attached.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	ret := *r
	return &ret
}
