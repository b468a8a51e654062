package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"

	"github.com/BerriAI/litellm-observatory/extension"
	"github.com/BerriAI/litellm-observatory/model/run"
	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/BerriAI/litellm-observatory/progress"
	"github.com/BerriAI/litellm-observatory/service/admission"
	"github.com/BerriAI/litellm-observatory/service/lifecycle"
	"github.com/BerriAI/litellm-observatory/service/notifier"
	"github.com/BerriAI/litellm-observatory/tracing"
	"github.com/viant/structology/conv"
)

// Listener is invoked once a run reaches its terminal state (regardless of
// whether the suite returned an error or not). Implementations can log,
// collect metrics or perform any other side-effects they require.
//
// For convenience the listener is defined as a function type rather than an
// interface; users can therefore pass a plain function literal when
// customising the executor.
type Listener func(aRun *run.Run, result *types.Result, err error)

// LogListener writes a one-line outcome per finished run to the process log.
func LogListener(aRun *run.Run, result *types.Result, err error) {
	if err != nil {
		log.Printf("run %s (%s) failed: %v", aRun.IdentityKey, aRun.Request.TestSuite, err)
		return
	}
	if result != nil {
		log.Printf("run %s (%s) completed: passed=%v requests=%d", aRun.IdentityKey, aRun.Request.TestSuite, result.Passed, result.TotalRequests)
	}
}

// Option is used to customise the executor instance.
type Option func(*Service)

// WithListener overrides the listener invoked after every run. Passing nil
// disables the callback entirely.
func WithListener(l Listener) Option {
	return func(s *Service) {
		s.listener = l
	}
}

// WithNotifier sets the notification sink.
func WithNotifier(n notifier.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// Service executes admitted runs.
type Service struct {
	suites    *extension.Suites
	store     lifecycle.Store
	notifier  notifier.Notifier
	converter *conv.Converter
	listener  Listener
}

// ResolveTuning clones the suite's default prototype and merges the
// submission overrides onto it. Unknown override keys are ignored; a type
// mismatch surfaces as a validation error.
func (s *Service) ResolveTuning(suite types.Suite, overrides map[string]interface{}) (interface{}, error) {
	prototype := suite.Tuning()
	if prototype == nil {
		return nil, nil
	}
	value := reflect.ValueOf(prototype)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return nil, fmt.Errorf("suite %q tuning prototype must be a non-nil pointer", suite.Name())
	}

	// Overlay overrides on the serialized defaults so that an omitted field
	// and a field explicitly set to its declared default resolve to the same
	// value - the identity key depends on it.
	data, err := json.Marshal(prototype)
	if err != nil {
		return nil, types.NewInvalidTuningError(suite.Name(), err)
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, types.NewInvalidTuningError(suite.Name(), err)
	}
	for key, override := range overrides {
		merged[key] = override
	}

	clone := reflect.New(value.Elem().Type())
	if err := s.converter.Convert(merged, clone.Interface()); err != nil {
		return nil, types.NewInvalidTuningError(suite.Name(), err)
	}
	return clone.Interface(), nil
}

// Run drives one admitted run to its terminal state. The permit is released
// and the handle finished on every exit path, including a suite panic.
func (s *Service) Run(ctx context.Context, aRun *run.Run, permit *admission.Permit, handle *run.Handle) {
	defer handle.Finish()
	defer permit.Release()

	result, err := s.execute(ctx, aRun)

	status := run.StatusCompleted
	if err != nil {
		status = run.StatusFailed
	}
	terminal, terr := s.store.MarkTerminal(ctx, aRun.IdentityKey, status, result, err)
	if terr != nil {
		// Already terminal - abandoned during shutdown. The transition and the
		// notification belong to whoever performed the abandonment.
		log.Printf("run %s finished after abandonment: %v", aRun.IdentityKey, terr)
		return
	}

	s.notify(ctx, terminal, result, err)
	if s.listener != nil {
		s.listener(terminal, result, err)
	}
}

func (s *Service) execute(ctx context.Context, aRun *run.Run) (result *types.Result, err error) {
	ctx, _ = progress.WithNewTracker(ctx, aRun.ID, aRun.Request.TestSuite)
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("suite.run %s", aRun.Request.TestSuite), "INTERNAL")
	span.WithAttributes(map[string]string{
		"run.id":           aRun.ID,
		"run.identity_key": aRun.IdentityKey,
		"suite.name":       aRun.Request.TestSuite,
	})
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suite %q panicked: %v", aRun.Request.TestSuite, r)
		}
		tracing.EndSpan(span, err)
	}()

	suite := s.suites.Lookup(aRun.Request.TestSuite)
	if suite == nil {
		return nil, types.NewSuiteNotFoundError(aRun.Request.TestSuite, s.suites.Names())
	}
	return suite.Run(ctx, aRun.Request.Target(), aRun.Tuning())
}

func (s *Service) notify(ctx context.Context, aRun *run.Run, result *types.Result, runErr error) {
	if s.notifier == nil {
		return
	}
	summary := &notifier.Summary{
		TestSuite:     aRun.Request.TestSuite,
		IdentityKey:   aRun.IdentityKey,
		DeploymentURL: aRun.Request.DeploymentURL,
		Status:        string(aRun.Status),
		Error:         notifier.TruncateError(runErr),
	}
	if aRun.StartedAt != nil && aRun.FinishedAt != nil {
		summary.Duration = aRun.FinishedAt.Sub(*aRun.StartedAt)
	}
	if result != nil {
		summary.Passed = result.Passed
		summary.TotalRequests = result.TotalRequests
		summary.FailureRate = result.FailureRate
		if summary.Duration == 0 {
			summary.Duration = result.Duration
		}
	}
	if err := s.notifier.Notify(ctx, summary); err != nil {
		log.Printf("failed to notify for run %s: %v", aRun.IdentityKey, err)
	}
}

// NewService creates a new executor service instance.
func NewService(suites *extension.Suites, store lifecycle.Store, opts ...Option) *Service {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true

	s := &Service{
		suites:    suites,
		store:     store,
		notifier:  notifier.LogNotifier{},
		converter: conv.NewConverter(options),
		listener:  LogListener,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
