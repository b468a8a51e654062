package observatory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/BerriAI/litellm-observatory/extension"
	"github.com/BerriAI/litellm-observatory/internal/idgen"
	"github.com/BerriAI/litellm-observatory/model"
	"github.com/BerriAI/litellm-observatory/model/run"
	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/BerriAI/litellm-observatory/service/admission"
	"github.com/BerriAI/litellm-observatory/service/executor"
	"github.com/BerriAI/litellm-observatory/service/lifecycle"
	lmemory "github.com/BerriAI/litellm-observatory/service/lifecycle/memory"
	"github.com/BerriAI/litellm-observatory/service/notifier"
	"github.com/BerriAI/litellm-observatory/service/suite/mock"
	"github.com/BerriAI/litellm-observatory/service/suite/release"
	"github.com/BerriAI/litellm-observatory/service/suite/singlerequest"
	"github.com/BerriAI/litellm-observatory/tracing"
	"github.com/viant/x"
)

// ErrShuttingDown is returned by Submit once shutdown started.
var ErrShuttingDown = errors.New("observatory: shutting down")

// SubmitOutcome is the synchronous result of a submission: either admitted
// (queued or already running) or rejected as a duplicate of an active run.
type SubmitOutcome struct {
	IdentityKey string     `json:"identityKey"`
	Status      run.Status `json:"status"`
	// Duplicate holds a snapshot of the conflicting active run when the
	// submission was rejected.
	Duplicate *run.Run `json:"duplicate,omitempty"`
}

// Admitted reports whether the submission entered the queue.
func (o *SubmitOutcome) Admitted() bool {
	return o != nil && o.Duplicate == nil
}

// RunningTest is the external-facing view of one running test; the
// credential is redacted.
type RunningTest struct {
	TestSuite     string     `json:"test_suite"`
	DeploymentURL string     `json:"deployment_url"`
	Models        []string   `json:"models"`
	Status        run.Status `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

// Status is the real-time view of the admission layer.
type Status struct {
	MaxConcurrentTests int                     `json:"max_concurrent_tests"`
	Running            map[string]*RunningTest `json:"currently_running"`
	QueuedCount        int                     `json:"queued"`
	RecentlyCompleted  int                     `json:"recently_completed"`
}

// Service is the queue coordinator façade: it accepts submissions, rejects
// duplicates, requests admission and launches the run executor.
type Service struct {
	config          *Config
	suites          *extension.Suites
	store           lifecycle.Store
	admission       *admission.Service
	executor        *executor.Service
	notifier        notifier.Notifier
	extensionTypes  []*x.Type
	extensionSuites []types.Suite
	executorOptions []executor.Option

	// runCtx outlives individual Submit calls; runs execute under it so that
	// Submit returns without waiting for the run to finish.
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mux    sync.Mutex
	closed bool
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.admission = admission.New(s.config.MaxConcurrentTests)
	executorOptions := append([]executor.Option{executor.WithNotifier(s.notifier)}, s.executorOptions...)
	s.executor = executor.NewService(s.suites, s.store, executorOptions...)
	s.suites.Register(mock.New())
	s.suites.Register(singlerequest.New())
	s.suites.Register(release.New())
	for _, suite := range s.extensionSuites {
		s.suites.Register(suite)
	}
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.suites == nil {
		s.suites = extension.NewSuites(s.extensionTypes...)
	}
	if s.store == nil {
		s.store = lmemory.New(s.config.CompletedHistoryLimit)
	}
	if s.notifier == nil {
		s.notifier = notifier.LogNotifier{}
	}
}

// Suites returns the suite registry.
func (s *Service) Suites() *extension.Suites {
	return s.suites
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// RegisterSuites registers additional test suites after construction.
func (s *Service) RegisterSuites(suites ...types.Suite) {
	for i := range suites {
		s.suites.Register(suites[i])
	}
}

// Submit accepts a test submission. It computes the identity key, atomically
// rejects duplicates of active runs, and either starts the run immediately
// (free slot) or leaves it queued for FIFO admission. It never waits for the
// run to finish.
func (s *Service) Submit(ctx context.Context, request *model.Request) (outcome *SubmitOutcome, err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("queue.submit %s", request.TestSuite), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	if s.isClosed() {
		return nil, ErrShuttingDown
	}
	if err = request.Validate(); err != nil {
		return nil, err
	}
	suite := s.suites.Lookup(request.TestSuite)
	if suite == nil {
		return nil, types.NewSuiteNotFoundError(request.TestSuite, s.suites.Names())
	}
	tuning, err := s.executor.ResolveTuning(suite, request.Tuning)
	if err != nil {
		return nil, err
	}
	identityKey, err := model.Fingerprint(request, tuning)
	if err != nil {
		return nil, err
	}
	span.WithAttributes(map[string]string{"run.identity_key": identityKey})

	aRun := run.New(idgen.New(), identityKey, request, tuning)
	inserted, ierr := s.store.InsertQueued(ctx, aRun)
	if errors.Is(ierr, lifecycle.ErrDuplicate) {
		return &SubmitOutcome{IdentityKey: identityKey, Status: inserted.Status, Duplicate: inserted}, nil
	}
	if ierr != nil {
		return nil, ierr
	}

	if permit, ok := s.admission.TryAcquire(); ok {
		handle := run.NewHandle()
		if _, err = s.store.MarkRunning(ctx, identityKey, handle); err != nil {
			permit.Release()
			return nil, err
		}
		s.launch(aRun, permit, handle)
		return &SubmitOutcome{IdentityKey: identityKey, Status: run.StatusRunning}, nil
	}

	// Ticket registration happens here, synchronously, so that submission
	// order is admission order.
	ticket, terr := s.admission.Enqueue()
	if terr != nil {
		_, _ = s.store.MarkTerminal(ctx, identityKey, run.StatusFailed, nil, ErrShuttingDown)
		return nil, terr
	}
	s.wg.Add(1)
	go s.awaitAdmission(aRun, ticket)
	return &SubmitOutcome{IdentityKey: identityKey, Status: run.StatusQueued}, nil
}

func (s *Service) awaitAdmission(aRun *run.Run, ticket *admission.Ticket) {
	defer s.wg.Done()
	permit, err := ticket.Wait(s.runCtx)
	if err != nil {
		cause := fmt.Errorf("abandoned while queued: %w", err)
		if _, terr := s.store.MarkTerminal(s.runCtx, aRun.IdentityKey, run.StatusFailed, nil, cause); terr != nil {
			log.Printf("failed to abandon queued run %s: %v", aRun.IdentityKey, terr)
		}
		return
	}
	handle := run.NewHandle()
	if _, err = s.store.MarkRunning(s.runCtx, aRun.IdentityKey, handle); err != nil {
		permit.Release()
		log.Printf("failed to start queued run %s: %v", aRun.IdentityKey, err)
		return
	}
	s.executor.Run(s.runCtx, aRun, permit, handle)
}

func (s *Service) launch(aRun *run.Run, permit *admission.Permit, handle *run.Handle) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executor.Run(s.runCtx, aRun, permit, handle)
	}()
}

// Status returns the real-time view of the queue: running tests with the
// credential redacted, queued count and recent completion count.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	status := &Status{
		MaxConcurrentTests: s.admission.Limit(),
		Running:            map[string]*RunningTest{},
		QueuedCount:        snapshot.QueuedCount,
		RecentlyCompleted:  snapshot.CompletedCount,
	}
	for _, aRun := range snapshot.Running {
		status.Running[aRun.IdentityKey] = &RunningTest{
			TestSuite:     aRun.Request.TestSuite,
			DeploymentURL: aRun.Request.DeploymentURL,
			Models:        aRun.Request.Models,
			Status:        aRun.Status,
			StartedAt:     aRun.StartedAt,
		}
	}
	return status, nil
}

// Shutdown stops accepting submissions, fails queued runs with a shutdown
// cause, waits for in-flight runs up to ctx and abandons the remainder as
// failed. No record is left in a non-terminal state.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		return nil
	}
	s.closed = true
	s.mux.Unlock()

	// Queued waiters observe ErrClosed through their tickets and mark
	// themselves failed.
	s.admission.Close()

	handles, err := s.store.ActiveHandles(ctx)
	if err != nil {
		return err
	}
	for identityKey, handle := range handles {
		if werr := handle.Wait(ctx); werr != nil {
			cause := fmt.Errorf("abandoned at shutdown: %w", werr)
			if _, terr := s.store.MarkTerminal(ctx, identityKey, run.StatusFailed, nil, cause); terr != nil && !errors.Is(terr, lifecycle.ErrNotFound) {
				log.Printf("failed to abandon run %s: %v", identityKey, terr)
			}
		}
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

func (s *Service) isClosed() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.closed
}

// New creates an observatory service
func New(options ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	ret := &Service{runCtx: ctx, cancel: cancel, config: DefaultConfig()}
	ret.init(options)
	return ret
}
