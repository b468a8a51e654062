package observatory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BerriAI/litellm-observatory/model"
	"github.com/BerriAI/litellm-observatory/model/run"
	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/stretchr/testify/assert"
)

// blockingSuite runs until the per-model gate is released, so that tests can
// control exactly when capacity frees up.
type blockingSuite struct {
	name    string
	fail    bool
	started chan string
	gates   map[string]chan struct{}
}

func newBlockingSuite(models ...string) *blockingSuite {
	gates := map[string]chan struct{}{}
	for _, name := range models {
		gates[name] = make(chan struct{})
	}
	return &blockingSuite{name: "TestBlocking", started: make(chan string, 32), gates: gates}
}

func (b *blockingSuite) Name() string             { return b.name }
func (b *blockingSuite) Tuning() interface{}      { return nil }
func (b *blockingSuite) release(modelName string) { close(b.gates[modelName]) }

func (b *blockingSuite) Run(ctx context.Context, target *types.Target, _ interface{}) (*types.Result, error) {
	key := target.Models[0]
	b.started <- key
	select {
	case <-b.gates[key]:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if b.fail {
		return nil, fmt.Errorf("%s exploded", key)
	}
	return &types.Result{Name: b.name, Passed: true, TotalRequests: 1, TotalSuccesses: 1}, nil
}

func (b *blockingSuite) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case key := <-b.started:
		return key
	case <-time.After(2 * time.Second):
		t.Fatal("no run started within timeout")
		return ""
	}
}

func blockingRequest(modelName string) *model.Request {
	return &model.Request{
		TestSuite:     "TestBlocking",
		DeploymentURL: "https://proxy.example.com",
		APIKey:        "sk-secret",
		Models:        []string{modelName},
	}
}

func waitUntil(t *testing.T, timeout time.Duration, description string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v", description)
}

func TestService_SubmitImmediateAdmission(t *testing.T) {
	suite := newBlockingSuite("A")
	service := New(WithMaxConcurrentTests(1), WithSuites(suite))
	defer shutdown(t, service)

	outcome, err := service.Submit(context.Background(), blockingRequest("A"))
	assert.Nil(t, err)
	assert.True(t, outcome.Admitted())
	assert.Equal(t, run.StatusRunning, outcome.Status)
	assert.Equal(t, "A", suite.awaitStart(t))

	suite.release("A")
	waitUntil(t, 2*time.Second, "completion", func() bool {
		status, err := service.Status(context.Background())
		return err == nil && status.RecentlyCompleted == 1
	})
}

func TestService_DuplicateSuppression(t *testing.T) {
	suite := newBlockingSuite("A")
	service := New(WithMaxConcurrentTests(2), WithSuites(suite))
	defer shutdown(t, service)

	first, err := service.Submit(context.Background(), blockingRequest("A"))
	assert.Nil(t, err)
	assert.True(t, first.Admitted())
	suite.awaitStart(t)

	second, err := service.Submit(context.Background(), blockingRequest("A"))
	assert.Nil(t, err)
	assert.False(t, second.Admitted())
	assert.Equal(t, first.IdentityKey, second.IdentityKey)
	assert.Equal(t, run.StatusRunning, second.Duplicate.Status)
	assert.NotNil(t, second.Duplicate.StartedAt)

	// once terminal the identity key is reusable
	suite.release("A")
	waitUntil(t, 2*time.Second, "completion", func() bool {
		status, _ := service.Status(context.Background())
		return status != nil && status.RecentlyCompleted == 1
	})
	third, err := service.Submit(context.Background(), blockingRequest("A"))
	assert.Nil(t, err)
	assert.True(t, third.Admitted())
	suite.awaitStart(t)
}

func TestService_DuplicateModelOrderInsensitive(t *testing.T) {
	suite := newBlockingSuite("A")
	service := New(WithMaxConcurrentTests(1), WithSuites(suite))
	defer shutdown(t, service)

	request := blockingRequest("A")
	request.Models = []string{"A", "B"}
	first, err := service.Submit(context.Background(), request)
	assert.Nil(t, err)
	assert.True(t, first.Admitted())
	suite.awaitStart(t)

	reordered := blockingRequest("A")
	reordered.Models = []string{"B", "A"}
	second, err := service.Submit(context.Background(), reordered)
	assert.Nil(t, err)
	assert.False(t, second.Admitted())
	suite.release("A")
}

func TestService_DuplicateExplicitDefaultTuning(t *testing.T) {
	service := New(WithMaxConcurrentTests(1))
	defer shutdown(t, service)

	request := &model.Request{
		TestSuite:     "TestMock",
		DeploymentURL: "https://proxy.example.com",
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4"},
		Tuning:        map[string]interface{}{"duration_seconds": 60.0},
	}
	first, err := service.Submit(context.Background(), request)
	assert.Nil(t, err)
	assert.True(t, first.Admitted())

	// spelling out the declared defaults must not change the identity key
	explicit := &model.Request{
		TestSuite:     "TestMock",
		DeploymentURL: "https://proxy.example.com",
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4"},
		Tuning: map[string]interface{}{
			"duration_seconds": 60.0,
			"should_pass":      true,
			"failure_rate":     0.0,
			"total_requests":   10,
		},
	}
	second, err := service.Submit(context.Background(), explicit)
	assert.Nil(t, err)
	assert.False(t, second.Admitted())
	assert.Equal(t, first.IdentityKey, second.IdentityKey)
}

func TestService_FIFOAdmission(t *testing.T) {
	suite := newBlockingSuite("A", "B", "C", "D", "E")
	service := New(WithMaxConcurrentTests(2), WithSuites(suite))
	defer shutdown(t, service)

	expected := map[string]run.Status{
		"A": run.StatusRunning,
		"B": run.StatusRunning,
		"C": run.StatusQueued,
		"D": run.StatusQueued,
		"E": run.StatusQueued,
	}
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		outcome, err := service.Submit(context.Background(), blockingRequest(name))
		assert.Nil(t, err, name)
		assert.True(t, outcome.Admitted(), name)
		assert.Equal(t, expected[name], outcome.Status, name)
	}

	initial := map[string]bool{}
	initial[suite.awaitStart(t)] = true
	initial[suite.awaitStart(t)] = true
	assert.True(t, initial["A"])
	assert.True(t, initial["B"])

	// releasing capacity admits the queue head, not an arbitrary waiter
	suite.release("A")
	assert.Equal(t, "C", suite.awaitStart(t))
	suite.release("B")
	assert.Equal(t, "D", suite.awaitStart(t))
	suite.release("C")
	assert.Equal(t, "E", suite.awaitStart(t))

	suite.release("D")
	suite.release("E")
	waitUntil(t, 2*time.Second, "all completions", func() bool {
		status, _ := service.Status(context.Background())
		return status != nil && status.RecentlyCompleted == 5
	})
}

func TestService_SaturationScenario(t *testing.T) {
	models := []string{"j1", "j2", "j3", "j4", "j5", "j6", "j7", "j8"}
	suite := newBlockingSuite(models...)
	service := New(WithMaxConcurrentTests(5), WithSuites(suite))
	defer shutdown(t, service)

	for i, name := range models {
		outcome, err := service.Submit(context.Background(), blockingRequest(name))
		assert.Nil(t, err, name)
		assert.True(t, outcome.Admitted(), name)
		if i < 5 {
			assert.Equal(t, run.StatusRunning, outcome.Status, name)
		} else {
			assert.Equal(t, run.StatusQueued, outcome.Status, name)
		}
	}
	for i := 0; i < 5; i++ {
		suite.awaitStart(t)
	}

	status, err := service.Status(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, 5, status.MaxConcurrentTests)
	assert.Equal(t, 5, len(status.Running))
	assert.Equal(t, 3, status.QueuedCount)

	// a duplicate of an in-flight job is rejected even at saturation
	duplicate, err := service.Submit(context.Background(), blockingRequest("j2"))
	assert.Nil(t, err)
	assert.False(t, duplicate.Admitted())

	for _, name := range models {
		suite.release(name)
	}
	waitUntil(t, 2*time.Second, "all completions", func() bool {
		status, _ := service.Status(context.Background())
		return status != nil && status.RecentlyCompleted == len(models)
	})
}

func TestService_CapacityReleasedOnFailure(t *testing.T) {
	suite := newBlockingSuite("A", "B")
	suite.fail = true
	service := New(WithMaxConcurrentTests(1), WithSuites(suite))
	defer shutdown(t, service)

	first, err := service.Submit(context.Background(), blockingRequest("A"))
	assert.Nil(t, err)
	assert.Equal(t, run.StatusRunning, first.Status)
	assert.Equal(t, "A", suite.awaitStart(t))

	second, err := service.Submit(context.Background(), blockingRequest("B"))
	assert.Nil(t, err)
	assert.Equal(t, run.StatusQueued, second.Status)

	// the failing run must still release its slot
	suite.release("A")
	assert.Equal(t, "B", suite.awaitStart(t))
	suite.release("B")

	waitUntil(t, 2*time.Second, "both terminal", func() bool {
		status, _ := service.Status(context.Background())
		return status != nil && status.RecentlyCompleted == 2
	})
}

func TestService_ConcurrentDuplicateSubmissions(t *testing.T) {
	suite := newBlockingSuite("A")
	service := New(WithMaxConcurrentTests(1), WithSuites(suite))
	defer shutdown(t, service)

	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := service.Submit(context.Background(), blockingRequest("A"))
			assert.Nil(t, err)
			if outcome.Admitted() {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	// the duplicate check-and-insert is atomic, racing submissions cannot
	// both win
	assert.EqualValues(t, 1, atomic.LoadInt32(&admitted))
	assert.Equal(t, "A", suite.awaitStart(t))
	suite.release("A")
	waitUntil(t, 2*time.Second, "completion", func() bool {
		status, _ := service.Status(context.Background())
		return status != nil && status.RecentlyCompleted == 1
	})
}

// gaugeSuite records the highest number of concurrently executing runs.
type gaugeSuite struct {
	current int32
	peak    int32
}

func (g *gaugeSuite) Name() string        { return "TestGauge" }
func (g *gaugeSuite) Tuning() interface{} { return nil }

func (g *gaugeSuite) Run(_ context.Context, _ *types.Target, _ interface{}) (*types.Result, error) {
	now := atomic.AddInt32(&g.current, 1)
	for {
		peak := atomic.LoadInt32(&g.peak)
		if now <= peak || atomic.CompareAndSwapInt32(&g.peak, peak, now) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&g.current, -1)
	return &types.Result{Name: "gauge", Passed: true, TotalRequests: 1, TotalSuccesses: 1}, nil
}

func TestService_CeilingNeverExceeded(t *testing.T) {
	suite := &gaugeSuite{}
	service := New(WithMaxConcurrentTests(3), WithSuites(suite))
	defer shutdown(t, service)

	total := 20
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			request := blockingRequest(fmt.Sprintf("model-%02d", index))
			request.TestSuite = "TestGauge"
			outcome, err := service.Submit(context.Background(), request)
			assert.Nil(t, err)
			assert.True(t, outcome.Admitted())
		}(i)
	}
	wg.Wait()

	waitUntil(t, 5*time.Second, "all completions", func() bool {
		status, _ := service.Status(context.Background())
		return status != nil && status.RecentlyCompleted == total
	})
	peak := atomic.LoadInt32(&suite.peak)
	assert.True(t, peak <= 3, "observed %d concurrent runs, ceiling is 3", peak)
}

func TestService_SubmitValidation(t *testing.T) {
	service := New(WithMaxConcurrentTests(1))
	defer shutdown(t, service)

	_, err := service.Submit(context.Background(), &model.Request{TestSuite: "TestMock"})
	assert.NotNil(t, err)

	_, err = service.Submit(context.Background(), &model.Request{
		TestSuite:     "TestUnknown",
		DeploymentURL: "https://proxy.example.com",
		APIKey:        "sk-secret",
		Models:        []string{"gpt-4"},
	})
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "TestUnknown")
}

func TestService_Shutdown(t *testing.T) {
	suite := newBlockingSuite("A", "B")
	service := New(WithMaxConcurrentTests(1), WithSuites(suite))

	running, err := service.Submit(context.Background(), blockingRequest("A"))
	assert.Nil(t, err)
	assert.Equal(t, run.StatusRunning, running.Status)
	suite.awaitStart(t)

	queued, err := service.Submit(context.Background(), blockingRequest("B"))
	assert.Nil(t, err)
	assert.Equal(t, run.StatusQueued, queued.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Nil(t, service.Shutdown(ctx))

	// no record is left in a non-terminal state
	waitUntil(t, 2*time.Second, "abandonment", func() bool {
		status, err := service.Status(context.Background())
		return err == nil && len(status.Running) == 0 && status.QueuedCount == 0 && status.RecentlyCompleted == 2
	})

	_, err = service.Submit(context.Background(), blockingRequest("A"))
	assert.True(t, errors.Is(err, ErrShuttingDown))

	// repeated shutdown is a no-op
	assert.Nil(t, service.Shutdown(context.Background()))
}

func shutdown(t *testing.T, service *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Nil(t, service.Shutdown(ctx))
}
