package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictops/autoscaler/pkg/models"
)

type stubPolicySource struct {
	mu       sync.Mutex
	policies []models.Policy
	err      error
	calls    int
}

func (s *stubPolicySource) ListPolicies(ctx context.Context, namespace string) ([]models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.policies, nil
}

func (s *stubPolicySource) Close() error { return nil }

func (s *stubPolicySource) set(policies []models.Policy, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = policies
	s.err = err
}

type stubMetricsSource struct {
	window models.HistoryWindow
	err    error
}

func (s *stubMetricsSource) Fetch(ctx context.Context, query models.MetricsQuery) (models.HistoryWindow, error) {
	return s.window, s.err
}

func (s *stubMetricsSource) HealthCheck(ctx context.Context) error { return nil }
func (s *stubMetricsSource) Close() error                          { return nil }

type stubPredictor struct {
	forecast float64
	err      error
}

func (s *stubPredictor) Predict(ctx context.Context, window models.HistoryWindow) (float64, error) {
	return s.forecast, s.err
}

func (s *stubPredictor) WindowLength() int { return 3 }
func (s *stubPredictor) Close() error      { return nil }

type stubScaler struct {
	mu         sync.Mutex
	replicas   int
	getErr     error
	setErr     error
	panicOn    string
	setHistory map[string][]int
}

func newStubScaler(replicas int) *stubScaler {
	return &stubScaler{replicas: replicas, setHistory: make(map[string][]int)}
}

func (s *stubScaler) GetReplicas(ctx context.Context, targetID string) (int, error) {
	if targetID == s.panicOn {
		panic("scaler exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replicas, s.getErr
}

func (s *stubScaler) SetReplicas(ctx context.Context, targetID string, replicas int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.setHistory[targetID] = append(s.setHistory[targetID], replicas)
	return nil
}

func (s *stubScaler) Close() error { return nil }

func (s *stubScaler) setsFor(targetID string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.setHistory[targetID]...)
}

func testPolicyFor(targetID string) models.Policy {
	return models.Policy{
		TargetID: targetID,
		Query: models.MetricsQuery{
			ServiceName:  targetID,
			WindowLength: 3,
		},
		Thresholds: models.ValidationThresholds{
			MaxSpikeMultiplier:      10,
			MaxHistoricalMultiplier: 10,
		},
		Scaling: models.ScalingPolicy{
			MinReplicas:        1,
			MaxReplicas:        10,
			WorkloadPerReplica: 100,
			RemovalFraction:    0.5,
			Cooldown:           5 * time.Minute,
		},
	}
}

type testHarness struct {
	orch    *Orchestrator
	source  *stubPolicySource
	metrics *stubMetricsSource
	model   *stubPredictor
	backend *stubScaler
}

func newTestHarness(t *testing.T, cfg Config, policies ...models.Policy) *testHarness {
	t.Helper()

	h := &testHarness{
		source:  &stubPolicySource{policies: policies},
		metrics: &stubMetricsSource{window: models.HistoryWindow{100, 100, 100}},
		model:   &stubPredictor{forecast: 550},
		backend: newStubScaler(2),
	}

	h.orch = New(cfg, Dependencies{
		PolicySource:  h.source,
		MetricsSource: h.metrics,
		Predictor:     h.model,
		Scaler:        h.backend,
	})

	require.NoError(t, h.orch.Start())
	t.Cleanup(h.orch.Stop)

	require.NoError(t, h.orch.reloadPolicies(context.Background()))
	return h
}

func (h *testHarness) errorStreak(t *testing.T, targetID string) int {
	t.Helper()
	status, ok := h.orch.TargetStatus(targetID)
	require.True(t, ok, "target %s not tracked", targetID)
	return status.ConsecutiveErrors
}

func TestOrchestrator_CycleAppliesScaleOut(t *testing.T) {
	h := newTestHarness(t, Config{}, testPolicyFor("web-frontend"))

	h.orch.runCycle(context.Background())

	// Forecast 550 at 100 per replica needs 6; current is 2.
	assert.Equal(t, []int{6}, h.backend.setsFor("web-frontend"))

	status, ok := h.orch.TargetStatus("web-frontend")
	require.True(t, ok)
	assert.Zero(t, status.ConsecutiveErrors)
	assert.NotNil(t, status.LastProcessedAt)
	assert.NotNil(t, status.LastScaledAt)
	assert.Positive(t, status.CooldownRemaining)
}

func TestOrchestrator_CooldownBlocksSecondScaling(t *testing.T) {
	h := newTestHarness(t, Config{}, testPolicyFor("web-frontend"))

	h.orch.runCycle(context.Background())
	h.orch.runCycle(context.Background())

	assert.Equal(t, []int{6}, h.backend.setsFor("web-frontend"))
}

func TestOrchestrator_ForecastRejectionSkipsScalingButCountsError(t *testing.T) {
	h := newTestHarness(t, Config{}, testPolicyFor("web-frontend"))
	h.model.forecast = 5000

	h.orch.runCycle(context.Background())

	assert.Empty(t, h.backend.setsFor("web-frontend"))
	assert.Equal(t, 1, h.errorStreak(t, "web-frontend"))

	status, _ := h.orch.TargetStatus("web-frontend")
	assert.NotNil(t, status.LastProcessedAt)

	// A plausible forecast the next cycle clears the streak.
	h.model.forecast = 550
	h.orch.runCycle(context.Background())
	assert.Zero(t, h.errorStreak(t, "web-frontend"))
}

func TestOrchestrator_FailuresAccumulateAndEvict(t *testing.T) {
	h := newTestHarness(t, Config{ErrorThreshold: 2}, testPolicyFor("web-frontend"))
	h.backend.getErr = errors.New("backend unreachable")

	h.orch.runCycle(context.Background())
	assert.Equal(t, 1, h.errorStreak(t, "web-frontend"))

	h.orch.runCycle(context.Background())
	assert.Equal(t, 2, h.errorStreak(t, "web-frontend"))

	// The failure that pushes the streak past the threshold evicts.
	h.orch.runCycle(context.Background())
	_, ok := h.orch.TargetStatus("web-frontend")
	assert.False(t, ok)
}

func TestOrchestrator_ApplyFailureCountsErrorWithoutCooldown(t *testing.T) {
	h := newTestHarness(t, Config{}, testPolicyFor("web-frontend"))
	h.backend.setErr = errors.New("patch rejected")

	h.orch.runCycle(context.Background())

	status, ok := h.orch.TargetStatus("web-frontend")
	require.True(t, ok)
	assert.Equal(t, 1, status.ConsecutiveErrors)
	// The backend never changed, so the snapshot keeps the observed count.
	assert.Equal(t, 2, status.CurrentReplicas)
	assert.Nil(t, status.LastScaledAt)
	assert.Zero(t, status.CooldownRemaining)

	// No cooldown was recorded, so the next cycle retries immediately and
	// the successful apply clears the streak.
	h.backend.setErr = nil
	h.orch.runCycle(context.Background())
	assert.Equal(t, []int{6}, h.backend.setsFor("web-frontend"))
	assert.Zero(t, h.errorStreak(t, "web-frontend"))
}

func TestOrchestrator_PersistentApplyFailureEvicts(t *testing.T) {
	h := newTestHarness(t, Config{ErrorThreshold: 2}, testPolicyFor("web-frontend"))
	h.backend.setErr = errors.New("patch rejected")

	h.orch.runCycle(context.Background())
	assert.Equal(t, 1, h.errorStreak(t, "web-frontend"))
	h.orch.runCycle(context.Background())
	assert.Equal(t, 2, h.errorStreak(t, "web-frontend"))

	h.orch.runCycle(context.Background())
	_, ok := h.orch.TargetStatus("web-frontend")
	assert.False(t, ok)
}

func TestOrchestrator_EvictedTargetReturnsViaReload(t *testing.T) {
	h := newTestHarness(t, Config{ErrorThreshold: 1}, testPolicyFor("web-frontend"))
	h.backend.getErr = errors.New("backend unreachable")

	h.orch.runCycle(context.Background())
	h.orch.runCycle(context.Background())
	_, ok := h.orch.TargetStatus("web-frontend")
	require.False(t, ok)

	require.NoError(t, h.orch.reloadPolicies(context.Background()))

	status, ok := h.orch.TargetStatus("web-frontend")
	require.True(t, ok)
	assert.Zero(t, status.ConsecutiveErrors)
}

func TestOrchestrator_SuccessResetsErrorStreak(t *testing.T) {
	h := newTestHarness(t, Config{}, testPolicyFor("web-frontend"))

	h.backend.getErr = errors.New("backend unreachable")
	h.orch.runCycle(context.Background())
	require.Equal(t, 1, h.errorStreak(t, "web-frontend"))

	h.backend.getErr = nil
	h.orch.runCycle(context.Background())
	assert.Zero(t, h.errorStreak(t, "web-frontend"))
}

func TestOrchestrator_PanicInOneTargetDoesNotAffectOthers(t *testing.T) {
	h := newTestHarness(t, Config{},
		testPolicyFor("stable-target"), testPolicyFor("broken-target"))
	h.backend.panicOn = "broken-target"

	h.orch.runCycle(context.Background())

	// The healthy target still scaled; the panicking one took a failure.
	assert.Equal(t, []int{6}, h.backend.setsFor("stable-target"))
	assert.Equal(t, 1, h.errorStreak(t, "broken-target"))
}

func TestOrchestrator_ReloadDiff(t *testing.T) {
	h := newTestHarness(t, Config{},
		testPolicyFor("target-a"), testPolicyFor("target-b"))

	// target-b carries error state into the reload.
	h.orch.mu.Lock()
	h.orch.targets["target-b"].consecutiveErrors = 4
	h.orch.mu.Unlock()

	updatedB := testPolicyFor("target-b")
	updatedB.Scaling.MaxReplicas = 50
	h.source.set([]models.Policy{updatedB, testPolicyFor("target-c")}, nil)

	require.NoError(t, h.orch.reloadPolicies(context.Background()))

	statuses := h.orch.TargetStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "target-b", statuses[0].TargetID)
	assert.Equal(t, "target-c", statuses[1].TargetID)

	// Updated targets keep their error state but take the new policy.
	assert.Equal(t, 4, statuses[0].ConsecutiveErrors)
	assert.Equal(t, 50, statuses[0].MaxReplicas)

	_, ok := h.orch.TargetStatus("target-a")
	assert.False(t, ok)
}

func TestOrchestrator_ReloadFailureKeepsCurrentSet(t *testing.T) {
	h := newTestHarness(t, Config{}, testPolicyFor("web-frontend"))

	h.source.set(nil, errors.New("policy store down"))

	err := h.orch.reloadPolicies(context.Background())
	assert.Error(t, err)

	_, ok := h.orch.TargetStatus("web-frontend")
	assert.True(t, ok)
}

func TestOrchestrator_NoTargetsCycleIsNoop(t *testing.T) {
	h := newTestHarness(t, Config{})

	h.orch.runCycle(context.Background())

	assert.Empty(t, h.orch.TargetStatuses())
}
