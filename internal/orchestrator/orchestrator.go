package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/events"
	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/internal/metricsource"
	"github.com/predictops/autoscaler/internal/predictor"
	"github.com/predictops/autoscaler/internal/policy"
	"github.com/predictops/autoscaler/internal/recorder"
	"github.com/predictops/autoscaler/internal/scaler"
	"github.com/predictops/autoscaler/internal/scaling"
	"github.com/predictops/autoscaler/pkg/database"
	"github.com/predictops/autoscaler/pkg/models"
)

type Config struct {
	// Interval is the control loop cadence. A cycle that runs longer than
	// the interval is followed immediately by the next one.
	Interval time.Duration

	// Namespace scopes policy discovery.
	Namespace string

	// ErrorThreshold is the consecutive-failure count a target may reach
	// before the next failure evicts it.
	ErrorThreshold int

	// ReloadInterval is how often the policy set is refreshed.
	ReloadInterval time.Duration

	// TargetTimeout bounds the processing of a single target within a cycle.
	TargetTimeout time.Duration

	// MaxConcurrent bounds how many targets are processed in parallel.
	// 1 means strictly sequential processing.
	MaxConcurrent int
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = 60 * time.Second
	}
	if c.ErrorThreshold == 0 {
		c.ErrorThreshold = 10
	}
	if c.ReloadInterval == 0 {
		c.ReloadInterval = 10 * time.Minute
	}
	if c.TargetTimeout == 0 {
		c.TargetTimeout = 45 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
}

// targetState is the orchestrator's mutable per-target bookkeeping. The
// policy inside it is replaced wholesale on reload; error and timing state
// survive reloads for targets that remain in the set.
type targetState struct {
	policy            models.Policy
	consecutiveErrors int
	lastProcessedAt   time.Time
	lastReplicas      int
}

// Orchestrator owns the control loop: it discovers policies, runs the
// fetch-predict-validate-decide-apply pipeline for each target on a fixed
// cadence, and evicts targets that fail persistently.
type Orchestrator struct {
	config        Config
	policySource  policy.Source
	metricsSource metricsource.Source
	predictor     predictor.Predictor
	engine        *scaling.Engine
	scaler        scaler.Scaler
	recorder      *recorder.Recorder

	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	publisher   *events.Publisher

	targets map[string]*targetState
	mu      sync.RWMutex

	lastReload time.Time
	now        func() time.Time
}

type Dependencies struct {
	PolicySource  policy.Source
	MetricsSource metricsource.Source
	Predictor     predictor.Predictor
	Scaler        scaler.Scaler
	Recorder      *recorder.Recorder
	DB            *database.DB
}

func New(cfg Config, deps Dependencies) *Orchestrator {
	cfg.applyDefaults()

	eventBus := events.NewEventBus(100)

	// Subscribe event logger to all events
	allEvents := eventBus.SubscribeAll()
	eventLogger := events.NewEventLogger(deps.DB, allEvents)

	return &Orchestrator{
		config:        cfg,
		policySource:  deps.PolicySource,
		metricsSource: deps.MetricsSource,
		predictor:     deps.Predictor,
		engine:        scaling.NewEngine(),
		scaler:        deps.Scaler,
		recorder:      deps.Recorder,
		eventBus:      eventBus,
		eventLogger:   eventLogger,
		publisher:     events.NewPublisher(eventBus),
		targets:       make(map[string]*targetState),
		now:           time.Now,
	}
}

func (o *Orchestrator) Start() error {
	logger.Info("Orchestrator starting")
	o.eventLogger.Start()
	return nil
}

func (o *Orchestrator) Stop() {
	logger.Info("Orchestrator stopping")

	o.eventLogger.Stop()
	o.eventBus.Close()

	logger.Info("Orchestrator stopped")
}

// TargetStatuses returns a snapshot of every tracked target, sorted by ID.
func (o *Orchestrator) TargetStatuses() []models.TargetStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	statuses := make([]models.TargetStatus, 0, len(o.targets))
	for targetID, state := range o.targets {
		statuses = append(statuses, o.snapshot(targetID, state))
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].TargetID < statuses[j].TargetID
	})
	return statuses
}

// TargetStatus returns the snapshot for one target.
func (o *Orchestrator) TargetStatus(targetID string) (models.TargetStatus, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, ok := o.targets[targetID]
	if !ok {
		return models.TargetStatus{}, false
	}
	return o.snapshot(targetID, state), true
}

func (o *Orchestrator) snapshot(targetID string, state *targetState) models.TargetStatus {
	status := models.TargetStatus{
		TargetID:          targetID,
		MinReplicas:       state.policy.Scaling.MinReplicas,
		MaxReplicas:       state.policy.Scaling.MaxReplicas,
		CurrentReplicas:   state.lastReplicas,
		ConsecutiveErrors: state.consecutiveErrors,
		CooldownRemaining: o.engine.CooldownRemaining(targetID, state.policy.Scaling.Cooldown),
	}
	if !state.lastProcessedAt.IsZero() {
		t := state.lastProcessedAt
		status.LastProcessedAt = &t
	}
	if scaledAt, ok := o.engine.LastScaledAt(targetID); ok {
		t := scaledAt
		status.LastScaledAt = &t
	}
	return status
}

func (o *Orchestrator) SubscribeEvents(eventType models.EventType) <-chan *models.Event {
	return o.eventBus.Subscribe(eventType)
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}
