package events

import (
	"context"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/database"
	"github.com/predictops/autoscaler/pkg/database/queries"
	"github.com/predictops/autoscaler/pkg/models"
)

// EventLogger drains the event bus, mirrors every event to the structured
// log, and persists the durable ones (applied/failed scalings) to postgres.
type EventLogger struct {
	db        *database.DB
	repo      *queries.ScalingEventRepository
	eventChan <-chan *models.Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewEventLogger(db *database.DB, eventChan <-chan *models.Event) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	l := &EventLogger{
		db:        db,
		eventChan: eventChan,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if db != nil {
		l.repo = queries.NewScalingEventRepository(db.DB)
	}
	return l
}

func (l *EventLogger) Start() {
	go l.run()
}

// Stop cancels the logger and waits for the drain loop to exit.
func (l *EventLogger) Stop() {
	l.cancel()
	<-l.done
}

func (l *EventLogger) run() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"target_id":  event.TargetID,
		"severity":   event.Severity,
	})

	switch event.Severity {
	case models.SeverityCritical:
		entry.Error(event.Message)
	case models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}

	if l.db == nil {
		return
	}

	switch event.Type {
	case models.EventTypeScalingApplied:
		if scalingEvent, ok := event.Data.(*models.ScalingEvent); ok {
			l.persistScalingEvent(scalingEvent)
		}
	case models.EventTypeScalingFailed:
		if data, ok := event.Data.(map[string]interface{}); ok {
			if scalingEvent, ok := data["event"].(*models.ScalingEvent); ok {
				l.persistScalingEvent(scalingEvent)
			}
		}
	}
}

func (l *EventLogger) persistScalingEvent(scalingEvent *models.ScalingEvent) {
	if err := l.repo.Insert(l.ctx, scalingEvent); err != nil {
		logger.Errorf("Failed to persist scaling event: %v", err)
	}
}
