package sink

import (
	"context"

	"github.com/google/uuid"

	"lab-rig-service/internal/model"
)

// EventPublisher accepts live events. Publish must not block.
type EventPublisher interface {
	Publish(event model.ExperimentEvent)
}

// EventSink turns controller callbacks into experiment events
type EventSink struct {
	publisher EventPublisher
}

// NewEventSink creates a sink publishing to p
func NewEventSink(p EventPublisher) *EventSink {
	return &EventSink{publisher: p}
}

func (s *EventSink) Record(_ context.Context, bundle model.ReadingBundle) error {
	s.publisher.Publish(model.NewExperimentEvent(model.EventReading, bundle.RunID, bundle))
	return nil
}

func (s *EventSink) RunStarted(_ context.Context, run model.Run) error {
	s.publisher.Publish(model.NewExperimentEvent(model.EventRunStarted, run.ID, run))
	return nil
}

func (s *EventSink) RunEnded(_ context.Context, run model.Run, summary model.RunEndedEventData) error {
	s.publisher.Publish(model.NewExperimentEvent(model.EventRunEnded, run.ID, summary))
	return nil
}

func (s *EventSink) StateChanged(_ context.Context, runID uuid.UUID, change model.StateChangedEventData) error {
	s.publisher.Publish(model.NewExperimentEvent(model.EventStateChanged, runID, change))
	return nil
}

func (s *EventSink) HealthReported(_ context.Context, runID uuid.UUID, report model.HealthReport) error {
	event := model.NewExperimentEvent(model.EventHealthReport, runID, report)
	if !report.Healthy() {
		event.Severity = "WARNING"
	}
	s.publisher.Publish(event)
	return nil
}

func (s *EventSink) AutoStopped(_ context.Context, runID uuid.UUID, summary model.RunEndedEventData) error {
	event := model.NewExperimentEvent(model.EventAutoStop, runID, summary)
	event.Severity = "WARNING"
	s.publisher.Publish(event)
	return nil
}
