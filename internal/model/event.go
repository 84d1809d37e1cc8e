// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventStateChanged EventType = "STATE_CHANGED"
	EventReading      EventType = "READING"
	EventHealthReport EventType = "HEALTH_REPORT"
	EventRunStarted   EventType = "RUN_STARTED"
	EventRunEnded     EventType = "RUN_ENDED"
	EventAutoStop     EventType = "AUTO_STOP"
)

// ExperimentEvent is pushed to live subscribers
type ExperimentEvent struct {
	ID        uuid.UUID   `json:"id"`
	EventType EventType   `json:"event_type"`
	RunID     uuid.UUID   `json:"run_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity"` // INFO, WARNING, ERROR
}

// NewExperimentEvent stamps a new event
func NewExperimentEvent(eventType EventType, runID uuid.UUID, data interface{}) ExperimentEvent {
	return ExperimentEvent{
		ID:        uuid.New(),
		EventType: eventType,
		RunID:     runID,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  "INFO",
	}
}

// StateChangedEventData describes a controller transition
type StateChangedEventData struct {
	From ExperimentState `json:"from"`
	To   ExperimentState `json:"to"`
}

// RunEndedEventData summarizes a finished run
type RunEndedEventData struct {
	Ticks       int             `json:"ticks"`
	RunningTime time.Duration   `json:"running_time"`
	FinalState  ExperimentState `json:"final_state"`
}
