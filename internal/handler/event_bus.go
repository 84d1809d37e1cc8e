// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"lab-rig-service/internal/model"
)

const (
	eventBufferSize      = 1000
	subscriberBufferSize = 100
)

// EventBus fans experiment events out to live subscribers
type EventBus struct {
	subscribers map[int]*subscription
	nextID      int
	events      chan model.ExperimentEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

type subscription struct {
	ch    chan model.ExperimentEvent
	types map[model.EventType]bool
}

func (s *subscription) wants(t model.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[int]*subscription),
		events:      make(chan model.ExperimentEvent, eventBufferSize),
		logger:      logger.With(zap.String("component", "event_bus")),
	}
}

// Run distributes published events until ctx is done
func (eb *EventBus) Run(ctx context.Context) {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-ctx.Done():
			return
		}
	}
}

// Publish queues an event without blocking. Events are dropped when the bus is full.
func (eb *EventBus) Publish(event model.ExperimentEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe returns a channel receiving the given event types, every type when none
// are given. The returned function cancels the subscription and closes the channel.
func (eb *EventBus) Subscribe(types ...model.EventType) (<-chan model.ExperimentEvent, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	sub := &subscription{
		ch:    make(chan model.ExperimentEvent, subscriberBufferSize),
		types: make(map[model.EventType]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	id := eb.nextID
	eb.nextID++
	eb.subscribers[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			eb.mutex.Lock()
			delete(eb.subscribers, id)
			eb.mutex.Unlock()
			close(sub.ch)
		})
	}
}

// SubscriberCount returns the number of live subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) distributeEvent(event model.ExperimentEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if !sub.wants(event.EventType) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber
		}
	}
}
