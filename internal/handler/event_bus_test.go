package handler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
)

func TestEventBusFiltersByType(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	all, unsubAll := bus.Subscribe()
	defer unsubAll()
	states, unsubStates := bus.Subscribe(model.EventStateChanged)
	defer unsubStates()

	runID := uuid.New()
	bus.Publish(model.NewExperimentEvent(model.EventReading, runID, nil))
	bus.Publish(model.NewExperimentEvent(model.EventStateChanged, runID, nil))

	for _, want := range []model.EventType{model.EventReading, model.EventStateChanged} {
		select {
		case event := <-all:
			assert.Equal(t, want, event.EventType)
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}

	select {
	case event := <-states:
		assert.Equal(t, model.EventStateChanged, event.EventType)
		assert.Equal(t, runID, event.RunID)
	case <-time.After(time.Second):
		t.Fatal("no state event")
	}

	select {
	case event := <-states:
		t.Fatalf("unexpected event %s", event.EventType)
	default:
	}
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(zap.NewNop())

	ch, unsubscribe := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestEventBusPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus(zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBufferSize+10; i++ {
			bus.Publish(model.NewExperimentEvent(model.EventReading, uuid.Nil, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full bus")
	}
}
