package instrument

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lab-rig-service/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"nil", nil, model.ErrorKindNone},
		{"connection", &ConnectionError{Instrument: model.InstrumentPSU, Port: "/dev/ttyUSB0", Err: errors.New("busy")}, model.ErrorKindConnection},
		{"unavailable", fmt.Errorf("psu: %w", ErrUnavailable), model.ErrorKindConnection},
		{"wrapped protocol", fmt.Errorf("tick: %w", &ProtocolError{Instrument: model.InstrumentMFC, Command: "A"}), model.ErrorKindProtocol},
		{"validation", &ValidationError{Instrument: model.InstrumentStirrer, Field: "speed", Value: 2000}, model.ErrorKindValidation},
		{"timeout", fmt.Errorf("send: %w", context.DeadlineExceeded), model.ErrorKindTimeout},
		{"other", errors.New("boom"), model.ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestHealthTracker(t *testing.T) {
	h := NewHealthTracker()
	assert.Equal(t, 100, h.Snapshot().HealthScore)

	h.Record(nil, 10*time.Millisecond)
	h.Record(errors.New("no reply"), 10*time.Millisecond)

	m := h.Snapshot()
	assert.EqualValues(t, 2, m.TotalOperations)
	assert.EqualValues(t, 1, m.ErrorCount)
	assert.InDelta(t, 0.5, m.SuccessRate, 1e-9)
	assert.Equal(t, 50, m.HealthScore)
	assert.Equal(t, "no reply", m.LastError)
	assert.NotNil(t, m.LastSuccessTime)
	assert.NotNil(t, m.LastErrorTime)

	h.Record(nil, 3*time.Second)
	assert.Equal(t, 56, h.Snapshot().HealthScore)
}
