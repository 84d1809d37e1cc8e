package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
)

func TestIdentifyWhileIdleOpensScopedRig(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)
	svc := NewInstrumentService(c, testSettings(), zap.NewNop())

	id, err := svc.Identify(context.Background(), model.InstrumentPSU)
	require.NoError(t, err)
	assert.Equal(t, "DP832", id.Model)

	assert.True(t, bank.Port(psuPort).IsClosed())
	assert.Empty(t, bank.Port(pumpPort).Frames())
}

func TestConfigureWaitsForScopedRig(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)
	svc := NewInstrumentService(c, testSettings(), zap.NewNop())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	bank.Port(psuPort).OnWrite(func(frame string) {
		if strings.HasPrefix(frame, "*IDN?") {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})

	identified := make(chan error, 1)
	go func() {
		_, err := svc.Identify(context.Background(), model.InstrumentPSU)
		identified <- err
	}()
	<-entered

	configured := make(chan error, 1)
	go func() {
		report, err := c.Configure(context.Background(), testDetails, testExperiment())
		if err == nil && len(report.Failures()) > 0 {
			err = assert.AnError
		}
		configured <- err
	}()

	select {
	case err := <-configured:
		t.Fatalf("configure finished while identify held the power supply: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, bank.Port(psuPort).PeakHandles())

	close(release)
	require.NoError(t, <-identified)
	require.NoError(t, <-configured)

	assert.Equal(t, 1, bank.Port(psuPort).PeakHandles())
	assert.Equal(t, model.StateArmed, c.State())
}

func TestIdentifyUnsupported(t *testing.T) {
	_, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)
	svc := NewInstrumentService(c, testSettings(), zap.NewNop())

	_, err := svc.Identify(context.Background(), model.InstrumentStirrer)
	assert.ErrorIs(t, err, ErrOperationNotSupported)
}

func TestTareUsesActiveRun(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)
	svc := NewInstrumentService(c, testSettings(), zap.NewNop())

	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)

	require.NoError(t, svc.TareMFC(context.Background()))
	assert.Equal(t, 1, bank.Port(mfcPort).Count("AV"))
	assert.False(t, bank.Port(mfcPort).IsClosed())
}

func TestListInstruments(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)
	svc := NewInstrumentService(c, testSettings(), zap.NewNop())

	idle := svc.ListInstruments()
	require.Len(t, idle, 4)
	for _, info := range idle {
		assert.True(t, info.Enabled)
		assert.False(t, info.Connected)
		assert.Nil(t, info.Health)
	}

	bank.Fail(stirrerPort, assert.AnError)
	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)

	active := svc.ListInstruments()
	require.Len(t, active, 4)
	assert.Equal(t, model.InstrumentPSU, active[0].Kind)
	assert.True(t, active[0].Connected)
	require.NotNil(t, active[0].Health)
	assert.EqualValues(t, 1, active[0].Health.TotalOperations)
	assert.False(t, active[3].Connected)
	assert.NotEmpty(t, active[3].Error)
}
