package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-rig-service/internal/config"
	"lab-rig-service/internal/driver"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/protocol/porttest"
	"lab-rig-service/pkg/instrument"
)

const (
	psuPort     = "/dev/ttyPSU"
	pumpPort    = "/dev/ttyPump"
	mfcPort     = "/dev/ttyMFC"
	stirrerPort = "/dev/ttyStirrer"
)

type recordingSink struct {
	mu        sync.Mutex
	bundles   []model.ReadingBundle
	started   []model.Run
	ended     []model.RunEndedEventData
	changes   []model.StateChangedEventData
	autoStops int
}

func (s *recordingSink) Record(_ context.Context, bundle model.ReadingBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles = append(s.bundles, bundle)
	return nil
}

func (s *recordingSink) RunStarted(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, run)
	return nil
}

func (s *recordingSink) RunEnded(_ context.Context, _ model.Run, summary model.RunEndedEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, summary)
	return nil
}

func (s *recordingSink) StateChanged(_ context.Context, _ uuid.UUID, change model.StateChangedEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change)
	return nil
}

func (s *recordingSink) AutoStopped(_ context.Context, _ uuid.UUID, _ model.RunEndedEventData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoStops++
	return nil
}

func (s *recordingSink) Bundles() []model.ReadingBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ReadingBundle(nil), s.bundles...)
}

func (s *recordingSink) Ended() []model.RunEndedEventData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.RunEndedEventData(nil), s.ended...)
}

func (s *recordingSink) AutoStops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoStops
}

func testSettings() config.InstrumentsConfig {
	entry := func(port string, stopBits int) config.InstrumentConfig {
		return config.InstrumentConfig{
			Enabled:  true,
			Port:     port,
			BaudRate: 9600,
			DataBits: 8,
			StopBits: stopBits,
			Parity:   "none",
			Timeout:  50 * time.Millisecond,
			Channel:  1,
		}
	}
	return config.InstrumentsConfig{
		PSU:     entry(psuPort, 1),
		Pump:    entry(pumpPort, 2),
		MFC:     entry(mfcPort, 1),
		Stirrer: entry(stirrerPort, 1),
	}
}

func newTestBank(t *testing.T, settings config.InstrumentsConfig) (*porttest.Bank, RigOpener) {
	t.Helper()

	bank := porttest.NewBank()
	logger := zap.NewNop()
	registry := driver.NewRegistry(bank.Opener(), logger)
	driver.RegisterDefaultDrivers(registry, logger)

	bank.Port(psuPort).
		Reply("MEAS:VOLT?", "5.001").
		Reply("MEAS:CURR?", "0.100").
		Reply("*IDN?", "RIGOL TECHNOLOGIES,DP832,DP8C1234,00.01.14")
	bank.Port(pumpPort).Reply("1RS", "060 RR")
	bank.Port(mfcPort).Reply("A", "MFC1 14.2 23.1 120 118.4 5.0 AIR 1")
	bank.Port(stirrerPort).Reply("IN_PV_4", "798.2")

	return bank, NewRigOpener(registry, settings, logger)
}

func newTestController(t *testing.T, open RigOpener, poll time.Duration, sinks ...Sink) *ExperimentController {
	t.Helper()

	c := NewExperimentController(open, sinks, ControllerOptions{
		PollInterval: poll,
		TickTimeout:  time.Second,
		QueueSize:    4,
	}, zap.NewNop())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func testExperiment() model.ExperimentConfig {
	return model.ExperimentConfig{
		PSU:      model.PSUConfig{Mode: model.PSUModeVolt, Value: 5},
		Pump:     model.PumpConfig{Speed: 60, Direction: model.PumpClockwise},
		MFC:      model.MFCConfig{Flow: 5},
		Stirrer:  model.StirrerConfig{Speed: 800},
		Duration: model.DurationConfig{Unit: model.DurationMinutes},
	}
}

var testDetails = model.ExperimentDetails{Author: "lab", Name: "electrolysis", TubingSize: 1.6}

func waitForState(t *testing.T, c *ExperimentController, state model.ExperimentState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == state }, 2*time.Second, 5*time.Millisecond,
		"controller never reached %s, last state %s", state, c.State())
}

func TestConfigureAppliesSetpoints(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	sink := &recordingSink{}
	c := newTestController(t, open, time.Hour, sink)

	report, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "failures: %+v", report.Failures())
	assert.Equal(t, model.StateArmed, report.State)
	assert.Len(t, report.Results, 8)

	assert.Equal(t, []string{"INST:NSEL 1", "VOLT 5.0"}, bank.Port(psuPort).Commands())
	assert.Equal(t, []string{"1RR", "1SP060"}, bank.Port(pumpPort).Commands())
	assert.Equal(t, []string{"As5.0"}, bank.Port(mfcPort).Commands())
	assert.Equal(t, []string{"OUT_SP_4 800"}, bank.Port(stirrerPort).Commands())

	assert.Equal(t, model.StateArmed, c.State())
	assert.Len(t, sink.started, 1)

	status := c.Status()
	require.NotNil(t, status.Run)
	assert.Equal(t, "electrolysis", status.Run.Details.Name)
	assert.Zero(t, status.Ticks)
}

func TestConfigureMilliampsSendsAmps(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)

	cfg := testExperiment()
	cfg.PSU = model.PSUConfig{Mode: model.PSUModeMilliAmp, Value: 250}
	cfg.Pump.Direction = model.PumpCounterClockwise

	_, err := c.Configure(context.Background(), testDetails, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, bank.Port(psuPort).Count("CURR 0.25"))
	assert.Equal(t, []string{"1RL", "1SP060"}, bank.Port(pumpPort).Commands())
}

func TestConfigureWithUnavailablePowerSupply(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	bank.Fail(psuPort, errors.New("no such device"))
	c := newTestController(t, open, time.Hour)

	report, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)

	connect, ok := report.Find(model.InstrumentPSU, model.OperationConnect)
	require.True(t, ok)
	assert.Equal(t, model.OutcomeUnavailable, connect.Outcome)
	assert.Equal(t, model.ErrorKindConnection, connect.ErrorKind)

	configure, ok := report.Find(model.InstrumentPSU, model.OperationConfigure)
	require.True(t, ok)
	assert.Equal(t, model.OutcomeUnavailable, configure.Outcome)

	for _, kind := range []model.InstrumentKind{model.InstrumentPump, model.InstrumentMFC, model.InstrumentStirrer} {
		res, ok := report.Find(kind, model.OperationConfigure)
		require.True(t, ok, kind)
		assert.True(t, res.OK(), "%s: %s", kind, res.Error)
	}

	assert.Equal(t, []model.InstrumentKind{model.InstrumentPSU}, report.Unavailable())
	assert.Equal(t, []model.InstrumentKind{model.InstrumentPSU}, c.Status().Unavailable)
	assert.Empty(t, bank.Port(psuPort).Frames())
	assert.Equal(t, []string{"1RR", "1SP060"}, bank.Port(pumpPort).Commands())
	assert.Equal(t, 1, bank.Port(mfcPort).Count("As5.0"))
	assert.Equal(t, 1, bank.Port(stirrerPort).Count("OUT_SP_4 800"))
}

func TestUnavailableReadingsAreMissing(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	bank.Fail(psuPort, errors.New("no such device"))
	sink := &recordingSink{}
	c := newTestController(t, open, time.Hour, sink)

	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(sink.Bundles()) == 1 }, time.Second, 5*time.Millisecond)

	bundle := sink.Bundles()[0]
	assert.Nil(t, bundle.Voltage)
	assert.Nil(t, bundle.Current)
	require.NotNil(t, bundle.FlowRate)
	assert.InDelta(t, 118.4, *bundle.FlowRate, 1e-9)
	assert.Equal(t, []model.InstrumentKind{model.InstrumentPSU}, bundle.Health.Unavailable())
}

func TestStartStopResetSequence(t *testing.T) {
	const poll = 100 * time.Millisecond

	bank, open := newTestBank(t, testSettings())
	sink := &recordingSink{}
	c := newTestController(t, open, poll, sink)

	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)

	require.NoError(t, c.Start())
	waitForState(t, c, model.StateRunning)
	require.Eventually(t, func() bool { return len(sink.Bundles()) >= 1 }, time.Second, 5*time.Millisecond)

	for _, port := range []struct{ name, start string }{
		{psuPort, "OUTP ON"}, {pumpPort, "1GO"}, {mfcPort, "AC"}, {stirrerPort, "START_4"},
	} {
		assert.GreaterOrEqual(t, bank.Port(port.name).Count(port.start), 1, port.name)
	}

	bundle := sink.Bundles()[0]
	require.NotNil(t, bundle.Voltage)
	assert.InDelta(t, 5.001, *bundle.Voltage, 1e-9)
	require.NotNil(t, bundle.Current)
	assert.InDelta(t, 0.1, *bundle.Current, 1e-9)
	require.NotNil(t, bundle.PumpInfo)
	assert.Equal(t, "060 RR", *bundle.PumpInfo)
	require.NotNil(t, bundle.FlowRate)
	assert.InDelta(t, 118.4, *bundle.FlowRate, 1e-9)
	require.NotNil(t, bundle.StirrerSpeed)
	assert.InDelta(t, 798.2, *bundle.StirrerSpeed, 1e-9)
	assert.True(t, bundle.Health.Healthy())

	require.NoError(t, c.Stop())
	waitForState(t, c, model.StateStopped)
	require.Eventually(t, func() bool { return bank.Port(psuPort).Count("OUTP OFF") >= 1 }, time.Second, 5*time.Millisecond)

	for _, port := range []struct{ name, stop string }{
		{psuPort, "OUTP OFF"}, {pumpPort, "1ST"}, {mfcPort, "AHC"}, {stirrerPort, "STOP_4"},
	} {
		assert.GreaterOrEqual(t, bank.Port(port.name).Count(port.stop), 1, port.name)
	}

	done := c.Done()
	require.NoError(t, c.Reset())

	select {
	case <-done:
	case <-time.After(poll):
		t.Fatal("poll loop still running one interval after reset")
	}

	assert.Equal(t, model.StateIdle, c.State())
	assert.Equal(t, model.RunFlags{}, c.Flags())
	require.Len(t, sink.Ended(), 1)
	assert.Equal(t, model.StateStopped, sink.Ended()[0].FinalState)

	for _, name := range []string{psuPort, pumpPort, mfcPort, stirrerPort} {
		assert.True(t, bank.Port(name).IsClosed(), name)
	}

	assert.ErrorIs(t, c.Start(), ErrNotConfigured)
}

func TestStopTwiceMatchesStopOnce(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)

	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)

	require.NoError(t, c.Start())
	waitForState(t, c, model.StateRunning)

	require.NoError(t, c.Stop())
	waitForState(t, c, model.StateStopped)
	once := c.Flags()

	require.NoError(t, c.Stop())
	require.Eventually(t, func() bool { return bank.Port(pumpPort).Count("1ST") == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, model.StateStopped, c.State())
	assert.Equal(t, once, c.Flags())
	assert.Equal(t, model.RunFlags{ShouldStop: true}, c.Flags())
	assert.Equal(t, 2, bank.Port(psuPort).Count("OUTP OFF"))

	// a stopped run can be resumed
	require.NoError(t, c.Start())
	waitForState(t, c, model.StateRunning)
}

func TestCutoffAutoStops(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	sink := &recordingSink{}
	c := newTestController(t, open, 10*time.Millisecond, sink)

	cutoff := 0.001 // minutes, 60ms
	cfg := testExperiment()
	cfg.Duration = model.DurationConfig{Value: &cutoff, Unit: model.DurationMinutes}

	_, err := c.Configure(context.Background(), testDetails, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	waitForState(t, c, model.StateRunning)
	waitForState(t, c, model.StateStopped)

	assert.Equal(t, 1, sink.AutoStops())
	assert.GreaterOrEqual(t, bank.Port(pumpPort).Count("1ST"), 1)
	assert.Equal(t, model.RunFlags{ShouldStop: true}, c.Flags())

	status := c.Status()
	require.NotNil(t, status.RemainingSeconds)
	assert.Zero(t, *status.RemainingSeconds)
	assert.GreaterOrEqual(t, status.RunningTime, 60*time.Millisecond)
	assert.InDelta(t, 0.001, status.CutoffMinutes, 1e-12)
}

func TestIntentsNeedConfiguredRun(t *testing.T) {
	_, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)

	assert.ErrorIs(t, c.Start(), ErrNotConfigured)
	assert.ErrorIs(t, c.Stop(), ErrNotConfigured)
	assert.ErrorIs(t, c.Reset(), ErrNotConfigured)
	assert.Equal(t, model.StateIdle, c.Status().State)
}

func TestConfigureRejectsActiveRun(t *testing.T) {
	_, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)

	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)

	_, err = c.Configure(context.Background(), testDetails, testExperiment())
	assert.ErrorIs(t, err, ErrNotIdle)
}

func TestConfigureValidatesParameters(t *testing.T) {
	_, open := newTestBank(t, testSettings())
	c := newTestController(t, open, time.Hour)

	negative := -1.0
	tests := []struct {
		name   string
		mutate func(*model.ExperimentConfig)
	}{
		{"psu mode", func(cfg *model.ExperimentConfig) { cfg.PSU.Mode = "W" }},
		{"pump direction", func(cfg *model.ExperimentConfig) { cfg.Pump.Direction = "sideways" }},
		{"pump direction label", func(cfg *model.ExperimentConfig) { cfg.Pump.Direction = "Anticlockwise" }},
		{"negative duration", func(cfg *model.ExperimentConfig) { cfg.Duration.Value = &negative }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testExperiment()
			tt.mutate(&cfg)

			_, err := c.Configure(context.Background(), testDetails, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, model.StateIdle, c.State())
		})
	}
}

func TestShutdownStopsRunningInstruments(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	sink := &recordingSink{}
	c := newTestController(t, open, time.Hour, sink)

	_, err := c.Configure(context.Background(), testDetails, testExperiment())
	require.NoError(t, err)
	require.NoError(t, c.Start())
	waitForState(t, c, model.StateRunning)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	assert.Equal(t, model.StateIdle, c.State())
	assert.Equal(t, 1, bank.Port(psuPort).Count("OUTP OFF"))
	require.Len(t, sink.Ended(), 1)
	assert.Equal(t, model.StateRunning, sink.Ended()[0].FinalState)
}

func TestOpenRigRefusesSharedPort(t *testing.T) {
	settings := testSettings()
	settings.Stirrer.Port = mfcPort
	_, open := newTestBank(t, settings)

	rig, report, err := open(context.Background())
	require.NoError(t, err)
	defer rig.Close()

	assert.True(t, rig.Available(model.InstrumentMFC))
	assert.False(t, rig.Available(model.InstrumentStirrer))

	res, ok := report.Find(model.InstrumentStirrer, model.OperationConnect)
	require.True(t, ok)
	assert.Equal(t, model.OutcomeUnavailable, res.Outcome)

	var connErr *instrument.ConnectionError
	assert.True(t, errors.As(rig.UnavailableReason(model.InstrumentStirrer), &connErr))
}

func TestOpenRigSkipsDisabledInstruments(t *testing.T) {
	settings := testSettings()
	settings.MFC.Enabled = false
	_, open := newTestBank(t, settings)

	rig, _, err := open(context.Background())
	require.NoError(t, err)
	defer rig.Close()

	assert.Equal(t, []model.InstrumentKind{model.InstrumentMFC}, rig.Unavailable())
	assert.ErrorIs(t, rig.UnavailableReason(model.InstrumentMFC), instrument.ErrUnavailable)
}

func TestOpenRigCancelled(t *testing.T) {
	_, open := newTestBank(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rig, _, err := open(ctx)
	assert.Nil(t, rig)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRigClosesOnError(t *testing.T) {
	bank, open := newTestBank(t, testSettings())
	boom := errors.New("boom")

	err := WithRig(context.Background(), open, func(rig *Rig) error {
		assert.True(t, rig.Available(model.InstrumentPump))
		return boom
	}, model.InstrumentPump)

	assert.ErrorIs(t, err, boom)
	assert.True(t, bank.Port(pumpPort).IsClosed())
}
