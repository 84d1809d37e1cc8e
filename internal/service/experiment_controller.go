// internal/service/experiment_controller.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/utils"
	"lab-rig-service/pkg/instrument"
)

var (
	// ErrNotIdle is returned when configuring while a run is still active
	ErrNotIdle = errors.New("experiment run already active")
	// ErrNotConfigured is returned for intents sent while idle
	ErrNotConfigured = errors.New("no experiment configured")
	// ErrIntentQueueFull is returned when the poll loop is not keeping up with intents
	ErrIntentQueueFull = errors.New("intent queue full")
	// ErrInvalidConfig wraps experiment parameter validation failures
	ErrInvalidConfig = errors.New("invalid experiment configuration")
)

const (
	defaultPollInterval = 10 * time.Second
	defaultTickTimeout  = 30 * time.Second
	defaultQueueSize    = 8
)

type intent int

const (
	intentStart intent = iota + 1
	intentStop
	intentReset
)

func (i intent) String() string {
	switch i {
	case intentStart:
		return "start"
	case intentStop:
		return "stop"
	case intentReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ControllerOptions tunes the poll loop
type ControllerOptions struct {
	PollInterval time.Duration
	TickTimeout  time.Duration
	QueueSize    int
}

// ExperimentStatus is a point-in-time view of the controller
type ExperimentStatus struct {
	State            model.ExperimentState  `json:"state"`
	Flags            model.RunFlags         `json:"flags"`
	Run              *model.Run             `json:"run,omitempty"`
	Ticks            int                    `json:"ticks"`
	RunningTime      time.Duration          `json:"-"`
	ElapsedSeconds   float64                `json:"elapsed_seconds"`
	CutoffMinutes    float64                `json:"cutoff_minutes,omitempty"`
	RemainingSeconds *float64               `json:"remaining_seconds,omitempty"`
	Unavailable      []model.InstrumentKind `json:"unavailable,omitempty"`
	LastReading      *model.ReadingBundle   `json:"last_reading,omitempty"`
	LastHealth       *model.HealthReport    `json:"last_health,omitempty"`
}

// activeRun is everything owned by one configured run
type activeRun struct {
	run     model.Run
	rig     *Rig
	cutoff  time.Duration
	intents chan intent
	done    chan struct{}
	cancel  context.CancelFunc
	log     *utils.RunLogger
}

// loopState is only touched by the poll loop goroutine
type loopState struct {
	flags       model.RunFlags
	ticks       int
	accumulated time.Duration
	resumedAt   time.Time
	startedAt   *time.Time
}

func (ls *loopState) running(now time.Time) time.Duration {
	if ls.resumedAt.IsZero() {
		return ls.accumulated
	}
	return ls.accumulated + now.Sub(ls.resumedAt)
}

func (ls *loopState) resume(now time.Time) {
	if ls.resumedAt.IsZero() {
		ls.resumedAt = now
	}
	if ls.startedAt == nil {
		ls.startedAt = &now
	}
}

func (ls *loopState) pause(now time.Time) {
	ls.accumulated = ls.running(now)
	ls.resumedAt = time.Time{}
}

// ExperimentController drives the rig through configure, start, stop and reset.
// Intents are queued on a channel consumed only by the poll loop; everything
// readers see is published through atomics.
type ExperimentController struct {
	openRig RigOpener
	sinks   *fanout
	options ControllerOptions
	logger  *zap.Logger

	mu     sync.Mutex
	active *activeRun

	state       atomic.Value // model.ExperimentState
	flags       atomic.Value // model.RunFlags
	ticks       atomic.Int64
	accumulated atomic.Int64 // nanoseconds of running time before resumedAt
	resumedAt   atomic.Int64 // unix nanoseconds, zero while not running
	run         atomic.Pointer[model.Run]
	unavailable atomic.Pointer[[]model.InstrumentKind]
	lastBundle  atomic.Pointer[model.ReadingBundle]
	lastReport  atomic.Pointer[model.HealthReport]
}

// NewExperimentController creates an idle controller
func NewExperimentController(openRig RigOpener, sinks []Sink, options ControllerOptions, logger *zap.Logger) *ExperimentController {
	if options.PollInterval <= 0 {
		options.PollInterval = defaultPollInterval
	}
	if options.TickTimeout <= 0 {
		options.TickTimeout = defaultTickTimeout
	}
	if options.QueueSize <= 0 {
		options.QueueSize = defaultQueueSize
	}

	c := &ExperimentController{
		openRig: openRig,
		sinks:   &fanout{sinks: sinks, logger: logger},
		options: options,
		logger:  logger.With(zap.String("component", "experiment_controller")),
	}
	c.state.Store(model.StateIdle)
	c.flags.Store(model.RunFlags{})
	return c
}

// ValidateExperimentConfig rejects parameter sets the drivers cannot represent
func ValidateExperimentConfig(cfg model.ExperimentConfig) error {
	switch cfg.PSU.Mode {
	case model.PSUModeVolt, model.PSUModeAmp, model.PSUModeMilliAmp:
	default:
		return fmt.Errorf("%w: psu mode %q must be V, A or mA", ErrInvalidConfig, cfg.PSU.Mode)
	}
	switch cfg.Pump.Direction {
	case model.PumpClockwise, model.PumpCounterClockwise:
	default:
		return fmt.Errorf("%w: pump direction %q", ErrInvalidConfig, cfg.Pump.Direction)
	}
	if cfg.Duration.Value != nil && *cfg.Duration.Value < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Configure connects the rig, applies cfg to every available instrument and arms
// the run. Device failures do not fail the call; they are in the returned report.
func (c *ExperimentController) Configure(ctx context.Context, details model.ExperimentDetails, cfg model.ExperimentConfig) (*model.HealthReport, error) {
	if err := ValidateExperimentConfig(cfg); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil || c.State() != model.StateIdle {
		return nil, ErrNotIdle
	}

	rig, report, err := c.openRig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect instruments: %w", err)
	}

	run := model.Run{
		ID:        uuid.New(),
		Details:   details,
		Config:    cfg,
		State:     model.StateArmed,
		CreatedAt: time.Now(),
	}
	log := utils.NewRunLogger(c.logger, run.ID.String(), details.Name)

	c.applyConfig(ctx, rig, cfg, report, log)
	report.State = model.StateArmed

	runCtx, cancel := context.WithCancel(context.Background())
	a := &activeRun{
		run:     run,
		rig:     rig,
		cutoff:  cfg.Duration.Cutoff(),
		intents: make(chan intent, c.options.QueueSize),
		done:    make(chan struct{}),
		cancel:  cancel,
		log:     log,
	}
	c.active = a

	unavailable := rig.Unavailable()
	c.run.Store(&run)
	c.unavailable.Store(&unavailable)
	c.flags.Store(model.RunFlags{})
	c.ticks.Store(0)
	c.accumulated.Store(0)
	c.resumedAt.Store(0)
	c.lastBundle.Store(nil)
	c.lastReport.Store(report)

	log.Configured(
		zap.String("author", details.Author),
		zap.String("psu_mode", string(cfg.PSU.Mode)),
		zap.Float64("psu_value", cfg.PSU.Value),
		zap.Float64("pump_speed", cfg.Pump.Speed),
		zap.String("pump_direction", string(cfg.Pump.Direction)),
		zap.Float64("flow", cfg.MFC.Flow),
		zap.Float64("stirrer_speed", cfg.Stirrer.Speed),
		zap.Float64("cutoff_minutes", cfg.Duration.Minutes()),
		zap.Int("failures", len(report.Failures())),
	)

	c.sinks.runStarted(ctx, run)
	c.transition(ctx, a, model.StateArmed)
	c.sinks.healthReported(ctx, run.ID, *report)

	go c.loop(runCtx, a)
	return report, nil
}

func (c *ExperimentController) applyConfig(ctx context.Context, rig *Rig, cfg model.ExperimentConfig, report *model.HealthReport, log *utils.RunLogger) {
	c.runDevice(ctx, rig, report, log, model.InstrumentPSU, model.OperationConfigure, func(ctx context.Context, _ instrument.Instrument) error {
		if volts, ok := cfg.PSU.Voltage(); ok {
			return rig.PSU.SetVoltage(ctx, volts)
		}
		amps, _ := cfg.PSU.Amps()
		return rig.PSU.SetCurrent(ctx, amps)
	})

	c.runDevice(ctx, rig, report, log, model.InstrumentPump, model.OperationConfigure, func(ctx context.Context, _ instrument.Instrument) error {
		if err := rig.Pump.SetDirection(ctx, cfg.Pump.Clockwise()); err != nil {
			return err
		}
		return rig.Pump.SetSpeed(ctx, int(cfg.Pump.Speed))
	})

	c.runDevice(ctx, rig, report, log, model.InstrumentMFC, model.OperationConfigure, func(ctx context.Context, _ instrument.Instrument) error {
		return rig.MFC.SetFlow(ctx, cfg.MFC.Flow)
	})

	c.runDevice(ctx, rig, report, log, model.InstrumentStirrer, model.OperationConfigure, func(ctx context.Context, _ instrument.Instrument) error {
		return rig.Stirrer.SetSpeed(ctx, cfg.Stirrer.Speed)
	})
}

// runDevice runs fn against one instrument and records the outcome in report
func (c *ExperimentController) runDevice(ctx context.Context, rig *Rig, report *model.HealthReport, log *utils.RunLogger, kind model.InstrumentKind, op model.Operation, fn func(context.Context, instrument.Instrument) error) {
	inst, ok := rig.Instrument(kind)
	if !ok {
		reason := rig.UnavailableReason(kind)
		report.Add(model.DeviceResult{
			Instrument: kind,
			Operation:  op,
			Outcome:    model.OutcomeUnavailable,
			ErrorKind:  model.ErrorKindConnection,
			Error:      reason.Error(),
		})
		return
	}

	startTime := time.Now()
	err := fn(ctx, inst)

	result := model.DeviceResult{
		Instrument: kind,
		Operation:  op,
		Outcome:    model.OutcomeOK,
		Duration:   time.Since(startTime),
	}
	if err != nil {
		result.Outcome = model.OutcomeFailed
		result.ErrorKind = instrument.Classify(err)
		result.Error = err.Error()
		log.DeviceFailure(string(kind), string(op), err)
	}
	report.Add(result)
}

// Start asks the loop to start every instrument and begin emitting readings
func (c *ExperimentController) Start() error {
	return c.send(intentStart)
}

// Stop asks the loop to halt every instrument
func (c *ExperimentController) Stop() error {
	return c.send(intentStop)
}

// Reset ends the run. The loop exits at its next boundary and the controller
// returns to idle.
func (c *ExperimentController) Reset() error {
	return c.send(intentReset)
}

func (c *ExperimentController) send(in intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrNotConfigured
	}

	select {
	case c.active.intents <- in:
		c.logger.Debug("Intent queued", zap.Stringer("intent", in))
		return nil
	default:
		return fmt.Errorf("%s: %w", in, ErrIntentQueueFull)
	}
}

func (c *ExperimentController) loop(ctx context.Context, a *activeRun) {
	ls := &loopState{}
	ticker := time.NewTicker(c.options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.finish(a, ls)
			return

		case in := <-a.intents:
			if in == intentReset {
				c.finish(a, ls)
				return
			}
			c.apply(ctx, a, ls, in)
			c.tick(ctx, a, ls)
			ticker.Reset(c.options.PollInterval)

		case <-ticker.C:
			c.tick(ctx, a, ls)
		}
	}
}

// apply updates the flags for an intent and moves the state machine
func (c *ExperimentController) apply(ctx context.Context, a *activeRun, ls *loopState, in intent) {
	now := time.Now()
	state := c.State()

	switch in {
	case intentStart:
		ls.flags.ShouldRun, ls.flags.ShouldStop = true, false
		if state == model.StateArmed || state == model.StateStopped {
			ls.resume(now)
			c.publishStarted(a, ls)
			c.transition(ctx, a, model.StateRunning)
		}
	case intentStop:
		ls.flags.ShouldRun, ls.flags.ShouldStop = false, true
		if state == model.StateRunning || state == model.StateArmed {
			ls.pause(now)
			c.transition(ctx, a, model.StateStopped)
		}
	}

	c.publishTiming(ls)
	c.flags.Store(ls.flags)
}

// tick executes one poll iteration. A tick with neither flag set is a no-op.
func (c *ExperimentController) tick(ctx context.Context, a *activeRun, ls *loopState) {
	if !ls.flags.ShouldRun && !ls.flags.ShouldStop {
		return
	}

	tickCtx, cancel := context.WithTimeout(ctx, c.options.TickTimeout)
	defer cancel()

	ls.ticks++
	c.ticks.Store(int64(ls.ticks))
	report := model.NewHealthReport(ls.ticks, c.State())

	if ls.flags.ShouldStop {
		c.stopAll(tickCtx, a, report)
	}

	if ls.flags.ShouldRun {
		now := time.Now()
		elapsed := ls.running(now)

		if a.cutoff > 0 && elapsed >= a.cutoff {
			c.autoStop(tickCtx, a, ls, report, now)
		} else {
			c.startAll(tickCtx, a, report)

			bundle := c.readAll(tickCtx, a, report, ls.ticks, now, elapsed)
			bundle.Health = report
			c.lastBundle.Store(&bundle)
			c.sinks.record(tickCtx, bundle)
		}
	}

	c.lastReport.Store(report)
	a.log.Tick(ls.ticks, ls.running(time.Now()), len(report.Failures()))
	c.sinks.healthReported(tickCtx, a.run.ID, *report)
}

func (c *ExperimentController) autoStop(ctx context.Context, a *activeRun, ls *loopState, report *model.HealthReport, now time.Time) {
	ls.flags.ShouldRun, ls.flags.ShouldStop = false, true
	ls.pause(now)
	c.flags.Store(ls.flags)
	c.publishTiming(ls)

	a.log.Logger().Info("Cut-off reached, stopping instruments",
		zap.Duration("cutoff", a.cutoff),
		zap.Duration("running_time", ls.accumulated),
	)

	c.transition(ctx, a, model.StateStopped)
	report.State = model.StateStopped
	c.stopAll(ctx, a, report)

	c.sinks.autoStopped(ctx, a.run.ID, model.RunEndedEventData{
		Ticks:       ls.ticks,
		RunningTime: ls.accumulated,
		FinalState:  model.StateStopped,
	})
}

func (c *ExperimentController) startAll(ctx context.Context, a *activeRun, report *model.HealthReport) {
	for _, kind := range model.InstrumentKinds {
		c.runDevice(ctx, a.rig, report, a.log, kind, model.OperationStart, func(ctx context.Context, inst instrument.Instrument) error {
			return inst.Start(ctx)
		})
	}
}

func (c *ExperimentController) stopAll(ctx context.Context, a *activeRun, report *model.HealthReport) {
	for _, kind := range model.InstrumentKinds {
		c.runDevice(ctx, a.rig, report, a.log, kind, model.OperationStop, func(ctx context.Context, inst instrument.Instrument) error {
			return inst.Stop(ctx)
		})
	}
}

// readAll pulls one value from each instrument. Failed reads leave the field nil.
func (c *ExperimentController) readAll(ctx context.Context, a *activeRun, report *model.HealthReport, tick int, now time.Time, elapsed time.Duration) model.ReadingBundle {
	rig := a.rig
	bundle := model.ReadingBundle{
		RunID:     a.run.ID,
		Tick:      tick,
		Timestamp: now,
		Elapsed:   elapsed,
	}

	c.runDevice(ctx, rig, report, a.log, model.InstrumentPSU, model.OperationRead, func(ctx context.Context, _ instrument.Instrument) error {
		volts, verr := rig.PSU.MeasureVoltage(ctx)
		if verr == nil {
			bundle.Set(volts)
		}
		amps, aerr := rig.PSU.MeasureCurrent(ctx)
		if aerr == nil {
			bundle.Set(amps)
		}
		return errors.Join(verr, aerr)
	})

	c.runDevice(ctx, rig, report, a.log, model.InstrumentPump, model.OperationRead, func(ctx context.Context, _ instrument.Instrument) error {
		info, err := rig.Pump.Info(ctx)
		if err == nil {
			bundle.Set(info)
		}
		return err
	})

	c.runDevice(ctx, rig, report, a.log, model.InstrumentMFC, model.OperationRead, func(ctx context.Context, _ instrument.Instrument) error {
		flow, err := rig.MFC.ReadFlow(ctx)
		if err == nil {
			bundle.Set(flow)
		}
		return err
	})

	c.runDevice(ctx, rig, report, a.log, model.InstrumentStirrer, model.OperationRead, func(ctx context.Context, _ instrument.Instrument) error {
		speed, err := rig.Stirrer.ReadSpeed(ctx)
		if err == nil {
			bundle.Set(speed)
		}
		return err
	})

	return bundle
}

// finish ends the run: instruments still running are stopped, observers are told
// the run ended, the rig is closed and the controller goes back to idle.
func (c *ExperimentController) finish(a *activeRun, ls *loopState) {
	ctx, cancel := context.WithTimeout(context.Background(), c.options.TickTimeout)
	defer cancel()

	finalState := c.State()
	now := time.Now()
	ls.pause(now)
	ls.flags = model.RunFlags{ShouldReset: true}
	c.flags.Store(ls.flags)
	c.publishTiming(ls)

	c.transition(ctx, a, model.StateResetting)

	if finalState == model.StateRunning {
		report := model.NewHealthReport(ls.ticks, model.StateResetting)
		c.stopAll(ctx, a, report)
		c.lastReport.Store(report)
		c.sinks.healthReported(ctx, a.run.ID, *report)
	}

	summary := model.RunEndedEventData{
		Ticks:       ls.ticks,
		RunningTime: ls.accumulated,
		FinalState:  finalState,
	}
	ended := a.run
	ended.State = finalState
	ended.StartedAt = ls.startedAt
	ended.EndedAt = &now
	ended.Ticks = ls.ticks
	ended.RunningTime = ls.accumulated

	c.sinks.runEnded(ctx, ended, summary)
	a.log.Ended(ls.ticks, ls.accumulated)

	if err := a.rig.Close(); err != nil {
		a.log.Logger().Warn("Failed to close instruments", zap.Error(err))
	}
	a.cancel()

	c.mu.Lock()
	c.active = nil
	c.flags.Store(model.RunFlags{})
	c.transition(ctx, a, model.StateIdle)
	c.mu.Unlock()

	close(a.done)
}

func (c *ExperimentController) transition(ctx context.Context, a *activeRun, to model.ExperimentState) {
	from := c.State()
	if from == to {
		return
	}
	c.state.Store(to)
	a.log.Transition(string(from), string(to))
	c.sinks.stateChanged(ctx, a.run.ID, model.StateChangedEventData{From: from, To: to})
}

func (c *ExperimentController) publishStarted(a *activeRun, ls *loopState) {
	run := a.run
	run.StartedAt = ls.startedAt
	run.State = model.StateRunning
	c.run.Store(&run)
}

func (c *ExperimentController) publishTiming(ls *loopState) {
	c.accumulated.Store(int64(ls.accumulated))
	if ls.resumedAt.IsZero() {
		c.resumedAt.Store(0)
	} else {
		c.resumedAt.Store(ls.resumedAt.UnixNano())
	}
}

// State returns the current state
func (c *ExperimentController) State() model.ExperimentState {
	return c.state.Load().(model.ExperimentState)
}

// Flags returns the intents as last applied by the loop
func (c *ExperimentController) Flags() model.RunFlags {
	return c.flags.Load().(model.RunFlags)
}

// RunningTime returns the accumulated running time of the current run
func (c *ExperimentController) RunningTime() time.Duration {
	running := time.Duration(c.accumulated.Load())
	if resumed := c.resumedAt.Load(); resumed != 0 {
		running += time.Since(time.Unix(0, resumed))
	}
	return running
}

// Status returns a snapshot for the operator
func (c *ExperimentController) Status() ExperimentStatus {
	status := ExperimentStatus{
		State:       c.State(),
		Flags:       c.Flags(),
		Ticks:       int(c.ticks.Load()),
		LastReading: c.lastBundle.Load(),
		LastHealth:  c.lastReport.Load(),
	}
	if status.State == model.StateIdle {
		return status
	}

	status.Run = c.run.Load()
	status.RunningTime = c.RunningTime()
	status.ElapsedSeconds = status.RunningTime.Seconds()
	if unavailable := c.unavailable.Load(); unavailable != nil {
		status.Unavailable = *unavailable
	}

	if status.Run != nil {
		if cutoff := status.Run.Config.Duration.Cutoff(); cutoff > 0 {
			remaining := (cutoff - status.RunningTime).Seconds()
			if remaining < 0 {
				remaining = 0
			}
			status.CutoffMinutes = status.Run.Config.Duration.Minutes()
			status.RemainingSeconds = &remaining
		}
	}
	return status
}

// ActiveRig returns the rig of the current run
func (c *ExperimentController) ActiveRig() (*Rig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil, false
	}
	return c.active.rig, true
}

// UseRig runs fn against the current run's rig. With no run it opens only kinds,
// runs fn and closes them again; Configure waits until that rig is closed so a
// port is never held by two drivers.
func (c *ExperimentController) UseRig(ctx context.Context, fn func(*Rig) error, kinds ...model.InstrumentKind) error {
	c.mu.Lock()
	if c.active != nil {
		rig := c.active.rig
		c.mu.Unlock()
		return fn(rig)
	}
	defer c.mu.Unlock()

	return WithRig(ctx, c.openRig, fn, kinds...)
}

// Done returns a channel closed when the current run has fully ended
func (c *ExperimentController) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.active.done
}

// Shutdown ends any active run and waits for the loop to exit
func (c *ExperimentController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	a := c.active
	c.mu.Unlock()

	if a == nil {
		return nil
	}

	a.cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("experiment loop did not stop: %w", ctx.Err())
	}
}
