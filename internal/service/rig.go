// internal/service/rig.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lab-rig-service/internal/config"
	"lab-rig-service/internal/model"
	"lab-rig-service/pkg/instrument"
)

// DriverCreator connects one instrument driver
type DriverCreator interface {
	CreateDriver(ctx context.Context, kind model.InstrumentKind, settings config.InstrumentConfig) (instrument.Instrument, error)
}

// Rig holds the connected instruments of one run. Instruments that could not be
// connected are nil and listed in Unavailable.
type Rig struct {
	PSU     instrument.PowerSupply
	Pump    instrument.Pump
	MFC     instrument.MassFlowController
	Stirrer instrument.Stirrer

	unavailable map[model.InstrumentKind]error
}

// OpenRig connects the requested instruments, every instrument when kinds is empty.
// Individual failures leave that instrument unavailable and are recorded in the
// returned report. Only a cancelled context fails the whole rig, and everything
// opened so far is closed first.
func OpenRig(ctx context.Context, creator DriverCreator, settings config.InstrumentsConfig, logger *zap.Logger, kinds ...model.InstrumentKind) (*Rig, *model.HealthReport, error) {
	if len(kinds) == 0 {
		kinds = model.InstrumentKinds
	}

	rig := &Rig{unavailable: make(map[model.InstrumentKind]error)}
	report := model.NewHealthReport(0, model.StateIdle)
	ports := make(map[string]model.InstrumentKind)

	for _, kind := range kinds {
		startTime := time.Now()
		err := rig.connect(ctx, creator, settings, kind, ports)

		result := model.DeviceResult{
			Instrument: kind,
			Operation:  model.OperationConnect,
			Outcome:    model.OutcomeOK,
			Duration:   time.Since(startTime),
		}
		if err != nil {
			rig.unavailable[kind] = err
			result.Outcome = model.OutcomeUnavailable
			result.ErrorKind = instrument.Classify(err)
			result.Error = err.Error()
			logger.Warn("Instrument unavailable",
				zap.String("instrument", string(kind)),
				zap.Error(err),
			)
		}
		report.Add(result)

		if ctxErr := ctx.Err(); ctxErr != nil {
			if closeErr := rig.Close(); closeErr != nil {
				logger.Warn("Failed to close partially opened rig", zap.Error(closeErr))
			}
			return nil, report, fmt.Errorf("rig connection interrupted: %w", ctxErr)
		}
	}

	return rig, report, nil
}

func (r *Rig) connect(ctx context.Context, creator DriverCreator, settings config.InstrumentsConfig, kind model.InstrumentKind, ports map[string]model.InstrumentKind) error {
	ic, ok := settings.For(kind)
	if !ok {
		return fmt.Errorf("%s: %w: unknown instrument", kind, instrument.ErrUnavailable)
	}
	if !ic.Enabled {
		return fmt.Errorf("%s: %w: disabled in configuration", kind, instrument.ErrUnavailable)
	}
	if other, used := ports[ic.Port]; used {
		return &instrument.ConnectionError{
			Instrument: kind,
			Port:       ic.Port,
			Err:        fmt.Errorf("port already owned by %s", other),
		}
	}

	inst, err := creator.CreateDriver(ctx, kind, ic)
	if err != nil {
		return err
	}

	if !r.assign(kind, inst) {
		inst.Close()
		return fmt.Errorf("%s: driver does not implement the %s interface", kind, kind)
	}

	ports[ic.Port] = kind
	return nil
}

func (r *Rig) assign(kind model.InstrumentKind, inst instrument.Instrument) bool {
	var ok bool
	switch kind {
	case model.InstrumentPSU:
		r.PSU, ok = inst.(instrument.PowerSupply)
	case model.InstrumentPump:
		r.Pump, ok = inst.(instrument.Pump)
	case model.InstrumentMFC:
		r.MFC, ok = inst.(instrument.MassFlowController)
	case model.InstrumentStirrer:
		r.Stirrer, ok = inst.(instrument.Stirrer)
	}
	return ok
}

// Instrument returns the connected instrument of the given kind
func (r *Rig) Instrument(kind model.InstrumentKind) (instrument.Instrument, bool) {
	switch kind {
	case model.InstrumentPSU:
		if r.PSU != nil {
			return r.PSU, true
		}
	case model.InstrumentPump:
		if r.Pump != nil {
			return r.Pump, true
		}
	case model.InstrumentMFC:
		if r.MFC != nil {
			return r.MFC, true
		}
	case model.InstrumentStirrer:
		if r.Stirrer != nil {
			return r.Stirrer, true
		}
	}
	return nil, false
}

// Available reports whether kind is connected
func (r *Rig) Available(kind model.InstrumentKind) bool {
	_, ok := r.Instrument(kind)
	return ok
}

// UnavailableReason returns why kind is not connected
func (r *Rig) UnavailableReason(kind model.InstrumentKind) error {
	if err, ok := r.unavailable[kind]; ok {
		return err
	}
	if !r.Available(kind) {
		return fmt.Errorf("%s: %w", kind, instrument.ErrUnavailable)
	}
	return nil
}

// Unavailable lists the instruments that could not be connected
func (r *Rig) Unavailable() []model.InstrumentKind {
	var kinds []model.InstrumentKind
	for _, kind := range model.InstrumentKinds {
		if _, ok := r.unavailable[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Close closes every connected instrument
func (r *Rig) Close() error {
	var errs []error
	for _, kind := range model.InstrumentKinds {
		inst, ok := r.Instrument(kind)
		if !ok {
			continue
		}
		if err := inst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// RigOpener opens a rig for the given kinds, every instrument when none are named
type RigOpener func(ctx context.Context, kinds ...model.InstrumentKind) (*Rig, *model.HealthReport, error)

// NewRigOpener binds OpenRig to a driver source and the instrument configuration
func NewRigOpener(creator DriverCreator, settings config.InstrumentsConfig, logger *zap.Logger) RigOpener {
	return func(ctx context.Context, kinds ...model.InstrumentKind) (*Rig, *model.HealthReport, error) {
		return OpenRig(ctx, creator, settings, logger, kinds...)
	}
}

// WithRig opens the requested instruments, runs fn and closes the rig on every path
func WithRig(ctx context.Context, open RigOpener, fn func(*Rig) error, kinds ...model.InstrumentKind) (err error) {
	rig, _, err := open(ctx, kinds...)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := rig.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(rig)
}
