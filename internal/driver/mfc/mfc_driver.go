// internal/driver/mfc/mfc_driver.go
package mfc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lab-rig-service/internal/driver/base"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/protocol"
	"lab-rig-service/pkg/instrument"
)

var capabilities = []model.Capability{
	model.CapabilityStart,
	model.CapabilityStop,
	model.CapabilitySetpoint,
	model.CapabilityReadback,
	model.CapabilityStatus,
	model.CapabilityIdentify,
	model.CapabilityTare,
}

// Driver implements instrument.MassFlowController
type Driver struct {
	*base.Driver
}

var _ instrument.MassFlowController = (*Driver)(nil)

// New connects to the controller. Lines end in '\r'.
func New(ctx context.Context, cfg base.Config, logger *zap.Logger) (instrument.Instrument, error) {
	d, err := NewMassFlowController(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewMassFlowController connects and returns the concrete driver
func NewMassFlowController(ctx context.Context, cfg base.Config, logger *zap.Logger) (*Driver, error) {
	cfg.Kind = model.InstrumentMFC
	cfg.Serial.Terminator = protocol.TerminatorCR
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = 1
	}

	d, err := base.Connect(ctx, cfg, capabilities, logger)
	if err != nil {
		return nil, err
	}
	return &Driver{Driver: d}, nil
}

func (d *Driver) SetFlow(ctx context.Context, sccm float64) error {
	if sccm < 0 {
		return d.ValidationError("flow", sccm, "must not be negative")
	}

	_, err := d.Exchange(ctx, d.Query(setFlow(sccm)))
	return err
}

// ReadFlow polls the controller and returns the mass flow column
func (d *Driver) ReadFlow(ctx context.Context) (model.Reading, error) {
	return d.ReadNumber(ctx, model.FieldFlowRate, "sccm", parseMassFlow, d.Query(cmdPoll))
}

// Tare zeroes the flow reading
func (d *Driver) Tare(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdTare))
	return err
}

// Identify asks for the manufacturer block and the firmware version
func (d *Driver) Identify(ctx context.Context) (*model.Identity, error) {
	manufacturer, err := d.Exchange(ctx, d.Query(cmdManufacturer))
	if err != nil {
		return nil, err
	}

	firmware, err := d.Exchange(ctx, d.Query(cmdFirmware))
	if err != nil {
		return nil, err
	}

	if manufacturer == "" && firmware == "" {
		return nil, d.ProtocolError(cmdManufacturer, "", "empty reply", nil)
	}

	return &model.Identity{
		Manufacturer: manufacturer,
		Firmware:     firmware,
		Raw:          strings.TrimSpace(manufacturer + "\n" + firmware),
	}, nil
}

func (d *Driver) Start(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdStart))
	return err
}

func (d *Driver) Stop(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdStop))
	return err
}

// SetSetpoint sets the flow in sccm
func (d *Driver) SetSetpoint(ctx context.Context, value float64) error {
	return d.SetFlow(ctx, value)
}

// ReadPrimary returns the mass flow
func (d *Driver) ReadPrimary(ctx context.Context) (model.Reading, error) {
	return d.ReadFlow(ctx)
}

// ReadStatus reports the raw poll record. The controller has no running flag.
func (d *Driver) ReadStatus(ctx context.Context) (*model.InstrumentStatus, error) {
	record, err := d.Exchange(ctx, d.Query(cmdPoll))
	if err != nil {
		return nil, err
	}

	status := &model.InstrumentStatus{
		Instrument: model.InstrumentMFC,
		State:      model.RunStateUnknown,
		Raw:        record,
		CheckedAt:  time.Now(),
	}

	if fields := strings.Fields(record); len(fields) > fieldGas {
		status.Detail = fmt.Sprintf("setpoint %s, gas %s", fields[fieldSetpoint], fields[fieldGas])
	}
	return status, nil
}
