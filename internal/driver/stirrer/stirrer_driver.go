// internal/driver/stirrer/stirrer_driver.go
package stirrer

import (
	"context"
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
}

// Driver implements instrument.Stirrer for overhead stirrers on motor channel 4
type Driver struct {
	*base.Driver
}

var _ instrument.Stirrer = (*Driver)(nil)

// New connects to the stirrer. Lines end in '\r'.
func New(ctx context.Context, cfg base.Config, logger *zap.Logger) (instrument.Instrument, error) {
	d, err := NewStirrer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewStirrer connects and returns the concrete driver
func NewStirrer(ctx context.Context, cfg base.Config, logger *zap.Logger) (*Driver, error) {
	cfg.Kind = model.InstrumentStirrer
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

// SetSpeed rejects speeds outside 0..1500 rpm without transmitting
func (d *Driver) SetSpeed(ctx context.Context, rpm float64) error {
	if !(rpm >= minSpeed && rpm <= maxSpeed) {
		return d.ValidationError("speed", rpm, "must be between 0 and 1500 rpm")
	}

	_, err := d.Exchange(ctx, d.Query(setSpeed(rpm)))
	return err
}

// ReadSpeed returns the actual motor speed
func (d *Driver) ReadSpeed(ctx context.Context) (model.Reading, error) {
	return d.ReadNumber(ctx, model.FieldStirrerSpeed, "rpm", base.ParseFirstField, d.Query(cmdReadSpeed))
}

// ReadSetpoint returns the speed the stirrer was told to hold
func (d *Driver) ReadSetpoint(ctx context.Context) (model.Reading, error) {
	return d.ReadNumber(ctx, model.FieldStirrerSetpoint, "rpm", base.ParseFirstField, d.Query(cmdReadSetting))
}

func (d *Driver) Start(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdStart))
	return err
}

func (d *Driver) Stop(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdStop))
	return err
}

func (d *Driver) SetSetpoint(ctx context.Context, value float64) error {
	return d.SetSpeed(ctx, value)
}

func (d *Driver) ReadPrimary(ctx context.Context) (model.Reading, error) {
	return d.ReadSpeed(ctx)
}

// ReadStatus reports the setpoint readback. The stirrer has no running flag.
func (d *Driver) ReadStatus(ctx context.Context) (*model.InstrumentStatus, error) {
	reading, err := d.ReadSetpoint(ctx)
	if err != nil {
		return nil, err
	}

	return &model.InstrumentStatus{
		Instrument: model.InstrumentStirrer,
		State:      model.RunStateUnknown,
		Detail:     "setpoint " + reading.Raw,
		Raw:        reading.Raw,
		CheckedAt:  time.Now(),
	}, nil
}
