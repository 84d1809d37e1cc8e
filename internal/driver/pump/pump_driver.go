// internal/driver/pump/pump_driver.go
package pump

import (
	"context"
	"strconv"
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
	model.CapabilityDirection,
}

// Driver implements instrument.Pump for addressable peristaltic pumps
type Driver struct {
	*base.Driver
}

var _ instrument.Pump = (*Driver)(nil)

// New connects to the pump. The pump talks 8-N-2 and ends lines in '\r'.
func New(ctx context.Context, cfg base.Config, logger *zap.Logger) (instrument.Instrument, error) {
	d, err := NewPump(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewPump connects to the pump and returns the concrete driver
func NewPump(ctx context.Context, cfg base.Config, logger *zap.Logger) (*Driver, error) {
	cfg.Kind = model.InstrumentPump
	cfg.Serial.Terminator = protocol.TerminatorCR
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = 2
	}

	d, err := base.Connect(ctx, cfg, capabilities, logger)
	if err != nil {
		return nil, err
	}
	return &Driver{Driver: d}, nil
}

// SetSpeed sends the speed zero-padded to three digits
func (d *Driver) SetSpeed(ctx context.Context, rpm int) error {
	if rpm < minSpeed || rpm > maxSpeed {
		return d.ValidationError("speed", float64(rpm), "must be between 0 and 999 rpm")
	}

	_, err := d.Exchange(ctx, d.Query(setSpeed(rpm)))
	return err
}

func (d *Driver) SetDirection(ctx context.Context, clockwise bool) error {
	_, err := d.Exchange(ctx, d.Query(setDirection(clockwise)))
	return err
}

// Info returns the pump's free-form info line
func (d *Driver) Info(ctx context.Context) (model.Reading, error) {
	reply, err := d.Exchange(ctx, d.Query(cmdInfo))
	if err != nil {
		return model.Reading{}, err
	}
	if reply == "" {
		return model.Reading{}, d.ProtocolError(cmdInfo, reply, "empty reply", nil)
	}
	return model.TextReading(model.InstrumentPump, model.FieldPumpInfo, reply), nil
}

func (d *Driver) Start(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdStart))
	return err
}

func (d *Driver) Stop(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.Query(cmdStop))
	return err
}

// SetSetpoint truncates the value to whole rpm
func (d *Driver) SetSetpoint(ctx context.Context, value float64) error {
	if !(value >= minSpeed && value < maxSpeed+1) {
		return d.ValidationError("speed", value, "must be between 0 and 999 rpm")
	}
	return d.SetSpeed(ctx, int(value))
}

// ReadPrimary returns the info line
func (d *Driver) ReadPrimary(ctx context.Context) (model.Reading, error) {
	return d.Info(ctx)
}

// ReadStatus decodes the 1ZY integer. An empty reply means stopped.
func (d *Driver) ReadStatus(ctx context.Context) (*model.InstrumentStatus, error) {
	reply, err := d.Exchange(ctx, d.Query(cmdStatus))
	if err != nil {
		return nil, err
	}

	status := &model.InstrumentStatus{
		Instrument: model.InstrumentPump,
		State:      model.RunStateStopped,
		Raw:        reply,
		CheckedAt:  time.Now(),
	}

	if reply == "" {
		return status, nil
	}

	code, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return nil, d.ProtocolError(cmdStatus, reply, "malformed status", err)
	}
	if code != 0 {
		status.State = model.RunStateRunning
	}
	return status, nil
}
