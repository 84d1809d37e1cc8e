// internal/driver/psu/psu_driver.go
package psu

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lab-rig-service/internal/driver/base"
	"lab-rig-service/internal/model"
	"lab-rig-service/internal/protocol"
	"lab-rig-service/pkg/instrument"
)

const defaultChannel = 1

var capabilities = []model.Capability{
	model.CapabilityStart,
	model.CapabilityStop,
	model.CapabilitySetpoint,
	model.CapabilityReadback,
	model.CapabilityStatus,
	model.CapabilityIdentify,
	model.CapabilityChannel,
}

// Driver implements instrument.PowerSupply for SCPI bench supplies
type Driver struct {
	*base.Driver
	channel atomic.Int64
}

var _ instrument.PowerSupply = (*Driver)(nil)

// New connects to the supply. Lines end in '\n'.
func New(ctx context.Context, cfg base.Config, logger *zap.Logger) (instrument.Instrument, error) {
	d, err := NewPowerSupply(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewPowerSupply connects to the supply and returns the concrete driver
func NewPowerSupply(ctx context.Context, cfg base.Config, logger *zap.Logger) (*Driver, error) {
	cfg.Kind = model.InstrumentPSU
	cfg.Serial.Terminator = protocol.TerminatorLF
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = 1
	}

	channel := cfg.Channel
	if channel <= 0 {
		channel = defaultChannel
	}

	d, err := base.Connect(ctx, cfg, capabilities, logger)
	if err != nil {
		return nil, err
	}

	psu := &Driver{Driver: d}
	psu.channel.Store(int64(channel))
	return psu, nil
}

// command builds a SCPI command; only queries wait for a reply
func (d *Driver) command(text string) protocol.Command {
	if isQuery(text) {
		return d.Query(text)
	}
	return d.Set(text)
}

// Channel returns the output channel used for scoped commands
func (d *Driver) Channel() int {
	return int(d.channel.Load())
}

// SelectChannel changes the channel used by later scoped commands
func (d *Driver) SelectChannel(ctx context.Context, channel int) error {
	if channel <= 0 {
		return d.ValidationError("channel", float64(channel), "must be positive")
	}

	if _, err := d.Exchange(ctx, d.command(selectChannel(channel))); err != nil {
		return err
	}
	d.channel.Store(int64(channel))
	return nil
}

func (d *Driver) SetVoltage(ctx context.Context, volts float64) error {
	_, err := d.Exchange(ctx,
		d.command(selectChannel(d.Channel())),
		d.command(setVoltage(volts)),
	)
	return err
}

func (d *Driver) SetCurrent(ctx context.Context, amps float64) error {
	_, err := d.Exchange(ctx,
		d.command(selectChannel(d.Channel())),
		d.command(setCurrent(amps)),
	)
	return err
}

func (d *Driver) MeasureVoltage(ctx context.Context) (model.Reading, error) {
	return d.ReadNumber(ctx, model.FieldVoltage, "V", base.ParseFloat,
		d.command(selectChannel(d.Channel())),
		d.command(cmdMeasVoltage),
	)
}

func (d *Driver) MeasureCurrent(ctx context.Context) (model.Reading, error) {
	return d.ReadNumber(ctx, model.FieldCurrent, "A", base.ParseFloat,
		d.command(selectChannel(d.Channel())),
		d.command(cmdMeasCurrent),
	)
}

// Start enables the output
func (d *Driver) Start(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.command(cmdOutputOn))
	return err
}

// Stop disables the output
func (d *Driver) Stop(ctx context.Context) error {
	_, err := d.Exchange(ctx, d.command(cmdOutputOff))
	return err
}

// SetSetpoint sets the output voltage
func (d *Driver) SetSetpoint(ctx context.Context, value float64) error {
	return d.SetVoltage(ctx, value)
}

// ReadPrimary measures the output voltage
func (d *Driver) ReadPrimary(ctx context.Context) (model.Reading, error) {
	return d.MeasureVoltage(ctx)
}

// ReadStatus asks whether the output is on. Anything but "1" counts as off.
func (d *Driver) ReadStatus(ctx context.Context) (*model.InstrumentStatus, error) {
	reply, err := d.Exchange(ctx, d.command(cmdOutputQuery))
	if err != nil {
		return nil, err
	}

	status := &model.InstrumentStatus{
		Instrument: model.InstrumentPSU,
		State:      model.RunStateStopped,
		Raw:        reply,
		CheckedAt:  time.Now(),
	}
	if strings.TrimSpace(reply) == "1" {
		status.State = model.RunStateRunning
	}
	return status, nil
}

// Identify returns the *IDN? answer split into its four comma-separated fields
func (d *Driver) Identify(ctx context.Context) (*model.Identity, error) {
	reply, err := d.Exchange(ctx, d.command(cmdIdentify))
	if err != nil {
		return nil, err
	}
	if reply == "" {
		return nil, d.ProtocolError(cmdIdentify, reply, "empty reply", nil)
	}

	identity := &model.Identity{Raw: reply}
	parts := strings.Split(reply, ",")
	fields := []*string{&identity.Manufacturer, &identity.Model, &identity.SerialNumber, &identity.Firmware}
	for i := 0; i < len(parts) && i < len(fields); i++ {
		*fields[i] = strings.TrimSpace(parts[i])
	}
	return identity, nil
}
