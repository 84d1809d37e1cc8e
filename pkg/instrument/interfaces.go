// pkg/instrument/interfaces.go
package instrument

import (
	"context"

	"lab-rig-service/internal/model"
)

// Instrument is the capability set every rig instrument implements
type Instrument interface {
	// Identity
	Kind() model.InstrumentKind
	Port() string
	GetCapabilities() []model.Capability

	// Run control
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// SetSetpoint sets the instrument's primary quantity: volts for the power
	// supply, rpm for pump and stirrer, sccm for the mass-flow controller.
	SetSetpoint(ctx context.Context, value float64) error
	ReadPrimary(ctx context.Context) (model.Reading, error)
	ReadStatus(ctx context.Context) (*model.InstrumentStatus, error)

	// Health and monitoring
	GetHealthMetrics() HealthMetrics

	// Cleanup
	Close() error
}

// Identifier is implemented by instruments that can report who they are
type Identifier interface {
	Identify(ctx context.Context) (*model.Identity, error)
}

// PowerSupply extends Instrument for channel-scoped SCPI supplies
type PowerSupply interface {
	Instrument
	Identifier

	Channel() int
	SelectChannel(ctx context.Context, channel int) error
	SetVoltage(ctx context.Context, volts float64) error
	SetCurrent(ctx context.Context, amps float64) error
	MeasureVoltage(ctx context.Context) (model.Reading, error)
	MeasureCurrent(ctx context.Context) (model.Reading, error)
}

// Pump extends Instrument for peristaltic pumps
type Pump interface {
	Instrument

	SetSpeed(ctx context.Context, rpm int) error
	SetDirection(ctx context.Context, clockwise bool) error
	Info(ctx context.Context) (model.Reading, error)
}

// MassFlowController extends Instrument for gas flow controllers
type MassFlowController interface {
	Instrument
	Identifier

	SetFlow(ctx context.Context, sccm float64) error
	ReadFlow(ctx context.Context) (model.Reading, error)
	Tare(ctx context.Context) error
}

// Stirrer extends Instrument for overhead stirrers
type Stirrer interface {
	Instrument

	SetSpeed(ctx context.Context, rpm float64) error
	ReadSpeed(ctx context.Context) (model.Reading, error)
	ReadSetpoint(ctx context.Context) (model.Reading, error)
}
