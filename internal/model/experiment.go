// internal/model/experiment.go
package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PSUMode selects which quantity the power supply regulates
type PSUMode string

const (
	PSUModeVolt     PSUMode = "V"
	PSUModeAmp      PSUMode = "A"
	PSUModeMilliAmp PSUMode = "mA"
)

// PumpDirection is the pump head rotation
type PumpDirection string

const (
	PumpClockwise        PumpDirection = "Clockwise"
	PumpCounterClockwise PumpDirection = "Counter-clockwise"
)

// DurationUnit is the unit of the experiment cut-off
type DurationUnit string

const (
	DurationMinutes DurationUnit = "minutes"
	DurationHours   DurationUnit = "hours"
)

// PSUConfig is the power supply part of an experiment
type PSUConfig struct {
	Mode  PSUMode `json:"mode" mapstructure:"mode"`
	Value float64 `json:"value" mapstructure:"value"`
}

// Voltage returns the voltage setpoint and whether the mode regulates voltage
func (c PSUConfig) Voltage() (float64, bool) {
	return c.Value, c.Mode == PSUModeVolt
}

// Amps returns the current setpoint in amps, converting from mA when needed
func (c PSUConfig) Amps() (float64, bool) {
	switch c.Mode {
	case PSUModeAmp:
		return c.Value, true
	case PSUModeMilliAmp:
		return c.Value / 1000, true
	default:
		return 0, false
	}
}

// PumpConfig is the pump part of an experiment
type PumpConfig struct {
	Speed     float64       `json:"speed" mapstructure:"speed"`
	Direction PumpDirection `json:"direction" mapstructure:"direction"`
}

// Clockwise reports whether the pump should turn clockwise
func (c PumpConfig) Clockwise() bool {
	return c.Direction == PumpClockwise
}

// MFCConfig is the mass-flow controller part of an experiment
type MFCConfig struct {
	Flow float64 `json:"flow" mapstructure:"flow"`
}

// StirrerConfig is the stirrer part of an experiment
type StirrerConfig struct {
	Speed float64 `json:"speed" mapstructure:"speed"`
}

// DurationConfig is the optional run cut-off
type DurationConfig struct {
	Value *float64     `json:"value,omitempty" mapstructure:"value"`
	Unit  DurationUnit `json:"unit" mapstructure:"unit"`
}

// Minutes normalizes the cut-off to minutes. Any unit other than minutes counts as hours.
func (d DurationConfig) Minutes() float64 {
	if d.Value == nil {
		return 0
	}
	if d.Unit == DurationMinutes {
		return *d.Value
	}
	return *d.Value * 60
}

// Cutoff returns the cut-off as a duration, zero when none is set
func (d DurationConfig) Cutoff() time.Duration {
	minutes := d.Minutes()
	if minutes <= 0 {
		return 0
	}
	return time.Duration(minutes * float64(time.Minute))
}

// ExperimentConfig is the per-device setpoint bundle applied at run start
type ExperimentConfig struct {
	PSU      PSUConfig      `json:"psu" mapstructure:"psu"`
	Pump     PumpConfig     `json:"pump" mapstructure:"pump"`
	MFC      MFCConfig      `json:"mfc" mapstructure:"mfc"`
	Stirrer  StirrerConfig  `json:"stirrer" mapstructure:"stirrer"`
	Duration DurationConfig `json:"duration" mapstructure:"duration"`
}

func (c ExperimentConfig) Value() (driver.Value, error) {
	return jsonValue(c)
}

func (c *ExperimentConfig) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// ExperimentDetails is descriptive metadata that travels with a run
type ExperimentDetails struct {
	Author     string  `json:"author"`
	Name       string  `json:"name"`
	TubingSize float64 `json:"tubing_size"`
}

// ExperimentState is the controller state machine position
type ExperimentState string

const (
	StateIdle      ExperimentState = "IDLE"
	StateArmed     ExperimentState = "ARMED"
	StateRunning   ExperimentState = "RUNNING"
	StateStopped   ExperimentState = "STOPPED"
	StateResetting ExperimentState = "RESETTING"
)

// RunFlags are the operator intents as last observed by the poll loop
type RunFlags struct {
	ShouldRun   bool `json:"should_run"`
	ShouldStop  bool `json:"should_stop"`
	ShouldReset bool `json:"should_reset"`
}

// ReadingBundle is what one running poll tick hands to the sinks. Nil means the value
// was unavailable for that tick.
type ReadingBundle struct {
	RunID        uuid.UUID     `json:"run_id"`
	Tick         int           `json:"tick"`
	Timestamp    time.Time     `json:"timestamp"`
	Elapsed      time.Duration `json:"elapsed"`
	Voltage      *float64      `json:"voltage"`
	Current      *float64      `json:"current"`
	PumpInfo     *string       `json:"pump_info"`
	FlowRate     *float64      `json:"flow_rate"`
	StirrerSpeed *float64      `json:"stirrer_speed"`
	Health       *HealthReport `json:"health,omitempty"`
}

// Set stores a reading in the matching bundle field
func (b *ReadingBundle) Set(r Reading) {
	switch r.Field {
	case FieldVoltage:
		b.Voltage = floatPtr(r.Number)
	case FieldCurrent:
		b.Current = floatPtr(r.Number)
	case FieldPumpInfo:
		text := r.Text
		b.PumpInfo = &text
	case FieldFlowRate:
		b.FlowRate = floatPtr(r.Number)
	case FieldStirrerSpeed:
		b.StirrerSpeed = floatPtr(r.Number)
	}
}

// Run describes one experiment from configure to reset
type Run struct {
	ID        uuid.UUID         `json:"id"`
	Details   ExperimentDetails `json:"details"`
	Config    ExperimentConfig  `json:"config"`
	State     ExperimentState   `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`

	// Filled in when the run ends
	Ticks       int           `json:"ticks"`
	RunningTime time.Duration `json:"running_time"`
}

// SaveProfile is a numbered slot holding a reusable experiment parameter set
type SaveProfile struct {
	Slot      int               `json:"slot"`
	Details   ExperimentDetails `json:"details"`
	Config    ExperimentConfig  `json:"config"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Key returns the slot label used by the operator UI
func (p *SaveProfile) Key() string {
	return fmt.Sprintf("save_%d", p.Slot)
}

func floatPtr(v float64) *float64 {
	return &v
}
