// internal/model/instrument.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InstrumentKind identifies one of the rig's instruments
type InstrumentKind string

const (
	InstrumentPSU     InstrumentKind = "PSU"
	InstrumentPump    InstrumentKind = "PUMP"
	InstrumentMFC     InstrumentKind = "MFC"
	InstrumentStirrer InstrumentKind = "STIRRER"
)

// InstrumentKinds lists every instrument in the order the controller commands them
var InstrumentKinds = []InstrumentKind{
	InstrumentPSU,
	InstrumentPump,
	InstrumentMFC,
	InstrumentStirrer,
}

// ParseInstrumentKind accepts the kind in any letter case
func ParseInstrumentKind(s string) (InstrumentKind, error) {
	kind := InstrumentKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range InstrumentKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown instrument: %q", s)
}

// ConfigKey returns the lower-case key used in configuration files
func (k InstrumentKind) ConfigKey() string {
	return strings.ToLower(string(k))
}

// Capability represents what an instrument can do
type Capability string

const (
	CapabilityStart     Capability = "START"
	CapabilityStop      Capability = "STOP"
	CapabilitySetpoint  Capability = "SETPOINT"
	CapabilityReadback  Capability = "READBACK"
	CapabilityStatus    Capability = "STATUS"
	CapabilityIdentify  Capability = "IDENTIFY"
	CapabilityTare      Capability = "TARE"
	CapabilityChannel   Capability = "CHANNEL"
	CapabilityDirection Capability = "DIRECTION"
)

// Field names the quantity a reading represents
type Field string

const (
	FieldVoltage         Field = "voltage"
	FieldCurrent         Field = "current"
	FieldPumpInfo        Field = "pump_info"
	FieldFlowRate        Field = "flow_rate"
	FieldStirrerSpeed    Field = "stirrer_speed"
	FieldStirrerSetpoint Field = "stirrer_setpoint"
)

// ValueKind tells which member of Reading carries the value
type ValueKind string

const (
	ValueNumber ValueKind = "NUMBER"
	ValueBool   ValueKind = "BOOL"
	ValueText   ValueKind = "TEXT"
)

// Reading is one decoded instrument response
type Reading struct {
	Instrument InstrumentKind `json:"instrument"`
	Field      Field          `json:"field"`
	Kind       ValueKind      `json:"kind"`
	Number     float64        `json:"number,omitempty"`
	Flag       bool           `json:"flag,omitempty"`
	Text       string         `json:"text,omitempty"`
	Unit       string         `json:"unit,omitempty"`
	Raw        string         `json:"raw"`
	ReadAt     time.Time      `json:"read_at"`
}

// NumberReading builds a numeric reading
func NumberReading(kind InstrumentKind, field Field, value float64, unit, raw string) Reading {
	return Reading{
		Instrument: kind,
		Field:      field,
		Kind:       ValueNumber,
		Number:     value,
		Unit:       unit,
		Raw:        raw,
		ReadAt:     time.Now(),
	}
}

// TextReading builds a free-form text reading
func TextReading(kind InstrumentKind, field Field, raw string) Reading {
	return Reading{
		Instrument: kind,
		Field:      field,
		Kind:       ValueText,
		Text:       raw,
		Raw:        raw,
		ReadAt:     time.Now(),
	}
}

// RunState is the running state reported by an instrument
type RunState string

const (
	RunStateRunning RunState = "RUNNING"
	RunStateStopped RunState = "STOPPED"
	RunStateUnknown RunState = "UNKNOWN"
)

// InstrumentStatus is the decoded answer to a status query
type InstrumentStatus struct {
	Instrument InstrumentKind `json:"instrument"`
	State      RunState       `json:"state"`
	Detail     string         `json:"detail,omitempty"`
	Raw        string         `json:"raw"`
	CheckedAt  time.Time      `json:"checked_at"`
}

// IsRunning reports whether the instrument confirmed it is running
func (s *InstrumentStatus) IsRunning() bool {
	return s != nil && s.State == RunStateRunning
}

// Identity is what an instrument reports about itself
type Identity struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Firmware     string `json:"firmware,omitempty"`
	Raw          string `json:"raw"`
}

// scanJSON decodes a JSONB column into dst
func scanJSON(value interface{}, dst interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T as JSON", value)
	}
}

// jsonValue encodes v for a JSONB column
func jsonValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}
