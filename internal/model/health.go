// internal/model/health.go
package model

import (
	"database/sql/driver"
	"time"
)

// Operation names what the controller asked an instrument to do
type Operation string

const (
	OperationConnect   Operation = "connect"
	OperationConfigure Operation = "configure"
	OperationStart     Operation = "start"
	OperationStop      Operation = "stop"
	OperationRead      Operation = "read"
)

// Outcome is the result class of one per-device operation
type Outcome string

const (
	OutcomeOK          Outcome = "OK"
	OutcomeFailed      Outcome = "FAILED"
	OutcomeUnavailable Outcome = "UNAVAILABLE"
)

// ErrorKind classifies a failure
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindOther      ErrorKind = "other"
)

// DeviceResult is the typed outcome of one operation on one instrument
type DeviceResult struct {
	Instrument InstrumentKind `json:"instrument"`
	Operation  Operation      `json:"operation"`
	Outcome    Outcome        `json:"outcome"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// OK reports whether the operation succeeded
func (r DeviceResult) OK() bool {
	return r.Outcome == OutcomeOK
}

// HealthReport aggregates the device results of one configure call or poll tick
type HealthReport struct {
	Tick      int             `json:"tick"`
	State     ExperimentState `json:"state"`
	Results   []DeviceResult  `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewHealthReport starts an empty report
func NewHealthReport(tick int, state ExperimentState) *HealthReport {
	return &HealthReport{
		Tick:      tick,
		State:     state,
		Results:   make([]DeviceResult, 0, len(InstrumentKinds)),
		CreatedAt: time.Now(),
	}
}

// Add appends a result
func (r *HealthReport) Add(result DeviceResult) {
	r.Results = append(r.Results, result)
}

// Healthy reports whether every recorded operation succeeded
func (r *HealthReport) Healthy() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return true
}

// Failures returns every result that did not succeed
func (r *HealthReport) Failures() []DeviceResult {
	var failed []DeviceResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Unavailable lists instruments reported as unavailable
func (r *HealthReport) Unavailable() []InstrumentKind {
	var kinds []InstrumentKind
	seen := make(map[InstrumentKind]bool)
	for _, res := range r.Results {
		if res.Outcome == OutcomeUnavailable && !seen[res.Instrument] {
			seen[res.Instrument] = true
			kinds = append(kinds, res.Instrument)
		}
	}
	return kinds
}

// Find returns the first result for an instrument and operation
func (r *HealthReport) Find(kind InstrumentKind, op Operation) (DeviceResult, bool) {
	for _, res := range r.Results {
		if res.Instrument == kind && res.Operation == op {
			return res, true
		}
	}
	return DeviceResult{}, false
}

func (r HealthReport) Value() (driver.Value, error) {
	return jsonValue(r)
}

func (r *HealthReport) Scan(value interface{}) error {
	return scanJSON(value, r)
}
