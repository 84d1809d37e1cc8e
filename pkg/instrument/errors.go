// pkg/instrument/errors.go
package instrument

import (
	"context"
	"errors"
	"fmt"

	"lab-rig-service/internal/model"
)

// ErrUnavailable is returned for instruments that could not be connected
var ErrUnavailable = errors.New("instrument unavailable")

// ConnectionError reports that an instrument's serial link could not be established
type ConnectionError struct {
	Instrument model.InstrumentKind
	Port       string
	Err        error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection to %s failed: %v", e.Instrument, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError reports an empty or malformed reply
type ProtocolError struct {
	Instrument model.InstrumentKind
	Command    string
	Reply      string
	Reason     string
	Err        error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s (reply %q)", e.Instrument, e.Command, e.Reason, e.Reply)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ValidationError reports a setpoint rejected before anything was transmitted
type ValidationError struct {
	Instrument model.InstrumentKind
	Field      string
	Value      float64
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s %v: %s", e.Instrument, e.Field, e.Value, e.Reason)
}

// Classify maps an error onto the kinds reported in health results
func Classify(err error) model.ErrorKind {
	if err == nil {
		return model.ErrorKindNone
	}

	var connErr *ConnectionError
	var protoErr *ProtocolError
	var validErr *ValidationError

	switch {
	case errors.As(err, &connErr), errors.Is(err, ErrUnavailable):
		return model.ErrorKindConnection
	case errors.As(err, &validErr):
		return model.ErrorKindValidation
	case errors.As(err, &protoErr):
		return model.ErrorKindProtocol
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrorKindTimeout
	default:
		return model.ErrorKindOther
	}
}
