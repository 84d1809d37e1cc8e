// Package base holds the serial plumbing shared by every rig instrument driver.
package base

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/protocol"
	"lab-rig-service/internal/utils"
	"lab-rig-service/pkg/instrument"
)

// Config is what a driver needs to open its link
type Config struct {
	Kind    model.InstrumentKind
	Serial  protocol.SerialConfig
	Channel int
	Opener  protocol.Opener
}

// Driver owns one transport and serializes every exchange on it
type Driver struct {
	kind         model.InstrumentKind
	transport    protocol.Transport
	logger       *utils.InstrumentLogger
	health       *instrument.HealthTracker
	capabilities []model.Capability
	mutex        sync.Mutex
	terminator   string
	settle       time.Duration
}

// Connect opens the instrument's serial link. Any failure is a *instrument.ConnectionError.
func Connect(ctx context.Context, cfg Config, capabilities []model.Capability, logger *zap.Logger) (*Driver, error) {
	il := utils.NewInstrumentLogger(logger, string(cfg.Kind), cfg.Serial.Port)

	transport, err := protocol.CreateTransport(cfg.Serial, cfg.Opener, il.Logger)
	if err != nil {
		il.LogConnection("create", err)
		return nil, &instrument.ConnectionError{Instrument: cfg.Kind, Port: cfg.Serial.Port, Err: err}
	}

	if err := transport.Open(ctx); err != nil {
		il.LogConnection("open", err)
		return nil, &instrument.ConnectionError{Instrument: cfg.Kind, Port: cfg.Serial.Port, Err: err}
	}
	il.LogConnection("open", nil)

	serialConfig := transport.GetConfig()

	return &Driver{
		kind:         cfg.Kind,
		transport:    transport,
		logger:       il,
		health:       instrument.NewHealthTracker(),
		capabilities: capabilities,
		terminator:   serialConfig.Terminator,
		settle:       serialConfig.SettleDelay,
	}, nil
}

// Kind returns the instrument kind
func (d *Driver) Kind() model.InstrumentKind {
	return d.kind
}

// Port returns the serial port name
func (d *Driver) Port() string {
	return d.transport.GetConfig().Port
}

// GetCapabilities returns the capability set
func (d *Driver) GetCapabilities() []model.Capability {
	return d.capabilities
}

// GetHealthMetrics returns a snapshot of the health metrics
func (d *Driver) GetHealthMetrics() instrument.HealthMetrics {
	return d.health.Snapshot()
}

// Logger returns the instrument logger
func (d *Driver) Logger() *utils.InstrumentLogger {
	return d.logger
}

// Stats returns transport statistics
func (d *Driver) Stats() protocol.ProtocolStats {
	return d.transport.Stats()
}

// Query builds a command that waits for a reply line
func (d *Driver) Query(text string) protocol.Command {
	return protocol.Query(text, d.terminator, d.settle)
}

// Set builds a command that is not answered
func (d *Driver) Set(text string) protocol.Command {
	return protocol.Set(text, d.terminator, d.settle)
}

// Exchange sends the commands in order without letting another caller interleave and
// returns the reply to the last one.
func (d *Driver) Exchange(ctx context.Context, commands ...protocol.Command) (string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	startTime := time.Now()
	reply := ""

	for _, cmd := range commands {
		cmdStart := time.Now()

		var err error
		reply, err = d.transport.Send(ctx, cmd)
		d.logger.LogCommand(cmd.Text, reply, time.Since(cmdStart), err)

		if err != nil {
			d.health.Record(err, time.Since(startTime))
			return "", fmt.Errorf("%s %q: %w", d.kind, cmd.Text, err)
		}
	}

	d.health.Record(nil, time.Since(startTime))
	return reply, nil
}

// ReadNumber runs the exchange and parses the reply as a float. An empty or malformed
// reply is a *instrument.ProtocolError.
func (d *Driver) ReadNumber(ctx context.Context, field model.Field, unit string, parse func(string) (float64, error), commands ...protocol.Command) (model.Reading, error) {
	reply, err := d.Exchange(ctx, commands...)
	if err != nil {
		return model.Reading{}, err
	}

	last := commands[len(commands)-1].Text
	if reply == "" {
		return model.Reading{}, d.ProtocolError(last, reply, "empty reply", nil)
	}

	if parse == nil {
		parse = ParseFloat
	}

	value, err := parse(reply)
	if err != nil {
		return model.Reading{}, d.ProtocolError(last, reply, "malformed number", err)
	}

	return model.NumberReading(d.kind, field, value, unit, reply), nil
}

// ProtocolError builds a protocol error for this instrument
func (d *Driver) ProtocolError(command, reply, reason string, err error) error {
	return &instrument.ProtocolError{
		Instrument: d.kind,
		Command:    command,
		Reply:      reply,
		Reason:     reason,
		Err:        err,
	}
}

// ValidationError builds a validation error for this instrument
func (d *Driver) ValidationError(field string, value float64, reason string) error {
	return &instrument.ValidationError{
		Instrument: d.kind,
		Field:      field,
		Value:      value,
		Reason:     reason,
	}
}

// Close closes the transport
func (d *Driver) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	err := d.transport.Close()
	d.logger.LogConnection("close", err)

	metrics := d.health.Snapshot()
	d.logger.LogHealth(metrics.HealthScore, metrics.ResponseTime, metrics.SuccessRate)
	return err
}

// ParseFloat parses a whole reply as a float
func ParseFloat(reply string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(reply), 64)
}

// ParseFirstField parses the first whitespace-separated field as a float
func ParseFirstField(reply string) (float64, error) {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no fields")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// FormatDecimal renders a value with at least one decimal place, e.g. 5 as "5.0"
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
