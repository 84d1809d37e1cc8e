// internal/protocol/serial_connection.go
package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	readChunkSize = 256
	maxLineLength = 4096
)

// Port is the subset of go.bug.st/serial.Port the transport uses
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// Opener opens a named port with the given mode
type Opener func(name string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real serial device
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// SerialConnection implements Transport for serial connections
type SerialConnection struct {
	config  *SerialConfig
	opener  Opener
	port    Port
	logger  *zap.Logger
	mutex   sync.Mutex
	isOpen  bool
	pending []byte
	stats   ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, opener Opener, logger *zap.Logger) *SerialConnection {
	if opener == nil {
		opener = OpenSerial
	}

	return &SerialConnection{
		config: config,
		opener: opener,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Mode translates the configuration into a go.bug.st/serial mode
func (sc *SerialConnection) Mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: serial.OneStopBit,
	}

	if sc.config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch sc.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
		zap.Int("stop_bits", sc.config.StopBits),
		zap.Duration("timeout", sc.config.Timeout),
	)

	port, err := sc.opener(sc.config.Port, sc.Mode())
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	if err := port.SetReadTimeout(sc.config.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.isOpen = true
	sc.pending = nil
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()

	sc.port = nil
	sc.isOpen = false
	sc.pending = nil
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.isOpen && sc.port != nil
}

// Send writes one command and collects its reply line. The lock is held for the whole
// exchange so replies cannot be attributed to another caller's command.
func (sc *SerialConnection) Send(ctx context.Context, cmd Command) (string, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return "", ErrNotOpen
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	startTime := time.Now()
	frame := cmd.Frame()

	n, err := sc.port.Write(frame)
	if err != nil {
		sc.stats.ErrorCount++
		sc.logger.Error("Serial write failed", zap.String("command", cmd.Text), zap.Error(err))
		return "", fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(frame) {
		sc.stats.ErrorCount++
		return "", fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(frame))
	}
	sc.stats.BytesWritten += int64(n)

	if cmd.SettleDelay > 0 {
		timer := time.NewTimer(cmd.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}

	line := ""
	if cmd.ExpectReply {
		raw, err := sc.readLine()
		if err != nil {
			sc.stats.ErrorCount++
			sc.logger.Error("Serial read failed", zap.String("command", cmd.Text), zap.Error(err))
			return "", err
		}
		line = decodeLine(raw)
		if line == "" {
			sc.stats.EmptyReplies++
		}
	}

	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.updateAverageLatency(time.Since(startTime))

	sc.logger.Debug("Serial exchange completed",
		zap.String("command", cmd.Text),
		zap.String("reply", line),
	)
	return line, nil
}

// readLine returns bytes up to and including the first '\n'. A read that times out
// returns whatever has arrived so far. Bytes after the newline stay buffered.
func (sc *SerialConnection) readLine() ([]byte, error) {
	buffer := make([]byte, readChunkSize)

	for {
		if idx := bytes.IndexByte(sc.pending, '\n'); idx >= 0 {
			line := sc.pending[:idx+1]
			sc.pending = append([]byte(nil), sc.pending[idx+1:]...)
			return line, nil
		}

		if len(sc.pending) >= maxLineLength {
			return sc.takePending(), nil
		}

		n, err := sc.port.Read(buffer)
		if n > 0 {
			sc.stats.BytesRead += int64(n)
			sc.pending = append(sc.pending, buffer[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return sc.takePending(), nil
			}
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			// read timeout
			return sc.takePending(), nil
		}
	}
}

func (sc *SerialConnection) takePending() []byte {
	line := sc.pending
	sc.pending = nil
	return line
}

// Stats returns a copy of the protocol statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.stats
}

// GetConfig returns the serial configuration
func (sc *SerialConnection) GetConfig() SerialConfig {
	return *sc.config
}

// updateAverageLatency updates the running average latency
func (sc *SerialConnection) updateAverageLatency(newLatency time.Duration) {
	if sc.stats.AverageLatency == 0 {
		sc.stats.AverageLatency = newLatency
	} else {
		sc.stats.AverageLatency = (sc.stats.AverageLatency + newLatency) / 2
	}
}

// decodeLine drops invalid UTF-8 sequences and surrounding whitespace
func decodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}
