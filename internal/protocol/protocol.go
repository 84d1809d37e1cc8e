// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotOpen is returned when a command is sent on a closed transport
	ErrNotOpen = errors.New("serial port not open")
)

// Command is one outbound line and how to collect its answer
type Command struct {
	Text        string
	Terminator  string
	SettleDelay time.Duration
	ExpectReply bool
}

// Query builds a command that waits for a one-line reply
func Query(text, terminator string, settle time.Duration) Command {
	return Command{Text: text, Terminator: terminator, SettleDelay: settle, ExpectReply: true}
}

// Set builds a command that produces no reply
func Set(text, terminator string, settle time.Duration) Command {
	return Command{Text: text, Terminator: terminator, SettleDelay: settle}
}

// Frame returns the bytes put on the wire
func (c Command) Frame() []byte {
	return []byte(c.Text + c.Terminator)
}

// Transport is a line-oriented duplex channel to one instrument
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Send writes the command, waits the settle delay and returns one trimmed reply line.
	// A read timeout yields an empty line, not an error.
	Send(ctx context.Context, cmd Command) (string, error)

	// Diagnostics
	Stats() ProtocolStats
	GetConfig() SerialConfig
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	EmptyReplies   int64         `json:"empty_replies"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}
