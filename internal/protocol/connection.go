// internal/protocol/connection.go
package protocol

import "time"

// Line terminators used by the rig's instruments
const (
	TerminatorCR = "\r"
	TerminatorLF = "\n"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	StopBits    int           `json:"stop_bits"`
	Parity      string        `json:"parity"`
	Timeout     time.Duration `json:"timeout"`
	SettleDelay time.Duration `json:"settle_delay"`
	Terminator  string        `json:"terminator"`
}

// DefaultSerialConfig returns 9600 8-N-1 with a one second read timeout
func DefaultSerialConfig(port string) SerialConfig {
	return SerialConfig{
		Port:        port,
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      "none",
		Timeout:     time.Second,
		SettleDelay: 100 * time.Millisecond,
		Terminator:  TerminatorCR,
	}
}
