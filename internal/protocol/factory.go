// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

var validBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// CreateTransport validates the configuration, fills defaults and builds a serial transport.
// A nil opener means the real go.bug.st/serial port.
func CreateTransport(config SerialConfig, opener Opener, logger *zap.Logger) (Transport, error) {
	applyDefaults(&config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	logger.Info("Creating serial transport",
		zap.String("port", config.Port),
		zap.Int("baud_rate", config.BaudRate),
		zap.Int("stop_bits", config.StopBits),
		zap.String("parity", config.Parity),
	)

	return NewSerialConnection(&config, opener, logger), nil
}

func applyDefaults(config *SerialConfig) {
	defaults := DefaultSerialConfig(config.Port)

	if config.BaudRate == 0 {
		config.BaudRate = defaults.BaudRate
	}
	if config.DataBits == 0 {
		config.DataBits = defaults.DataBits
	}
	if config.StopBits == 0 {
		config.StopBits = defaults.StopBits
	}
	if config.Parity == "" {
		config.Parity = defaults.Parity
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	if config.Terminator == "" {
		config.Terminator = defaults.Terminator
	}
}

// ValidateConfig validates serial configuration
func ValidateConfig(config SerialConfig) error {
	if config.Port == "" {
		return fmt.Errorf("serial port is required")
	}

	valid := false
	for _, rate := range validBaudRates {
		if config.BaudRate == rate {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid baud rate: %d", config.BaudRate)
	}

	if config.DataBits < 5 || config.DataBits > 8 {
		return fmt.Errorf("invalid data bits: %d", config.DataBits)
	}

	if config.StopBits != 1 && config.StopBits != 2 {
		return fmt.Errorf("invalid stop bits: %d", config.StopBits)
	}

	switch config.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return fmt.Errorf("invalid parity: %s", config.Parity)
	}

	if config.Timeout > time.Minute {
		return fmt.Errorf("read timeout too long: %s", config.Timeout)
	}

	return nil
}
