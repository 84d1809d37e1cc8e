// internal/driver/psu/command.go
package psu

import (
	"fmt"
	"strings"

	"lab-rig-service/internal/driver/base"
)

// SCPI command set
const (
	cmdSelectChannel = "INST:NSEL %d"
	cmdSetVoltage    = "VOLT %s"
	cmdSetCurrent    = "CURR %s"
	cmdMeasVoltage   = "MEAS:VOLT?"
	cmdMeasCurrent   = "MEAS:CURR?"
	cmdOutputOn      = "OUTP ON"
	cmdOutputOff     = "OUTP OFF"
	cmdOutputQuery   = "OUTP?"
	cmdIdentify      = "*IDN?"
)

func selectChannel(channel int) string {
	return fmt.Sprintf(cmdSelectChannel, channel)
}

func setVoltage(volts float64) string {
	return fmt.Sprintf(cmdSetVoltage, base.FormatDecimal(volts))
}

func setCurrent(amps float64) string {
	return fmt.Sprintf(cmdSetCurrent, base.FormatDecimal(amps))
}

// isQuery reports whether the supply answers the command
func isQuery(command string) bool {
	return strings.Contains(command, "?")
}
