// internal/driver/mfc/command.go
package mfc

import (
	"fmt"
	"strconv"
	"strings"

	"lab-rig-service/internal/driver/base"
)

// Unit ID A command set
const (
	cmdSetFlow      = "As%s"
	cmdPoll         = "A"
	cmdStart        = "AC"
	cmdStop         = "AHC"
	cmdTare         = "AV"
	cmdManufacturer = "A??M*"
	cmdFirmware     = "AVE"
)

// Poll record columns: id, pressure (PSIA), temperature, volumetric flow (ccm),
// mass flow (sccm), setpoint, gas, valve state
const (
	fieldUnitID = iota
	fieldPressure
	fieldTemperature
	fieldVolumetric
	fieldMassFlow
	fieldSetpoint
	fieldGas
)

func setFlow(sccm float64) string {
	return fmt.Sprintf(cmdSetFlow, base.FormatDecimal(sccm))
}

// parseMassFlow extracts the sccm column from a poll record
func parseMassFlow(record string) (float64, error) {
	fields := strings.Fields(record)
	if len(fields) <= fieldMassFlow {
		return 0, fmt.Errorf("record has %d fields, want at least %d", len(fields), fieldMassFlow+1)
	}
	return strconv.ParseFloat(fields[fieldMassFlow], 64)
}
