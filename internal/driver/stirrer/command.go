// internal/driver/stirrer/command.go
package stirrer

import (
	"fmt"
	"strconv"
)

// Channel 4 (motor) command set
const (
	cmdSetSpeed    = "OUT_SP_4 %s"
	cmdReadSpeed   = "IN_PV_4"
	cmdReadSetting = "IN_SP_4"
	cmdStart       = "START_4"
	cmdStop        = "STOP_4"
)

const (
	minSpeed = 0
	maxSpeed = 1500
)

func setSpeed(rpm float64) string {
	return fmt.Sprintf(cmdSetSpeed, strconv.FormatFloat(rpm, 'f', -1, 64))
}
