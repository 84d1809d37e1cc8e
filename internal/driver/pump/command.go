// internal/driver/pump/command.go
package pump

import "fmt"

// Pump head address 1 command set
const (
	cmdSpeed            = "1SP%03d"
	cmdClockwise        = "1RR"
	cmdCounterClockwise = "1RL"
	cmdStart            = "1GO"
	cmdStop             = "1ST"
	cmdInfo             = "1RS"
	cmdStatus           = "1ZY"
)

// Speeds must fit the three-digit field
const (
	minSpeed = 0
	maxSpeed = 999
)

func setSpeed(rpm int) string {
	return fmt.Sprintf(cmdSpeed, rpm)
}

func setDirection(clockwise bool) string {
	if clockwise {
		return cmdClockwise
	}
	return cmdCounterClockwise
}
