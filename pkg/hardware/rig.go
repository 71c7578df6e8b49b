package hardware

import (
	"github.com/roverlabs/go-rover/pkg/arm"
	"github.com/roverlabs/go-rover/pkg/motor"
	"github.com/roverlabs/go-rover/pkg/sensors"
)

// Rig is the full hardware binding the control loop needs: wheel
// outputs, servo outputs and both rangefinders.
type Rig interface {
	motor.Driver
	arm.Writer
	Rangefinder(p sensors.Position) sensors.Rangefinder
	Close() error
}

var (
	_ Rig = (*Board)(nil)
	_ Rig = (*Sim)(nil)
)
