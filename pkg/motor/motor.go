// Package motor drives the four wheel motors of the rover chassis.
//
// All speeds are signed percentages in [-100, 100]. The controller owns the
// per-wheel state; hardware access goes through the Driver interface so the
// daemon can wire real PWM outputs and tests can wire a recorder.
package motor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
)

// Wheel identifies one of the four chassis motors.
type Wheel int

const (
	FrontLeft Wheel = iota
	RearLeft
	FrontRight
	RearRight

	NumWheels = 4
)

// String returns the short wheel label used on status lines.
func (w Wheel) String() string {
	switch w {
	case FrontLeft:
		return "FL"
	case RearLeft:
		return "RL"
	case FrontRight:
		return "FR"
	case RearRight:
		return "RR"
	}
	return "??"
}

// directions corrects for mirrored motor wiring: the right side runs
// reversed relative to the left.
var directions = [NumWheels]int{1, 1, -1, -1}

// Driver receives the final per-wheel output. Implementations must accept
// speeds in [-100, 100]; zero means stop.
type Driver interface {
	SetWheel(w Wheel, speed int)
}

// State is the tracked condition of a single wheel motor.
type State struct {
	Speed      int // applied output, -100..100
	Running    bool
	LastUpdate time.Time
}

// Controller owns the four wheel states, the global speed multiplier and
// the command staleness watchdog. It never consults collision avoidance:
// motion requests are validated upstream by the dispatcher.
type Controller struct {
	clock  clockwork.Clock
	driver Driver
	log    *slog.Logger

	wheels        [NumWheels]State
	multiplier    int
	lastCommand   time.Time
	safetyStopped bool
}

// New returns a stopped controller with the default speed multiplier.
func New(driver Driver, clock clockwork.Clock, log *slog.Logger) *Controller {
	c := &Controller{
		clock:      clock,
		driver:     driver,
		log:        log,
		multiplier: config.DefaultSpeedMultiplier,
	}
	c.lastCommand = clock.Now()
	return c
}

// Tick runs the staleness watchdog. If no motion command arrived within
// config.CommandTimeout, all wheels are zeroed and the safety-stop flag is
// raised until the next valid motion command.
func (c *Controller) Tick() {
	if c.safetyStopped {
		return
	}
	if c.clock.Since(c.lastCommand) > config.CommandTimeout {
		c.log.Warn("motor command timeout, stopping all wheels")
		c.zeroAll()
		c.safetyStopped = true
	}
}

// Forward drives all wheels forward at the requested speed.
func (c *Controller) Forward(speed int) {
	speed = clampSpeed(speed)
	c.log.Debug("drive forward", "speed", speed)
	for w := Wheel(0); w < NumWheels; w++ {
		c.setWheel(w, speed*directions[w])
	}
	c.noteCommand()
}

// Backward drives all wheels in reverse at the requested speed.
func (c *Controller) Backward(speed int) {
	speed = clampSpeed(speed)
	c.log.Debug("drive backward", "speed", speed)
	for w := Wheel(0); w < NumWheels; w++ {
		c.setWheel(w, -speed*directions[w])
	}
	c.noteCommand()
}

// TurnLeft spins the chassis counter-clockwise in place.
func (c *Controller) TurnLeft(speed int) {
	speed = clampSpeed(speed)
	c.log.Debug("turn left", "speed", speed)
	c.setWheel(FrontLeft, -speed*directions[FrontLeft])
	c.setWheel(RearLeft, -speed*directions[RearLeft])
	c.setWheel(FrontRight, speed*directions[FrontRight])
	c.setWheel(RearRight, speed*directions[RearRight])
	c.noteCommand()
}

// TurnRight spins the chassis clockwise in place.
func (c *Controller) TurnRight(speed int) {
	speed = clampSpeed(speed)
	c.log.Debug("turn right", "speed", speed)
	c.setWheel(FrontLeft, speed*directions[FrontLeft])
	c.setWheel(RearLeft, speed*directions[RearLeft])
	c.setWheel(FrontRight, -speed*directions[FrontRight])
	c.setWheel(RearRight, -speed*directions[RearRight])
	c.noteCommand()
}

// TankDrive sets the left and right wheel pairs independently for
// differential steering.
func (c *Controller) TankDrive(left, right int) {
	left = clampSpeed(left)
	right = clampSpeed(right)
	c.log.Debug("tank drive", "left", left, "right", right)
	c.setWheel(FrontLeft, left*directions[FrontLeft])
	c.setWheel(RearLeft, left*directions[RearLeft])
	c.setWheel(FrontRight, right*directions[FrontRight])
	c.setWheel(RearRight, right*directions[RearRight])
	c.noteCommand()
}

// StopAll zeroes every wheel. It counts as a motion command: the staleness
// watchdog and safety-stop flag are both reset.
func (c *Controller) StopAll() {
	c.zeroAll()
	c.noteCommand()
	c.log.Debug("all motors stopped")
}

// EmergencyStop zeroes every wheel unconditionally and raises the
// safety-stop flag. Idempotent.
func (c *Controller) EmergencyStop() {
	c.zeroAll()
	c.safetyStopped = true
	c.log.Warn("motor emergency stop")
}

// SetGlobalSpeed sets the global multiplier, clamped to [20, 100].
func (c *Controller) SetGlobalSpeed(percent int) {
	c.multiplier = clamp(percent, config.MinSpeedMultiplier, config.MaxSpeedMultiplier)
	c.log.Info("global speed set", "percent", c.multiplier)
}

// GlobalSpeed returns the active global multiplier.
func (c *Controller) GlobalSpeed() int {
	return c.multiplier
}

// WheelSpeed returns the applied output for one wheel.
func (c *Controller) WheelSpeed(w Wheel) int {
	if w < 0 || w >= NumWheels {
		return 0
	}
	return c.wheels[w].Speed
}

// AnyRunning reports whether any wheel has nonzero output.
func (c *Controller) AnyRunning() bool {
	for _, s := range c.wheels {
		if s.Running {
			return true
		}
	}
	return false
}

// SafetyStopped reports whether the staleness watchdog or an emergency
// stop has halted the chassis.
func (c *Controller) SafetyStopped() bool {
	return c.safetyStopped
}

// Status returns a flat, tokenizable summary of the chassis.
func (c *Controller) Status() string {
	safety := "OK"
	if c.safetyStopped {
		safety = "ACTIVE"
	}
	return fmt.Sprintf("FL:%d,RL:%d,FR:%d,RR:%d|Speed:%d|Safety:%s",
		c.wheels[FrontLeft].Speed, c.wheels[RearLeft].Speed,
		c.wheels[FrontRight].Speed, c.wheels[RearRight].Speed,
		c.multiplier, safety)
}

// setWheel applies the multiplier, clamp and stall-floor snap, then hands
// the result to the driver.
func (c *Controller) setWheel(w Wheel, speed int) {
	adjusted := clampSpeed(speed * c.multiplier / 100)

	// Motors stall below the threshold: snap up rather than hum.
	if adjusted != 0 && abs(adjusted) < config.MinSpeedThreshold {
		if adjusted > 0 {
			adjusted = config.MinSpeedThreshold
		} else {
			adjusted = -config.MinSpeedThreshold
		}
	}

	c.wheels[w] = State{
		Speed:      adjusted,
		Running:    adjusted != 0,
		LastUpdate: c.clock.Now(),
	}
	c.driver.SetWheel(w, adjusted)
}

func (c *Controller) zeroAll() {
	for w := Wheel(0); w < NumWheels; w++ {
		c.wheels[w] = State{LastUpdate: c.clock.Now()}
		c.driver.SetWheel(w, 0)
	}
}

func (c *Controller) noteCommand() {
	c.lastCommand = c.clock.Now()
	c.safetyStopped = false
}

func clampSpeed(speed int) int {
	return clamp(speed, -config.MaxSpeed, config.MaxSpeed)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
