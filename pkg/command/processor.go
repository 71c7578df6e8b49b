package command

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
	"github.com/roverlabs/go-rover/pkg/arm"
)

var (
	// ErrQueueFull is returned when the inbound queue has no room.
	ErrQueueFull = errors.New("command queue full")

	// ErrLineTooLong is returned for lines over the protocol bound.
	ErrLineTooLong = errors.New("command line too long")
)

// Drive is the locomotion surface the processor commands.
type Drive interface {
	Forward(speed int)
	Backward(speed int)
	TurnLeft(speed int)
	TurnRight(speed int)
	TankDrive(left, right int)
	StopAll()
	EmergencyStop()
	SetGlobalSpeed(percent int)
	GlobalSpeed() int
	Status() string
}

// ArmControl is the servo arm surface the processor commands.
type ArmControl interface {
	SetAngle(j arm.Joint, angle int) error
	OpenGripper()
	CloseGripper()
	MoveToHome() error
	ExecutePreset(id int) error
	SetMovementSpeed(speed int)
	Enable()
	Disable()
	StopAll()
	EmergencyStop()
	Status() string
}

// SensorControl is the rangefinder surface the processor commands.
type SensorControl interface {
	Enable()
	Disable()
	SetThresholds(collision, warning float64)
	Thresholds() (collision, warning float64)
	StatusLine() string
	DetailedStatus() string
}

// Guard gates locomotion commands through collision avoidance.
type Guard interface {
	IsMovementSafe(command string) bool
	AdjustSpeed(requested int, forward bool) int
	SetAggressiveness(level int) error
	Enable()
	Disable()
	Status() string
}

// System tracks the firmware-wide flags and status line.
type System interface {
	SetEmergencyStop(active bool)
	EmergencyStopped() bool
	SetDebug(enabled bool)
	Reset()
	Status() string
}

// Responder receives the response line for each processed command.
type Responder interface {
	Send(line string)
}

// Processor queues inbound lines and dispatches a bounded number per
// tick so one chatty client cannot starve the control loop.
type Processor struct {
	clock clockwork.Clock
	log   *slog.Logger

	drive   Drive
	arm     ArmControl
	sensors SensorControl
	guard   Guard
	system  System
	out     Responder

	queue [config.QueueCapacity]Command
	head  int
	count int
}

// New wires a processor to its subsystems.
func New(drive Drive, armCtl ArmControl, sensorCtl SensorControl, guard Guard, system System, out Responder, clock clockwork.Clock, log *slog.Logger) *Processor {
	return &Processor{
		clock:   clock,
		log:     log,
		drive:   drive,
		arm:     armCtl,
		sensors: sensorCtl,
		guard:   guard,
		system:  system,
		out:     out,
	}
}

// Enqueue parses a line and appends it to the queue. Blank lines are
// dropped silently; an oversized line or a full queue is reported on the
// response stream as well as returned.
func (p *Processor) Enqueue(line string) error {
	if len(line) > config.MaxLineLength {
		p.out.Send("ERROR_LINE_TOO_LONG")
		return ErrLineTooLong
	}
	cmd := Parse(line)
	if cmd.Type == "" {
		return nil
	}
	cmd.Timestamp = p.clock.Now()
	if p.count == len(p.queue) {
		p.out.Send("ERROR_QUEUE_FULL")
		p.log.Warn("command queue full", "dropped", cmd.Type)
		return ErrQueueFull
	}
	p.queue[(p.head+p.count)%len(p.queue)] = cmd
	p.count++
	return nil
}

// Pending returns the number of queued commands.
func (p *Processor) Pending() int {
	return p.count
}

// Tick dispatches up to the per-tick budget of queued commands.
func (p *Processor) Tick() {
	for i := 0; i < config.MaxCommandsPerTick && p.count > 0; i++ {
		cmd := p.queue[p.head]
		p.head = (p.head + 1) % len(p.queue)
		p.count--
		p.dispatch(cmd)
	}
}

func (p *Processor) dispatch(cmd Command) {
	p.log.Debug("dispatching command", "type", cmd.Type,
		"value1", cmd.Value1, "value2", cmd.Value2,
		"queued_ms", p.clock.Now().Sub(cmd.Timestamp).Milliseconds())

	if isLocomotion(cmd.Type) {
		p.dispatchLocomotion(cmd)
		return
	}
	if isArm(cmd.Type) {
		p.dispatchArm(cmd)
		return
	}
	p.dispatchSystem(cmd)
}

func isLocomotion(typ string) bool {
	switch typ {
	case "FORWARD", "BACKWARD", "LEFT", "RIGHT", "TANK", "STOP":
		return true
	}
	return false
}

func isArm(typ string) bool {
	switch typ {
	case "SERVO", "ARM_PRESET", "ARM_HOME", "ARM_STOP",
		"GRIPPER_OPEN", "GRIPPER_CLOSE", "SERVO_SPEED",
		"ARM_ENABLE", "ARM_DISABLE":
		return true
	}
	_, ok := servoJoint(typ)
	return ok
}

// servoJoint decodes the SERVO1..SERVO6 per-joint command types. Joints
// are numbered from 1 on the wire.
func servoJoint(typ string) (arm.Joint, bool) {
	if len(typ) == len("SERVO")+1 && strings.HasPrefix(typ, "SERVO") {
		if d := typ[len("SERVO")]; d >= '1' && d <= '6' {
			return arm.Joint(d - '1'), true
		}
	}
	return 0, false
}

func (p *Processor) dispatchLocomotion(cmd Command) {
	// STOP always runs, even under an emergency latch.
	if cmd.Type == "STOP" {
		p.drive.StopAll()
		p.arm.StopAll()
		p.ok(cmd)
		return
	}
	if p.system.EmergencyStopped() {
		p.out.Send("ERROR_EMERGENCY_STOP_ACTIVE")
		return
	}
	if !p.guard.IsMovementSafe(cmd.Type) {
		p.out.Send("BLOCKED_BY_COLLISION_AVOIDANCE:" + cmd.Type)
		p.fail(cmd)
		p.log.Warn("movement blocked", "type", cmd.Type)
		return
	}

	speed := cmd.Value1

	switch cmd.Type {
	case "FORWARD":
		p.drive.Forward(p.guard.AdjustSpeed(speed, true))
	case "BACKWARD":
		p.drive.Backward(p.guard.AdjustSpeed(speed, false))
	case "LEFT":
		p.drive.TurnLeft(speed)
	case "RIGHT":
		p.drive.TurnRight(speed)
	case "TANK":
		p.drive.TankDrive(cmd.Value1, cmd.Value2)
	}
	p.ok(cmd)
}

func (p *Processor) dispatchArm(cmd Command) {
	if p.system.EmergencyStopped() && cmd.Type != "ARM_STOP" {
		p.out.Send("ERROR_EMERGENCY_STOP_ACTIVE")
		return
	}

	if j, ok := servoJoint(cmd.Type); ok {
		if err := p.arm.SetAngle(j, cmd.Value1); err != nil {
			p.log.Warn("arm command rejected", "type", cmd.Type, "error", err)
			p.fail(cmd)
			return
		}
		p.ok(cmd)
		return
	}

	var err error
	switch cmd.Type {
	case "SERVO":
		err = p.arm.SetAngle(arm.Joint(cmd.Value1), cmd.Value2)
	case "ARM_PRESET":
		err = p.arm.ExecutePreset(cmd.Value1)
	case "ARM_HOME":
		err = p.arm.MoveToHome()
	case "ARM_STOP":
		p.arm.StopAll()
	case "GRIPPER_OPEN":
		p.arm.OpenGripper()
	case "GRIPPER_CLOSE":
		p.arm.CloseGripper()
	case "SERVO_SPEED":
		p.arm.SetMovementSpeed(cmd.Value1)
	case "ARM_ENABLE":
		p.arm.Enable()
	case "ARM_DISABLE":
		p.arm.Disable()
	}

	if err != nil {
		p.log.Warn("arm command rejected", "type", cmd.Type, "error", err)
		p.fail(cmd)
		return
	}
	p.ok(cmd)
}

func (p *Processor) dispatchSystem(cmd Command) {
	switch cmd.Type {
	case "PING":
		p.out.Send("PONG")
	case "STATUS":
		p.out.Send(p.statusReport())
	case "SPEED":
		p.drive.SetGlobalSpeed(cmd.Value1)
		p.out.Send(fmt.Sprintf("SPEED_SET:%d", p.drive.GlobalSpeed()))
	case "DEBUG":
		p.system.SetDebug(cmd.Value1 != 0)
		p.ok(cmd)
	case "EMERGENCY":
		p.drive.EmergencyStop()
		p.arm.EmergencyStop()
		p.system.SetEmergencyStop(true)
		p.out.Send("EMERGENCY_STOP_ACTIVATED")
		p.ok(cmd)
	case "RESET":
		p.drive.StopAll()
		p.system.Reset()
		p.arm.Enable()
		p.ok(cmd)
	case "SENSOR_STATUS":
		p.out.Send(p.sensors.StatusLine())
	case "SENSOR_DETAILED":
		p.out.Send(p.sensors.DetailedStatus())
	case "SENSORS_ENABLE":
		p.sensors.Enable()
		p.ok(cmd)
	case "SENSORS_DISABLE":
		p.sensors.Disable()
		p.ok(cmd)
	case "COLLISION_DIST":
		warning := float64(cmd.Value2)
		if cmd.Value2 == 0 {
			// Single-value form keeps the warning distance as is.
			_, warning = p.sensors.Thresholds()
		}
		p.sensors.SetThresholds(float64(cmd.Value1), warning)
		p.ok(cmd)
	case "COLLISION_AGGRESSIVENESS":
		if err := p.guard.SetAggressiveness(cmd.Value1); err != nil {
			p.fail(cmd)
			return
		}
		p.ok(cmd)
	case "COLLISION_ENABLE":
		p.guard.Enable()
		p.ok(cmd)
	case "COLLISION_DISABLE":
		p.guard.Disable()
		p.ok(cmd)
	case "HELP":
		p.out.Send(helpText)
	default:
		p.out.Send("ERROR_UNKNOWN_COMMAND:" + cmd.Type)
		p.log.Warn("unknown command", "type", cmd.Type)
	}
}

func (p *Processor) statusReport() string {
	return fmt.Sprintf("STATUS|%s|%s|%s|%s",
		p.system.Status(), p.drive.Status(), p.arm.Status(), p.guard.Status())
}

func (p *Processor) ok(cmd Command) {
	p.out.Send("OK_" + cmd.Type)
}

func (p *Processor) fail(cmd Command) {
	p.out.Send("ERROR_" + cmd.Type)
}

const helpText = "COMMANDS:" +
	"FORWARD[:speed] BACKWARD[:speed] LEFT[:speed] RIGHT[:speed] TANK:l,r STOP " +
	"SERVO<1-6>:angle ARM_PRESET:n ARM_HOME ARM_STOP GRIPPER_OPEN GRIPPER_CLOSE " +
	"SERVO_SPEED:n ARM_ENABLE ARM_DISABLE " +
	"SPEED:n STATUS PING DEBUG:0|1 EMERGENCY RESET " +
	"SENSOR_STATUS SENSOR_DETAILED SENSORS_ENABLE SENSORS_DISABLE " +
	"COLLISION_DIST:cm COLLISION_AGGRESSIVENESS:n COLLISION_ENABLE COLLISION_DISABLE HELP"
