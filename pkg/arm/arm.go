// Package arm drives the six-joint servo arm, including the gripper.
//
// Joint targets are set instantly; the physical sweep happens over ticks,
// bounded to the configured movement speed in degrees per tick so the arm
// never slews faster than the servos can follow.
package arm

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
)

// Joint identifies one servo on the arm.
type Joint int

const (
	Base Joint = iota
	Shoulder
	Elbow
	WristRotate
	WristTilt
	Gripper

	NumJoints = 6
)

// String returns the joint name used on status lines.
func (j Joint) String() string {
	switch j {
	case Base:
		return "base"
	case Shoulder:
		return "shoulder"
	case Elbow:
		return "elbow"
	case WristRotate:
		return "wrist_rotate"
	case WristTilt:
		return "wrist_tilt"
	case Gripper:
		return "gripper"
	}
	return "unknown"
}

// Gripper travel endpoints.
const (
	gripperOpenAngle   = 180
	gripperClosedAngle = 0
)

// Posture guard limits: the elbow must not fold past elbowFoldLimit while
// the shoulder is raised beyond shoulderRaisedLimit, or the forearm hits
// the chassis. Evaluated against current angles, not targets.
const (
	elbowFoldLimit      = 20
	shoulderRaisedLimit = 150
)

var (
	// ErrDisabled is returned when the arm is disabled.
	ErrDisabled = errors.New("arm disabled")

	// ErrAngleRange is returned for targets outside [0, 180].
	ErrAngleRange = errors.New("angle out of range")

	// ErrUnsafePosture is returned when the posture guard forbids the
	// combination of the requested target and the current joint angles.
	ErrUnsafePosture = errors.New("unsafe posture")

	// ErrNoSuchJoint is returned for joint indexes outside 0..5.
	ErrNoSuchJoint = errors.New("no such joint")
)

// Writer receives the swept joint angle each tick. Implementations must
// accept angles in [0, 180].
type Writer interface {
	WriteJoint(j Joint, angle int)
}

// JointState is the tracked condition of a single servo.
type JointState struct {
	Current    int
	Target     int
	Moving     bool
	LastUpdate time.Time
}

// Arm owns the six joint states, the movement speed and the preset
// sequencer.
type Arm struct {
	clock  clockwork.Clock
	writer Writer
	log    *slog.Logger

	joints  [NumJoints]JointState
	speed   int // degrees per tick, 1..5
	enabled bool

	// pending holds the remaining steps of a sequenced preset; the head
	// step's targets are active and the next step starts once every joint
	// of the head step has arrived.
	pending []presetStep
}

type presetStep map[Joint]int

// New returns an enabled arm with every joint at its boot angle.
func New(writer Writer, clock clockwork.Clock, log *slog.Logger) *Arm {
	a := &Arm{
		clock:   clock,
		writer:  writer,
		log:     log,
		speed:   config.ServoSpeedNormal,
		enabled: true,
	}
	for j, angle := range homePose {
		a.joints[j] = JointState{Current: angle, Target: angle, LastUpdate: clock.Now()}
	}
	return a
}

// Tick advances every moving joint toward its target by at most the
// movement speed, without overshooting, and steps the preset sequencer.
func (a *Arm) Tick() {
	if !a.enabled {
		return
	}

	for j := Joint(0); j < NumJoints; j++ {
		s := &a.joints[j]
		if s.Current == s.Target {
			s.Moving = false
			continue
		}
		diff := s.Target - s.Current
		if absInt(diff) <= a.speed {
			s.Current = s.Target
			s.Moving = false
		} else if diff > 0 {
			s.Current += a.speed
			s.Moving = true
		} else {
			s.Current -= a.speed
			s.Moving = true
		}
		s.LastUpdate = a.clock.Now()
		a.writer.WriteJoint(j, s.Current)
	}

	a.advanceSequence()
}

// SetAngle sets one joint's target. The call is a no-op returning an error
// when the arm is disabled, the angle is out of range or the posture guard
// forbids it; the previous target stays in place.
func (a *Arm) SetAngle(j Joint, angle int) error {
	if j < 0 || j >= NumJoints {
		return ErrNoSuchJoint
	}
	if !a.enabled {
		return ErrDisabled
	}
	if angle < config.MinAngle || angle > config.MaxAngle {
		return ErrAngleRange
	}
	if err := a.checkPosture(j, angle); err != nil {
		return err
	}
	a.joints[j].Target = angle
	a.log.Debug("joint target set", "joint", j.String(), "angle", angle)
	return nil
}

// checkPosture rejects targets that would drive the arm into itself. The
// guard reads current angles so an in-flight transition cannot be used to
// sneak past it.
func (a *Arm) checkPosture(j Joint, angle int) error {
	switch j {
	case Elbow:
		if angle < elbowFoldLimit && a.joints[Shoulder].Current > shoulderRaisedLimit {
			return ErrUnsafePosture
		}
	case Shoulder:
		if angle > shoulderRaisedLimit && a.joints[Elbow].Current < elbowFoldLimit {
			return ErrUnsafePosture
		}
	}
	return nil
}

// Angle returns a joint's current angle, or -1 for a bad index.
func (a *Arm) Angle(j Joint) int {
	if j < 0 || j >= NumJoints {
		return -1
	}
	return a.joints[j].Current
}

// Target returns a joint's target angle, or -1 for a bad index.
func (a *Arm) Target(j Joint) int {
	if j < 0 || j >= NumJoints {
		return -1
	}
	return a.joints[j].Target
}

// Moving reports whether any joint is still sweeping.
func (a *Arm) Moving() bool {
	for _, s := range a.joints {
		if s.Moving {
			return true
		}
	}
	return false
}

// OpenGripper sweeps the gripper fully open.
func (a *Arm) OpenGripper() {
	a.log.Debug("opening gripper")
	if err := a.SetAngle(Gripper, gripperOpenAngle); err != nil {
		a.log.Warn("gripper open rejected", "error", err)
	}
}

// CloseGripper sweeps the gripper fully closed.
func (a *Arm) CloseGripper() {
	a.log.Debug("closing gripper")
	if err := a.SetAngle(Gripper, gripperClosedAngle); err != nil {
		a.log.Warn("gripper close rejected", "error", err)
	}
}

// SetMovementSpeed sets the per-tick sweep rate, clamped to [1, 5] degrees.
func (a *Arm) SetMovementSpeed(speed int) {
	if speed < config.ServoSpeedSlow {
		speed = config.ServoSpeedSlow
	}
	if speed > config.ServoSpeedFast {
		speed = config.ServoSpeedFast
	}
	a.speed = speed
	a.log.Info("servo speed set", "degrees_per_tick", speed)
}

// MovementSpeed returns the per-tick sweep rate.
func (a *Arm) MovementSpeed() int {
	return a.speed
}

// StopAll freezes every joint where it currently is: targets are pulled to
// the current angles and any preset sequence is abandoned.
func (a *Arm) StopAll() {
	for j := range a.joints {
		a.joints[j].Target = a.joints[j].Current
		a.joints[j].Moving = false
	}
	a.pending = nil
	a.log.Debug("all servo movement stopped")
}

// Enable re-enables joint movement.
func (a *Arm) Enable() {
	a.enabled = true
	a.log.Info("servo arm enabled")
}

// Disable rejects further targets and freezes the sweep. Current targets
// are kept and resume on Enable.
func (a *Arm) Disable() {
	a.enabled = false
	a.log.Info("servo arm disabled")
}

// Enabled reports whether the arm accepts targets.
func (a *Arm) Enabled() bool {
	return a.enabled
}

// EmergencyStop freezes all joints in place and disables the arm. Unlike
// StopAll it does not return to any default posture.
func (a *Arm) EmergencyStop() {
	a.StopAll()
	a.enabled = false
	a.log.Warn("servo arm emergency stop")
}

// Status returns a flat, tokenizable summary of the arm.
func (a *Arm) Status() string {
	enabled := "NO"
	if a.enabled {
		enabled = "YES"
	}
	return fmt.Sprintf("Servos:%d,%d,%d,%d,%d,%d|Speed:%d|Enabled:%s",
		a.joints[Base].Current, a.joints[Shoulder].Current,
		a.joints[Elbow].Current, a.joints[WristRotate].Current,
		a.joints[WristTilt].Current, a.joints[Gripper].Current,
		a.speed, enabled)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
