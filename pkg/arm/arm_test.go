package arm

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverlabs/go-rover/internal/log"
)

type recordingWriter struct {
	writes []write
}

type write struct {
	joint Joint
	angle int
}

func (w *recordingWriter) WriteJoint(j Joint, angle int) {
	w.writes = append(w.writes, write{j, angle})
}

func newTestArm(t *testing.T) (*Arm, *recordingWriter) {
	t.Helper()
	w := &recordingWriter{}
	return New(w, clockwork.NewFakeClock(), log.L()), w
}

// settle ticks until no joint is moving and no sequence step remains.
func settle(t *testing.T, a *Arm) {
	t.Helper()
	for i := 0; i < 500; i++ {
		a.Tick()
		if !a.Moving() && !a.SequenceActive() {
			return
		}
	}
	t.Fatal("arm did not settle within 500 ticks")
}

func TestBootPosture(t *testing.T) {
	a, _ := newTestArm(t)

	assert.Equal(t, 90, a.Angle(Base))
	assert.Equal(t, 90, a.Angle(Shoulder))
	assert.Equal(t, 90, a.Angle(Elbow))
	assert.Equal(t, 90, a.Angle(WristRotate))
	assert.Equal(t, 40, a.Angle(WristTilt))
	assert.Equal(t, 90, a.Angle(Gripper))
}

func TestSweepBoundedPerTick(t *testing.T) {
	a, w := newTestArm(t)
	a.SetMovementSpeed(3)

	require.NoError(t, a.SetAngle(Base, 100))

	a.Tick()
	assert.Equal(t, 93, a.Angle(Base))
	a.Tick()
	assert.Equal(t, 96, a.Angle(Base))
	a.Tick()
	assert.Equal(t, 99, a.Angle(Base))

	// Final step is 1 degree, not a full 3: no overshoot.
	a.Tick()
	assert.Equal(t, 100, a.Angle(Base))
	assert.False(t, a.Moving())

	last := w.writes[len(w.writes)-1]
	assert.Equal(t, write{Base, 100}, last)
}

func TestSweepDownward(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(5)

	require.NoError(t, a.SetAngle(Shoulder, 78))
	a.Tick()
	assert.Equal(t, 85, a.Angle(Shoulder))
	a.Tick()
	assert.Equal(t, 80, a.Angle(Shoulder))
	a.Tick()
	assert.Equal(t, 78, a.Angle(Shoulder))
}

func TestAngleRangeRejected(t *testing.T) {
	a, _ := newTestArm(t)

	assert.ErrorIs(t, a.SetAngle(Base, -1), ErrAngleRange)
	assert.ErrorIs(t, a.SetAngle(Base, 181), ErrAngleRange)
	assert.Equal(t, 90, a.Target(Base))
}

func TestMovementSpeedClamped(t *testing.T) {
	a, _ := newTestArm(t)

	a.SetMovementSpeed(0)
	assert.Equal(t, 1, a.MovementSpeed())
	a.SetMovementSpeed(9)
	assert.Equal(t, 5, a.MovementSpeed())
}

func TestPostureGuardElbow(t *testing.T) {
	a, _ := newTestArm(t)

	// Raise the shoulder past the guard limit first.
	require.NoError(t, a.SetAngle(Shoulder, 160))
	settle(t, a)

	err := a.SetAngle(Elbow, 10)
	assert.ErrorIs(t, err, ErrUnsafePosture)
	assert.Equal(t, 90, a.Target(Elbow))
}

func TestPostureGuardShoulder(t *testing.T) {
	a, _ := newTestArm(t)

	require.NoError(t, a.SetAngle(Elbow, 10))
	settle(t, a)

	err := a.SetAngle(Shoulder, 160)
	assert.ErrorIs(t, err, ErrUnsafePosture)
}

func TestPostureGuardReadsCurrentNotTarget(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(1)

	// Shoulder is heading up but still at a safe current angle, so the
	// elbow fold is allowed now; the guard does not look at targets.
	require.NoError(t, a.SetAngle(Shoulder, 160))
	a.Tick()
	assert.Equal(t, 91, a.Angle(Shoulder))

	assert.NoError(t, a.SetAngle(Elbow, 10))
}

func TestGripperTravel(t *testing.T) {
	a, _ := newTestArm(t)

	a.OpenGripper()
	settle(t, a)
	assert.Equal(t, 180, a.Angle(Gripper))

	a.CloseGripper()
	settle(t, a)
	assert.Equal(t, 0, a.Angle(Gripper))
}

func TestStopAllFreezesMidSweep(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(2)

	require.NoError(t, a.SetAngle(Base, 130))
	a.Tick()
	a.Tick()
	assert.Equal(t, 94, a.Angle(Base))

	a.StopAll()
	assert.Equal(t, 94, a.Target(Base))
	a.Tick()
	assert.Equal(t, 94, a.Angle(Base))
	assert.False(t, a.Moving())
}

func TestDisabledRejectsTargets(t *testing.T) {
	a, _ := newTestArm(t)

	a.Disable()
	assert.ErrorIs(t, a.SetAngle(Base, 120), ErrDisabled)
	assert.ErrorIs(t, a.MoveToHome(), ErrDisabled)
	assert.ErrorIs(t, a.ExecutePreset(PresetRest), ErrDisabled)

	a.Enable()
	assert.NoError(t, a.SetAngle(Base, 120))
}

func TestDisabledFreezesSweep(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(2)

	require.NoError(t, a.SetAngle(Base, 130))
	a.Tick()
	assert.Equal(t, 92, a.Angle(Base))

	a.Disable()
	a.Tick()
	a.Tick()
	assert.Equal(t, 92, a.Angle(Base))

	// Kept targets resume after re-enable.
	a.Enable()
	a.Tick()
	assert.Equal(t, 94, a.Angle(Base))
}

func TestEmergencyStopFreezesAndDisables(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(3)

	require.NoError(t, a.SetAngle(Base, 150))
	a.Tick()

	a.EmergencyStop()
	held := a.Angle(Base)
	assert.False(t, a.Enabled())

	a.Tick()
	a.Tick()
	assert.Equal(t, held, a.Angle(Base))
	assert.Equal(t, held, a.Target(Base))
}

func TestPickupOpensGripperBeforeReach(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(5)

	require.NoError(t, a.ExecutePreset(PresetPickup))

	// First step: only the gripper is retargeted.
	assert.Equal(t, 180, a.Target(Gripper))
	assert.Equal(t, 90, a.Target(Shoulder))
	assert.Equal(t, 90, a.Target(Elbow))

	// The reach loads once the gripper has fully opened.
	for a.Angle(Gripper) != 180 {
		a.Tick()
	}
	a.Tick()
	assert.Equal(t, 60, a.Target(Shoulder))
	assert.Equal(t, 60, a.Target(Elbow))

	settle(t, a)
	assert.Equal(t, 90, a.Angle(Base))
	assert.Equal(t, 60, a.Angle(Shoulder))
	assert.Equal(t, 60, a.Angle(Elbow))
	assert.Equal(t, 180, a.Angle(Gripper))
	assert.False(t, a.SequenceActive())
}

func TestRestPreset(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(5)

	require.NoError(t, a.ExecutePreset(PresetRest))
	settle(t, a)

	assert.Equal(t, 90, a.Angle(Base))
	assert.Equal(t, 150, a.Angle(Shoulder))
	assert.Equal(t, 150, a.Angle(Elbow))
}

func TestUnknownPreset(t *testing.T) {
	a, _ := newTestArm(t)
	assert.ErrorIs(t, a.ExecutePreset(42), ErrUnknownPreset)
}

func TestStopAllAbandonsSequence(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(5)

	require.NoError(t, a.ExecutePreset(PresetPickup))
	a.Tick()
	a.StopAll()

	assert.False(t, a.SequenceActive())
	settle(t, a)
	// The reach step never loaded.
	assert.Equal(t, 90, a.Angle(Shoulder))
}

func TestMoveToHome(t *testing.T) {
	a, _ := newTestArm(t)
	a.SetMovementSpeed(5)

	require.NoError(t, a.SetAngle(Base, 140))
	require.NoError(t, a.SetAngle(WristTilt, 100))
	settle(t, a)

	require.NoError(t, a.MoveToHome())
	settle(t, a)

	assert.Equal(t, 90, a.Angle(Base))
	assert.Equal(t, 40, a.Angle(WristTilt))
}

func TestStatusLine(t *testing.T) {
	a, _ := newTestArm(t)
	assert.Equal(t, "Servos:90,90,90,90,40,90|Speed:3|Enabled:YES", a.Status())

	a.Disable()
	assert.Equal(t, "Servos:90,90,90,90,40,90|Speed:3|Enabled:NO", a.Status())
}
