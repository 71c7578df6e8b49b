package motor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
)

// recordingDriver records the last output per wheel for testing
type recordingDriver struct {
	speeds [NumWheels]int
	calls  int
}

func (d *recordingDriver) SetWheel(w Wheel, speed int) {
	d.speeds[w] = speed
	d.calls++
}

func newTestController() (*Controller, *recordingDriver, *clockwork.FakeClock) {
	drv := &recordingDriver{}
	clk := clockwork.NewFakeClock()
	c := New(drv, clk, slog.Default())
	return c, drv, clk
}

func TestForward_AppliesMultiplierAndDirection(t *testing.T) {
	c, drv, _ := newTestController()

	c.SetGlobalSpeed(50)
	c.Forward(100)

	// Left side runs positive, right side wiring is mirrored.
	want := [NumWheels]int{50, 50, -50, -50}
	if drv.speeds != want {
		t.Errorf("wheel outputs: got %v, want %v", drv.speeds, want)
	}
	if !c.AnyRunning() {
		t.Error("expected motors marked running")
	}
}

func TestSetWheel_SnapsToMinimumThreshold(t *testing.T) {
	c, drv, _ := newTestController()

	// 20% of 60 is 12, below the stall floor of 20: snap up.
	c.Forward(20)

	if got := drv.speeds[FrontLeft]; got != config.MinSpeedThreshold {
		t.Errorf("FrontLeft: got %d, want %d", got, config.MinSpeedThreshold)
	}
	if got := drv.speeds[FrontRight]; got != -config.MinSpeedThreshold {
		t.Errorf("FrontRight: got %d, want %d", got, -config.MinSpeedThreshold)
	}
}

func TestSetWheel_ClampsOutOfRangeRequests(t *testing.T) {
	c, _, _ := newTestController()

	c.SetGlobalSpeed(100)
	c.TankDrive(250, -250)

	if got := c.WheelSpeed(FrontLeft); got != 100 {
		t.Errorf("FrontLeft: got %d, want 100", got)
	}
	// Right request -100 times direction sign -1 is +100.
	if got := c.WheelSpeed(FrontRight); got != 100 {
		t.Errorf("FrontRight: got %d, want 100", got)
	}
}

func TestSetGlobalSpeed_Clamped(t *testing.T) {
	c, _, _ := newTestController()

	c.SetGlobalSpeed(5)
	if got := c.GlobalSpeed(); got != config.MinSpeedMultiplier {
		t.Errorf("got %d, want %d", got, config.MinSpeedMultiplier)
	}

	c.SetGlobalSpeed(150)
	if got := c.GlobalSpeed(); got != config.MaxSpeedMultiplier {
		t.Errorf("got %d, want %d", got, config.MaxSpeedMultiplier)
	}
}

func TestTick_StalenessTimeoutStopsMotors(t *testing.T) {
	c, drv, clk := newTestController()

	c.Forward(80)
	if !c.AnyRunning() {
		t.Fatal("expected motors running after Forward")
	}

	clk.Advance(config.CommandTimeout + time.Millisecond)
	c.Tick()

	if c.AnyRunning() {
		t.Error("expected motors stopped after staleness timeout")
	}
	if !c.SafetyStopped() {
		t.Error("expected safety-stop flag raised")
	}
	for w := Wheel(0); w < NumWheels; w++ {
		if drv.speeds[w] != 0 {
			t.Errorf("wheel %v: got %d, want 0", w, drv.speeds[w])
		}
	}
}

func TestTick_FreshCommandClearsSafetyStop(t *testing.T) {
	c, _, clk := newTestController()

	c.Forward(80)
	clk.Advance(config.CommandTimeout + time.Millisecond)
	c.Tick()
	if !c.SafetyStopped() {
		t.Fatal("expected safety stop after timeout")
	}

	c.Forward(50)
	if c.SafetyStopped() {
		t.Error("expected safety stop cleared by fresh motion command")
	}
	if !c.AnyRunning() {
		t.Error("expected motors running again")
	}
}

func TestTick_NoTimeoutBeforeWindow(t *testing.T) {
	c, _, clk := newTestController()

	c.Forward(80)
	clk.Advance(config.CommandTimeout / 2)
	c.Tick()

	if c.SafetyStopped() {
		t.Error("safety stop raised before the timeout window elapsed")
	}
	if !c.AnyRunning() {
		t.Error("motors should still be running")
	}
}

func TestEmergencyStop_Idempotent(t *testing.T) {
	c, drv, _ := newTestController()

	c.TankDrive(60, -60)
	c.EmergencyStop()
	c.EmergencyStop()

	if c.AnyRunning() {
		t.Error("expected all motors stopped")
	}
	if !c.SafetyStopped() {
		t.Error("expected safety-stop flag raised")
	}
	for w := Wheel(0); w < NumWheels; w++ {
		if drv.speeds[w] != 0 {
			t.Errorf("wheel %v: got %d, want 0", w, drv.speeds[w])
		}
	}
}

func TestTurns_SpinOpposingSides(t *testing.T) {
	c, _, _ := newTestController()
	c.SetGlobalSpeed(100)

	c.TurnLeft(50)
	if got := c.WheelSpeed(FrontLeft); got != -50 {
		t.Errorf("TurnLeft FrontLeft: got %d, want -50", got)
	}
	// Right side direction sign flips the reverse request back to forward.
	if got := c.WheelSpeed(FrontRight); got != -50 {
		t.Errorf("TurnLeft FrontRight output: got %d, want -50", got)
	}

	c.TurnRight(50)
	if got := c.WheelSpeed(FrontLeft); got != 50 {
		t.Errorf("TurnRight FrontLeft: got %d, want 50", got)
	}
}

func TestStopAll_ClearsSafetyStop(t *testing.T) {
	c, _, clk := newTestController()

	c.Forward(80)
	clk.Advance(config.CommandTimeout + time.Millisecond)
	c.Tick()

	c.StopAll()
	if c.SafetyStopped() {
		t.Error("StopAll should clear the safety-stop flag")
	}
}
