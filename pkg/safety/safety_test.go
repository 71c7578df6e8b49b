package safety

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverlabs/go-rover/internal/config"
	"github.com/roverlabs/go-rover/internal/log"
	"github.com/roverlabs/go-rover/pkg/sensors"
)

// fakeSource is a hand-set sensor picture.
type fakeSource struct {
	risk      [2]bool
	obstacle  [2]bool
	distance  [2]float64
	enabled   bool
	collision float64
	warning   float64
}

func (f *fakeSource) IsCollisionRisk(p sensors.Position) bool    { return f.risk[p] }
func (f *fakeSource) IsObstacleDetected(p sensors.Position) bool { return f.obstacle[p] }
func (f *fakeSource) Distance(p sensors.Position) float64        { return f.distance[p] }
func (f *fakeSource) Enabled() bool                              { return f.enabled }
func (f *fakeSource) SetThresholds(c, w float64)                 { f.collision, f.warning = c, w }

type fakeStopper struct {
	stops int
}

func (f *fakeStopper) EmergencyStop() { f.stops++ }

type fakeNotifier struct {
	lines []string
}

func (f *fakeNotifier) Send(line string) { f.lines = append(f.lines, line) }

func newTestMonitor() (*Monitor, *fakeSource, *fakeStopper, *fakeNotifier, *clockwork.FakeClock) {
	src := &fakeSource{enabled: true, distance: [2]float64{200, 200}}
	stop := &fakeStopper{}
	notify := &fakeNotifier{}
	clock := clockwork.NewFakeClock()
	return New(src, stop, notify, clock, log.L()), src, stop, notify, clock
}

// tickOnce advances past the check interval so the evaluation runs.
func tickOnce(m *Monitor, clock *clockwork.FakeClock) {
	clock.Advance(config.CollisionInterval)
	m.Tick()
}

func TestClearStaysQuiet(t *testing.T) {
	m, _, stop, notify, clock := newTestMonitor()

	tickOnce(m, clock)
	tickOnce(m, clock)

	assert.Equal(t, LevelClear, m.Level())
	assert.Zero(t, stop.stops)
	assert.Empty(t, notify.lines)
}

func TestFrontRiskFiresEmergencyStop(t *testing.T) {
	m, src, stop, notify, clock := newTestMonitor()
	src.risk[sensors.Front] = true
	src.obstacle[sensors.Front] = true
	src.distance[sensors.Front] = 10

	tickOnce(m, clock)

	assert.Equal(t, LevelEmergency, m.Level())
	assert.Equal(t, 1, stop.stops)
	require.Len(t, notify.lines, 1)
	assert.Equal(t, "EMERGENCY_STOP_COLLISION:front", notify.lines[0])
}

func TestEmergencyFiresOncePerEpisode(t *testing.T) {
	m, src, stop, notify, clock := newTestMonitor()
	src.risk[sensors.Front] = true

	tickOnce(m, clock)
	tickOnce(m, clock)
	tickOnce(m, clock)

	assert.Equal(t, 1, stop.stops)
	assert.Len(t, notify.lines, 1)
}

func TestEmergencyClearsAfterCooldown(t *testing.T) {
	m, src, _, notify, clock := newTestMonitor()
	src.risk[sensors.Rear] = true

	tickOnce(m, clock)
	assert.Equal(t, "EMERGENCY_STOP_COLLISION:rear", notify.lines[0])

	src.risk[sensors.Rear] = false
	tickOnce(m, clock)
	assert.Equal(t, LevelEmergency, m.Level(), "held until the cooldown runs out")
	assert.Len(t, notify.lines, 1)

	clock.Advance(config.EmergencyCooldown)
	tickOnce(m, clock)

	assert.Equal(t, LevelClear, m.Level())
	assert.Equal(t, "EMERGENCY_STOP_CLEARED", notify.lines[1])
}

func TestEmergencyHeldWhileRiskFlaps(t *testing.T) {
	m, src, stop, notify, clock := newTestMonitor()
	src.risk[sensors.Front] = true

	// A reading flapping across the threshold faster than the cooldown
	// keeps the stop latched and never releases it.
	tickOnce(m, clock)
	src.risk[sensors.Front] = false
	tickOnce(m, clock)
	src.risk[sensors.Front] = true
	tickOnce(m, clock)
	src.risk[sensors.Front] = false
	tickOnce(m, clock)

	assert.Equal(t, LevelEmergency, m.Level())
	assert.Equal(t, 1, stop.stops)
	assert.Len(t, notify.lines, 1)

	// A fresh episode after a clean cooldown stops the drive again.
	clock.Advance(config.EmergencyCooldown)
	tickOnce(m, clock)
	assert.Equal(t, LevelClear, m.Level())

	src.risk[sensors.Front] = true
	tickOnce(m, clock)
	assert.Equal(t, LevelEmergency, m.Level())
	assert.Equal(t, 2, stop.stops)
}

func TestWarningThrottled(t *testing.T) {
	m, src, stop, notify, clock := newTestMonitor()
	src.obstacle[sensors.Front] = true
	src.distance[sensors.Front] = 40

	tickOnce(m, clock)
	tickOnce(m, clock)
	tickOnce(m, clock)

	assert.Equal(t, LevelWarning, m.Level())
	assert.Zero(t, stop.stops)
	require.Len(t, notify.lines, 1)
	assert.Equal(t, "OBSTACLE_WARNING:front=40.0,rear=200.0", notify.lines[0])

	clock.Advance(config.WarningInterval)
	tickOnce(m, clock)
	assert.Len(t, notify.lines, 2)
}

func TestEmergencyToWarningSendsCleared(t *testing.T) {
	m, src, _, notify, clock := newTestMonitor()
	src.risk[sensors.Front] = true
	src.obstacle[sensors.Front] = true

	tickOnce(m, clock)

	src.risk[sensors.Front] = false
	clock.Advance(config.EmergencyCooldown)
	tickOnce(m, clock)

	assert.Equal(t, LevelWarning, m.Level())
	assert.Contains(t, notify.lines, "EMERGENCY_STOP_CLEARED")
}

func TestCheckRateLimited(t *testing.T) {
	m, src, stop, _, clock := newTestMonitor()

	tickOnce(m, clock)
	src.risk[sensors.Front] = true

	// Within the same check interval nothing is evaluated.
	clock.Advance(time.Millisecond)
	m.Tick()
	assert.Equal(t, LevelClear, m.Level())
	assert.Zero(t, stop.stops)
}

func TestMovementGateByDirection(t *testing.T) {
	m, src, _, _, _ := newTestMonitor()
	src.risk[sensors.Front] = true

	assert.False(t, m.IsMovementSafe("FORWARD"))
	assert.True(t, m.IsMovementSafe("BACKWARD"))
	assert.True(t, m.IsMovementSafe("LEFT"))
	assert.True(t, m.IsMovementSafe("RIGHT"))
	assert.True(t, m.IsMovementSafe("TANK"))
	assert.True(t, m.IsMovementSafe("STOP"))

	src.risk[sensors.Front] = false
	src.risk[sensors.Rear] = true
	assert.True(t, m.IsMovementSafe("FORWARD"))
	assert.False(t, m.IsMovementSafe("BACKWARD"))
}

func TestTurnsBlockedOnlyWhenBoxedIn(t *testing.T) {
	m, src, _, _, _ := newTestMonitor()

	src.risk[sensors.Front] = true
	assert.True(t, m.IsMovementSafe("LEFT"))
	assert.True(t, m.IsMovementSafe("RIGHT"))

	src.risk[sensors.Rear] = true
	assert.False(t, m.IsMovementSafe("LEFT"))
	assert.False(t, m.IsMovementSafe("RIGHT"))
	assert.True(t, m.IsMovementSafe("TANK"))
}

func TestDisableOpensGateAndClearsLevel(t *testing.T) {
	m, src, _, notify, clock := newTestMonitor()
	src.risk[sensors.Front] = true
	tickOnce(m, clock)
	assert.Equal(t, LevelEmergency, m.Level())

	m.Disable()
	assert.Equal(t, LevelClear, m.Level())
	assert.Contains(t, notify.lines, "EMERGENCY_STOP_CLEARED")
	assert.True(t, m.IsMovementSafe("FORWARD"))
	assert.Equal(t, 80, m.AdjustSpeed(80, true))

	// Ticks while disabled never escalate.
	tickOnce(m, clock)
	assert.Equal(t, LevelClear, m.Level())

	m.Enable()
	tickOnce(m, clock)
	assert.Equal(t, LevelEmergency, m.Level())
}

func TestMovementGateOpenWhenSensorsOff(t *testing.T) {
	m, src, _, _, _ := newTestMonitor()
	src.risk[sensors.Front] = true
	src.enabled = false

	assert.True(t, m.IsMovementSafe("FORWARD"))
	assert.Equal(t, 80, m.AdjustSpeed(80, true))
}

func TestAdjustSpeed(t *testing.T) {
	m, src, _, _, _ := newTestMonitor()

	assert.Equal(t, 80, m.AdjustSpeed(80, true))

	src.obstacle[sensors.Front] = true
	assert.Equal(t, 30, m.AdjustSpeed(80, true), "halved then capped at creep speed")
	assert.Equal(t, 20, m.AdjustSpeed(40, true))
	assert.Equal(t, 80, m.AdjustSpeed(80, false), "rear path unaffected")

	src.risk[sensors.Front] = true
	assert.Equal(t, 0, m.AdjustSpeed(80, true))
}

func TestAggressivenessPresets(t *testing.T) {
	m, src, _, _, _ := newTestMonitor()

	require.NoError(t, m.SetAggressiveness(1))
	assert.Equal(t, 25.0, src.collision)
	assert.Equal(t, 60.0, src.warning)

	require.NoError(t, m.SetAggressiveness(3))
	assert.Equal(t, 10.0, src.collision)
	assert.Equal(t, 30.0, src.warning)
	assert.Equal(t, 3, m.Aggressiveness())

	assert.Error(t, m.SetAggressiveness(0))
	assert.Error(t, m.SetAggressiveness(4))
	assert.Equal(t, 3, m.Aggressiveness())
}
