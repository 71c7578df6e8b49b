// Package safety runs the collision avoidance layer between the command
// stream and the drive. It watches the filtered sensor readings, blocks
// moves that would drive into an object, scales speed down near
// obstacles and fires the emergency stop when something crosses the
// collision distance.
package safety

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
	"github.com/roverlabs/go-rover/pkg/sensors"
)

// Level is the escalation state of the collision avoidance layer.
type Level int

const (
	LevelClear Level = iota
	LevelWarning
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelClear:
		return "CLEAR"
	case LevelWarning:
		return "WARNING"
	case LevelEmergency:
		return "EMERGENCY_STOP"
	}
	return "UNKNOWN"
}

// SensorSource is the view of the sensor layer the monitor needs.
type SensorSource interface {
	IsCollisionRisk(p sensors.Position) bool
	IsObstacleDetected(p sensors.Position) bool
	Distance(p sensors.Position) float64
	SetThresholds(collision, warning float64)
	Enabled() bool
}

// Stopper halts the drive when a collision is imminent.
type Stopper interface {
	EmergencyStop()
}

// Notifier pushes event lines to connected clients.
type Notifier interface {
	Send(line string)
}

// Aggressiveness presets map a level to collision and warning distances.
// Higher levels tolerate closer objects before reacting.
var aggressiveness = map[int][2]float64{
	1: {25, 60},
	2: {config.DefaultCollisionDistance, config.DefaultWarningDistance},
	3: {10, 30},
}

// Monitor is the collision avoidance state machine.
type Monitor struct {
	clock  clockwork.Clock
	log    *slog.Logger
	source SensorSource
	drive  Stopper
	notify Notifier

	enabled        bool
	level          Level
	lastCheck      time.Time
	lastEmergency  time.Time
	lastWarning    time.Time
	aggressiveness int
}

// New returns a monitor in the clear state at the default aggressiveness.
func New(source SensorSource, drive Stopper, notify Notifier, clock clockwork.Clock, log *slog.Logger) *Monitor {
	return &Monitor{
		clock:          clock,
		log:            log,
		source:         source,
		drive:          drive,
		notify:         notify,
		enabled:        true,
		level:          LevelClear,
		aggressiveness: 2,
	}
}

// Tick evaluates the sensor state at most once per check interval and
// escalates or clears the level accordingly.
func (m *Monitor) Tick() {
	now := m.clock.Now()
	if now.Sub(m.lastCheck) < config.CollisionInterval {
		return
	}
	m.lastCheck = now

	if !m.enabled || !m.source.Enabled() {
		if m.level != LevelClear {
			m.clearLevel()
		}
		return
	}

	frontRisk := m.source.IsCollisionRisk(sensors.Front)
	rearRisk := m.source.IsCollisionRisk(sensors.Rear)

	if frontRisk || rearRisk {
		m.escalateEmergency(frontRisk, now)
		return
	}

	// An emergency holds until a full cooldown passes without a risky
	// reading. A distance flapping across the threshold keeps refreshing
	// the timer and never releases the stop.
	if m.level == LevelEmergency && now.Sub(m.lastEmergency) < config.EmergencyCooldown {
		return
	}

	if m.source.IsObstacleDetected(sensors.Front) || m.source.IsObstacleDetected(sensors.Rear) {
		m.escalateWarning(now)
	} else if m.level != LevelClear {
		m.clearLevel()
	}
}

func (m *Monitor) escalateEmergency(front bool, now time.Time) {
	side := "front"
	pos := sensors.Front
	if !front {
		side = "rear"
		pos = sensors.Rear
	}

	if m.level != LevelEmergency {
		m.drive.EmergencyStop()
		m.notify.Send(fmt.Sprintf("EMERGENCY_STOP_COLLISION:%s", side))
		m.log.Warn("collision emergency stop",
			"side", side, "distance_cm", m.source.Distance(pos))
		m.level = LevelEmergency
	}
	m.lastEmergency = now
}

func (m *Monitor) escalateWarning(now time.Time) {
	if m.level == LevelEmergency {
		// Dropping out of emergency, even into warning, is a clear.
		m.notify.Send("EMERGENCY_STOP_CLEARED")
		m.log.Info("collision emergency cleared")
	}
	m.level = LevelWarning
	if now.Sub(m.lastWarning) >= config.WarningInterval {
		m.lastWarning = now
		m.notify.Send(fmt.Sprintf("OBSTACLE_WARNING:front=%.1f,rear=%.1f",
			m.source.Distance(sensors.Front), m.source.Distance(sensors.Rear)))
	}
}

func (m *Monitor) clearLevel() {
	if m.level == LevelEmergency {
		m.notify.Send("EMERGENCY_STOP_CLEARED")
		m.log.Info("collision emergency cleared")
	}
	m.level = LevelClear
}

// Level returns the current escalation state.
func (m *Monitor) Level() Level {
	return m.level
}

// IsMovementSafe reports whether a locomotion command may run right now.
// Forward motion is blocked by a front risk and reverse by a rear one.
// Turns happen in place, so they are blocked only when both ends are
// boxed in. Tank drive passes through unmodified: the operator has
// direct differential control.
func (m *Monitor) IsMovementSafe(command string) bool {
	if !m.enabled || !m.source.Enabled() {
		return true
	}
	switch command {
	case "FORWARD":
		return !m.source.IsCollisionRisk(sensors.Front)
	case "BACKWARD":
		return !m.source.IsCollisionRisk(sensors.Rear)
	case "LEFT", "RIGHT":
		return !(m.source.IsCollisionRisk(sensors.Front) &&
			m.source.IsCollisionRisk(sensors.Rear))
	default:
		return true
	}
}

// AdjustSpeed scales a requested speed for the obstacle picture in the
// direction of travel. A collision risk zeroes it; an obstacle inside
// the warning distance halves it and caps it at a creep speed.
func (m *Monitor) AdjustSpeed(requested int, forward bool) int {
	if !m.enabled || !m.source.Enabled() {
		return requested
	}
	pos := sensors.Front
	if !forward {
		pos = sensors.Rear
	}
	if m.source.IsCollisionRisk(pos) {
		return 0
	}
	if m.source.IsObstacleDetected(pos) {
		adjusted := requested / 2
		if adjusted > 30 {
			adjusted = 30
		}
		return adjusted
	}
	return requested
}

// Enable turns collision avoidance back on.
func (m *Monitor) Enable() {
	m.enabled = true
	m.log.Info("collision avoidance enabled")
}

// Disable turns collision avoidance off. The gate opens and the level
// clears; the sensors keep reporting.
func (m *Monitor) Disable() {
	m.enabled = false
	m.clearLevel()
	m.log.Warn("collision avoidance disabled")
}

// Enabled reports whether the avoidance layer is gating movement.
func (m *Monitor) Enabled() bool {
	return m.enabled
}

// SetAggressiveness selects a threshold preset, 1 (cautious) to 3
// (aggressive). Unknown levels are rejected.
func (m *Monitor) SetAggressiveness(level int) error {
	d, ok := aggressiveness[level]
	if !ok {
		return fmt.Errorf("aggressiveness out of range: %d", level)
	}
	m.aggressiveness = level
	m.source.SetThresholds(d[0], d[1])
	m.log.Info("collision aggressiveness set", "level", level,
		"collision_cm", d[0], "warning_cm", d[1])
	return nil
}

// Aggressiveness returns the active preset level.
func (m *Monitor) Aggressiveness() int {
	return m.aggressiveness
}

// Status returns a flat summary of the monitor state.
func (m *Monitor) Status() string {
	enabled := "NO"
	if m.enabled {
		enabled = "YES"
	}
	return fmt.Sprintf("Collision:%s|Aggressiveness:%d|Avoidance:%s",
		m.level, m.aggressiveness, enabled)
}
