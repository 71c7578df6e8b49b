// Package sensors polls the front and rear rangefinders, filters the raw
// distances and classifies each reading against the collision thresholds.
//
// Raw ultrasonic readings flicker, so a new distance only becomes the
// reported one after it has repeated within tolerance often enough. Risk
// classification runs on stabilized values only.
package sensors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
)

// Position identifies which end of the chassis a rangefinder watches.
type Position int

const (
	Front Position = iota
	Rear

	NumSensors = 2
)

func (p Position) String() string {
	if p == Front {
		return "front"
	}
	return "rear"
}

// Rangefinder measures the distance ahead of one sensor in centimeters.
// Implementations should honor ctx for the echo timeout and return an
// error when no echo came back.
type Rangefinder interface {
	Measure(ctx context.Context) (float64, error)
}

// Reading is the filtered state of one sensor.
type Reading struct {
	Distance         float64
	ObstacleDetected bool
	CollisionRisk    bool
	Active           bool
	LastUpdate       time.Time
}

// stabilizer tracks how many consecutive raw samples agreed with the
// one before them, so a slow approach keeps counting as stable.
type stabilizer struct {
	last  float64
	count int
}

// Manager owns both rangefinders and their filtered readings.
type Manager struct {
	clock clockwork.Clock
	log   *slog.Logger

	rangefinders [NumSensors]Rangefinder
	readings     [NumSensors]Reading
	filters      [NumSensors]stabilizer

	collisionDistance float64
	warningDistance   float64

	enabled  bool
	lastPoll time.Time
}

// New returns an enabled manager. Both readings start Active so a cold
// boot is not treated as a sensor failure before the first echo arrives.
func New(front, rear Rangefinder, clock clockwork.Clock, log *slog.Logger) *Manager {
	m := &Manager{
		clock:             clock,
		log:               log,
		rangefinders:      [NumSensors]Rangefinder{front, rear},
		collisionDistance: config.DefaultCollisionDistance,
		warningDistance:   config.DefaultWarningDistance,
		enabled:           true,
	}
	now := clock.Now()
	for i := range m.readings {
		m.readings[i] = Reading{Distance: config.MaxSensorDistance, Active: true, LastUpdate: now}
	}
	return m
}

// Tick polls both sensors at most once per sensor interval and refreshes
// each sensor's health flag.
func (m *Manager) Tick() {
	if !m.enabled {
		return
	}
	now := m.clock.Now()
	if now.Sub(m.lastPoll) >= config.SensorInterval {
		m.lastPoll = now
		for p := Position(0); p < NumSensors; p++ {
			m.poll(p)
		}
	}
	for i := range m.readings {
		m.readings[i].Active = now.Sub(m.readings[i].LastUpdate) <= config.SensorHealthWindow
	}
}

func (m *Manager) poll(p Position) {
	ctx, cancel := context.WithTimeout(context.Background(), config.MeasureTimeout)
	defer cancel()

	raw, err := m.rangefinders[p].Measure(ctx)
	if err != nil {
		m.log.Debug("sensor measurement failed", "sensor", p.String(), "error", err)
		return
	}
	if raw <= 0 || raw > config.MaxSensorDistance {
		return
	}

	m.readings[p].LastUpdate = m.clock.Now()

	f := &m.filters[p]
	if f.count > 0 && diff(raw, f.last) <= config.StabilizeTolerance {
		f.count++
	} else {
		f.count = 1
	}
	f.last = raw
	if f.count < config.StabilizeCount {
		return
	}

	r := &m.readings[p]
	r.Distance = raw
	r.ObstacleDetected = raw <= m.warningDistance
	r.CollisionRisk = raw <= m.collisionDistance
	if r.CollisionRisk {
		m.log.Warn("collision risk detected", "sensor", p.String(), "distance_cm", raw)
	}
}

// Distance returns the stabilized distance for a sensor in centimeters.
func (m *Manager) Distance(p Position) float64 {
	return m.readings[p].Distance
}

// Reading returns a sensor's full filtered state.
func (m *Manager) Reading(p Position) Reading {
	return m.readings[p]
}

// IsCollisionRisk reports whether a sensor sees an object inside the
// collision distance. A sensor that stopped reporting while sensing is
// enabled counts as a risk: a blind robot must not assume the path is
// clear.
func (m *Manager) IsCollisionRisk(p Position) bool {
	if !m.enabled {
		return false
	}
	r := m.readings[p]
	if !r.Active {
		return true
	}
	return r.CollisionRisk
}

// IsObstacleDetected reports whether a sensor sees an object inside the
// warning distance, with the same fail-closed treatment of a dead sensor.
func (m *Manager) IsObstacleDetected(p Position) bool {
	if !m.enabled {
		return false
	}
	r := m.readings[p]
	if !r.Active {
		return true
	}
	return r.ObstacleDetected
}

// Active reports whether a sensor delivered a valid echo recently.
func (m *Manager) Active(p Position) bool {
	return m.readings[p].Active
}

// Enabled reports whether sensing is on.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Enable turns sensing back on. The health window restarts so the gap
// while disabled does not read as a failure.
func (m *Manager) Enable() {
	m.enabled = true
	now := m.clock.Now()
	for i := range m.readings {
		m.readings[i].Active = true
		m.readings[i].LastUpdate = now
	}
	m.log.Info("sensors enabled")
}

// Disable turns sensing off and clears all detection flags so stale
// readings cannot keep the drive blocked.
func (m *Manager) Disable() {
	m.enabled = false
	for i := range m.readings {
		m.readings[i].ObstacleDetected = false
		m.readings[i].CollisionRisk = false
	}
	m.filters = [NumSensors]stabilizer{}
	m.log.Info("sensors disabled")
}

// SetThresholds updates the collision and warning distances, clamped to
// sane bounds with collision kept below warning.
func (m *Manager) SetThresholds(collision, warning float64) {
	collision = clampF(collision, 5, 100)
	warning = clampF(warning, 10, config.MaxSensorDistance)
	if collision >= warning {
		warning = collision + 5
	}
	m.collisionDistance = collision
	m.warningDistance = warning
	m.reclassify()
	m.log.Info("sensor thresholds set", "collision_cm", collision, "warning_cm", warning)
}

// Thresholds returns the active collision and warning distances.
func (m *Manager) Thresholds() (collision, warning float64) {
	return m.collisionDistance, m.warningDistance
}

// reclassify reapplies the thresholds to the held distances so a
// threshold change takes effect without waiting for new echoes.
func (m *Manager) reclassify() {
	for i := range m.readings {
		r := &m.readings[i]
		r.ObstacleDetected = r.Distance <= m.warningDistance
		r.CollisionRisk = r.Distance <= m.collisionDistance
	}
}

// StatusLine renders the telemetry line pushed to clients.
func (m *Manager) StatusLine() string {
	f, r := m.readings[Front], m.readings[Rear]
	return fmt.Sprintf("SENSOR_DATA:%.1f,%.1f,%d,%d,%d,%d,%d",
		f.Distance, r.Distance,
		b2i(f.ObstacleDetected), b2i(r.ObstacleDetected),
		b2i(f.CollisionRisk), b2i(r.CollisionRisk),
		b2i(m.enabled))
}

// DetailedStatus renders a per-sensor health report.
func (m *Manager) DetailedStatus() string {
	out := ""
	for p := Position(0); p < NumSensors; p++ {
		r := m.readings[p]
		if p > 0 {
			out += "|"
		}
		out += fmt.Sprintf("%s:%.1fcm,obstacle=%d,risk=%d,active=%d",
			p.String(), r.Distance,
			b2i(r.ObstacleDetected), b2i(r.CollisionRisk), b2i(r.Active))
	}
	return out
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
