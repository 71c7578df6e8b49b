// Package status tracks the firmware-wide flags: readiness, the emergency
// latch, debug mode and the measured control loop rate.
package status

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
	"github.com/roverlabs/go-rover/internal/log"
)

// State holds the system flags shared across subsystems.
type State struct {
	clock clockwork.Clock
	log   *slog.Logger

	bootTime  time.Time
	ready     bool
	emergency bool
	debug     bool

	// loop rate measurement
	ticks      int
	rateWindow time.Time
	loopHz     int
}

// New returns a state anchored at the current time. Ready stays false
// until MarkReady.
func New(clock clockwork.Clock, logger *slog.Logger) *State {
	now := clock.Now()
	return &State{
		clock:      clock,
		log:        logger,
		bootTime:   now,
		rateWindow: now,
	}
}

// MarkReady flags the firmware as booted and accepting commands.
func (s *State) MarkReady() {
	s.ready = true
	s.log.Info("system ready", "boot_ms", s.clock.Now().Sub(s.bootTime).Milliseconds())
}

// Ready reports whether boot completed.
func (s *State) Ready() bool {
	return s.ready
}

// Tick counts one control loop pass; the loop rate is recomputed once a
// second.
func (s *State) Tick() {
	s.ticks++
	now := s.clock.Now()
	if elapsed := now.Sub(s.rateWindow); elapsed >= time.Second {
		s.loopHz = int(float64(s.ticks) / elapsed.Seconds())
		s.ticks = 0
		s.rateWindow = now
	}
}

// LoopRate returns the measured control loop frequency in Hz. Zero until
// the first full measurement window has passed.
func (s *State) LoopRate() int {
	return s.loopHz
}

// Uptime returns the time since boot.
func (s *State) Uptime() time.Duration {
	return s.clock.Now().Sub(s.bootTime)
}

// SetEmergencyStop latches or releases the system-wide emergency flag.
func (s *State) SetEmergencyStop(active bool) {
	if s.emergency == active {
		return
	}
	s.emergency = active
	if active {
		s.log.Warn("emergency stop latched")
	} else {
		s.log.Info("emergency stop released")
	}
}

// EmergencyStopped reports whether the emergency latch is set.
func (s *State) EmergencyStopped() bool {
	return s.emergency
}

// SetDebug toggles debug mode, switching the global log level with it.
func (s *State) SetDebug(enabled bool) {
	s.debug = enabled
	log.SetDebug(enabled)
	s.log.Info("debug mode", "enabled", enabled)
}

// Debug reports whether debug mode is on.
func (s *State) Debug() bool {
	return s.debug
}

// Reset releases the emergency latch and turns debug mode off. Uptime and
// readiness are untouched.
func (s *State) Reset() {
	s.SetEmergencyStop(false)
	if s.debug {
		s.SetDebug(false)
	}
	s.log.Info("system state reset")
}

// Status returns a flat summary of the system flags.
func (s *State) Status() string {
	mode := "READY"
	if !s.ready {
		mode = "BOOTING"
	}
	if s.emergency {
		mode = "EMERGENCY_STOP"
	}
	debug := "OFF"
	if s.debug {
		debug = "ON"
	}
	return fmt.Sprintf("System:%s|FW:%s|Uptime:%ds|Loop:%dHz|Debug:%s",
		mode, config.FirmwareVersion, int(s.Uptime().Seconds()), s.loopHz, debug)
}
