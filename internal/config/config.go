// Package config holds the firmware's tuning constants and environment
// overrides. Nothing here persists across restarts; the controller always
// boots with these defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// FirmwareVersion identifies this build on the STATUS line.
const FirmwareVersion = "2.1.0"

// Control loop timing.
const (
	LoopInterval      = 10 * time.Millisecond
	SensorInterval    = 50 * time.Millisecond
	CollisionInterval = 50 * time.Millisecond
	StatusInterval    = 1 * time.Second
)

// Command handling.
const (
	// MaxLineLength bounds a single protocol line. Longer input is
	// rejected, never truncated.
	MaxLineLength = 100

	// QueueCapacity is the bounded command FIFO size. Enqueue on a full
	// queue is rejected with an explicit error.
	QueueCapacity = 10

	// MaxCommandsPerTick caps dispatch work per loop iteration.
	MaxCommandsPerTick = 2

	// CommandTimeout is how long the motors sustain nonzero output
	// without a fresh motion command before auto-stopping.
	CommandTimeout = 5 * time.Second
)

// Motor limits.
const (
	MaxSpeed = 100

	// MinSpeedThreshold is the stall floor: a nonzero output below it is
	// snapped up to it.
	MinSpeedThreshold = 20

	DefaultSpeedMultiplier = 60
	MinSpeedMultiplier     = 20
	MaxSpeedMultiplier     = 100
)

// Servo arm limits.
const (
	MinAngle = 0
	MaxAngle = 180

	ServoSpeedSlow   = 1
	ServoSpeedNormal = 3
	ServoSpeedFast   = 5
)

// Distance sensing (centimeters unless noted).
const (
	DefaultCollisionDistance = 15.0
	DefaultWarningDistance   = 50.0
	MaxSensorDistance        = 200.0

	// MeasureTimeout bounds a single time-of-flight round trip.
	MeasureTimeout = 30 * time.Millisecond

	// StabilizeTolerance and StabilizeCount gate the stable distance: a
	// sample becomes stable only after StabilizeCount consecutive samples
	// within StabilizeTolerance of each other.
	StabilizeTolerance = 5.0
	StabilizeCount     = 2

	// SensorHealthWindow marks a sensor inactive after this long without
	// a valid sample.
	SensorHealthWindow = 2 * time.Second
)

// Collision avoidance.
const (
	// EmergencyCooldown is the hysteresis window: an emergency stop only
	// releases after this long with no collision risk.
	EmergencyCooldown = 1 * time.Second

	// WarningInterval throttles obstacle warnings on the transport.
	WarningInterval = 2 * time.Second
)

// SerialPort returns the serial device from the ROVER_SERIAL env var,
// falling back to the provided default.
func SerialPort(def string) string {
	if p := os.Getenv("ROVER_SERIAL"); p != "" {
		return p
	}
	return def
}

// SerialBaud returns the serial baud rate from ROVER_BAUD or the default.
func SerialBaud(def int) int {
	if v := os.Getenv("ROVER_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// DashboardAddr returns the dashboard listen address from ROVER_DASHBOARD,
// falling back to the provided default. An empty default with no override
// disables the dashboard.
func DashboardAddr(def string) string {
	if a := os.Getenv("ROVER_DASHBOARD"); a != "" {
		return a
	}
	return def
}

// BridgePort returns the motor board serial device from ROVER_BRIDGE,
// falling back to the provided default. Empty means no board attached
// and the firmware runs against the simulated rig.
func BridgePort(def string) string {
	if p := os.Getenv("ROVER_BRIDGE"); p != "" {
		return p
	}
	return def
}

// LogLevel returns the log level from ROVER_LOG_LEVEL or "info".
func LogLevel() string {
	if l := os.Getenv("ROVER_LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}
