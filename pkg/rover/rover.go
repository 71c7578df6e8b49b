// Package rover runs the firmware control loop. One goroutine owns every
// subsystem; transports hand lines over channels, so no subsystem needs
// internal locking.
package rover

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roverlabs/go-rover/internal/config"
	"github.com/roverlabs/go-rover/pkg/arm"
	"github.com/roverlabs/go-rover/pkg/command"
	"github.com/roverlabs/go-rover/pkg/motor"
	"github.com/roverlabs/go-rover/pkg/safety"
	"github.com/roverlabs/go-rover/pkg/sensors"
	"github.com/roverlabs/go-rover/pkg/status"
	"github.com/roverlabs/go-rover/pkg/transport"
	"github.com/roverlabs/go-rover/pkg/web"
)

// drainBudget bounds how many lines one transport may feed in per tick.
const drainBudget = 8

// Options carries the hardware bindings and transports for a rover.
type Options struct {
	MotorDriver motor.Driver
	ArmWriter   arm.Writer
	FrontSensor sensors.Rangefinder
	RearSensor  sensors.Rangefinder
	Transports  []transport.LineTransport

	// Clock defaults to the real clock when nil.
	Clock clockwork.Clock

	// Logger defaults to the package logger when nil.
	Logger *slog.Logger
}

// Rover owns the subsystems and steps them in a fixed order.
type Rover struct {
	clock clockwork.Clock
	log   *slog.Logger

	system     *status.State
	drive      *motor.Controller
	arm        *arm.Arm
	sensors    *sensors.Manager
	guard      *safety.Monitor
	processor  *command.Processor
	out        *transport.Fanout
	transports []transport.LineTransport

	lastStatusPush time.Time

	// snapshot is rebuilt by the loop and read by the dashboard.
	snapMu   sync.RWMutex
	snapshot web.Snapshot
}

// New wires the subsystems together.
func New(opts Options) *Rover {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := transport.NewFanout()
	for _, t := range opts.Transports {
		out.Add(t)
	}

	system := status.New(clock, logger)
	drive := motor.New(opts.MotorDriver, clock, logger)
	armCtl := arm.New(opts.ArmWriter, clock, logger)
	sensorMgr := sensors.New(opts.FrontSensor, opts.RearSensor, clock, logger)
	guard := safety.New(sensorMgr, drive, out, clock, logger)
	processor := command.New(drive, armCtl, sensorMgr, guard, system, out, clock, logger)

	return &Rover{
		clock:          clock,
		log:            logger,
		system:         system,
		drive:          drive,
		arm:            armCtl,
		sensors:        sensorMgr,
		guard:          guard,
		processor:      processor,
		out:            out,
		transports:     opts.Transports,
		lastStatusPush: clock.Now(),
	}
}

// Run announces readiness and steps the control loop until ctx is
// canceled. The drive and arm are halted on the way out.
func (r *Rover) Run(ctx context.Context) error {
	r.system.MarkReady()
	r.updateSnapshot()
	r.out.Send("READY")

	ticker := r.clock.NewTicker(config.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drive.StopAll()
			r.arm.StopAll()
			r.log.Info("control loop stopped")
			return ctx.Err()
		case <-ticker.Chan():
			r.Tick()
		}
	}
}

// Tick runs one control loop pass. The order is fixed: inbound lines,
// command dispatch, motion, sensing, collision avoidance, telemetry.
func (r *Rover) Tick() {
	r.system.Tick()
	r.drainTransports()
	r.processor.Tick()
	r.drive.Tick()
	r.arm.Tick()
	r.sensors.Tick()
	r.guard.Tick()
	r.pushTelemetry()
	r.updateSnapshot()
}

func (r *Rover) drainTransports() {
	for _, t := range r.transports {
	drain:
		for i := 0; i < drainBudget; i++ {
			select {
			case line, ok := <-t.Lines():
				if !ok {
					break drain
				}
				// Enqueue reports protocol errors on the response
				// stream itself.
				_ = r.processor.Enqueue(line)
			default:
				break drain
			}
		}
	}
}

func (r *Rover) pushTelemetry() {
	now := r.clock.Now()
	if now.Sub(r.lastStatusPush) < config.StatusInterval {
		return
	}
	r.lastStatusPush = now
	r.out.Send(r.sensors.StatusLine())
}

// Snapshot returns the dashboard view of the firmware as of the last
// completed tick. Safe to call from other goroutines.
func (r *Rover) Snapshot() web.Snapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snapshot
}

func (r *Rover) updateSnapshot() {
	snap := r.buildSnapshot()
	r.snapMu.Lock()
	r.snapshot = snap
	r.snapMu.Unlock()
}

func (r *Rover) buildSnapshot() web.Snapshot {
	var wheels [4]int
	for w := motor.Wheel(0); w < motor.NumWheels; w++ {
		wheels[w] = r.drive.WheelSpeed(w)
	}
	var servos [6]int
	for j := arm.Joint(0); j < arm.NumJoints; j++ {
		servos[j] = r.arm.Angle(j)
	}
	return web.Snapshot{
		Ready:          r.system.Ready(),
		EmergencyStop:  r.system.EmergencyStopped(),
		Debug:          r.system.Debug(),
		UptimeSeconds:  int(r.system.Uptime().Seconds()),
		LoopHz:         r.system.LoopRate(),
		GlobalSpeed:    r.drive.GlobalSpeed(),
		Wheels:         wheels,
		Servos:         servos,
		FrontDistance:  r.sensors.Distance(sensors.Front),
		RearDistance:   r.sensors.Distance(sensors.Rear),
		SensorsEnabled: r.sensors.Enabled(),
		CollisionLevel: r.guard.Level().String(),
		Aggressiveness: r.guard.Aggressiveness(),
	}
}
