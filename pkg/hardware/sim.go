package hardware

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roverlabs/go-rover/pkg/arm"
	"github.com/roverlabs/go-rover/pkg/motor"
	"github.com/roverlabs/go-rover/pkg/sensors"
)

// Sim is an in-memory rig for bench runs without a motor board. Wheel
// and servo writes are held in memory and distances read as open space
// unless set otherwise.
type Sim struct {
	log *slog.Logger

	mu     sync.Mutex
	wheels [motor.NumWheels]int
	joints [arm.NumJoints]int
	ranges [sensors.NumSensors]float64
}

// NewSim returns a rig with all distances at open space.
func NewSim(log *slog.Logger) *Sim {
	s := &Sim{log: log}
	for i := range s.ranges {
		s.ranges[i] = 200
	}
	return s
}

func (s *Sim) SetWheel(w motor.Wheel, speed int) {
	s.mu.Lock()
	s.wheels[w] = speed
	s.mu.Unlock()
	s.log.Debug("sim wheel output", "wheel", w.String(), "speed", speed)
}

func (s *Sim) WriteJoint(j arm.Joint, angle int) {
	s.mu.Lock()
	s.joints[j] = angle
	s.mu.Unlock()
}

// Rangefinder returns the Measure binding for one sensor position.
func (s *Sim) Rangefinder(p sensors.Position) sensors.Rangefinder {
	return rangefinderFunc(func(_ context.Context) (float64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ranges[p], nil
	})
}

// SetDistance places a simulated object at the given range.
func (s *Sim) SetDistance(p sensors.Position, cm float64) {
	s.mu.Lock()
	s.ranges[p] = cm
	s.mu.Unlock()
}

// Close is a no-op for the simulated rig.
func (s *Sim) Close() error {
	return nil
}
