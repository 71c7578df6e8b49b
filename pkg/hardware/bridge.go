// Package hardware binds the control loop to the motor board. The board
// is a microcontroller on its own serial link speaking a compact
// request/response protocol:
//
//	M<wheel>:<speed>   set one wheel output, -100..100
//	S<joint>:<angle>   set one servo angle, 0..180
//	R<sensor>          request a distance; replies D<sensor>:<cm>
//
// All calls come from the single control loop goroutine, so the link
// needs no locking.
package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/roverlabs/go-rover/pkg/arm"
	"github.com/roverlabs/go-rover/pkg/motor"
	"github.com/roverlabs/go-rover/pkg/sensors"
)

// Board talks to the motor controller over serial.
type Board struct {
	port serial.Port
	log  *slog.Logger
	buf  []byte
}

// OpenBoard opens the serial link to the motor board.
func OpenBoard(portName string, baud int, log *slog.Logger) (*Board, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open motor board %s: %w", portName, err)
	}
	log.Info("motor board connected", "port", portName, "baud", baud)
	return &Board{port: port, log: log, buf: make([]byte, 64)}, nil
}

// SetWheel writes one wheel output.
func (b *Board) SetWheel(w motor.Wheel, speed int) {
	b.write(fmt.Sprintf("M%d:%d\n", w, speed))
}

// WriteJoint writes one servo angle.
func (b *Board) WriteJoint(j arm.Joint, angle int) {
	b.write(fmt.Sprintf("S%d:%d\n", j, angle))
}

// Rangefinder returns the Measure binding for one sensor position.
func (b *Board) Rangefinder(p sensors.Position) sensors.Rangefinder {
	return rangefinderFunc(func(ctx context.Context) (float64, error) {
		return b.measure(ctx, p)
	})
}

// measure requests one distance and waits for the reply within the ctx
// deadline.
func (b *Board) measure(ctx context.Context, p sensors.Position) (float64, error) {
	b.write(fmt.Sprintf("R%d\n", p))

	timeout := 50 * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := b.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}

	line, err := b.readLine()
	if err != nil {
		return 0, err
	}
	want := fmt.Sprintf("D%d:", p)
	if !strings.HasPrefix(line, want) {
		return 0, fmt.Errorf("unexpected reply %q", line)
	}
	cm, err := strconv.ParseFloat(line[len(want):], 64)
	if err != nil {
		return 0, fmt.Errorf("bad distance in %q", line)
	}
	return cm, nil
}

func (b *Board) readLine() (string, error) {
	var line []byte
	for {
		n, err := b.port.Read(b.buf[:1])
		if err != nil {
			return "", fmt.Errorf("read motor board: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("motor board reply timed out")
		}
		c := b.buf[0]
		if c == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		line = append(line, c)
		if len(line) > 32 {
			return "", fmt.Errorf("motor board reply overlong")
		}
	}
}

func (b *Board) write(cmd string) {
	if _, err := b.port.Write([]byte(cmd)); err != nil {
		b.log.Warn("motor board write failed", "error", err)
	}
}

// Close closes the serial link.
func (b *Board) Close() error {
	return b.port.Close()
}

type rangefinderFunc func(ctx context.Context) (float64, error)

func (f rangefinderFunc) Measure(ctx context.Context) (float64, error) {
	return f(ctx)
}
