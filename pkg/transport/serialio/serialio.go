// Package serialio carries the line protocol over a serial port, the
// usual link to a Bluetooth UART bridge.
package serialio

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// readerBufferSize bounds a single inbound line. Oversized lines are
// still delivered so the command layer can answer with its own error.
const readerBufferSize = 256

// Transport is a line-framed serial connection.
type Transport struct {
	port  serial.Port
	log   *slog.Logger
	lines chan string

	closeOnce sync.Once
	closed    chan struct{}
}

// Open opens the serial port and starts the reader.
func Open(portName string, baud int, log *slog.Logger) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}

	t := &Transport{
		port:   port,
		log:    log,
		lines:  make(chan string, 32),
		closed: make(chan struct{}),
	}
	go t.readLoop()

	log.Info("serial transport open", "port", portName, "baud", baud)
	return t, nil
}

func (t *Transport) readLoop() {
	defer close(t.lines)

	scanner := bufio.NewScanner(t.port)
	scanner.Buffer(make([]byte, readerBufferSize), readerBufferSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		select {
		case t.lines <- line:
		case <-t.closed:
			return
		default:
			t.log.Warn("serial inbound buffer full, dropping line")
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-t.closed:
		default:
			t.log.Error("serial read failed", "error", err)
		}
	}
}

// Lines returns the inbound line stream. The channel closes when the
// port does.
func (t *Transport) Lines() <-chan string {
	return t.lines
}

// Send writes one line with a trailing newline. Write errors are logged,
// not returned, so a flaky link cannot stall the control loop.
func (t *Transport) Send(line string) {
	if _, err := t.port.Write([]byte(line + "\n")); err != nil {
		t.log.Warn("serial write failed", "error", err)
	}
}

// Close stops the reader and closes the port.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.port.Close()
	})
	return err
}
