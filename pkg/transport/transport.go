// Package transport defines how command lines reach the firmware and how
// response and telemetry lines get back out.
package transport

// Sender pushes one line to a client. Implementations must not block the
// control loop; drop or buffer instead.
type Sender interface {
	Send(line string)
}

// LineTransport is a bidirectional line stream. Inbound lines arrive on
// Lines with framing and trailing newlines already stripped.
type LineTransport interface {
	Sender
	Lines() <-chan string
	Close() error
}

// Fanout replicates outbound lines to every attached sender.
type Fanout struct {
	senders []Sender
}

// NewFanout returns a fanout over the given senders.
func NewFanout(senders ...Sender) *Fanout {
	return &Fanout{senders: senders}
}

// Add attaches another sender. Not safe to call once lines are flowing.
func (f *Fanout) Add(s Sender) {
	f.senders = append(f.senders, s)
}

// Send pushes the line to every attached sender.
func (f *Fanout) Send(line string) {
	for _, s := range f.senders {
		s.Send(line)
	}
}
