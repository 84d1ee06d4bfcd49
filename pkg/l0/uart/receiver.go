package uart

import (
	"context"
	"runtime"
	"time"

	"github.com/robotalks/picoload/pkg/l0/hal"
)

// Compile-time link parameters.
const (
	// BaudRate is the fixed serial speed, 8N1 framing.
	BaudRate = 115200
	// ProgramSize is the number of bytes the loader expects.
	ProgramSize = 256
	// LegacyLoadAddress is where the first loader stage placed the image.
	// Images are owned buffers now; the address is kept for reference.
	LegacyLoadAddress uintptr = 0x20001000
)

// Event is the kind of a Result.
type Event int

const (
	// EventData means Result.Byte holds a received byte.
	EventData Event = iota
	// EventTimeout means nothing arrived within the timeout.
	EventTimeout
	// EventError means the peripheral or the context failed.
	EventError
)

var eventNames = [...]string{"data", "timeout", "error"}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Result is the outcome of waiting for one input event.
type Result struct {
	Event Event
	Byte  byte
	err   error
}

// Err returns nil for EventData, ErrTimeout for EventTimeout, and the
// failure for EventError.
func (r Result) Err() error {
	switch r.Event {
	case EventData:
		return nil
	case EventTimeout:
		return ErrTimeout
	}
	return r.err
}

// Receiver polls a Port for bytes.
type Receiver struct {
	Port  hal.Port
	Clock hal.Clock
	// Timeout bounds each wait. Zero waits forever.
	Timeout time.Duration
	// PollInterval is slept between empty polls. Zero spins.
	PollInterval time.Duration
}

// NewReceiver creates a Receiver with unbounded waits.
func NewReceiver(port hal.Port, clock hal.Clock) *Receiver {
	return &Receiver{Port: port, Clock: hal.ClockOrSystem(clock)}
}

// Ready checks without blocking whether a byte can be read.
func (r *Receiver) Ready() bool {
	return r.Port.Buffered() > 0
}

// Next waits for the next byte and consumes exactly one.
func (r *Receiver) Next(ctx context.Context) Result {
	clock := hal.ClockOrSystem(r.Clock)
	var deadline time.Time
	if r.Timeout > 0 {
		deadline = clock.Now().Add(r.Timeout)
	}
	for {
		if r.Ready() {
			b, err := r.Port.ReadByte()
			if err != nil {
				return Result{Event: EventError, err: &PeripheralError{Op: "read", Err: err}}
			}
			return Result{Event: EventData, Byte: b}
		}
		if err := ctx.Err(); err != nil {
			return Result{Event: EventError, err: err}
		}
		if !deadline.IsZero() && !clock.Now().Before(deadline) {
			return Result{Event: EventTimeout}
		}
		if r.PollInterval > 0 {
			clock.Sleep(r.PollInterval)
		} else {
			runtime.Gosched()
		}
	}
}

// Send writes one byte.
func (r *Receiver) Send(b byte) error {
	if err := r.Port.WriteByte(b); err != nil {
		return &PeripheralError{Op: "write", Err: err}
	}
	return nil
}
