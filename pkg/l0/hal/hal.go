// Package hal abstracts the peripherals used by L0 programs.
//
// The interfaces mirror the TinyGo machine package so that *machine.UART
// and machine.Pin can be used without adapters on a microcontroller,
// while hosts plug in serial ports and fakes.
package hal

import "time"

// Port is a polled byte peripheral, e.g. a UART.
type Port interface {
	// Buffered returns the number of bytes ready to be read.
	Buffered() int
	// ReadByte consumes one byte. It must only be called when Buffered
	// reports available data.
	ReadByte() (byte, error)
	// WriteByte transmits one byte.
	WriteByte(byte) error
}

// Pin is a single digital output. true is asserted (logic high).
type Pin interface {
	Set(bool)
}

// Clock provides time to the polling loops.
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

// SystemClock is the Clock backed by package time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep implements Clock.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// ClockOrSystem returns c, or SystemClock if c is nil.
func ClockOrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
