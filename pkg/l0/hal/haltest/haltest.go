// Package haltest provides virtual-time fakes of the hal interfaces.
//
// All fakes share a Clock. Time only advances when Sleep is called, so
// tests driving L0 loops are single-threaded and deterministic.
package haltest

import (
	"errors"
	"sync"
	"time"
)

// Epoch is the virtual time a new Clock starts at.
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a virtual clock.
type Clock struct {
	now    time.Time
	timers []*timer
	lock   sync.Mutex
}

type timer struct {
	at    time.Time
	fn    func()
	fired bool
}

// NewClock creates a Clock at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now implements hal.Clock.
func (c *Clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

// Elapsed returns the virtual time passed since Epoch.
func (c *Clock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// Sleep implements hal.Clock by advancing virtual time and firing
// timers that became due.
func (c *Clock) Sleep(d time.Duration) {
	c.lock.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.fn)
		}
	}
	c.lock.Unlock()
	for _, fn := range due {
		fn()
	}
}

// AfterFunc calls fn from the Sleep which moves the clock past
// d from Epoch.
func (c *Clock) AfterFunc(d time.Duration, fn func()) {
	c.lock.Lock()
	c.timers = append(c.timers, &timer{at: Epoch.Add(d), fn: fn})
	c.lock.Unlock()
}

type arrival struct {
	at time.Time
	b  byte
}

// ErrInjected is the default error returned by Port after Fail.
var ErrInjected = errors.New("injected failure")

// Port is a scripted hal.Port. Bytes become readable at their
// scheduled virtual time.
type Port struct {
	Clock *Clock

	// Written collects all bytes written to the port.
	Written []byte
	// Consumed counts bytes read from the port.
	Consumed int

	pending  []arrival
	readErr  error
	writeErr error
	lock     sync.Mutex
}

// NewPort creates a Port on clock.
func NewPort(clock *Clock) *Port {
	return &Port{Clock: clock}
}

// Send makes bs readable immediately.
func (p *Port) Send(bs ...byte) *Port {
	return p.SendAt(p.Clock.Elapsed(), bs...)
}

// SendAt makes bs readable once the clock reaches at (from Epoch).
func (p *Port) SendAt(at time.Duration, bs ...byte) *Port {
	return p.SendEvery(at, 0, bs...)
}

// SendEvery schedules bs starting at start, one every interval.
func (p *Port) SendEvery(start, interval time.Duration, bs ...byte) *Port {
	p.lock.Lock()
	defer p.lock.Unlock()
	at := Epoch.Add(start)
	for _, b := range bs {
		p.pending = append(p.pending, arrival{at: at, b: b})
		at = at.Add(interval)
	}
	return p
}

// FailRead makes subsequent reads fail with err.
func (p *Port) FailRead(err error) *Port {
	if err == nil {
		err = ErrInjected
	}
	p.lock.Lock()
	p.readErr = err
	p.lock.Unlock()
	return p
}

// FailWrite makes subsequent writes fail with err.
func (p *Port) FailWrite(err error) *Port {
	if err == nil {
		err = ErrInjected
	}
	p.lock.Lock()
	p.writeErr = err
	p.lock.Unlock()
	return p
}

// Pending returns the number of scheduled bytes not yet consumed.
func (p *Port) Pending() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.pending)
}

// Buffered implements hal.Port.
func (p *Port) Buffered() int {
	now := p.Clock.Now()
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.readErr != nil {
		return 1
	}
	n := 0
	for _, a := range p.pending {
		if a.at.After(now) {
			break
		}
		n++
	}
	return n
}

// ReadByte implements hal.Port.
func (p *Port) ReadByte() (byte, error) {
	now := p.Clock.Now()
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 || p.pending[0].at.After(now) {
		return 0, errors.New("haltest: read with no data buffered")
	}
	b := p.pending[0].b
	p.pending = p.pending[1:]
	p.Consumed++
	return b, nil
}

// WriteByte implements hal.Port.
func (p *Port) WriteByte(b byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.writeErr != nil {
		return p.writeErr
	}
	p.Written = append(p.Written, b)
	return nil
}

// Edge is one Set call on a Pin.
type Edge struct {
	At    time.Duration
	Level bool
}

// Pin records every Set call with its virtual time.
type Pin struct {
	Clock *Clock
	Level bool
	Edges []Edge
	lock  sync.Mutex
}

// NewPin creates a Pin on clock.
func NewPin(clock *Clock) *Pin {
	return &Pin{Clock: clock}
}

// Set implements hal.Pin.
func (p *Pin) Set(level bool) {
	at := p.Clock.Elapsed()
	p.lock.Lock()
	p.Level = level
	p.Edges = append(p.Edges, Edge{At: at, Level: level})
	p.lock.Unlock()
}

// EdgesBetween returns edges recorded in [from, to).
func (p *Pin) EdgesBetween(from, to time.Duration) []Edge {
	p.lock.Lock()
	defer p.lock.Unlock()
	var edges []Edge
	for _, e := range p.Edges {
		if e.At >= from && e.At < to {
			edges = append(edges, e)
		}
	}
	return edges
}

// Rising counts assert calls that followed a deasserted level.
func Rising(edges []Edge) int {
	n, level := 0, false
	for _, e := range edges {
		if e.Level && !level {
			n++
		}
		level = e.Level
	}
	return n
}
