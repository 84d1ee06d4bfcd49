// Package status drives a single status LED through blink patterns
// that tell an observer which phase an L0 program is in.
package status

import (
	"context"
	"time"

	"github.com/robotalks/picoload/pkg/l0/hal"
)

// Phase is the lifecycle phase shown by the indicator.
type Phase int

const (
	// PhaseOff means the indicator has not been driven yet.
	PhaseOff Phase = iota
	// PhaseReady means the ready pattern is being shown.
	PhaseReady
	// PhaseActive means the pin is held asserted while working.
	PhaseActive
	// PhaseSuccess is the terminal slow blink.
	PhaseSuccess
	// PhaseFault is the terminal fault blink.
	PhaseFault
)

var phaseNames = [...]string{"off", "ready", "active", "success", "fault"}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// IsTerminal indicates the phase is never left.
func (p Phase) IsTerminal() bool {
	return p == PhaseSuccess || p == PhaseFault
}

// Pattern describes a blink waveform.
//
// A burst is Cycles assert/deassert pairs, each half lasting HalfPeriod,
// followed by Gap deasserted. A Repeat pattern repeats bursts until
// the context is done.
type Pattern struct {
	HalfPeriod time.Duration
	Cycles     int
	Gap        time.Duration
	Repeat     bool
}

// Predefined patterns.
var (
	DiagnosticReady = Pattern{HalfPeriod: 100 * time.Millisecond, Cycles: 3}
	LoaderReady     = Pattern{HalfPeriod: 50 * time.Millisecond, Cycles: 5, Gap: 200 * time.Millisecond}
	SuccessBlink    = Pattern{HalfPeriod: 500 * time.Millisecond, Cycles: 1, Repeat: true}
	FaultBlink      = Pattern{HalfPeriod: 100 * time.Millisecond, Cycles: 2, Gap: time.Second, Repeat: true}
)

// BurstDuration is the time one burst takes.
func (p Pattern) BurstDuration() time.Duration {
	return 2*time.Duration(p.Cycles)*p.HalfPeriod + p.Gap
}

// Indicator owns the status pin. It is not safe for concurrent use.
type Indicator struct {
	Pin   hal.Pin
	Clock hal.Clock

	phase Phase
	level bool
}

// NewIndicator creates an Indicator on pin. A nil clock uses the system clock.
func NewIndicator(pin hal.Pin, clock hal.Clock) *Indicator {
	return &Indicator{Pin: pin, Clock: hal.ClockOrSystem(clock)}
}

// Phase returns the current phase.
func (i *Indicator) Phase() Phase {
	return i.phase
}

// Level returns the last level driven to the pin.
func (i *Indicator) Level() bool {
	return i.level
}

// Ready shows a finite pattern. It does not touch any peripheral other
// than the pin, so serial activity meanwhile has no effect on it.
// Repeat is ignored.
func (i *Indicator) Ready(ctx context.Context, p Pattern) error {
	i.phase = PhaseReady
	return i.burst(ctx, p)
}

// Active asserts the pin and holds it.
func (i *Indicator) Active() {
	i.phase = PhaseActive
	i.set(true)
}

// Toggle inverts the pin.
func (i *Indicator) Toggle() {
	i.set(!i.level)
}

// Success shows SuccessBlink until ctx is done.
func (i *Indicator) Success(ctx context.Context) error {
	i.phase = PhaseSuccess
	return i.forever(ctx, SuccessBlink)
}

// Fault shows FaultBlink until ctx is done.
func (i *Indicator) Fault(ctx context.Context) error {
	i.phase = PhaseFault
	return i.forever(ctx, FaultBlink)
}

func (i *Indicator) forever(ctx context.Context, p Pattern) error {
	for {
		if err := i.burst(ctx, p); err != nil {
			return err
		}
	}
}

func (i *Indicator) burst(ctx context.Context, p Pattern) error {
	for n := 0; n < p.Cycles; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		i.set(true)
		i.Clock.Sleep(p.HalfPeriod)
		i.set(false)
		i.Clock.Sleep(p.HalfPeriod)
	}
	if p.Gap > 0 {
		i.Clock.Sleep(p.Gap)
	}
	return ctx.Err()
}

func (i *Indicator) set(level bool) {
	i.level = level
	i.Pin.Set(level)
}
