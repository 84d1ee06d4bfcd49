package uart

import (
	"context"

	"github.com/robotalks/picoload/pkg/l0/status"
)

// State is the state of a Loader.
type State int

const (
	// StateInit is before anything is shown.
	StateInit State = iota
	// StateReadyBlink is while the ready pattern is shown.
	StateReadyBlink
	// StateReceiving is while bytes are being stored.
	StateReceiving
	// StateSuccess is terminal: the image is complete.
	StateSuccess
	// StateFault is terminal: the load failed.
	StateFault
)

var stateNames = [...]string{"init", "ready-blink", "receiving", "success", "fault"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsTerminal indicates no transition leaves the state.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFault
}

// StateNotifier is called when the loader state changes.
type StateNotifier interface {
	StateChanged(context.Context, State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state State) {
	f(ctx, state)
}

// Loader receives a fixed-length image.
//
// Transitions: Init -> ReadyBlink -> Receiving -> Success, or Fault
// from Receiving when a wait times out or the peripheral fails.
// A Loader is used once; it never re-arms.
type Loader struct {
	Receiver
	Indicator *status.Indicator
	Ready     status.Pattern
	Notifier  StateNotifier
	// Size is the image size allocated by Run. Zero means ProgramSize.
	Size int

	state State
}

// NewLoader creates a Loader using the loader ready pattern.
func NewLoader(rcv Receiver, ind *status.Indicator) *Loader {
	return &Loader{Receiver: rcv, Indicator: ind, Ready: status.LoaderReady, Size: ProgramSize}
}

// State gets the state.
func (l *Loader) State() State {
	return l.state
}

// Load fills img completely, starting over from index 0 whatever img
// already holds. It returns a *ShortTransferError when a
// wait times out, a *PeripheralError on read failure, or the context
// error. img holds whatever was received in every case.
func (l *Loader) Load(ctx context.Context, img *Image) error {
	if l.state != StateInit {
		return ErrAlreadyUsed
	}
	img.Reset()
	l.setState(ctx, StateReadyBlink)
	if err := l.Indicator.Ready(ctx, l.Ready); err != nil {
		return err
	}

	l.setState(ctx, StateReceiving)
	l.Indicator.Active()
	for !img.Complete() {
		res := l.Next(ctx)
		switch res.Event {
		case EventData:
			img.append(res.Byte)
		case EventTimeout:
			l.setState(ctx, StateFault)
			return &ShortTransferError{Received: img.Len(), Expected: img.Cap()}
		default:
			if ctx.Err() == nil {
				l.setState(ctx, StateFault)
			}
			return res.Err()
		}
	}
	l.setState(ctx, StateSuccess)
	return nil
}

// Run allocates an image, loads it and then shows the terminal pattern
// until ctx is done. On a device ctx is never done, so Run never returns.
func (l *Loader) Run(ctx context.Context) (*Image, error) {
	size := l.Size
	if size <= 0 {
		size = ProgramSize
	}
	img := NewImage(size)
	return img, l.RunWith(ctx, img)
}

// RunWith is Run with a caller-owned image.
func (l *Loader) RunWith(ctx context.Context, img *Image) error {
	err := l.Load(ctx, img)
	switch l.state {
	case StateSuccess:
		l.Indicator.Success(ctx)
	case StateFault:
		l.Indicator.Fault(ctx)
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (l *Loader) setState(ctx context.Context, state State) {
	if l.state == state {
		return
	}
	l.state = state
	if n := l.Notifier; n != nil {
		n.StateChanged(ctx, state)
	}
}
