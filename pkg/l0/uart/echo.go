package uart

import (
	"context"

	"github.com/robotalks/picoload/pkg/l0/status"
)

// ByteHandler is called for each byte handled by Echo.
type ByteHandler interface {
	HandleByte(context.Context, byte)
}

// HandleByteFunc is func type of ByteHandler.
type HandleByteFunc func(context.Context, byte)

// HandleByte implements ByteHandler.
func (f HandleByteFunc) HandleByte(ctx context.Context, b byte) {
	f(ctx, b)
}

// Echo is the diagnostic receiver: every byte toggles the status
// indicator and is written back.
type Echo struct {
	Receiver
	Indicator *status.Indicator
	Ready     status.Pattern
	Handler   ByteHandler

	echoed int
}

// NewEcho creates an Echo using the diagnostic ready pattern.
func NewEcho(rcv Receiver, ind *status.Indicator) *Echo {
	return &Echo{Receiver: rcv, Indicator: ind, Ready: status.DiagnosticReady}
}

// Echoed returns the number of bytes echoed so far.
func (e *Echo) Echoed() int {
	return e.echoed
}

// Run shows the ready pattern, then echoes until ctx is done. Timeouts
// only mean the line is idle. A peripheral failure parks the indicator
// in the fault pattern until ctx is done and is then returned.
func (e *Echo) Run(ctx context.Context) error {
	if err := e.Indicator.Ready(ctx, e.Ready); err != nil {
		return err
	}
	for {
		res := e.Next(ctx)
		switch res.Event {
		case EventTimeout:
			continue
		case EventError:
			return e.fail(ctx, res.Err())
		}
		e.Indicator.Toggle()
		if err := e.Send(res.Byte); err != nil {
			return e.fail(ctx, err)
		}
		e.echoed++
		if h := e.Handler; h != nil {
			h.HandleByte(ctx, res.Byte)
		}
	}
}

func (e *Echo) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	e.Indicator.Fault(ctx)
	return err
}
