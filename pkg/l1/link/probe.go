package link

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
)

// Default probe timings.
const (
	DefaultProbeDelay   = 20 * time.Millisecond
	DefaultProbeTimeout = 500 * time.Millisecond
)

// EchoReport is the outcome of an EchoProbe.
type EchoReport struct {
	Sent     []byte
	Received []byte
	// Mismatches lists indexes where the echo differs.
	Mismatches []int
}

// OK indicates every byte came back unchanged and nothing extra arrived.
func (r *EchoReport) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Sent) == len(r.Received)
}

// String implements fmt.Stringer.
func (r *EchoReport) String() string {
	if r.OK() {
		return fmt.Sprintf("echo OK: %d bytes", len(r.Sent))
	}
	return fmt.Sprintf("echo FAILED: sent %d received %d, %d mismatches\n  sent: %s\n  recv: %s",
		len(r.Sent), len(r.Received), len(r.Mismatches), FormatHex(r.Sent), FormatHex(r.Received))
}

// EchoProbe checks a device running the diagnostic echo.
type EchoProbe struct {
	RW      io.ReadWriter
	Delay   time.Duration
	Timeout time.Duration
}

// NewEchoProbe creates an EchoProbe with default timings.
func NewEchoProbe(rw io.ReadWriter) *EchoProbe {
	return &EchoProbe{RW: rw, Delay: DefaultProbeDelay, Timeout: DefaultProbeTimeout}
}

// Probe sends data one byte at a time and collects what comes back
// until Timeout passes with nothing received.
func (p *EchoProbe) Probe(ctx context.Context, data []byte) (*EchoReport, error) {
	report := &EchoReport{Sent: data}
	recvCh, errCh := make(chan []byte, 16), make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := readContext(ctx, p.RW, buf)
			if n > 0 {
				select {
				case recvCh <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	collect := func(wait time.Duration) error {
		timer := time.After(wait)
		for {
			select {
			case data := <-recvCh:
				report.Received = append(report.Received, data...)
			case err := <-errCh:
				if err == io.EOF {
					return nil
				}
				return err
			case <-ctx.Done():
				return ctx.Err()
			case <-timer:
				return nil
			}
		}
	}

	for _, b := range data {
		if _, err := p.RW.Write([]byte{b}); err != nil {
			return report, err
		}
		glog.V(2).Infof("probe sent %02X", b)
		if err := collect(p.Delay); err != nil {
			return report, err
		}
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if len(report.Received) < len(data) {
		if err := collect(timeout); err != nil {
			return report, err
		}
	}
	for n, b := range data {
		if n >= len(report.Received) || report.Received[n] != b {
			report.Mismatches = append(report.Mismatches, n)
		}
	}
	return report, nil
}
