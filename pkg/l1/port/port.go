// Package port adapts host serial ports to the L0 hal.Port interface.
package port

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/picoload/pkg/l0/hal"
	"github.com/robotalks/picoload/pkg/l0/uart"
)

// Config defines how to open a serial port.
type Config struct {
	Name        string
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultReadTimeout bounds each read so Run can observe cancellation.
const DefaultReadTimeout = 100 * time.Millisecond

// Port is a host serial port usable as a hal.Port.
//
// Bytes are pumped from the underlying reader by Run into an internal
// queue, so Buffered never blocks.
type Port struct {
	Name string
	// ReadTimeout is set if ReadWriter returns from Read periodically
	// (with zero bytes or a timeout error) instead of blocking.
	ReadTimeout bool

	rw     io.ReadWriter
	queue  []byte
	err    error
	lock   sync.Mutex
	dataCh chan struct{}
}

var _ hal.Port = (*Port)(nil)

// Open opens a serial port at 8N1.
func Open(conf Config) (*Port, error) {
	baud := conf.BaudRate
	if baud == 0 {
		baud = uart.BaudRate
	}
	sp, err := serial.Open(conf.Name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, uart.Unavailable(conf.Name, err)
	}
	timeout := conf.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := sp.SetReadTimeout(timeout); err != nil {
		sp.Close()
		return nil, uart.Unavailable(conf.Name, err)
	}
	glog.V(1).Infof("opened %s at %d baud", conf.Name, baud)
	p := New(sp)
	p.Name, p.ReadTimeout = conf.Name, true
	return p, nil
}

// New wraps a stream.
func New(rw io.ReadWriter) *Port {
	return &Port{rw: rw, dataCh: make(chan struct{}, 1)}
}

// Buffered implements hal.Port. A pending read error counts as one
// buffered byte so that ReadByte reports it.
func (p *Port) Buffered() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.queue) == 0 && p.err != nil {
		return 1
	}
	return len(p.queue)
}

// ReadByte implements hal.Port.
func (p *Port) ReadByte() (byte, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.queue) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, io.ErrNoProgress
	}
	b := p.queue[0]
	p.queue = p.queue[1:]
	return b, nil
}

// WriteByte implements hal.Port.
func (p *Port) WriteByte(b byte) error {
	_, err := p.Write([]byte{b})
	return err
}

// Write implements io.Writer.
func (p *Port) Write(data []byte) (int, error) {
	if glog.V(3) {
		glog.Infof("TX %s % x", p.Name, data)
	}
	return p.rw.Write(data)
}

// Read implements io.Reader over the queue filled by Run. It blocks
// until at least one byte or an error is available.
func (p *Port) Read(buf []byte) (int, error) {
	return p.ReadContext(context.Background(), buf)
}

// ReadContext is Read which gives up when ctx is done, leaving queued
// bytes for the next reader.
func (p *Port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	for {
		p.lock.Lock()
		if len(p.queue) > 0 {
			n := copy(buf, p.queue)
			p.queue = p.queue[n:]
			p.lock.Unlock()
			return n, nil
		}
		err := p.err
		p.lock.Unlock()
		if err != nil {
			return 0, err
		}
		select {
		case <-p.dataCh:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Drain discards everything queued.
func (p *Port) Drain() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	n := len(p.queue)
	p.queue = nil
	return n
}

// Close implements io.Closer.
func (p *Port) Close() error {
	if closer, ok := p.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run pumps bytes from the underlying stream until ctx is done or a
// read fails. The failure is kept and reported by ReadByte and Read.
func (p *Port) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	if p.ReadTimeout {
		for {
			if err := ctx.Err(); err != nil {
				p.fail(err)
				return err
			}
			n, err := p.rw.Read(buf)
			if err != nil && os.IsTimeout(err) {
				err = nil
			}
			if n > 0 {
				p.push(buf[:n])
			}
			if err != nil {
				p.fail(err)
				return err
			}
		}
	}

	dataCh, errCh := make(chan []byte), make(chan error, 1)
	go func() {
		for {
			n, err := p.rw.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case dataCh <- chunk:
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
	for {
		select {
		case chunk := <-dataCh:
			p.push(chunk)
		case err := <-errCh:
			p.fail(err)
			return err
		case <-ctx.Done():
			p.fail(ctx.Err())
			return ctx.Err()
		}
	}
}

func (p *Port) push(data []byte) {
	if glog.V(3) {
		glog.Infof("RX %s % x", p.Name, data)
	}
	p.lock.Lock()
	p.queue = append(p.queue, data...)
	p.lock.Unlock()
	p.wake()
}

func (p *Port) fail(err error) {
	p.lock.Lock()
	if p.err == nil {
		p.err = err
	}
	p.lock.Unlock()
	p.wake()
}

func (p *Port) wake() {
	select {
	case p.dataCh <- struct{}{}:
	default:
	}
}
