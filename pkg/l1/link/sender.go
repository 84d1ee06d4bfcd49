package link

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/picoload/pkg/l0/uart"
)

// DefaultSettle is how long a freshly opened device gets to boot.
const DefaultSettle = 2 * time.Second

// TestPattern returns the bytes 0x00 through 0xff.
func TestPattern() []byte {
	data := make([]byte, uart.ProgramSize)
	for n := range data {
		data[n] = byte(n)
	}
	return data
}

// Sender writes images to a loader.
type Sender struct {
	W      io.Writer
	Settle time.Duration
	// AllowOversize permits images larger than uart.ProgramSize.
	AllowOversize bool
}

// NewSender creates a Sender with the default settle time.
func NewSender(w io.Writer) *Sender {
	return &Sender{W: w, Settle: DefaultSettle}
}

// SendPattern sends TestPattern.
func (s *Sender) SendPattern(ctx context.Context) (int, error) {
	return s.Send(ctx, TestPattern())
}

// SendFile sends the content of a file.
func (s *Sender) SendFile(ctx context.Context, path string) (int, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return s.Send(ctx, data)
}

// Send waits for the settle time and writes data.
func (s *Sender) Send(ctx context.Context, data []byte) (int, error) {
	if len(data) > uart.ProgramSize && !s.AllowOversize {
		return 0, fmt.Errorf("image is %d bytes, loader accepts %d", len(data), uart.ProgramSize)
	}
	if len(data) < uart.ProgramSize {
		glog.Warningf("image is %d bytes, loader waits for %d", len(data), uart.ProgramSize)
	}
	if s.Settle > 0 {
		glog.Infof("waiting %v for device to boot", s.Settle)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.Settle):
		}
	}
	n, err := s.W.Write(data)
	if err != nil {
		return n, err
	}
	glog.Infof("sent %d bytes", n)
	return n, nil
}
