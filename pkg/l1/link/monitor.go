package link

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Chunk is data received in one read.
type Chunk struct {
	At   time.Time
	Data []byte
}

// ChunkHandler consumes monitored chunks.
type ChunkHandler interface {
	HandleChunk(context.Context, Chunk) error
}

// HandleChunkFunc is func type of ChunkHandler.
type HandleChunkFunc func(context.Context, Chunk) error

// HandleChunk implements ChunkHandler.
func (f HandleChunkFunc) HandleChunk(ctx context.Context, c Chunk) error {
	return f(ctx, c)
}

// ChunkHandlers fans chunks out to several handlers.
type ChunkHandlers []ChunkHandler

// HandleChunk implements ChunkHandler.
func (hs ChunkHandlers) HandleChunk(ctx context.Context, c Chunk) error {
	for _, h := range hs {
		if err := h.HandleChunk(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// ContextReader is implemented by readers which can abandon a
// blocking read, like port.Port.
type ContextReader interface {
	ReadContext(context.Context, []byte) (int, error)
}

func readContext(ctx context.Context, r io.Reader, buf []byte) (int, error) {
	if cr, ok := r.(ContextReader); ok {
		return cr.ReadContext(ctx, buf)
	}
	return r.Read(buf)
}

// expired maps the end of a Duration to success.
func expired(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return nil
	}
	return ctx.Err()
}

// Monitor reads from R and hands chunks to Handler.
type Monitor struct {
	R        io.Reader
	Duration time.Duration
	Handler  ChunkHandler

	total int
}

// Total returns the number of bytes monitored.
func (m *Monitor) Total() int {
	return m.total
}

// Run reads until Duration elapses (zero means forever), ctx is done,
// or R fails. Elapsing the duration is not an error.
func (m *Monitor) Run(ctx context.Context) error {
	if m.Duration > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, m.Duration)
		defer cancel()
	}
	chunkCh, errCh := make(chan Chunk), make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := readContext(ctx, m.R, buf)
			if n > 0 {
				c := Chunk{At: time.Now(), Data: append([]byte(nil), buf[:n]...)}
				select {
				case chunkCh <- c:
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
		case c := <-chunkCh:
			m.total += len(c.Data)
			if h := m.Handler; h != nil {
				if err := h.HandleChunk(ctx, c); err != nil {
					return err
				}
			}
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return expired(ctx)
			}
			return err
		case <-ctx.Done():
			return expired(ctx)
		}
	}
}

// LineHandler splits chunks into text lines. Non-ASCII bytes are
// dropped and blank lines skipped.
type LineHandler struct {
	OnLine func(string)

	partial bytes.Buffer
}

// HandleChunk implements ChunkHandler.
func (h *LineHandler) HandleChunk(ctx context.Context, c Chunk) error {
	for _, b := range c.Data {
		switch {
		case b == '\n':
			h.flush()
		case b == '\r' || b >= 0x80:
		default:
			h.partial.WriteByte(b)
		}
	}
	return nil
}

// Flush emits a trailing partial line.
func (h *LineHandler) Flush() {
	h.flush()
}

func (h *LineHandler) flush() {
	line := strings.TrimSpace(h.partial.String())
	h.partial.Reset()
	if line != "" && h.OnLine != nil {
		h.OnLine(line)
	}
}

// FormatHex formats data as space separated upper-case hex.
func FormatHex(data []byte) string {
	var sb strings.Builder
	for n, b := range data {
		if n > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
