package uart

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/picoload/pkg/l0/hal/haltest"
	"github.com/robotalks/picoload/pkg/l0/status"
)

type loaderTestEnv struct {
	clock  *haltest.Clock
	port   *haltest.Port
	pin    *haltest.Pin
	loader *Loader
	states []State
}

func newLoaderTestEnv(timeout time.Duration) *loaderTestEnv {
	env := &loaderTestEnv{clock: haltest.NewClock()}
	env.port = haltest.NewPort(env.clock)
	env.pin = haltest.NewPin(env.clock)
	env.loader = NewLoader(Receiver{
		Port:         env.port,
		Clock:        env.clock,
		Timeout:      timeout,
		PollInterval: time.Millisecond,
	}, status.NewIndicator(env.pin, env.clock))
	env.loader.Notifier = StateChangedFunc(func(ctx context.Context, state State) {
		env.states = append(env.states, state)
	})
	return env
}

func (e *loaderTestEnv) runFor(d time.Duration) (*Image, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.clock.AfterFunc(d, cancel)
	return e.loader.Run(ctx)
}

func testProgram(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

var loaderReadyEnd = status.LoaderReady.BurstDuration()

func TestLoaderComplete(t *testing.T) {
	testCases := []struct {
		name  string
		send  func(*haltest.Port, []byte)
		extra int
		done  time.Duration
	}{
		{
			name: "buffered before ready ends",
			send: func(p *haltest.Port, data []byte) {
				p.SendEvery(10*time.Millisecond, 87*time.Microsecond, data...)
			},
			done: loaderReadyEnd,
		},
		{
			name: "streamed after ready",
			send: func(p *haltest.Port, data []byte) {
				p.SendEvery(2*time.Second, 2*time.Millisecond, data...)
			},
			done: 2*time.Second + 255*2*time.Millisecond,
		},
		{
			name: "extra bytes are never consumed",
			send: func(p *haltest.Port, data []byte) {
				p.SendEvery(time.Second, time.Millisecond, data...)
				p.SendEvery(3*time.Second, time.Millisecond, 0xaa, 0xbb, 0xcc, 0xdd)
			},
			extra: 4,
			done:  time.Second + 255*time.Millisecond,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newLoaderTestEnv(0)
			program := testProgram(ProgramSize)
			tc.send(env.port, program)

			img, err := env.runFor(10 * time.Second)
			require.Equal(t, context.Canceled, err)
			require.True(t, img.Complete())
			require.Equal(t, ProgramSize, img.Len())
			require.Equal(t, program, img.Bytes())
			require.Equal(t, ProgramSize, env.port.Consumed)
			require.Equal(t, tc.extra, env.port.Pending())
			require.Empty(t, env.port.Written)

			require.Equal(t, StateSuccess, env.loader.State())
			require.Equal(t, []State{StateReadyBlink, StateReceiving, StateSuccess}, env.states)
			require.Equal(t, status.PhaseSuccess, env.loader.Indicator.Phase())

			require.Equal(t, 5, haltest.Rising(env.pin.EdgesBetween(0, loaderReadyEnd)))

			// slow blink after the last byte
			blink := env.pin.EdgesBetween(tc.done+time.Millisecond, 10*time.Second)
			require.NotEmpty(t, blink)
			for n := 1; n < len(blink); n++ {
				require.Equalf(t, status.SuccessBlink.HalfPeriod, blink[n].At-blink[n-1].At, "blink[%d]", n)
				require.NotEqualf(t, blink[n-1].Level, blink[n].Level, "blink[%d]", n)
			}
		})
	}
}

func TestLoaderReadyIgnoresSerial(t *testing.T) {
	env := newLoaderTestEnv(0)
	env.port.SendEvery(0, time.Millisecond, testProgram(ProgramSize)...)
	_, err := env.runFor(2 * time.Second)
	require.Equal(t, context.Canceled, err)
	ready := env.pin.EdgesBetween(0, loaderReadyEnd)
	require.Len(t, ready, 10)
	require.Equal(t, 5, haltest.Rising(ready))
	for n, e := range ready {
		require.Equalf(t, time.Duration(n)*status.LoaderReady.HalfPeriod, e.At, "edge[%d]", n)
	}
}

func TestLoaderShortWithoutTimeout(t *testing.T) {
	env := newLoaderTestEnv(0)
	program := testProgram(100)
	env.port.SendEvery(time.Second, time.Millisecond, program...)

	img, err := env.runFor(30 * time.Second)
	require.Equal(t, context.Canceled, err)
	require.False(t, img.Complete())
	require.Equal(t, program, img.Bytes())
	require.Equal(t, StateReceiving, env.loader.State())
	require.Equal(t, []State{StateReadyBlink, StateReceiving}, env.states)
	require.Equal(t, status.PhaseActive, env.loader.Indicator.Phase())
	// held asserted, no blinking while waiting
	require.Len(t, env.pin.EdgesBetween(loaderReadyEnd+time.Millisecond, 30*time.Second), 0)
	require.True(t, env.pin.Level)
}

func TestLoaderShortWithTimeout(t *testing.T) {
	env := newLoaderTestEnv(500 * time.Millisecond)
	program := testProgram(100)
	env.port.SendEvery(time.Second, time.Millisecond, program...)

	img, err := env.runFor(10 * time.Second)
	var short *ShortTransferError
	require.True(t, errors.As(err, &short))
	require.Equal(t, 100, short.Received)
	require.Equal(t, ProgramSize, short.Expected)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, program, img.Bytes())

	require.Equal(t, StateFault, env.loader.State())
	require.Equal(t, []State{StateReadyBlink, StateReceiving, StateFault}, env.states)
	require.Equal(t, status.PhaseFault, env.loader.Indicator.Phase())

	lastByte := time.Second + 99*time.Millisecond
	faultStart := lastByte + 500*time.Millisecond
	fault := env.pin.EdgesBetween(faultStart, faultStart+status.FaultBlink.BurstDuration())
	require.Equal(t, 2, haltest.Rising(append([]haltest.Edge{{Level: false}}, fault...)))
}

func TestLoaderReadFailure(t *testing.T) {
	env := newLoaderTestEnv(0)
	env.port.FailRead(nil)
	_, err := env.runFor(5 * time.Second)
	var perr *PeripheralError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, StateFault, env.loader.State())
}

func TestLoaderNoRearm(t *testing.T) {
	env := newLoaderTestEnv(0)
	env.port.Send(testProgram(ProgramSize)...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	img := NewImage(ProgramSize)
	require.NoError(t, env.loader.Load(ctx, img))
	require.True(t, img.Complete())

	env.port.Send(1, 2, 3)
	require.Equal(t, ErrAlreadyUsed, env.loader.Load(ctx, NewImage(ProgramSize)))
	require.Equal(t, 3, env.port.Pending())
	require.Equal(t, StateSuccess, env.loader.State())
}

func TestLoaderCustomSize(t *testing.T) {
	env := newLoaderTestEnv(0)
	env.loader.Size = 16
	env.port.Send(testProgram(20)...)
	img, err := env.runFor(3 * time.Second)
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 16, img.Cap())
	require.Equal(t, testProgram(16), img.Bytes())
	require.Equal(t, 4, env.port.Pending())
}

func TestLoaderStartsAtIndexZero(t *testing.T) {
	testCases := []struct {
		name    string
		prefill []byte
	}{
		{"partly filled", []byte{0xee, 0xee}},
		{"already complete", []byte{0xee, 0xee, 0xee, 0xee}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newLoaderTestEnv(0)
			img := NewImage(4)
			for _, b := range tc.prefill {
				img.append(b)
			}
			env.port.Send(1, 2, 3, 4, 5)
			require.NoError(t, env.loader.Load(context.Background(), img))
			require.Equal(t, []byte{1, 2, 3, 4}, img.Bytes())
			require.Equal(t, 4, env.port.Consumed)
			require.Equal(t, 1, env.port.Pending())
			require.Equal(t, StateSuccess, env.loader.State())
		})
	}
}

func TestImage(t *testing.T) {
	img := ImageOn(make([]byte, 3))
	require.Equal(t, 3, img.Cap())
	require.Empty(t, img.Bytes())
	require.True(t, img.append(1))
	require.True(t, img.append(2))
	require.True(t, img.append(3))
	require.False(t, img.append(4))
	require.True(t, img.Complete())
	require.Equal(t, []byte{1, 2, 3}, img.Bytes())
	img.Reset()
	require.Equal(t, 0, img.Len())

	buf := make([]byte, 16)
	img = ImageOn(buf)
	require.Equal(t, uintptr(unsafe.Pointer(&buf[0])), img.Addr())
	require.Equal(t, "image 16 bytes at 0x"+strconv.FormatUint(uint64(img.Addr()), 16), img.String())
	require.Equal(t, uintptr(0), NewImage(0).Addr())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "ready-blink", StateReadyBlink.String())
	require.True(t, StateFault.IsTerminal())
	require.False(t, StateReceiving.IsTerminal())
}
