package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/picoload/pkg/l0/hal/haltest"
)

func TestReadyPatterns(t *testing.T) {
	testCases := []struct {
		name    string
		pattern Pattern
		cycles  int
		total   time.Duration
	}{
		{"diagnostic", DiagnosticReady, 3, 600 * time.Millisecond},
		{"loader", LoaderReady, 5, 700 * time.Millisecond},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clock := haltest.NewClock()
			pin := haltest.NewPin(clock)
			ind := NewIndicator(pin, clock)
			require.NoError(t, ind.Ready(context.Background(), tc.pattern))
			require.Equal(t, PhaseReady, ind.Phase())
			require.Equal(t, tc.cycles, haltest.Rising(pin.Edges))
			require.Len(t, pin.Edges, 2*tc.cycles)
			require.False(t, pin.Level)
			require.Equal(t, tc.total, clock.Elapsed())
			require.Equal(t, tc.total, tc.pattern.BurstDuration())
			for n, e := range pin.Edges {
				require.Equalf(t, time.Duration(n)*tc.pattern.HalfPeriod, e.At, "edge[%d]", n)
				require.Equalf(t, n%2 == 0, e.Level, "edge[%d]", n)
			}
		})
	}
}

func TestActiveAndToggle(t *testing.T) {
	clock := haltest.NewClock()
	pin := haltest.NewPin(clock)
	ind := NewIndicator(pin, clock)
	require.Equal(t, PhaseOff, ind.Phase())
	ind.Active()
	require.Equal(t, PhaseActive, ind.Phase())
	require.True(t, pin.Level)
	ind.Toggle()
	require.False(t, pin.Level)
	ind.Toggle()
	require.True(t, pin.Level)
	require.True(t, ind.Level())
	require.Equal(t, PhaseActive, ind.Phase())
}

func TestTerminalBlink(t *testing.T) {
	testCases := []struct {
		name    string
		run     func(*Indicator, context.Context) error
		phase   Phase
		pattern Pattern
	}{
		{"success", (*Indicator).Success, PhaseSuccess, SuccessBlink},
		{"fault", (*Indicator).Fault, PhaseFault, FaultBlink},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clock := haltest.NewClock()
			pin := haltest.NewPin(clock)
			ind := NewIndicator(pin, clock)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			bursts := 4
			clock.AfterFunc(time.Duration(bursts)*tc.pattern.BurstDuration(), cancel)
			err := tc.run(ind, ctx)
			require.Equal(t, context.Canceled, err)
			require.Equal(t, tc.phase, ind.Phase())
			require.True(t, ind.Phase().IsTerminal())
			require.Equal(t, bursts*tc.pattern.Cycles, haltest.Rising(pin.Edges))
		})
	}
}

func TestSuccessAndFaultDiffer(t *testing.T) {
	require.NotEqual(t, SuccessBlink, FaultBlink)
	require.NotEqual(t, SuccessBlink.HalfPeriod, FaultBlink.HalfPeriod)
	require.Greater(t, int64(FaultBlink.Gap), int64(0))
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "ready", PhaseReady.String())
	require.Equal(t, "fault", PhaseFault.String())
	require.Equal(t, "unknown", Phase(42).String())
	require.False(t, PhaseActive.IsTerminal())
}
