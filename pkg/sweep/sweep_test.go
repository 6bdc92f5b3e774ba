package sweep_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/sweep"
)

func TestValueDisabledReturnsBase(t *testing.T) {
	cfg := sweep.Config{Enabled: false, Start: 1, End: 10, SweepTime: 1}
	require.Equal(t, 42.0, sweep.Value(cfg, 42.0, 0.5))
}

func TestValueLinearEndpoints(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 1, End: 5, SweepTime: 2, Mode: sweep.Linear}
	require.InDelta(t, 1.0, sweep.Value(cfg, 0, 0), 1e-12)
	require.InDelta(t, 5.0, sweep.Value(cfg, 0, 2), 1e-12)
	require.InDelta(t, 3.0, sweep.Value(cfg, 0, 1), 1e-12)
}

func TestValueHoldsAtEndWhenNotRepeating(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 1, End: 5, SweepTime: 2, Mode: sweep.Linear}
	require.InDelta(t, 5.0, sweep.Value(cfg, 0, 10), 1e-12)
}

func TestValueLogModeMonotone(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 1, End: 1000, SweepTime: 4, Mode: sweep.Log}
	prev := sweep.Value(cfg, 0, 0)
	for _, tt := range []float64{0.5, 1, 2, 3, 4} {
		v := sweep.Value(cfg, 0, tt)
		require.GreaterOrEqual(t, v, prev)
		prev = v
	}
	require.InDelta(t, 1.0, sweep.Value(cfg, 0, 0), 1e-9)
	require.InDelta(t, 1000.0, sweep.Value(cfg, 0, 4), 1e-6)
}

func TestValueBidirectionalReturnsToStart(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 0, End: 10, SweepTime: 1, Mode: sweep.Linear, Bidirectional: true}
	require.InDelta(t, 10.0, sweep.Value(cfg, 0, 1), 1e-9)
	require.InDelta(t, 0.0, sweep.Value(cfg, 0, 2), 1e-9)
}

func TestValueBidirectionalRepeatIsPeriodic(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 0, End: 10, SweepTime: 1, Mode: sweep.Linear, Bidirectional: true, Repeat: true}
	a := sweep.Value(cfg, 0, 0.3)
	b := sweep.Value(cfg, 0, 0.3+2*1.0)
	require.InDelta(t, a, b, 1e-9)
}

func TestValueUnidirectionalRepeatIsSawtooth(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 0, End: 10, SweepTime: 1, Mode: sweep.Linear, Repeat: true}
	justBeforeWrap := sweep.Value(cfg, 0, 0.999)
	justAfterWrap := sweep.Value(cfg, 0, 1.001)
	require.Greater(t, justBeforeWrap, 9.0)
	require.Less(t, justAfterWrap, 1.0)
}

func TestStepModeQuantizes(t *testing.T) {
	cfg := sweep.Config{Enabled: true, Start: 0, End: 10, SweepTime: 1, Mode: sweep.Step, NumSteps: 3}
	seen := map[float64]bool{}
	for i := 0; i <= 100; i++ {
		t := float64(i) / 100.0
		seen[sweep.Value(cfg, 0, t)] = true
	}
	require.LessOrEqual(t, len(seen), 3)
}
