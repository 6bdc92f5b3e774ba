package history_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/history"
)

func TestBufferAppendAndLast(t *testing.T) {
	buf := history.NewBuffer(4)
	for i := 0; i < 3; i++ {
		buf.Append(float64(i), float64(i)*10)
	}
	require.Equal(t, 3, buf.Len())
	samples := buf.Last(2)
	require.Len(t, samples, 2)
	require.Equal(t, 1.0, samples[0].Time)
	require.Equal(t, 2.0, samples[1].Time)
}

func TestBufferWrapsAtCapacity(t *testing.T) {
	buf := history.NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Append(float64(i), float64(i))
	}
	require.Equal(t, 3, buf.Len())
	samples := buf.Last(10)
	require.Len(t, samples, 3)
	require.Equal(t, []float64{2, 3, 4}, []float64{samples[0].Time, samples[1].Time, samples[2].Time})
}

func TestBufferDropsOutOfOrderAppend(t *testing.T) {
	buf := history.NewBuffer(4)
	buf.Append(1.0, 10)
	buf.Append(0.5, 99) // out of order, must be dropped
	buf.Append(2.0, 20)
	samples := buf.Last(10)
	require.Len(t, samples, 2)
	require.Equal(t, 1.0, samples[0].Time)
	require.Equal(t, 2.0, samples[1].Time)
}

func TestBufferResetClears(t *testing.T) {
	buf := history.NewBuffer(4)
	buf.Append(1, 1)
	buf.Reset()
	require.Equal(t, 0, buf.Len())
	require.Empty(t, buf.Last(10))
}

func TestStoreLazyAllocatesPerProbe(t *testing.T) {
	s := history.NewStore(4)
	s.Append(1, 0, 5)
	s.Append(2, 0, 6)
	require.Len(t, s.Last(1, 10), 1)
	require.Len(t, s.Last(2, 10), 1)
	require.Empty(t, s.Last(3, 10))
}

func TestStoreRemoveAndResetAll(t *testing.T) {
	s := history.NewStore(4)
	s.Append(1, 0, 5)
	s.Append(2, 0, 6)
	s.Remove(1)
	require.Empty(t, s.Last(1, 10))
	require.NotEmpty(t, s.Last(2, 10))

	s.ResetAll()
	require.Empty(t, s.Last(2, 10))
}
