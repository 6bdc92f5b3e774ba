package matrix_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/matrix"
	"github.com/circuitplayground/simcore/pkg/simerr"
)

func TestDenseMatrixSolvesSimpleSystem(t *testing.T) {
	// 2x + y = 5
	//  x + 3y = 10
	d := matrix.NewDense(2)
	d.AddElement(1, 1, 2)
	d.AddElement(1, 2, 1)
	d.AddElement(2, 1, 1)
	d.AddElement(2, 2, 3)
	d.AddRHS(1, 5)
	d.AddRHS(2, 10)

	require.NoError(t, d.Solve())
	x := d.Solution()
	require.InDelta(t, 1.0, x[1], 1e-9)
	require.InDelta(t, 3.0, x[2], 1e-9)
}

func TestDenseMatrixAccumulatesStamps(t *testing.T) {
	d := matrix.NewDense(1)
	d.AddElement(1, 1, 1.5)
	d.AddElement(1, 1, 2.5)
	d.AddRHS(1, 4)
	require.NoError(t, d.Solve())
	require.InDelta(t, 1.0, d.Solution()[1], 1e-9)
}

func TestDenseMatrixSingularSystemDetected(t *testing.T) {
	d := matrix.NewDense(2)
	// Both rows identical -> singular.
	d.AddElement(1, 1, 1)
	d.AddElement(1, 2, 1)
	d.AddElement(2, 1, 1)
	d.AddElement(2, 2, 1)
	d.AddRHS(1, 1)
	d.AddRHS(2, 2)

	err := d.Solve()
	require.Error(t, err)
	require.True(t, errors.Is(err, simerr.ErrSingularSystem))
}

func TestDenseMatrixClearResets(t *testing.T) {
	d := matrix.NewDense(1)
	d.AddElement(1, 1, 1)
	d.AddRHS(1, 5)
	d.Clear()
	d.AddElement(1, 1, 1)
	d.AddRHS(1, 7)
	require.NoError(t, d.Solve())
	require.InDelta(t, 7.0, d.Solution()[1], 1e-9)
}

func TestMatrixSelectsDenseBelowThreshold(t *testing.T) {
	m := matrix.New(3, false)
	m.AddElement(1, 1, 1)
	m.AddRHS(1, 2)
	m.AddElement(2, 2, 1)
	m.AddRHS(2, 3)
	m.AddElement(3, 3, 1)
	m.AddRHS(3, 4)
	require.NoError(t, m.Solve())
	sol := m.Solution()
	require.InDelta(t, 2.0, sol[1], 1e-9)
	require.InDelta(t, 3.0, sol[2], 1e-9)
	require.InDelta(t, 4.0, sol[3], 1e-9)
}
