package matrix

import (
	"fmt"
	"math"

	"github.com/circuitplayground/simcore/pkg/simerr"
)

// PivotTolerance: a pivot below ||A||_inf * PivotTolerance signals a
// singular system.
const PivotTolerance = 1e-13

// DenseMatrix is a dependency-free dense n*n system with LU
// decomposition and partial pivoting — the required reference path,
// always correct even where the sparse path's heuristics might not be.
// 1-based indexing throughout, to match the sparse path and the
// the usual row-major convention.
type DenseMatrix struct {
	n    int
	a    [][]float64 // n+1 x n+1, row/col 0 unused
	b    []float64   // n+1
	x    []float64   // n+1, solved
}

var _ DeviceMatrix = (*DenseMatrix)(nil)

// NewDense allocates a zeroed n*n dense system.
func NewDense(n int) *DenseMatrix {
	a := make([][]float64, n+1)
	for i := range a {
		a[i] = make([]float64, n+1)
	}
	return &DenseMatrix{n: n, a: a, b: make([]float64, n+1), x: make([]float64, n+1)}
}

func (d *DenseMatrix) AddElement(i, j int, value float64) { d.a[i][j] += value }
func (d *DenseMatrix) AddRHS(i int, value float64)        { d.b[i] += value }

// AddComplexElement/AddComplexRHS are no-ops: the dense reference path
// never runs AC analysis (New always selects the sparse path for
// isComplex circuits), but DenseMatrix still satisfies DeviceMatrix so
// tests can stamp it directly.
func (d *DenseMatrix) AddComplexElement(i, j int, real, imag float64) {}
func (d *DenseMatrix) AddComplexRHS(i int, real, imag float64)        {}

func (d *DenseMatrix) Clear() {
	for i := 1; i <= d.n; i++ {
		row := d.a[i]
		for j := range row {
			row[j] = 0
		}
		d.b[i] = 0
	}
}

func (d *DenseMatrix) Solution() []float64 { return d.x }

// Solve performs Gaussian elimination with partial pivoting in place on
// a working copy of A and b, leaving the stamped A/b untouched so a
// caller can re-stamp the same Matrix next iteration without
// re-allocating.
func (d *DenseMatrix) Solve() error {
	n := d.n
	a := make([][]float64, n+1)
	for i := 1; i <= n; i++ {
		a[i] = append([]float64(nil), d.a[i]...)
	}
	b := append([]float64(nil), d.b...)

	normA := 0.0
	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			if v := math.Abs(a[i][j]); v > normA {
				normA = v
			}
		}
	}
	if normA == 0 {
		normA = 1
	}

	// Forward elimination with partial pivoting.
	for k := 1; k <= n; k++ {
		pivotRow := k
		maxVal := math.Abs(a[k][k])
		for i := k + 1; i <= n; i++ {
			if v := math.Abs(a[i][k]); v > maxVal {
				maxVal = v
				pivotRow = i
			}
		}
		if pivotRow != k {
			a[k], a[pivotRow] = a[pivotRow], a[k]
			b[k], b[pivotRow] = b[pivotRow], b[k]
		}

		if maxVal < normA*PivotTolerance {
			return simerr.Wrap(simerr.ErrSingularSystem, fmt.Sprintf("pivot %d below tolerance (%.3g < %.3g)", k, maxVal, normA*PivotTolerance))
		}

		pivot := a[k][k]
		for i := k + 1; i <= n; i++ {
			factor := a[i][k] / pivot
			if factor == 0 {
				continue
			}
			for j := k; j <= n; j++ {
				a[i][j] -= factor * a[k][j]
			}
			b[i] -= factor * b[k]
		}
	}

	// Back substitution.
	x := make([]float64, n+1)
	for i := n; i >= 1; i-- {
		sum := b[i]
		for j := i + 1; j <= n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}

	d.x = x
	return nil
}
