// Package matrix assembles and solves the MNA linear system A*x=b for
// one circuit topology. The sparse path wraps github.com/edp1096/sparse
// for larger systems; a dependency-free dense path (dense.go) is kept
// as a reference implementation, selected automatically for small
// systems.
package matrix

import (
	"fmt"

	"github.com/edp1096/sparse"

	"github.com/circuitplayground/simcore/pkg/simerr"
)

// DenseThreshold: circuits at or below this many unknowns use the dense
// LU reference path; larger ones use the sparse factor/solve path. The
// dense path is the always-correct reference; sparse is an optional
// performance path for larger topologies.
const DenseThreshold = 64

// Matrix is the circuit-facing MNA system: size unknowns (non-ground
// node voltages followed by extra branch variables), additive stamping,
// LU solve with partial pivoting.
type Matrix struct {
	Size int

	sparse    *sparseBacking
	dense     *DenseMatrix
	useSparse bool
}

type sparseBacking struct {
	mat          *sparse.Matrix
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
	config       *sparse.Configuration
}

// New builds a Matrix of the given unknown count. isComplex selects the
// AC-analysis complex-valued path.
func New(size int, isComplex bool) *Matrix {
	m := &Matrix{Size: size}
	if size <= DenseThreshold && !isComplex {
		m.dense = NewDense(size)
		return m
	}

	m.useSparse = true
	config := &sparse.Configuration{
		Real:           true,
		Complex:        isComplex,
		Expandable:     true,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		// Fall back to dense rather than returning a nil matrix; callers
		// always get something Solve()-able.
		m.useSparse = false
		m.dense = NewDense(size)
		return m
	}

	vectorSize := size + 1
	vectorSizeImag := size + 1
	if isComplex {
		vectorSize *= 2
		vectorSizeImag = 1
	}

	m.sparse = &sparseBacking{
		mat:          mat,
		rhs:          make([]float64, vectorSize),
		rhsImag:      make([]float64, vectorSizeImag),
		solution:     make([]float64, vectorSize),
		solutionImag: make([]float64, vectorSizeImag),
		config:       config,
	}
	return m
}

func (m *Matrix) inBounds(i int) bool { return i >= 1 && i <= m.Size }

// AddElement accumulates value into A[i][j] (1-based). Out-of-range
// indices are silently ignored — ground (index 0) and unassigned extra
// rows stamp this way throughout pkg/device.
func (m *Matrix) AddElement(i, j int, value float64) {
	if !m.inBounds(i) || !m.inBounds(j) {
		return
	}
	if m.useSparse {
		m.sparse.mat.GetElement(int64(i), int64(j)).Real += value
		return
	}
	m.dense.AddElement(i, j, value)
}

// AddRHS accumulates value into b[i].
func (m *Matrix) AddRHS(i int, value float64) {
	if !m.inBounds(i) {
		return
	}
	if m.useSparse {
		if m.sparse.config.Complex {
			m.sparse.rhs[2*i] += value
		} else {
			m.sparse.rhs[i] += value
		}
		return
	}
	m.dense.AddRHS(i, value)
}

// AddComplexElement accumulates a complex admittance (AC analysis only).
func (m *Matrix) AddComplexElement(i, j int, real, imag float64) {
	if !m.inBounds(i) || !m.inBounds(j) {
		return
	}
	if m.useSparse {
		e := m.sparse.mat.GetElement(int64(i), int64(j))
		e.Real += real
		e.Imag += imag
		return
	}
	// Dense path never runs complex (New forces sparse when isComplex).
}

// AddComplexRHS accumulates a complex RHS entry (AC analysis only).
func (m *Matrix) AddComplexRHS(i int, real, imag float64) {
	if !m.inBounds(i) {
		return
	}
	if m.useSparse {
		m.sparse.rhs[2*i] += real
		m.sparse.rhs[2*i+1] += imag
	}
}

// LoadGmin adds gmin to every diagonal element, the standard
// convergence-aid shunt from ground to every unknown.
func (m *Matrix) LoadGmin(gmin float64) {
	for i := 1; i <= m.Size; i++ {
		m.AddElement(i, i, gmin)
	}
}

// Clear zeroes A and b for the next assembly pass.
func (m *Matrix) Clear() {
	if m.useSparse {
		m.sparse.mat.Clear()
		for i := range m.sparse.rhs {
			m.sparse.rhs[i] = 0
		}
		for i := range m.sparse.rhsImag {
			m.sparse.rhsImag[i] = 0
		}
		return
	}
	m.dense.Clear()
}

// Solve factors A and solves A*x=b, returning simerr.ErrSingularSystem
// when the pivot tolerance is violated.
func (m *Matrix) Solve() error {
	if m.useSparse {
		if err := m.sparse.mat.Factor(); err != nil {
			return simerr.Wrap(simerr.ErrSingularSystem, fmt.Sprintf("factor: %v", err))
		}
		var err error
		if m.sparse.config.Complex {
			m.sparse.solution, m.sparse.solutionImag, err = m.sparse.mat.SolveComplex(m.sparse.rhs, m.sparse.rhsImag)
		} else {
			m.sparse.solution, err = m.sparse.mat.Solve(m.sparse.rhs)
		}
		if err != nil {
			return simerr.Wrap(simerr.ErrSingularSystem, fmt.Sprintf("solve: %v", err))
		}
		return nil
	}
	return m.dense.Solve()
}

// Solution returns the solved unknown vector, 1-indexed (index 0 unused).
func (m *Matrix) Solution() []float64 {
	if m.useSparse {
		return m.sparse.solution
	}
	return m.dense.Solution()
}

// GetComplexSolution returns (real, imag) for unknown i (AC analysis).
func (m *Matrix) GetComplexSolution(i int) (float64, float64) {
	if !m.useSparse || !m.sparse.config.Complex || !m.inBounds(i) {
		return 0, 0
	}
	return m.sparse.solution[i], m.sparse.solution[i+m.Size]
}

// Destroy releases the sparse backing, if any.
func (m *Matrix) Destroy() {
	if m.useSparse && m.sparse.mat != nil {
		m.sparse.mat.Destroy()
	}
}
