// Package matrix assembles and solves the MNA linear system for one
// circuit topology. See matrix.go for the concrete implementation.
package matrix

// DeviceMatrix is the narrow stamping surface every device kind sees.
// *Matrix satisfies it; tests stamp a *DenseMatrix directly to inspect
// A and b without the sparse backing.
type DeviceMatrix interface {
	AddElement(i, j int, value float64) // 1-based indexing
	AddRHS(i int, value float64)
	AddComplexElement(i, j int, real, imag float64)
	AddComplexRHS(i int, real, imag float64)
}

var _ DeviceMatrix = (*Matrix)(nil)
