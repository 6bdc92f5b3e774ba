// Package device implements the closed device-kind catalogue: each kind
// is a concrete Go type satisfying Device, covering the playground's
// full component catalogue rather than a SPICE-netlist element set.
package device

import (
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// AnalysisMode selects which companion model a Stamp call should use.
type AnalysisMode int

const (
	OperatingPoint AnalysisMode = iota
	Transient
	ACSmallSignal
)

// Status is the per-step context every Stamp/Commit call receives.
type Status struct {
	Time      float64
	TimeStep  float64
	Gmin      float64
	Mode      AnalysisMode
	Frequency float64 // AC small-signal only
}

// Device is the sum-type interface every component kind implements.
// Nodes/terminal indices are 1-based row numbers into the MNA system,
// or 0 for ground; they are assigned by circuit.Circuit.Rebuild, never
// by the device itself.
type Device interface {
	ID() int
	Name() string
	Kind() string
	NumTerminals() int
	Terminals() []int
	SetTerminals(nodes []int)

	// ExtraVars returns how many dedicated MNA rows this device needs
	// beyond node voltages ("extra variables"). 0 for most kinds; 1 for
	// voltage sources, inductors, and VCVS-shaped devices.
	ExtraVars() int
	SetExtraIndex(idx int)
	ExtraIndex() int

	// Stamp accumulates this device's contribution to A and b using
	// status/environment as the linearization point.
	Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error

	// Commit writes solved state back once Newton-Raphson has converged.
	// Devices with no retained state inherit Base.Commit, a no-op.
	Commit(x []float64, dt float64, en *env.Environment) error
}

// Nonlinear is implemented by devices requiring Newton-Raphson
// iteration: their Stamp linearizes around internally retained state,
// and UpdateVoltages refreshes that state from the current Newton
// iterate before the next Stamp call.
type Nonlinear interface {
	UpdateVoltages(x []float64) error
}

// CurrentSensor is implemented by devices whose branch current isn't
// simply an extra MNA unknown (e.g. Resistor: I=(V1-V2)/R), for the
// external branch-current observation query.
type CurrentSensor interface {
	BranchCurrent(x []float64) float64
}

// Thermal is the per-device thermal sub-state: dissipated power,
// cumulative damage, and a latched failed flag.
type Thermal struct {
	DissipatedW      float64
	CumulativeDamage float64
	Failed           bool
	FailureReason    string
}

// Base is embedded by every concrete device kind: identity, terminal
// node ids, extra-variable row, and the thermal sub-state.
type Base struct {
	id    int
	name  string
	kind  string
	nodes []int

	extraIdx int

	Thermal Thermal
}

// NewBase constructs the embeddable identity/terminal fields.
func NewBase(id int, name, kind string, numTerminals int) Base {
	return Base{id: id, name: name, kind: kind, nodes: make([]int, numTerminals)}
}

func (b *Base) ID() int              { return b.id }
func (b *Base) Name() string         { return b.name }
func (b *Base) Kind() string         { return b.kind }
func (b *Base) NumTerminals() int    { return len(b.nodes) }
func (b *Base) Terminals() []int     { return b.nodes }
func (b *Base) SetTerminals(n []int) { copy(b.nodes, n) }

func (b *Base) ExtraVars() int      { return 0 }
func (b *Base) SetExtraIndex(i int) { b.extraIdx = i }
func (b *Base) ExtraIndex() int     { return b.extraIdx }

// Commit is the default no-op; stateful devices shadow it.
func (b *Base) Commit(x []float64, dt float64, en *env.Environment) error { return nil }

// NodeVoltage reads terminal t's voltage out of a solved/guessed vector,
// returning 0 for ground (node id 0) — the idiom every Stamp/commit
// implementation in this package uses in place of re-deriving it.
func NodeVoltage(x []float64, node int) float64 {
	if node <= 0 || node >= len(x) {
		return 0
	}
	return x[node]
}

var _ = (*Base)(nil) // ensure Base compiles standalone for embedders
