// Package persistence describes the stable, deterministic snapshot
// format a caller can JSON-encode to save and restore a circuit: kind
// tags, parameter records, layout, and the terminal-to-node wiring.
// File I/O itself stays out of scope; this package only produces and
// consumes the in-memory value type.
package persistence

import "github.com/circuitplayground/simcore/pkg/circuit"

// TerminalRecord is the serializable form of circuit.Terminal.
type TerminalRecord struct {
	ComponentID int `json:"component_id"`
	Pin         int `json:"pin"`
}

// ComponentRecord captures one device's identity, editable parameters,
// and editor layout. Parameters is populated from device.Parameterized
// when the kind implements it, and omitted otherwise (a kind with no
// live-editable knobs, e.g. a logic gate, still round-trips by kind
// alone plus whatever the constructor already fixed).
type ComponentRecord struct {
	ID         int                `json:"id"`
	Kind       string             `json:"kind"`
	Name       string             `json:"name"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	X          float64            `json:"x"`
	Y          float64            `json:"y"`
	Rotation   float64            `json:"rotation"`
}

// WireRecord is one electrical connection between two terminals.
type WireRecord struct {
	ID int            `json:"id"`
	A  TerminalRecord `json:"a"`
	B  TerminalRecord `json:"b"`
}

// ProbeRecord is one voltage observation point.
type ProbeRecord struct {
	ID   int            `json:"id"`
	Node TerminalRecord `json:"node"`
}

// Snapshot is a complete, order-independent description of a circuit's
// topology and layout, suitable for JSON round-tripping. It carries no
// solved state (node voltages, history) — restoring a Snapshot always
// starts from t=0 and requires a fresh operating-point solve.
type Snapshot struct {
	Components  []ComponentRecord `json:"components"`
	Wires       []WireRecord      `json:"wires"`
	Probes      []ProbeRecord     `json:"probes"`
	NominalStep float64           `json:"nominal_step"`
	Adaptive    bool              `json:"adaptive"`
}

// NewTerminalRecord captures a circuit.Terminal for serialization.
func NewTerminalRecord(t circuit.Terminal) TerminalRecord {
	return TerminalRecord{ComponentID: t.ComponentID, Pin: t.Pin}
}

// Terminal recovers the circuit.Terminal a record describes. Ground is
// ComponentID -1 on both sides, so no special case is needed here.
func (r TerminalRecord) Terminal() circuit.Terminal {
	return circuit.Terminal{ComponentID: r.ComponentID, Pin: r.Pin}
}
