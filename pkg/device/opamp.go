package device

import (
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// BranchSensor is implemented by any device that owns an extra MNA
// branch-current row (VoltageSource, Inductor, Battery, OpAmp...) —
// the minimal surface CCCS/CCVS need to reference "the current through
// some other branch" the way a real controlled source's netlist
// reference does.
type BranchSensor interface {
	ExtraIndex() int
}

// OpAmp is an ideal operational amplifier: ultra-high open-loop gain
// between its input pair, clamped to the supply rails once the
// unclamped estimate would exceed them. The output branch is
// constrained to gain*(v+ - v-) the same way a voltage-controlled
// voltage source is stamped, with the rail clamp layered on as the
// standard "ideal op-amp with saturation" trick so feedback loops
// converge instead of diverging toward infinite gain.
type OpAmp struct {
	Base

	Gain           float64
	RailPos, RailNeg float64

	vplus, vminus float64
	saturated     int // -1 low rail, 0 linear, +1 high rail
}

// pin order: 1=in+, 2=in-, 3=out
func NewOpAmp(id int, name string) *OpAmp {
	o := &OpAmp{Base: NewBase(id, name, "opamp", 3)}
	o.Gain = 1e5
	o.RailPos, o.RailNeg = 15.0, -15.0
	return o
}

func (o *OpAmp) ExtraVars() int { return 1 }

func (o *OpAmp) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	nplus, nminus, nout := o.Terminals()[0], o.Terminals()[1], o.Terminals()[2]
	branch := o.ExtraIndex()

	vdiff := o.vplus - o.vminus
	estimate := o.Gain * vdiff
	switch {
	case estimate >= o.RailPos:
		o.saturated = 1
	case estimate <= o.RailNeg:
		o.saturated = -1
	default:
		o.saturated = 0
	}

	if nout != 0 {
		m.AddElement(nout, branch, 1)
	}

	switch o.saturated {
	case 1:
		m.AddElement(branch, nout, 1)
		m.AddRHS(branch, o.RailPos)
	case -1:
		m.AddElement(branch, nout, 1)
		m.AddRHS(branch, o.RailNeg)
	default:
		m.AddElement(branch, nout, 1)
		if nplus != 0 {
			m.AddElement(branch, nplus, -o.Gain)
		}
		if nminus != 0 {
			m.AddElement(branch, nminus, o.Gain)
		}
		m.AddRHS(branch, 0)
	}
	return nil
}

func (o *OpAmp) UpdateVoltages(x []float64) error {
	o.vplus = NodeVoltage(x, o.Terminals()[0])
	o.vminus = NodeVoltage(x, o.Terminals()[1])
	return nil
}

func (o *OpAmp) BranchCurrent(x []float64) float64 {
	idx := o.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return x[idx]
}

// Vcvs is a linear voltage-controlled voltage source: V(out+)-V(out-)
// = Gain*(V(ctrl+)-V(ctrl-)), stamped through an extra branch row the
// same way VoltageSource is, with the controlling terminals stamped as
// -Gain/+Gain coefficients in that row instead of a fixed source value.
type Vcvs struct {
	Base
	Gain float64
}

// pin order: 1=out+, 2=out-, 3=ctrl+, 4=ctrl-
func NewVcvs(id int, name string, gain float64) *Vcvs {
	return &Vcvs{Base: NewBase(id, name, "vcvs", 4), Gain: gain}
}

func (v *Vcvs) ExtraVars() int { return 1 }

func (v *Vcvs) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	outp, outm, cp, cm := v.Terminals()[0], v.Terminals()[1], v.Terminals()[2], v.Terminals()[3]
	branch := v.ExtraIndex()

	if outp != 0 {
		m.AddElement(outp, branch, 1)
		m.AddElement(branch, outp, 1)
	}
	if outm != 0 {
		m.AddElement(outm, branch, -1)
		m.AddElement(branch, outm, -1)
	}
	if cp != 0 {
		m.AddElement(branch, cp, -v.Gain)
	}
	if cm != 0 {
		m.AddElement(branch, cm, v.Gain)
	}
	return nil
}

func (v *Vcvs) BranchCurrent(x []float64) float64 {
	idx := v.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return -x[idx]
}

// Vccs is a linear voltage-controlled current source: I(out) =
// Gain*(V(ctrl+)-V(ctrl-)), stamped directly into the conductance
// matrix with no extra branch row since it injects current, not a
// constraint.
type Vccs struct {
	Base
	Gain float64
}

// pin order: 1=out+, 2=out-, 3=ctrl+, 4=ctrl-
func NewVccs(id int, name string, gain float64) *Vccs {
	return &Vccs{Base: NewBase(id, name, "vccs", 4), Gain: gain}
}

func (v *Vccs) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	outp, outm, cp, cm := v.Terminals()[0], v.Terminals()[1], v.Terminals()[2], v.Terminals()[3]

	if outp != 0 {
		if cp != 0 {
			m.AddElement(outp, cp, v.Gain)
		}
		if cm != 0 {
			m.AddElement(outp, cm, -v.Gain)
		}
	}
	if outm != 0 {
		if cp != 0 {
			m.AddElement(outm, cp, -v.Gain)
		}
		if cm != 0 {
			m.AddElement(outm, cm, v.Gain)
		}
	}
	return nil
}

// Cccs is a linear current-controlled current source: I(out) =
// Gain*I(control branch). Control is a reference to another device's
// extra-variable row, not a node pair.
type Cccs struct {
	Base
	Gain    float64
	Control BranchSensor
}

// pin order: 1=out+, 2=out-
func NewCccs(id int, name string, gain float64, control BranchSensor) *Cccs {
	return &Cccs{Base: NewBase(id, name, "cccs", 2), Gain: gain, Control: control}
}

func (c *Cccs) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	if c.Control == nil {
		return nil
	}
	outp, outm := c.Terminals()[0], c.Terminals()[1]
	ctrlBranch := c.Control.ExtraIndex()
	if ctrlBranch < 1 {
		return nil
	}
	if outp != 0 {
		m.AddElement(outp, ctrlBranch, c.Gain)
	}
	if outm != 0 {
		m.AddElement(outm, ctrlBranch, -c.Gain)
	}
	return nil
}

// Ccvs is a linear current-controlled voltage source: V(out+)-V(out-)
// = Gain*I(control branch), stamped through its own extra branch row
// constrained against the controlling device's branch current.
type Ccvs struct {
	Base
	Gain    float64
	Control BranchSensor
}

// pin order: 1=out+, 2=out-
func NewCcvs(id int, name string, gain float64, control BranchSensor) *Ccvs {
	return &Ccvs{Base: NewBase(id, name, "ccvs", 2), Gain: gain, Control: control}
}

func (c *Ccvs) ExtraVars() int { return 1 }

func (c *Ccvs) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	outp, outm := c.Terminals()[0], c.Terminals()[1]
	branch := c.ExtraIndex()

	if outp != 0 {
		m.AddElement(outp, branch, 1)
		m.AddElement(branch, outp, 1)
	}
	if outm != 0 {
		m.AddElement(outm, branch, -1)
		m.AddElement(branch, outm, -1)
	}
	if c.Control != nil {
		ctrlBranch := c.Control.ExtraIndex()
		if ctrlBranch >= 1 {
			m.AddElement(branch, ctrlBranch, -c.Gain)
		}
	}
	return nil
}

func (c *Ccvs) BranchCurrent(x []float64) float64 {
	idx := c.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return -x[idx]
}
