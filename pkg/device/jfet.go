package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// JFETType selects channel polarity.
type JFETType int

const (
	NJF JFETType = iota
	PJF
)

// Jfet is a three-terminal (drain, gate, source) junction field-effect
// transistor using the Shichman-Hodges square-law model (the standard
// SPICE JFET level-1 equations). No JFET device exists elsewhere in this codebase, so
// this is domain knowledge grounded on the same Shichman-Hodges square
// law Mosfet.level1Current already implements, rather than on any
// file elsewhere in this package — only the stamping/Newton-iteration plumbing (the
// Base/Device/Nonlinear contract, the gate-junction Shockley diode
// conductances) follows the pattern set by Mosfet and Diode.
type Jfet struct {
	Base

	Type JFETType

	Vto    float64 // pinch-off (threshold) voltage, negative for NJF
	Beta   float64 // transconductance coefficient (A/V²)
	Lambda float64 // channel-length modulation (1/V)
	Rd, Rs float64 // drain/source parasitic resistance; not stamped by this model
	Is     float64 // gate junction saturation current

	vgs, vds float64
	id       float64
	gm, gds  float64
	igs, igd float64

	prevVgs, prevVds, prevId float64
}

// pin order: 1=drain, 2=gate, 3=source
func NewJfet(id int, name string, jtype JFETType) *Jfet {
	j := &Jfet{Base: NewBase(id, name, "jfet", 3), Type: jtype}
	j.Beta = 1e-3
	j.Lambda = 0.01
	j.Is = 1e-14
	if jtype == NJF {
		j.Vto = -2.0
		j.vgs, j.vds = -1.0, 1.0
	} else {
		j.Vto = 2.0
		j.vgs, j.vds = 1.0, -1.0
	}
	return j
}

func (j *Jfet) sign() float64 {
	if j.Type == PJF {
		return -1
	}
	return 1
}

// shichmanHodges returns (Id, gm, gds) in the device's own NJF-style
// polarity frame; the caller sign-flips for PJF.
func (j *Jfet) shichmanHodges(vgs, vds float64) (id, gm, gds float64) {
	vgst := vgs - j.Vto
	if vgst <= 0 {
		return 0, consts.DefaultGmin, consts.DefaultGmin
	}
	if vds < 0 {
		vds = -vds // symmetric device, current direction handled by caller's sign convention
	}
	if vds < vgst {
		// triode/linear region
		id = j.Beta * vds * (2*vgst - vds) * (1 + j.Lambda*vds)
		gm = 2 * j.Beta * vds * (1 + j.Lambda*vds)
		gds = j.Beta*(2*vgst-2*vds)*(1+j.Lambda*vds) + j.Lambda*j.Beta*vds*(2*vgst-vds)
	} else {
		// saturation
		id = j.Beta * vgst * vgst * (1 + j.Lambda*vds)
		gm = 2 * j.Beta * vgst * (1 + j.Lambda*vds)
		gds = j.Beta * vgst * vgst * j.Lambda
	}
	if gds < consts.DefaultGmin {
		gds = consts.DefaultGmin
	}
	return
}

// gateLeakage gives the two back-to-back gate-channel diodes a
// tiny leakage conductance, mirroring Diode.shockleyCurrent/conductance
// at the Is/thermal-voltage level rather than duplicating that math.
func (j *Jfet) gateLeakage(v, vt float64) (i, g float64) {
	if v >= -5*vt {
		arg := v / vt
		if arg > 40 {
			arg = 40
		}
		ev := math.Exp(arg)
		return j.Is * (ev - 1), j.Is*ev/vt + consts.DefaultGmin
	}
	return -j.Is, consts.DefaultGmin
}

func (j *Jfet) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	nd, ng, ns := j.Terminals()[0], j.Terminals()[1], j.Terminals()[2]
	sign := j.sign()
	vt := consts.ThermalVoltage(en.TemperatureC)

	vgs, vds := sign*j.vgs, sign*j.vds
	idLocal, gm, gds := j.shichmanHodges(vgs, vds)
	j.id = sign * idLocal
	j.gm, j.gds = sign*gm, gds
	j.prevId = j.id

	igsLocal, ggs := j.gateLeakage(vgs, vt)
	igdLocal, ggd := j.gateLeakage(sign*(j.vgs-j.vds), vt)
	j.igs, j.igd = sign*igsLocal, sign*igdLocal

	if st.Mode == ACSmallSignal {
		if nd != 0 {
			m.AddComplexElement(nd, nd, j.gds, 0)
			if ns != 0 {
				m.AddComplexElement(nd, ns, -j.gds-j.gm, 0)
			}
			if ng != 0 {
				m.AddComplexElement(nd, ng, j.gm, 0)
			}
		}
		return nil
	}

	if nd != 0 {
		m.AddElement(nd, nd, j.gds)
		if ng != 0 {
			m.AddElement(nd, ng, j.gm)
		}
		if ns != 0 {
			m.AddElement(nd, ns, -j.gds-j.gm)
		}
		m.AddRHS(nd, -j.id+j.gds*j.vds+j.gm*j.vgs)
	}
	if ns != 0 {
		m.AddElement(ns, ns, j.gds+j.gm+ggs)
		if nd != 0 {
			m.AddElement(ns, nd, -j.gds)
		}
		if ng != 0 {
			m.AddElement(ns, ng, -j.gm-ggs)
		}
		m.AddRHS(ns, j.id-j.gds*j.vds-j.gm*j.vgs-j.igs+ggs*j.vgs)
	}
	if ng != 0 {
		m.AddElement(ng, ng, ggs+ggd)
		if ns != 0 {
			m.AddElement(ng, ns, -ggs)
		}
		if nd != 0 {
			m.AddElement(ng, nd, -ggd)
		}
		m.AddRHS(ng, -(j.igs + j.igd) + ggs*j.vgs + ggd*(j.vgs-j.vds))
	}
	return nil
}

func (j *Jfet) UpdateVoltages(x []float64) error {
	vd := NodeVoltage(x, j.Terminals()[0])
	vg := NodeVoltage(x, j.Terminals()[1])
	vs := NodeVoltage(x, j.Terminals()[2])
	j.vgs = vg - vs
	j.vds = vd - vs
	return nil
}

func (j *Jfet) Commit(x []float64, dt float64, en *env.Environment) error {
	j.prevVgs, j.prevVds = j.vgs, j.vds
	return nil
}

func (j *Jfet) LocalLTE(dt float64) float64 {
	return math.Max(math.Abs(j.vgs-j.prevVgs), math.Abs(j.vds-j.prevVds))
}
