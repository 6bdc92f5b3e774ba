package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// MOSType selects channel polarity.
type MOSType int

const (
	NMOS MOSType = iota
	PMOS
)

const (
	cutoff = iota
	linear
	saturation
)

// Mosfet is a four-terminal (drain, gate, source, bulk) field-effect
// transistor: Level-1 Shockley square-law current, body effect,
// channel-length modulation, and a Meyer gate capacitance model for
// transient analysis. Level 1 only — the playground never needs
// SPICE-grade process-parameter fitting, and a numeric-derivative
// Level 2/3 conductance fallback isn't worth carrying without the
// models it would approximate.
type Mosfet struct {
	Base

	Type MOSType

	L, W           float64 // channel length/width (m)
	Vto            float64 // zero-bias threshold voltage
	Kp             float64 // transconductance parameter (A/V²)
	Gamma          float64 // body-effect parameter (V^0.5)
	Phi            float64 // surface potential (V)
	Lambda         float64 // channel-length modulation (1/V)
	CoxPerArea     float64 // gate oxide capacitance per unit area (F/m²), Meyer model

	vgs, vds, vbs float64
	id            float64
	gm, gds, gmbs float64
	region        int

	cgs, cgd, cgb      float64
	qgs, qgd, qgb      float64
	prevQgs, prevQgd, prevQgb float64

	prevVgs, prevVds, prevId float64
}

// pin order: 1=drain, 2=gate, 3=source, 4=bulk
func NewMosfet(id int, name string, mtype MOSType) *Mosfet {
	m := &Mosfet{Base: NewBase(id, name, "mosfet", 4), Type: mtype}
	m.Vto = 1.0
	m.Kp = 2e-5
	m.Gamma = 0
	m.Phi = 0.6
	m.Lambda = 0.02
	m.L, m.W = 1e-6, 10e-6
	m.CoxPerArea = 3.9 * 8.85e-12 / 10e-9 // rough 10nm oxide default
	if mtype == NMOS {
		m.vgs, m.vds = 0.7, 0.1
	} else {
		m.vgs, m.vds = -0.7, -0.1
	}
	return m
}

func (m *Mosfet) sign() float64 {
	if m.Type == PMOS {
		return -1
	}
	return 1
}

func (m *Mosfet) thresholdVoltage(vbs float64) float64 {
	vth := m.Vto
	if m.Gamma > 0 {
		vth += m.Gamma * (math.Sqrt(math.Max(0, m.Phi-vbs)) - math.Sqrt(m.Phi))
	}
	return vth
}

// level1Current returns (Id, region) in the device's own polarity frame
// (vgs/vds/vbs already sign-flipped for PMOS by the caller).
func (m *Mosfet) level1Current(vgs, vds, vth float64) (float64, int) {
	vgst := vgs - vth
	if vgst <= 0 {
		return 0, cutoff
	}
	beta := m.Kp * m.W / m.L
	if vds < vgst {
		return beta * (vgst*vds - 0.5*vds*vds) * (1 + m.Lambda*vds), linear
	}
	return 0.5 * beta * vgst * vgst * (1 + m.Lambda*vds), saturation
}

func (m *Mosfet) conductances(vgs, vds, vbs, vth float64) (gm, gds, gmbs float64) {
	gmin := consts.DefaultGmin
	if m.region == cutoff {
		return gmin, gmin, gmin
	}
	vgst := vgs - vth
	beta := m.Kp * m.W / m.L

	if m.region == linear {
		gm = beta * vds * (1 + m.Lambda*vds)
		gds = beta*(vgst-vds)*(1+m.Lambda*vds) + beta*m.Lambda*(vgst*vds-0.5*vds*vds)
	} else {
		gm = beta * vgst * (1 + m.Lambda*vds)
		gds = 0.5 * beta * vgst * vgst * m.Lambda
	}
	if gds < gmin {
		gds = gmin
	}

	gmbs = gmin
	if m.Gamma > 0 && m.Phi > 0 && vbs < m.Phi {
		gmbs = gm * m.Gamma / (2.0 * math.Sqrt(m.Phi-vbs))
	}
	return
}

func (m *Mosfet) meyerCapacitances() {
	cgate := m.CoxPerArea * m.W * m.L
	switch m.region {
	case cutoff:
		m.cgb, m.cgs, m.cgd = 2.0*cgate/3.0, 0, 0
	case linear:
		m.cgs, m.cgd, m.cgb = cgate/2.0, cgate/2.0, 0
	default: // saturation
		m.cgs, m.cgd, m.cgb = 2.0*cgate/3.0, 0, cgate/3.0
	}
}

func (m *Mosfet) Stamp(mat matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	nd, ng, ns, nb := m.Terminals()[0], m.Terminals()[1], m.Terminals()[2], m.Terminals()[3]
	sign := m.sign()

	vgs, vds, vbs := sign*m.vgs, sign*m.vds, sign*m.vbs
	vth := m.thresholdVoltage(vbs)

	var idLocal float64
	idLocal, m.region = m.level1Current(vgs, vds, vth)
	m.id = sign * idLocal
	m.prevId = m.id

	gm, gds, gmbs := m.conductances(vgs, vds, vbs, vth)
	m.gm, m.gds, m.gmbs = sign*gm, gds, sign*gmbs
	m.meyerCapacitances()

	gmin := st.Gmin
	if gmin <= 0 {
		gmin = consts.DefaultGmin
	}

	if nd != 0 {
		mat.AddElement(nd, nd, m.gds+gmin)
		if ng != 0 {
			mat.AddElement(nd, ng, m.gm)
		}
		if ns != 0 {
			mat.AddElement(nd, ns, -m.gds-m.gm-m.gmbs)
		}
		if nb != 0 {
			mat.AddElement(nd, nb, m.gmbs)
		}
		mat.AddRHS(nd, -m.id+m.gds*m.vds+m.gm*m.vgs+m.gmbs*m.vbs)
	}
	if ns != 0 {
		mat.AddElement(ns, ns, m.gds+m.gm+m.gmbs+gmin)
		if nd != 0 {
			mat.AddElement(ns, nd, -m.gds)
		}
		if ng != 0 {
			mat.AddElement(ns, ng, -m.gm)
		}
		if nb != 0 {
			mat.AddElement(ns, nb, -m.gmbs)
		}
		mat.AddRHS(ns, m.id-m.gds*m.vds-m.gm*m.vgs-m.gmbs*m.vbs)
	}

	if st.Mode == Transient && st.TimeStep > 0 && ng != 0 {
		dt := st.TimeStep
		m.qgs, m.qgd, m.qgb = m.cgs*m.vgs, m.cgd*(m.vgs-m.vds), m.cgb*(m.vgs-m.vbs)
		icgs := (m.qgs - m.prevQgs) / dt
		icgd := (m.qgd - m.prevQgd) / dt
		icgb := (m.qgb - m.prevQgb) / dt

		if nd != 0 {
			mat.AddElement(ng, nd, m.cgd/dt)
			mat.AddElement(nd, ng, m.cgd/dt)
			mat.AddRHS(ng, icgd)
			mat.AddRHS(nd, -icgd)
		}
		if ns != 0 {
			mat.AddElement(ng, ns, m.cgs/dt)
			mat.AddElement(ns, ng, m.cgs/dt)
			mat.AddRHS(ng, icgs)
			mat.AddRHS(ns, -icgs)
		}
		if nb != 0 {
			mat.AddElement(ng, nb, m.cgb/dt)
			mat.AddElement(nb, ng, m.cgb/dt)
			mat.AddRHS(ng, icgb)
			mat.AddRHS(nb, -icgb)
		}
		mat.AddElement(ng, ng, (m.cgd+m.cgs+m.cgb)/dt)
	}

	return nil
}

func (m *Mosfet) limitJunction(v float64) float64 {
	if v > 0.9 {
		return 0.9
	}
	if v < -5.0 {
		return -5.0
	}
	return v
}

func (m *Mosfet) UpdateVoltages(x []float64) error {
	vd := NodeVoltage(x, m.Terminals()[0])
	vg := NodeVoltage(x, m.Terminals()[1])
	vs := NodeVoltage(x, m.Terminals()[2])
	vb := NodeVoltage(x, m.Terminals()[3])

	sign := m.sign()
	m.vgs = sign * m.limitJunction(sign*(vg-vs))
	m.vds = sign * (vd - vs)
	m.vbs = sign * m.limitJunction(sign*(vb-vs))
	return nil
}

func (m *Mosfet) Commit(x []float64, dt float64, en *env.Environment) error {
	m.prevVgs, m.prevVds = m.vgs, m.vds
	m.prevQgs, m.prevQgd, m.prevQgb = m.qgs, m.qgd, m.qgb
	return nil
}

// LocalLTE mirrors the other nonlinear devices' device-local error
// estimate for the adaptive step controller.
func (m *Mosfet) LocalLTE(dt float64) float64 {
	return math.Max(math.Abs(m.vgs-m.prevVgs), math.Abs(m.vds-m.prevVds))
}
