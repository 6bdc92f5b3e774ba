package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// Variant selects which real-world diode behavior the shared Shockley
// companion model approximates, since diode.go already
// carries every field a variant needs (Is, N, Bv, Cj0/Vj/M) through
// field defaults rather than one Go type per variant.
type Variant int

const (
	Regular Variant = iota
	Zener
	Schottky
	LED
	Varactor
	Tunnel
	Photodiode
)

// Diode is a two-terminal nonlinear junction device with a Shockley
// large-signal model, Norton-equivalent linearization, and an optional
// small-signal junction capacitance — grounded directly on the
// diode.go's own structure (calculateCurrent/calculateConductance/
// calculateJunctionCap/UpdateVoltages), generalized from one hardcoded
// parameter set to a Variant-selected one.
type Diode struct {
	Base

	Variant Variant

	Is   float64 // saturation current
	N    float64 // ideality factor
	Cj0  float64 // zero-bias junction capacitance
	M    float64 // grading coefficient
	Vj   float64 // built-in potential
	Bv   float64 // breakdown voltage (positive magnitude)
	Gmin float64

	ForwardVoltsLED float64 // LED: characteristic forward drop at rated current
	TunnelPeakV     float64 // Tunnel: peak voltage of the negative-resistance hump
	TunnelPeakI     float64 // Tunnel: peak current of the hump
	Responsivity    float64 // Photodiode: amps of photocurrent per unit env.Light

	vd, id, gd   float64
	vdPrev       float64
	photoCurrent float64

	LightOutput float64 // LED: proportional to forward current, for external observation
}

func NewDiode(id int, name string, variant Variant) *Diode {
	d := &Diode{Base: NewBase(id, name, "diode", 2), Variant: variant}
	d.setDefaults()
	return d
}

func (d *Diode) setDefaults() {
	d.Is = 1e-14
	d.N = 1.0
	d.Cj0 = 0
	d.M = 0.5
	d.Vj = 1.0
	d.Bv = 100.0
	d.Gmin = consts.DefaultGmin

	switch d.Variant {
	case Zener:
		d.Bv = 5.1
	case Schottky:
		d.Is = 1e-9
		d.N = 1.05
	case LED:
		d.Is = 1e-18
		d.N = 2.0
		d.ForwardVoltsLED = 2.0
	case Varactor:
		d.Cj0 = 10e-12
		d.Vj = 0.7
		d.M = 0.45
	case Tunnel:
		d.TunnelPeakV = 0.065
		d.TunnelPeakI = 1e-3
	case Photodiode:
		d.Is = 1e-12
		d.Responsivity = 0.5
	}
}

func (d *Diode) thermalVoltage(en *env.Environment) float64 {
	return consts.ThermalVoltage(en.TemperatureC)
}

func (d *Diode) current(vd, vt float64) float64 {
	base := d.shockleyCurrent(vd, vt)
	if d.Variant == Tunnel {
		base += d.tunnelCurrent(vd)
	}
	if d.Variant == Photodiode {
		base -= d.photoCurrent
	}
	return base
}

func (d *Diode) shockleyCurrent(vd, vt float64) float64 {
	if vd >= -5*vt {
		expArg := vd / (d.N * vt)
		if expArg > 40 {
			expArg = 40
		}
		return d.Is * (math.Exp(expArg) - 1)
	}
	if vd < -d.Bv {
		return -d.Is * (1 + (vd+d.Bv)/vt)
	}
	return -d.Is
}

// tunnelCurrent adds the Esaki negative-differential-resistance hump:
// a Gaussian-shaped excess current peaking at TunnelPeakV, domain
// knowledge not present in model (no SPICE tunnel-diode
// primitive exists to ground it on), layered on top of the ordinary
// diffusion current above.
func (d *Diode) tunnelCurrent(vd float64) float64 {
	if vd <= 0 || d.TunnelPeakV <= 0 {
		return 0
	}
	x := vd / d.TunnelPeakV
	return d.TunnelPeakI * x * math.Exp(1-x)
}

func (d *Diode) conductance(vd, id, vt float64) float64 {
	if vd >= -5*vt {
		g := (id+d.Is)/(d.N*vt) + d.Gmin
		if d.Variant == Tunnel {
			g += d.tunnelConductance(vd)
		}
		return g
	}
	if vd < -d.Bv {
		return d.Is/vt + d.Gmin
	}
	return d.Gmin
}

func (d *Diode) tunnelConductance(vd float64) float64 {
	if vd <= 0 || d.TunnelPeakV <= 0 {
		return 0
	}
	x := vd / d.TunnelPeakV
	// d/dV [Ip*x*exp(1-x)] = (Ip/Vp)*(1-x)*exp(1-x)
	return (d.TunnelPeakI / d.TunnelPeakV) * (1 - x) * math.Exp(1-x)
}

func (d *Diode) junctionCap(vd float64) float64 {
	if d.Cj0 == 0 {
		return 0
	}
	if vd < 0 {
		arg := 1 - vd/d.Vj
		if arg < 0.1 {
			arg = 0.1
		}
		return d.Cj0 / math.Pow(arg, d.M)
	}
	return d.Cj0 * (1 + d.M*vd/d.Vj)
}

func (d *Diode) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := d.Terminals()[0], d.Terminals()[1]
	vt := d.thermalVoltage(en)

	if d.Variant == Photodiode {
		d.photoCurrent = d.Responsivity * en.Light
	}

	d.id = d.current(d.vd, vt)
	d.gd = d.conductance(d.vd, d.id, vt)

	if st.Mode == ACSmallSignal {
		cj := d.junctionCap(d.vd)
		omega := 2 * math.Pi * st.Frequency
		stampComplexConductance(m, n1, n2, d.gd, omega*cj)
		return nil
	}

	ieq := d.id - d.gd*d.vd
	if n1 != 0 {
		m.AddElement(n1, n1, d.gd)
		if n2 != 0 {
			m.AddElement(n1, n2, -d.gd)
		}
		m.AddRHS(n1, -ieq)
	}
	if n2 != 0 {
		if n1 != 0 {
			m.AddElement(n2, n1, -d.gd)
		}
		m.AddElement(n2, n2, d.gd)
		m.AddRHS(n2, ieq)
	}
	return nil
}

func (d *Diode) UpdateVoltages(x []float64) error {
	v1, v2 := NodeVoltage(x, d.Terminals()[0]), NodeVoltage(x, d.Terminals()[1])
	d.vd = v1 - v2
	return nil
}

func (d *Diode) Commit(x []float64, dt float64, en *env.Environment) error {
	d.vdPrev = d.vd
	if d.Variant == LED && d.id > 0 {
		d.LightOutput = d.id
	} else {
		d.LightOutput = 0
	}
	return nil
}

// LocalLTE mirrors diode CalculateLTE (|Δvd|) for the
// device-local adaptive step controller.
func (d *Diode) LocalLTE(dt float64) float64 {
	return math.Abs(d.vd - d.vdPrev)
}
