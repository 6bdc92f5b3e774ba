package device

import (
	"math"

	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// Capacitor is a two-terminal linear capacitor with a backward-Euler
// companion model: a conductance/current-source pair in Transient
// mode, a gmin-only stamp in OperatingPoint mode, and a pure jωC
// admittance in ACSmallSignal mode.
type Capacitor struct {
	Base
	Farads float64

	// Electrolytic adds a reverse-voltage failure mode: once Vr is
	// exceeded the part latches into a leaky short, modeled as a large
	// parallel conductance rather than an instantaneous open/short.
	Electrolytic  bool
	ReverseRating float64

	voltage0, voltage1 float64
	current0           float64
}

func NewCapacitor(id int, name string, farads float64) *Capacitor {
	return &Capacitor{Base: NewBase(id, name, "capacitor", 2), Farads: farads}
}

func NewElectrolyticCapacitor(id int, name string, farads, reverseRating float64) *Capacitor {
	c := NewCapacitor(id, name, farads)
	c.Electrolytic = true
	c.ReverseRating = reverseRating
	return c
}

// SetInitialVoltage seeds the remembered terminal voltage a transient
// run starts from, analogous to a SPICE .ic directive; it bypasses the
// usual Commit path so callers can establish a non-zero starting state
// (e.g. a charged tank circuit) before the first Step.
func (c *Capacitor) SetInitialVoltage(v float64) {
	c.voltage0 = v
	c.voltage1 = v
}

func (c *Capacitor) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := c.Terminals()[0], c.Terminals()[1]

	if c.Electrolytic && c.Thermal.Failed {
		stampConductance(m, n1, n2, 1.0/10.0) // latched leaky short
		return nil
	}

	switch st.Mode {
	case ACSmallSignal:
		omega := 2 * math.Pi * st.Frequency
		stampComplexConductance(m, n1, n2, 0, omega*c.Farads)

	case OperatingPoint:
		gmin := st.Gmin
		if gmin <= 0 {
			gmin = 1e-12
		}
		stampConductance(m, n1, n2, gmin)

	default: // Transient
		dt := st.TimeStep
		if dt <= 0 {
			dt = 1e-9
		}
		geq := c.Farads / dt
		ceq := geq * c.voltage0
		stampConductance(m, n1, n2, geq)
		if n1 != 0 {
			m.AddRHS(n1, ceq)
		}
		if n2 != 0 {
			m.AddRHS(n2, -ceq)
		}
	}
	return nil
}

func (c *Capacitor) Commit(x []float64, dt float64, en *env.Environment) error {
	v1, v2 := NodeVoltage(x, c.Terminals()[0]), NodeVoltage(x, c.Terminals()[1])
	vd := v1 - v2
	if dt > 0 {
		c.current0 = c.Farads * (vd - c.voltage1) / dt
	}
	c.voltage1 = c.voltage0
	c.voltage0 = vd

	if c.Electrolytic && !c.Thermal.Failed && -vd > c.ReverseRating {
		c.Thermal.Failed = true
		c.Thermal.FailureReason = "electrolytic capacitor: reverse voltage rating exceeded"
	}
	return nil
}

// LocalLTE estimates the charge-based local truncation error for this
// step, used as a fallback signal alongside Richardson extrapolation.
func (c *Capacitor) LocalLTE(dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	qNew := c.Farads * c.voltage0
	qOld := c.Farads * c.voltage1
	return math.Abs(qNew-qOld) / (2.0 * dt)
}

func (c *Capacitor) Voltage() float64 { return c.voltage0 }
func (c *Capacitor) Current() float64 { return c.current0 }
