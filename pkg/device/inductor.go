package device

import (
	"math"

	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
	"github.com/circuitplayground/simcore/pkg/util"
)

// Inductor is a two-terminal linear inductor stamped with an extra
// branch-current unknown and a first-order Gear (BDF1) companion
// model, wired to pkg/util's integrator coefficients rather than
// re-deriving backward-Euler inline.
type Inductor struct {
	Base
	Henries float64

	current0, current1 float64
	voltage0, voltage1 float64
}

func NewInductor(id int, name string, henries float64) *Inductor {
	return &Inductor{Base: NewBase(id, name, "inductor", 2), Henries: henries}
}

// SetInitialCurrent seeds the remembered branch current a transient
// run starts from, analogous to a SPICE .ic directive (see
// Capacitor.SetInitialVoltage).
func (l *Inductor) SetInitialCurrent(i float64) {
	l.current0 = i
	l.current1 = i
}

func (l *Inductor) ExtraVars() int { return 1 }

func (l *Inductor) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := l.Terminals()[0], l.Terminals()[1]
	branch := l.ExtraIndex()

	if st.Mode == ACSmallSignal {
		omega := 2 * math.Pi * st.Frequency
		stampComplexConductance(m, n1, n2, 0, omega*l.Henries)
		return nil
	}

	if n1 != 0 {
		m.AddElement(n1, branch, -1)
		m.AddElement(branch, n1, -1)
	}
	if n2 != 0 {
		m.AddElement(n2, branch, 1)
		m.AddElement(branch, n2, 1)
	}

	dt := st.TimeStep
	if dt <= 0 {
		dt = 1e-9
	}
	coeffs := util.GetIntegratorCoeffs(util.GearMethod, 1, dt)
	m.AddElement(branch, branch, -coeffs[0]*l.Henries)
	m.AddRHS(branch, -coeffs[0]*l.Henries*l.current0)
	return nil
}

func (l *Inductor) Commit(x []float64, dt float64, en *env.Environment) error {
	v1, v2 := NodeVoltage(x, l.Terminals()[0]), NodeVoltage(x, l.Terminals()[1])
	l.voltage1 = l.voltage0
	l.voltage0 = v1 - v2

	idx := l.ExtraIndex()
	l.current1 = l.current0
	if idx >= 1 && idx < len(x) {
		l.current0 = x[idx]
	}
	return nil
}

// LocalLTE mirrors Capacitor.LocalLTE for the device-local adaptive
// step controller.
func (l *Inductor) LocalLTE(dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	currentLTE := math.Abs(l.current0-l.current1) / (2.0 * dt)
	voltageLTE := math.Abs(l.voltage0-l.voltage1) / (2.0 * dt)
	return math.Max(currentLTE, voltageLTE)
}

func (l *Inductor) Current() float64 { return l.current0 }
func (l *Inductor) Voltage() float64 { return l.voltage0 }
