package device

import (
	"math"

	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// Transformer couples two Inductor windings through mutual inductance
// M = Coupling*sqrt(L1*L2), stamped as cross branch-row terms (-M/dt
// in transient, jωM admittance in AC small-signal), fixed to the
// two-winding case since the playground models a transformer as its
// own device kind rather than a separate coupling annotation over
// independently-placed inductors.
type Transformer struct {
	Base

	Primary, Secondary *Inductor
	Coupling           float64 // 0..1, 1.0 = ideal coupling
}

func NewTransformer(id int, name string, primary, secondary *Inductor, coupling float64) *Transformer {
	return &Transformer{
		Base:      NewBase(id, name, "transformer", 0),
		Primary:   primary,
		Secondary: secondary,
		Coupling:  coupling,
	}
}

func (t *Transformer) mutualInductance() float64 {
	return t.Coupling * math.Sqrt(t.Primary.Henries*t.Secondary.Henries)
}

func (t *Transformer) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	if t.Primary == nil || t.Secondary == nil {
		return nil
	}
	pb, sb := t.Primary.ExtraIndex(), t.Secondary.ExtraIndex()
	mij := t.mutualInductance()

	if st.Mode == ACSmallSignal {
		omega := 2 * math.Pi * st.Frequency
		m.AddComplexElement(pb, sb, 0, omega*mij)
		m.AddComplexElement(sb, pb, 0, omega*mij)
		return nil
	}

	dt := st.TimeStep
	if dt <= 0 {
		return nil
	}
	m.AddElement(pb, sb, -mij/dt)
	m.AddElement(sb, pb, -mij/dt)
	m.AddRHS(pb, -mij*t.Secondary.Current()/dt)
	m.AddRHS(sb, -mij*t.Primary.Current()/dt)
	return nil
}

// TurnsRatio reports Secondary:Primary inductance ratio's square root,
// the ideal-transformer turns ratio N2/N1 = sqrt(L2/L1).
func (t *Transformer) TurnsRatio() float64 {
	if t.Primary == nil || t.Primary.Henries <= 0 {
		return 0
	}
	return math.Sqrt(t.Secondary.Henries / t.Primary.Henries)
}

// CenterTappedTransformer is a single primary winding coupled to two
// secondary windings sharing a center-tap node (the two secondary
// Inductors' shared terminal), the common split-secondary arrangement
// used for full-wave rectifier supplies and audio push-pull output
// stages. Built by composing two Transformer-style couplings one pair
// at a time rather than introducing a three-winding mutual matrix.
type CenterTappedTransformer struct {
	Base

	Primary               *Inductor
	SecondaryA, SecondaryB *Inductor
	CouplingA, CouplingB  float64
}

func NewCenterTappedTransformer(id int, name string, primary, secA, secB *Inductor, kA, kB float64) *CenterTappedTransformer {
	return &CenterTappedTransformer{
		Base:       NewBase(id, name, "transformer_ct", 0),
		Primary:    primary,
		SecondaryA: secA,
		SecondaryB: secB,
		CouplingA:  kA,
		CouplingB:  kB,
	}
}

func (t *CenterTappedTransformer) stampPair(m matrix.DeviceMatrix, st *Status, sec *Inductor, k float64) {
	if sec == nil {
		return
	}
	pb, sb := t.Primary.ExtraIndex(), sec.ExtraIndex()
	mij := k * math.Sqrt(t.Primary.Henries*sec.Henries)

	if st.Mode == ACSmallSignal {
		omega := 2 * math.Pi * st.Frequency
		m.AddComplexElement(pb, sb, 0, omega*mij)
		m.AddComplexElement(sb, pb, 0, omega*mij)
		return
	}
	dt := st.TimeStep
	if dt <= 0 {
		return
	}
	m.AddElement(pb, sb, -mij/dt)
	m.AddElement(sb, pb, -mij/dt)
	m.AddRHS(pb, -mij*sec.Current()/dt)
	m.AddRHS(sb, -mij*t.Primary.Current()/dt)
}

func (t *CenterTappedTransformer) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	if t.Primary == nil {
		return nil
	}
	t.stampPair(m, st, t.SecondaryA, t.CouplingA)
	t.stampPair(m, st, t.SecondaryB, t.CouplingB)
	return nil
}
