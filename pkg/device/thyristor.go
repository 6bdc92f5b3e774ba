package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// Scr is a silicon-controlled rectifier modeled as a latching switch
// rather than the classic two-transistor regenerative-feedback circuit:
// not present in catalogue, so this is domain knowledge,
// grounded on the shared Shockley-conductance idiom Diode already
// establishes (forward-conducting junction with a Gmin floor) rather
// than on a specific prior implementation. Latching on (breakover or
// gate trigger) is decided in UpdateVoltages from the current Newton
// iterate, so it can switch mid-iteration; unlatching below Ihold is
// decided only in Commit.
type Scr struct {
	Base

	Vdrop  float64 // on-state forward voltage drop
	Ron    float64 // on-state series resistance
	Roff   float64 // off-state (blocking) resistance
	Vbo    float64 // forward breakover voltage, latches without gate trigger
	Igt    float64 // gate trigger current threshold
	Rgk    float64 // internal gate-cathode resistance, sets gate current from Vgk
	Ihold  float64 // holding current; anode current below this unlatches

	latched bool
	iAnode  float64
}

// pin order: 1=anode, 2=cathode, 3=gate
func NewSCR(id int, name string) *Scr {
	s := &Scr{Base: NewBase(id, name, "scr", 3)}
	s.Vdrop, s.Ron, s.Roff = 1.0, 0.05, 1e6
	s.Vbo = 200.0
	s.Igt, s.Rgk = 10e-3, 100.0
	s.Ihold = 50e-3
	return s
}

func (s *Scr) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	na, nc, ng := s.Terminals()[0], s.Terminals()[1], s.Terminals()[2]
	gmin := st.Gmin
	if gmin <= 0 {
		gmin = consts.DefaultGmin
	}

	if s.latched {
		g := 1.0 / s.Ron
		ieq := s.Vdrop * g
		stampConductance(m, na, nc, g)
		if na != 0 {
			m.AddRHS(na, -ieq)
		}
		if nc != 0 {
			m.AddRHS(nc, ieq)
		}
	} else {
		stampConductance(m, na, nc, 1.0/s.Roff+gmin)
	}

	if ng != 0 {
		stampConductance(m, ng, nc, 1.0/s.Rgk+gmin)
	}
	return nil
}

// UpdateVoltages reads the Newton iterate for the anode current
// estimate and gate current, and latches the device on at once when
// breakover or the gate trigger is reached; the unlatch transition is
// applied in Commit.
func (s *Scr) UpdateVoltages(x []float64) error {
	va := NodeVoltage(x, s.Terminals()[0])
	vc := NodeVoltage(x, s.Terminals()[1])
	vg := NodeVoltage(x, s.Terminals()[2])

	vak := va - vc
	vgk := vg - vc
	igate := vgk / s.Rgk

	if s.latched {
		s.iAnode = (vak - s.Vdrop) / s.Ron
	} else {
		s.iAnode = vak / s.Roff
		if vak >= s.Vbo || (vak > 0 && igate >= s.Igt) {
			s.latched = true
		}
	}
	return nil
}

func (s *Scr) Commit(x []float64, dt float64, en *env.Environment) error {
	if s.latched && math.Abs(s.iAnode) < s.Ihold {
		s.latched = false
	}
	return nil
}

func (s *Scr) BranchCurrent(x []float64) float64 { return s.iAnode }

// Diac is a bidirectional breakover-triggered switch (no gate): blocks
// until |Vak| exceeds Vbo, then snaps to a low-resistance conducting
// state until current falls below Ihold, symmetric in both polarities.
type Diac struct {
	Base

	Vbo, Vdrop, Ron, Roff, Ihold float64

	latched bool
	current float64
}

// pin order: 1, 2 (symmetric, no polarity)
func NewDiac(id int, name string) *Diac {
	d := &Diac{Base: NewBase(id, name, "diac", 2)}
	d.Vbo, d.Vdrop, d.Ron, d.Roff, d.Ihold = 30.0, 5.0, 10.0, 1e6, 1e-3
	return d
}

func (d *Diac) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := d.Terminals()[0], d.Terminals()[1]
	gmin := st.Gmin
	if gmin <= 0 {
		gmin = consts.DefaultGmin
	}
	if !d.latched {
		stampConductance(m, n1, n2, 1.0/d.Roff+gmin)
		return nil
	}
	g := 1.0 / d.Ron
	sign := 1.0
	if d.current < 0 {
		sign = -1.0
	}
	stampConductance(m, n1, n2, g)
	ieq := sign * d.Vdrop * g
	if n1 != 0 {
		m.AddRHS(n1, -ieq)
	}
	if n2 != 0 {
		m.AddRHS(n2, ieq)
	}
	return nil
}

func (d *Diac) UpdateVoltages(x []float64) error {
	v1, v2 := NodeVoltage(x, d.Terminals()[0]), NodeVoltage(x, d.Terminals()[1])
	v := v1 - v2
	if d.latched {
		mag := math.Abs(v) - d.Vdrop
		sign := 1.0
		if v < 0 {
			sign = -1.0
		}
		d.current = sign * mag / d.Ron
	} else {
		d.current = v / d.Roff
		if math.Abs(v) >= d.Vbo {
			d.latched = true
		}
	}
	return nil
}

func (d *Diac) Commit(x []float64, dt float64, en *env.Environment) error {
	if d.latched && math.Abs(d.current) < d.Ihold {
		d.latched = false
	}
	return nil
}

func (d *Diac) BranchCurrent(x []float64) float64 { return d.current }

// Triac is a bidirectional thyristor: two antiparallel Scr-style
// latches sharing a single gate, conducting in whichever polarity was
// triggered, built by composing two independent latch states rather
// than Scr's two-transistor-regeneration physics — consistent with how
// Scr itself simplifies to a latch state machine above (latch-on in
// UpdateVoltages, unlatch in Commit).
type Triac struct {
	Base

	Vdrop, Ron, Roff, Vbo, Igt, Rgk, Ihold float64

	latchedPos, latchedNeg bool
	current                float64
}

// pin order: 1=MT2, 2=MT1, 3=gate
func NewTriac(id int, name string) *Triac {
	t := &Triac{Base: NewBase(id, name, "triac", 3)}
	t.Vdrop, t.Ron, t.Roff = 1.5, 0.1, 1e6
	t.Vbo, t.Igt, t.Rgk, t.Ihold = 400.0, 30e-3, 100.0, 50e-3
	return t
}

func (t *Triac) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2, ng := t.Terminals()[0], t.Terminals()[1], t.Terminals()[2]
	gmin := st.Gmin
	if gmin <= 0 {
		gmin = consts.DefaultGmin
	}

	if t.latchedPos || t.latchedNeg {
		g := 1.0 / t.Ron
		sign := 1.0
		if t.latchedNeg {
			sign = -1.0
		}
		ieq := sign * t.Vdrop * g
		stampConductance(m, n1, n2, g)
		if n1 != 0 {
			m.AddRHS(n1, -ieq)
		}
		if n2 != 0 {
			m.AddRHS(n2, ieq)
		}
	} else {
		stampConductance(m, n1, n2, 1.0/t.Roff+gmin)
	}
	if ng != 0 {
		stampConductance(m, ng, n2, 1.0/t.Rgk+gmin)
	}
	return nil
}

func (t *Triac) UpdateVoltages(x []float64) error {
	v1 := NodeVoltage(x, t.Terminals()[0])
	v2 := NodeVoltage(x, t.Terminals()[1])
	vg := NodeVoltage(x, t.Terminals()[2])
	v := v1 - v2
	igate := (vg - v2) / t.Rgk

	switch {
	case t.latchedPos:
		t.current = (v - t.Vdrop) / t.Ron
	case t.latchedNeg:
		t.current = (v + t.Vdrop) / t.Ron
	default:
		t.current = v / t.Roff
		if v >= t.Vbo || (v > 0 && igate >= t.Igt) {
			t.latchedPos = true
		} else if v <= -t.Vbo || (v < 0 && igate <= -t.Igt) {
			t.latchedNeg = true
		}
	}
	return nil
}

func (t *Triac) Commit(x []float64, dt float64, en *env.Environment) error {
	if math.Abs(t.current) < t.Ihold {
		t.latchedPos, t.latchedNeg = false, false
	}
	return nil
}

func (t *Triac) BranchCurrent(x []float64) float64 { return t.current }
