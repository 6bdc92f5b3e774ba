package device

import (
	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// Spst is a single-pole single-throw mechanical switch: a two-state
// resistor (Ron closed, Roff open), the simplest possible stamping and
// the base every other switch kind in this file composes from. Not in
// catalogue; grounded on Resistor's stampConductance
// idiom in passive.go rather than introducing a new stamping pattern.
type Spst struct {
	Base
	Ron, Roff float64
	Closed    bool
}

func NewSPST(id int, name string) *Spst {
	return &Spst{Base: NewBase(id, name, "spst", 2), Ron: 0.01, Roff: 1e9}
}

func (s *Spst) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	r := s.Roff
	if s.Closed {
		r = s.Ron
	}
	stampConductance(m, s.Terminals()[0], s.Terminals()[1], 1.0/r)
	return nil
}

// Spdt is a single-pole double-throw switch: the common pole connects
// to exactly one of two throw terminals.
type Spdt struct {
	Base
	Ron, Roff float64
	ThrowB    bool // false routes common->A (pin2), true routes common->B (pin3)
}

// pin order: 1=common, 2=A, 3=B
func NewSPDT(id int, name string) *Spdt {
	return &Spdt{Base: NewBase(id, name, "spdt", 3), Ron: 0.01, Roff: 1e9}
}

func (s *Spdt) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	common, a, b := s.Terminals()[0], s.Terminals()[1], s.Terminals()[2]
	if !s.ThrowB {
		stampConductance(m, common, a, 1.0/s.Ron)
		stampConductance(m, common, b, 1.0/s.Roff)
	} else {
		stampConductance(m, common, a, 1.0/s.Roff)
		stampConductance(m, common, b, 1.0/s.Ron)
	}
	return nil
}

// Dpdt is two independently-driven Spdt sections ganged onto one
// ThrowB control, as in a real double-pole-double-throw toggle.
type Dpdt struct {
	Base
	Ron, Roff float64
	ThrowB    bool
}

// pin order: 1=common1, 2=A1, 3=B1, 4=common2, 5=A2, 6=B2
func NewDPDT(id int, name string) *Dpdt {
	return &Dpdt{Base: NewBase(id, name, "dpdt", 6), Ron: 0.01, Roff: 1e9}
}

func (d *Dpdt) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := d.Terminals()
	on, off := 1.0/d.Ron, 1.0/d.Roff
	if !d.ThrowB {
		stampConductance(m, t[0], t[1], on)
		stampConductance(m, t[0], t[2], off)
		stampConductance(m, t[3], t[4], on)
		stampConductance(m, t[3], t[5], off)
	} else {
		stampConductance(m, t[0], t[1], off)
		stampConductance(m, t[0], t[2], on)
		stampConductance(m, t[3], t[4], off)
		stampConductance(m, t[3], t[5], on)
	}
	return nil
}

// PushButton is a momentary SPST that only stays Closed while an
// external driver (e.g. the same interactive surface that edits
// env.Environment) holds it so; it has no internal timing of its own.
type PushButton struct {
	Base
	Ron, Roff   float64
	NormallyOn  bool // true = normally-closed push-to-break
	Pressed     bool
}

func NewPushButton(id int, name string) *PushButton {
	return &PushButton{Base: NewBase(id, name, "pushbutton", 2), Ron: 0.01, Roff: 1e9}
}

func (p *PushButton) closed() bool {
	if p.NormallyOn {
		return !p.Pressed
	}
	return p.Pressed
}

func (p *PushButton) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	r := p.Roff
	if p.closed() {
		r = p.Ron
	}
	stampConductance(m, p.Terminals()[0], p.Terminals()[1], 1.0/r)
	return nil
}

// AnalogSwitch is a voltage-controlled switch (the 4066/4016 CMOS
// transmission-gate family): conducts when the control-pin voltage
// crosses a threshold, rather than an externally flipped boolean. The
// control voltage only becomes known from the previous Newton
// iterate, so it implements Nonlinear instead of reading the matrix
// mid-Stamp the way a resistor would.
type AnalogSwitch struct {
	Base
	Ron, Roff, Vthreshold float64
	ActiveLow             bool

	closed bool
}

// pin order: 1, 2 (signal path), 3 (control)
func NewAnalogSwitch(id int, name string) *AnalogSwitch {
	return &AnalogSwitch{Base: NewBase(id, name, "analog_switch", 3), Ron: 50, Roff: 1e9, Vthreshold: 2.5}
}

func (a *AnalogSwitch) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	r := a.Roff
	if a.closed {
		r = a.Ron
	}
	stampConductance(m, a.Terminals()[0], a.Terminals()[1], 1.0/r)
	return nil
}

func (a *AnalogSwitch) UpdateVoltages(x []float64) error {
	vc := NodeVoltage(x, a.Terminals()[2])
	on := vc >= a.Vthreshold
	if a.ActiveLow {
		on = !on
	}
	a.closed = on
	return nil
}

// Relay is an electromechanically-actuated Spdt: a coil (modeled as a
// resistor between the coil pins) whose current, once it crosses
// PullInA, closes the contact, and which only releases once current
// drops below the lower DropOutA threshold — a hysteresis band,
// grounded on the same latch-with-hysteresis idiom Scr/Triac use in
// thyristor.go, here applied to coil current instead of anode current.
type Relay struct {
	Base
	CoilOhms        float64
	PullInA, DropOutA float64
	Ron, Roff       float64

	energized bool
	coilCurrent float64
}

// pin order: 1=coil+, 2=coil-, 3=common, 4=NO, 5=NC
func NewRelay(id int, name string) *Relay {
	return &Relay{Base: NewBase(id, name, "relay", 5), CoilOhms: 400, PullInA: 15e-3, DropOutA: 8e-3, Ron: 0.05, Roff: 1e9}
}

func (r *Relay) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := r.Terminals()
	coilP, coilN, common, no, nc := t[0], t[1], t[2], t[3], t[4]
	gmin := st.Gmin
	if gmin <= 0 {
		gmin = consts.DefaultGmin
	}
	stampConductance(m, coilP, coilN, 1.0/r.CoilOhms+gmin)

	if r.energized {
		stampConductance(m, common, no, 1.0/r.Ron)
		stampConductance(m, common, nc, 1.0/r.Roff)
	} else {
		stampConductance(m, common, no, 1.0/r.Roff)
		stampConductance(m, common, nc, 1.0/r.Ron)
	}
	return nil
}

func (r *Relay) UpdateVoltages(x []float64) error {
	v1, v2 := NodeVoltage(x, r.Terminals()[0]), NodeVoltage(x, r.Terminals()[1])
	r.coilCurrent = (v1 - v2) / r.CoilOhms
	return nil
}

func (r *Relay) Commit(x []float64, dt float64, en *env.Environment) error {
	i := r.coilCurrent
	if i < 0 {
		i = -i
	}
	if !r.energized && i >= r.PullInA {
		r.energized = true
	} else if r.energized && i < r.DropOutA {
		r.energized = false
	}
	return nil
}
