package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
	"github.com/circuitplayground/simcore/pkg/util"
)

// Resistor is a two-terminal linear resistor with an optional linear
// temperature coefficient.
type Resistor struct {
	Base
	OhmsAt25C  float64
	TempCoeff  float64 // fractional change in resistance per degree C
	cachedOhms float64 // set by Stamp, reused by BranchCurrent
}

func NewResistor(id int, name string, ohms, tempCoeff float64) *Resistor {
	return &Resistor{Base: NewBase(id, name, "resistor", 2), OhmsAt25C: ohms, TempCoeff: tempCoeff}
}

func (r *Resistor) ohms(en *env.Environment) float64 {
	dt := en.TemperatureC - consts.RoomTempC
	ohms := r.OhmsAt25C * (1 + r.TempCoeff*dt)
	if ohms < 1e-9 {
		ohms = 1e-9
	}
	return ohms
}

func (r *Resistor) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := r.Terminals()[0], r.Terminals()[1]
	r.cachedOhms = r.ohms(en)
	stampConductance(m, n1, n2, 1.0/r.cachedOhms)
	return nil
}

// BranchCurrent reuses the temperature-adjusted resistance from the
// most recent Stamp call rather than re-deriving it without an
// environment reference.
func (r *Resistor) BranchCurrent(x []float64) float64 {
	v1, v2 := NodeVoltage(x, r.Terminals()[0]), NodeVoltage(x, r.Terminals()[1])
	ohms := r.cachedOhms
	if ohms == 0 {
		ohms = r.OhmsAt25C
	}
	return (v1 - v2) / ohms
}

func stampConductance(m matrix.DeviceMatrix, n1, n2 int, g float64) {
	if n1 != 0 {
		m.AddElement(n1, n1, g)
		if n2 != 0 {
			m.AddElement(n1, n2, -g)
		}
	}
	if n2 != 0 {
		m.AddElement(n2, n2, g)
		if n1 != 0 {
			m.AddElement(n2, n1, -g)
		}
	}
}

func stampComplexConductance(m matrix.DeviceMatrix, n1, n2 int, real, imag float64) {
	if n1 != 0 {
		m.AddComplexElement(n1, n1, real, imag)
		if n2 != 0 {
			m.AddComplexElement(n1, n2, -real, -imag)
		}
	}
	if n2 != 0 {
		m.AddComplexElement(n2, n2, real, imag)
		if n1 != 0 {
			m.AddComplexElement(n2, n1, -real, -imag)
		}
	}
}

// Potentiometer is a three-terminal resistive divider: pin 1 (wiper
// high), pin 2 (wiper), pin 3 (wiper low). Position is in [0,1].
type Potentiometer struct {
	Base
	TotalOhms float64
	Position  float64
}

func NewPotentiometer(id int, name string, ohms, position float64) *Potentiometer {
	return &Potentiometer{Base: NewBase(id, name, "potentiometer", 3), TotalOhms: ohms, Position: position}
}

func (p *Potentiometer) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	pos := p.Position
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	rTop := p.TotalOhms * (1 - pos)
	rBottom := p.TotalOhms * pos
	if rTop < 1e-6 {
		rTop = 1e-6
	}
	if rBottom < 1e-6 {
		rBottom = 1e-6
	}
	nHigh, nWiper, nLow := p.Terminals()[0], p.Terminals()[1], p.Terminals()[2]
	stampConductance(m, nHigh, nWiper, 1.0/rTop)
	stampConductance(m, nWiper, nLow, 1.0/rBottom)
	return nil
}

// Photoresistor is a resistor whose value follows ambient light via an
// inverse power law (LDR behavior), reading env.Environment.Light.
type Photoresistor struct {
	Base
	DarkOhms  float64
	Gamma     float64 // typical LDR light-response exponent, ~0.7-0.9
}

func NewPhotoresistor(id int, name string, darkOhms, gamma float64) *Photoresistor {
	return &Photoresistor{Base: NewBase(id, name, "photoresistor", 2), DarkOhms: darkOhms, Gamma: gamma}
}

func (p *Photoresistor) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	lux := math.Max(en.Light, 1e-3)
	ohms := p.DarkOhms / math.Pow(lux, p.Gamma)
	if ohms < 1 {
		ohms = 1
	}
	stampConductance(m, p.Terminals()[0], p.Terminals()[1], 1.0/ohms)
	return nil
}

// Thermistor is an NTC resistor following the Beta parameterization,
// reading env.Environment.TemperatureC.
type Thermistor struct {
	Base
	R0    float64 // resistance at T0
	T0C   float64
	Beta  float64
}

func NewThermistor(id int, name string, r0, t0C, beta float64) *Thermistor {
	return &Thermistor{Base: NewBase(id, name, "thermistor", 2), R0: r0, T0C: t0C, Beta: beta}
}

func (t *Thermistor) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	tk := en.TemperatureC + consts.KelvinOffset
	t0k := t.T0C + consts.KelvinOffset
	ohms := t.R0 * math.Exp(t.Beta*(1/tk-1/t0k))
	if ohms < 1 {
		ohms = 1
	}
	stampConductance(m, t.Terminals()[0], t.Terminals()[1], 1.0/ohms)
	return nil
}

// Fuse is a resistor that latches open once its dissipated power
// integral exceeds a rating, modeled as a thermal fatigue accumulator
// rather than an instantaneous threshold.
type Fuse struct {
	Base
	OhmsClosed float64
	RatingJ    float64 // energy-to-blow, in joules
}

func NewFuse(id int, name string, ohmsClosed, ratingJ float64) *Fuse {
	return &Fuse{Base: NewBase(id, name, "fuse", 2), OhmsClosed: ohmsClosed, RatingJ: ratingJ}
}

func (f *Fuse) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	ohms := f.OhmsClosed
	if f.Thermal.Failed {
		ohms = 1e12
	}
	stampConductance(m, f.Terminals()[0], f.Terminals()[1], 1.0/ohms)
	return nil
}

func (f *Fuse) Commit(x []float64, dt float64, en *env.Environment) error {
	if f.Thermal.Failed {
		return nil
	}
	v1, v2 := NodeVoltage(x, f.Terminals()[0]), NodeVoltage(x, f.Terminals()[1])
	vd := v1 - v2
	power := vd * vd / f.OhmsClosed
	f.Thermal.DissipatedW = power
	f.Thermal.CumulativeDamage += power * dt
	if f.Thermal.CumulativeDamage >= f.RatingJ {
		f.Thermal.Failed = true
		f.Thermal.FailureReason = "fuse: cumulative I²R energy exceeded rating"
	}
	return nil
}

// Battery is a non-ideal voltage source whose terminal voltage sags
// with state of charge and whose remaining charge is tracked in
// Coulombs, draining by |I|*dt at every commit; pin 1 positive, pin 2
// negative. Uses an extra MNA row like VoltageSource (source.go),
// kept separate since a battery's source term depends on its own
// retained state rather than a waveform evaluated at Stamp time.
// CapacityCoulombs<=0 selects ideal mode: a fixed NominalVolts source
// with no series resistance and no Coulomb counting, matching a wire
// ideal enough not to need a discharge model.
type Battery struct {
	Base
	NominalVolts     float64
	SeriesOhms       float64
	CapacityCoulombs float64
	CutoffVolts      float64

	charge float64 // remaining Coulombs; meaningless in ideal mode
	soc    float64 // 0..1
}

func NewBattery(id int, name string, nominalVolts, seriesOhms, capacityCoulombs, cutoffVolts float64) *Battery {
	return &Battery{
		Base:             NewBase(id, name, "battery", 2),
		NominalVolts:     nominalVolts,
		SeriesOhms:       seriesOhms,
		CapacityCoulombs: capacityCoulombs,
		CutoffVolts:      cutoffVolts,
		charge:           capacityCoulombs,
		soc:              1,
	}
}

func (b *Battery) ExtraVars() int { return 1 }

func (b *Battery) ideal() bool { return b.CapacityCoulombs <= 0 }

// terminalVolts is the open-circuit voltage behind the series
// resistance: full nominal voltage in ideal mode, sagging linearly
// from 100% to 85% of nominal as charge depletes otherwise, and
// collapsed to 0 once latched discharged.
func (b *Battery) terminalVolts() float64 {
	if b.Thermal.Failed {
		return 0
	}
	if b.ideal() {
		return b.NominalVolts
	}
	return b.NominalVolts * (0.85 + 0.15*b.soc)
}

// SoC returns the fraction of rated capacity remaining (always 1 in
// ideal mode, since there is nothing to deplete).
func (b *Battery) SoC() float64 {
	if b.ideal() {
		return 1
	}
	return b.soc
}

func (b *Battery) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := b.Terminals()[0], b.Terminals()[1]
	branch := b.ExtraIndex()
	ohms := 0.0
	if !b.ideal() {
		ohms = b.SeriesOhms
	}
	if n1 != 0 {
		m.AddElement(n1, branch, 1)
		m.AddElement(branch, n1, 1)
	}
	if n2 != 0 {
		m.AddElement(n2, branch, -1)
		m.AddElement(branch, n2, -1)
	}
	if ohms != 0 {
		m.AddElement(branch, branch, -ohms)
	}
	m.AddRHS(branch, b.terminalVolts())
	return nil
}

func (b *Battery) BranchCurrent(x []float64) float64 {
	idx := b.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return x[idx]
}

// Commit integrates |I|*dt out of the remaining charge and latches
// Thermal.Failed once the sagging terminal voltage drops below
// CutoffVolts, mirroring Fuse's cumulative-damage latch idiom.
func (b *Battery) Commit(x []float64, dt float64, en *env.Environment) error {
	if b.ideal() || b.Thermal.Failed {
		return nil
	}
	current := b.BranchCurrent(x)
	b.charge -= math.Abs(current) * dt
	if b.charge < 0 {
		b.charge = 0
	}
	b.soc = b.charge / b.CapacityCoulombs
	if b.terminalVolts() < b.CutoffVolts {
		b.Thermal.Failed = true
		b.Thermal.FailureReason = "battery: discharged below cutoff voltage"
	}
	return nil
}

var _ = util.GearMethod // util.integrator stays wired through inductor.go
