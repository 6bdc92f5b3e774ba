package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// Bjt is a bipolar junction transistor with a Gummel-Poon/Ebers-Moll
// hybrid-pi model: Early-effect, high-level-injection, temperature-
// adjusted Is/beta, and small-signal conductance math, with voltage
// limiting collapsed to a single limiter since the solver drives one
// backward-Euler step at a time, never a predictor-corrector pair.
type Bjt struct {
	Base

	Is  float64
	Bf  float64
	Br  float64
	Nf  float64
	Nr  float64
	Vaf float64
	Var float64
	Ikf float64
	Ikr float64
	Ise float64
	Ne  float64
	Isc float64
	Nc  float64

	Cje  float64
	Vje  float64
	Mje  float64
	Cjc  float64
	Vjc  float64
	Mjc  float64
	Tf   float64
	Xtf  float64
	Vtf  float64
	Itf  float64
	Tr   float64

	Xtb  float64
	Eg   float64
	Xti  float64
	Tnom float64

	vbe, vbc, vce  float64
	ic, ib, ie     float64
	gm, gpi, gmu, gout float64

	prevVbe, prevVbc float64
	prevIc, prevIb   float64

	cachedTempC float64
}

// pin order: 1=collector, 2=base, 3=emitter
func NewBJT(id int, name string) *Bjt {
	b := &Bjt{Base: NewBase(id, name, "bjt", 3)}
	b.setDefaults()
	b.vbe, b.vce = 0.7, 0.3
	b.vbc = b.vbe - b.vce
	return b
}

func (b *Bjt) setDefaults() {
	b.Is, b.Bf, b.Br = 1e-16, 100.0, 1.0
	b.Nf, b.Nr = 1.0, 1.0
	b.Vaf, b.Var = 100.0, 100.0
	b.Ikf, b.Ikr = 0.01, 0.01
	b.Ise, b.Ne = 0, 1.5
	b.Isc, b.Nc = 0, 2.0

	b.Cje, b.Vje, b.Mje = 0, 0.75, 0.33
	b.Cjc, b.Vjc, b.Mjc = 0, 0.75, 0.33
	b.Tf, b.Xtf, b.Vtf, b.Itf = 0, 0, 0, 0
	b.Tr = 0

	b.Xtb, b.Eg, b.Xti, b.Tnom = 0, 1.11, 3.0, consts.RoomTempK
}

func (b *Bjt) thermalVoltage(tempK float64) float64 {
	if tempK <= 0 {
		tempK = consts.RoomTempK
	}
	return consts.Boltzmann * tempK / consts.Charge
}

func (b *Bjt) temperatureAdjustedIs(tempK float64) float64 {
	ratio := tempK / b.Tnom
	vg := b.Eg * consts.Charge
	dvg := vg * (1 - tempK/b.Tnom)
	arg := dvg/(consts.Boltzmann*tempK) + b.Xti*math.Log(ratio)
	return b.Is * math.Pow(ratio, b.Xti/b.Nf) * math.Exp(arg)
}

func (b *Bjt) temperatureAdjustedBeta(tempK float64) (float64, float64) {
	ratio := tempK / b.Tnom
	return b.Bf * math.Pow(ratio, b.Xtb), b.Br * math.Pow(ratio, b.Xtb)
}

func (b *Bjt) limitExp(x float64) float64 {
	if x > 80.0 {
		return math.Exp(80.0)
	}
	if x < -80.0 {
		return math.Exp(-80.0)
	}
	return math.Exp(x)
}

func (b *Bjt) diodeCurrentSlope(v, is, vt float64) (float64, float64) {
	if v < -3.0*vt {
		return -is, 0.0
	}
	arg := v / vt
	if arg > 40 {
		arg = 40
	}
	ev := b.limitExp(arg)
	return is * (ev - 1.0), is * ev / vt
}

func (b *Bjt) calculateChargeFactor(vbe, vbc, iF, iR float64) float64 {
	q1 := 1.0
	if b.Vaf > 0 || b.Var > 0 {
		q1 = 1.0 / (1.0 - vbc/math.Max(b.Vaf, 1e-10) - vbe/math.Max(b.Var, 1e-10))
	}
	q2 := 0.0
	if b.Ikf > 0 {
		q2 += iF / b.Ikf
	}
	if b.Ikr > 0 {
		q2 += iR / b.Ikr
	}
	return q1 * (1.0 + (1.0+4.0*q2)*0.5)
}

func (b *Bjt) calculateCurrents(vbe, vbc, tempK float64) (ic, ib, ie float64) {
	vt := b.thermalVoltage(tempK)
	isT := b.temperatureAdjustedIs(tempK)
	bfT, brT := b.temperatureAdjustedBeta(tempK)

	iF, _ := b.diodeCurrentSlope(vbe, isT, vt)
	iR, _ := b.diodeCurrentSlope(vbc, isT, vt)

	qb := b.calculateChargeFactor(vbe, vbc, iF, iR)
	if b.Vaf > 0 {
		iF *= 1.0 + vbc/math.Max(b.Vaf, 1e-10)
	}
	if b.Var > 0 {
		iR *= 1.0 + vbe/math.Max(b.Var, 1e-10)
	}
	if b.Ikf > 0 {
		iF /= 1.0 + math.Abs(iF/(b.Ikf*qb))
	}
	if b.Ikr > 0 {
		iR /= 1.0 + math.Abs(iR/(b.Ikr*qb))
	}

	ib = iF/bfT + iR/brT
	ic = iF - iR
	ie = -(ic + ib)
	return
}

func (b *Bjt) calculateConductances(vbe, vbc, ic, ib, tempK float64) (gm, gpi, gmu, gout float64) {
	vt := b.thermalVoltage(tempK)
	isT := b.temperatureAdjustedIs(tempK)
	gmin := consts.DefaultGmin

	gm = math.Max(math.Abs(ic)/(b.Nf*vt), gmin)
	gpi = math.Max(math.Abs(ib)/(b.Nf*vt), gmin)

	gmu = gmin
	if vbc > -3.0*b.Nr*vt {
		gmu = math.Max(isT*math.Exp(vbc/(b.Nr*vt))/(b.Nr*vt), gmin)
	}

	gout = gmin
	if b.Vaf > 0 {
		gout += math.Abs(ic) / math.Max(b.Vaf, 1.0)
	}
	return
}

func (b *Bjt) calculateCapacitances() (cbe, cbc float64) {
	cbe, cbc = b.Cje, b.Cjc
	if b.Tf > 0 {
		cbe += b.Tf * b.gm
	}
	if b.Tr > 0 {
		cbc += b.Tr * b.gmu
	}
	return
}

func (b *Bjt) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	b.cachedTempC = en.TemperatureC
	tempK := en.TemperatureC + consts.KelvinOffset

	nc, nb, ne := b.Terminals()[0], b.Terminals()[1], b.Terminals()[2]

	b.ic, b.ib, b.ie = b.calculateCurrents(b.vbe, b.vbc, tempK)
	b.gm, b.gpi, b.gmu, b.gout = b.calculateConductances(b.vbe, b.vbc, b.ic, b.ib, tempK)

	gmin := st.Gmin
	if gmin <= 0 {
		gmin = consts.DefaultGmin
	}
	b.gpi += gmin
	b.gmu += gmin
	b.gout += gmin

	if st.Mode == ACSmallSignal {
		return b.stampAC(m, st)
	}

	if nc != 0 {
		m.AddElement(nc, nc, b.gout+b.gmu)
		if nb != 0 {
			m.AddElement(nc, nb, -b.gmu)
		}
		if ne != 0 {
			m.AddElement(nc, ne, -b.gout-b.gm)
		}
		m.AddRHS(nc, -(b.ic - b.gout*b.vce + b.gmu*b.vbc))
	}
	if nb != 0 {
		m.AddElement(nb, nb, b.gpi+b.gmu)
		if nc != 0 {
			m.AddElement(nb, nc, -b.gmu)
		}
		if ne != 0 {
			m.AddElement(nb, ne, -b.gpi)
		}
		m.AddRHS(nb, -(b.ib + b.gmu*b.vbc + b.gpi*b.vbe))
	}
	if ne != 0 {
		m.AddElement(ne, ne, b.gout+b.gm+b.gpi)
		if nc != 0 {
			m.AddElement(ne, nc, -b.gout)
		}
		if nb != 0 {
			m.AddElement(ne, nb, -b.gpi-b.gm)
		}
		m.AddRHS(ne, -(b.ie + b.gout*b.vce + b.gpi*b.vbe + b.gm*b.vbe))
	}
	return nil
}

func (b *Bjt) stampAC(m matrix.DeviceMatrix, st *Status) error {
	nc, nb, ne := b.Terminals()[0], b.Terminals()[1], b.Terminals()[2]
	cbe, cbc := b.calculateCapacitances()
	omega := 2 * math.Pi * st.Frequency

	if nb != 0 {
		m.AddComplexElement(nb, nb, b.gpi+b.gmu, omega*(cbe+cbc))
		if nc != 0 {
			m.AddComplexElement(nb, nc, -b.gmu, -omega*cbc)
		}
	}
	if nc != 0 {
		if nb != 0 {
			m.AddComplexElement(nc, nb, -b.gmu+b.gm, -omega*cbc)
		}
		m.AddComplexElement(nc, nc, b.gout+b.gmu, omega*cbc)
	}
	if ne == 0 {
		if nb != 0 {
			m.AddComplexElement(nb, nb, b.gpi+b.gm, omega*cbe)
		}
		if nc != 0 {
			m.AddComplexElement(nc, nc, b.gout+b.gm, 0)
		}
		if nb != 0 && nc != 0 {
			m.AddComplexElement(nc, nb, b.gm, 0)
		}
	}
	return nil
}

// limitJunction reproduces SPICE3F5-style pnjlim voltage limiting, now
// applied unconditionally instead of switching on a predict/normal
// multistep mode the playground never enters.
func (b *Bjt) limitJunction(vnew, vt float64) float64 {
	if vnew > 0.8 {
		return 0.8 + vt*math.Log(1.0+(vnew-0.8)/(2.0*vt))
	}
	if vnew < -5.0 {
		return -5.0
	}
	return vnew
}

func (b *Bjt) UpdateVoltages(x []float64) error {
	vc, vb, ve := NodeVoltage(x, b.Terminals()[0]), NodeVoltage(x, b.Terminals()[1]), NodeVoltage(x, b.Terminals()[2])

	tempK := b.cachedTempC + consts.KelvinOffset
	if b.cachedTempC == 0 {
		tempK = consts.RoomTempK
	}
	vt := b.thermalVoltage(tempK)

	b.vbe = b.limitJunction(vb-ve, b.Nf*vt)
	b.vbc = b.limitJunction(vb-vc, b.Nr*vt)
	b.vce = vc - ve
	return nil
}

func (b *Bjt) Commit(x []float64, dt float64, en *env.Environment) error {
	b.prevVbe, b.prevVbc = b.vbe, b.vbc
	b.prevIc, b.prevIb = b.ic, b.ib
	return nil
}

// LocalLTE mirrors CalculateLTE for the device-local
// adaptive step controller.
func (b *Bjt) LocalLTE(dt float64) float64 {
	dv := math.Max(math.Abs(b.vbe-b.prevVbe), math.Abs(b.vbc-b.prevVbc))
	di := math.Max(math.Abs(b.ic-b.prevIc), math.Abs(b.ib-b.prevIb))
	return math.Max(dv, di)
}
