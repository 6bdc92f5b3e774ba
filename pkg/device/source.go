package device

import (
	"math"
	"math/rand"

	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
	"github.com/circuitplayground/simcore/pkg/sweep"
)

// Waveform selects the time function a source evaluates: DC, SIN,
// PULSE, and PWL form the core set, extended with the playground's
// fuller generator catalogue.
type Waveform int

const (
	DC Waveform = iota
	SIN
	SQUARE
	TRIANGLE
	SAWTOOTH
	PULSE
	CLOCK
	PWM
	PWL
	EXPRESSION
	NOISE
)

// WaveformParams holds every field any Waveform kind needs; unused
// fields for a given kind are simply zero, a one-struct-many-kinds
// layout.
type WaveformParams struct {
	Kind Waveform

	Offset    float64
	Amplitude float64
	FreqHz    float64
	PhaseDeg  float64
	DutyCycle float64 // SQUARE/PWM/CLOCK, fraction in [0,1]

	V1, V2                     float64 // PULSE low/high
	Delay, Rise, Fall, PWidth, Period float64

	Times, Values []float64 // PWL breakpoints

	Expr func(t float64) float64 // EXPRESSION

	NoiseAmplitude float64
	noiseSource    *rand.Rand

	// Sweep modulates Amplitude/FreqHz over time via pkg/sweep, for
	// e.g. animating an LFO or a frequency ramp (Bode sweep reuses the
	// same evaluator in pkg/analysis).
	AmplitudeSweep sweep.Config
	FreqSweep      sweep.Config
}

// Value evaluates the waveform at time t.
func (p *WaveformParams) Value(t float64) float64 {
	amp := sweep.Value(p.AmplitudeSweep, p.Amplitude, t)
	freq := sweep.Value(p.FreqSweep, p.FreqHz, t)

	switch p.Kind {
	case DC:
		return p.Offset
	case SIN:
		phase := p.PhaseDeg * math.Pi / 180.0
		return p.Offset + amp*math.Sin(2*math.Pi*freq*t+phase)
	case SQUARE:
		return p.Offset + amp*squareWave(t, freq, p.DutyCycle)
	case TRIANGLE:
		return p.Offset + amp*triangleWave(t, freq)
	case SAWTOOTH:
		return p.Offset + amp*sawtoothWave(t, freq)
	case PULSE:
		return pulseValue(t, p.V1, p.V2, p.Delay, p.Rise, p.Fall, p.PWidth, p.Period)
	case CLOCK:
		duty := p.DutyCycle
		if duty <= 0 {
			duty = 0.5
		}
		if squareWave(t, freq, duty) > 0 {
			return p.V2
		}
		return p.V1
	case PWM:
		if squareWave(t, freq, p.DutyCycle) > 0 {
			return p.V2
		}
		return p.V1
	case PWL:
		return pwlValue(t, p.Times, p.Values)
	case EXPRESSION:
		if p.Expr != nil {
			return p.Expr(t)
		}
		return p.Offset
	case NOISE:
		if p.noiseSource == nil {
			p.noiseSource = rand.New(rand.NewSource(1))
		}
		return p.Offset + p.NoiseAmplitude*(2*p.noiseSource.Float64()-1)
	default:
		return p.Offset
	}
}

func squareWave(t, freq, duty float64) float64 {
	if freq <= 0 {
		return 1
	}
	if duty <= 0 {
		duty = 0.5
	}
	phase := math.Mod(t*freq, 1.0)
	if phase < 0 {
		phase += 1
	}
	if phase < duty {
		return 1
	}
	return -1
}

func triangleWave(t, freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	phase := math.Mod(t*freq, 1.0)
	if phase < 0 {
		phase += 1
	}
	return 4*math.Abs(phase-0.5) - 1
}

func sawtoothWave(t, freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	phase := math.Mod(t*freq, 1.0)
	if phase < 0 {
		phase += 1
	}
	return 2*phase - 1
}

// pulseValue computes standard PULSE breakpoint arithmetic, shared
// between voltage and current sources.
func pulseValue(t, v1, v2, delay, rise, fall, pWidth, period float64) float64 {
	if t < delay {
		return v1
	}
	t -= delay
	if period > 0 {
		t = math.Mod(t, period)
	}
	if t < rise {
		if rise == 0 {
			return v2
		}
		return v1 + (v2-v1)*t/rise
	}
	if t < rise+pWidth {
		return v2
	}
	fallStart := rise + pWidth
	if t < fallStart+fall {
		if fall == 0 {
			return v1
		}
		return v2 - (v2-v1)*(t-fallStart)/fall
	}
	return v1
}

// pwlValue performs piecewise-linear interpolation over breakpoints.
func pwlValue(t float64, times, values []float64) float64 {
	if len(times) == 0 {
		return 0
	}
	if t <= times[0] {
		return values[0]
	}
	last := len(times) - 1
	if t >= times[last] {
		return values[last]
	}
	for idx := 1; idx < len(times); idx++ {
		if t <= times[idx] {
			t1, t2 := times[idx-1], times[idx]
			v1, v2 := values[idx-1], values[idx]
			slope := (v2 - v1) / (t2 - t1)
			return v1 + slope*(t-t1)
		}
	}
	return values[last]
}

// VoltageSource is an ideal voltage source (pin 1 +, pin 2 -), stamped
// through an extra MNA branch row carrying its current as an unknown.
type VoltageSource struct {
	Base
	Params WaveformParams

	acMag, acPhaseDeg float64
}

func NewVoltageSource(id int, name string, params WaveformParams) *VoltageSource {
	return &VoltageSource{Base: NewBase(id, name, "voltage_source", 2), Params: params}
}

func (v *VoltageSource) SetACSmallSignal(mag, phaseDeg float64) {
	v.acMag, v.acPhaseDeg = mag, phaseDeg
}

func (v *VoltageSource) ExtraVars() int { return 1 }

func (v *VoltageSource) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := v.Terminals()[0], v.Terminals()[1]
	branch := v.ExtraIndex()

	if n1 != 0 {
		m.AddElement(branch, n1, 1)
		m.AddElement(n1, branch, 1)
	}
	if n2 != 0 {
		m.AddElement(branch, n2, -1)
		m.AddElement(n2, branch, -1)
	}

	if st.Mode == ACSmallSignal {
		phaseRad := v.acPhaseDeg * math.Pi / 180.0
		m.AddComplexRHS(branch, v.acMag*math.Cos(phaseRad), v.acMag*math.Sin(phaseRad))
		return nil
	}

	m.AddRHS(branch, v.Params.Value(st.Time))
	return nil
}

func (v *VoltageSource) BranchCurrent(x []float64) float64 {
	idx := v.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return -x[idx]
}

// CurrentSource is an ideal current source driving current from pin 1
// to pin 2 through the external circuit.
type CurrentSource struct {
	Base
	Params WaveformParams

	acMag, acPhaseDeg float64
}

func NewCurrentSource(id int, name string, params WaveformParams) *CurrentSource {
	return &CurrentSource{Base: NewBase(id, name, "current_source", 2), Params: params}
}

func (c *CurrentSource) SetACSmallSignal(mag, phaseDeg float64) {
	c.acMag, c.acPhaseDeg = mag, phaseDeg
}

func (c *CurrentSource) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := c.Terminals()[0], c.Terminals()[1]

	if st.Mode == ACSmallSignal {
		phaseRad := c.acPhaseDeg * math.Pi / 180.0
		real, imag := c.acMag*math.Cos(phaseRad), c.acMag*math.Sin(phaseRad)
		if n1 != 0 {
			m.AddComplexRHS(n1, real, imag)
		}
		if n2 != 0 {
			m.AddComplexRHS(n2, -real, -imag)
		}
		return nil
	}

	current := c.Params.Value(st.Time)
	if n1 != 0 {
		m.AddRHS(n1, current)
	}
	if n2 != 0 {
		m.AddRHS(n2, -current)
	}
	return nil
}

func (c *CurrentSource) BranchCurrent(x []float64) float64 {
	return c.Params.Value(0) // waveform value at t=0 (the DC value for DC); exact terminal current needs a probe resistor
}
