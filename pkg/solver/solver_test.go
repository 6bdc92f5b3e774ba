package solver_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/solver"
)

// TestDiodeSteadyStateCurrent reproduces scenario S4: a 0.7V DC source
// through a diode (Is=1e-12, n=1, T=300K) into a 100 Ohm load resistor
// settles where the Shockley current matches the resistor current
// (about 1.5mA, with Vd near 0.55V).
func TestDiodeSteadyStateCurrent(t *testing.T) {
	ckt := circuit.New()
	ckt.Env.Set(26.85, 0) // 300K
	src := device.NewVoltageSource(ckt.NewDeviceID(), "V1", device.WaveformParams{Kind: device.DC, Offset: 0.7})
	d := device.NewDiode(ckt.NewDeviceID(), "D1", device.Regular)
	d.Is = 1e-12
	d.N = 1.0
	res := device.NewResistor(ckt.NewDeviceID(), "R1", 100, 0)

	ckt.AddDevice(src)
	ckt.AddDevice(d)
	ckt.AddDevice(res)

	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 1}, circuit.Terminal{ComponentID: d.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: d.ID(), Pin: 2}, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(circuit.Terminal{ComponentID: res.ID(), Pin: 2}, circuit.Ground)
	require.NoError(t, ckt.Rebuild(false))

	sv := solver.New(ckt, 1e-3)
	x, err := sv.OperatingPoint()
	require.NoError(t, err)

	current := res.BranchCurrent(x)
	require.Greater(t, current, 0.0)

	// Self-consistency: the diode's own Shockley equation, evaluated at
	// its solved junction voltage, must reproduce the same branch
	// current KCL already forced through the series resistor.
	vAnode := ckt.NodeVoltage(x, circuit.Terminal{ComponentID: src.ID(), Pin: 1})
	vCathode := ckt.NodeVoltage(x, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	vd := vAnode - vCathode
	vt := 0.025852 // kT/q at 300K
	shockley := d.Is * (math.Exp(vd/vt) - 1)
	require.InDelta(t, shockley, current, current*0.05)
}

// TestInvertingOpAmpGain reproduces scenario S5: Vin -1kOhm-> V- ;
// V- -10kOhm-> Vout; V+ tied to ground; ideal op-amp. Expect
// Vout/Vin = -10 within 1%.
func TestInvertingOpAmpGain(t *testing.T) {
	ckt := circuit.New()
	vin := device.NewVoltageSource(ckt.NewDeviceID(), "Vin", device.WaveformParams{Kind: device.DC, Offset: 1.0})
	rin := device.NewResistor(ckt.NewDeviceID(), "Rin", 1000, 0)
	rfb := device.NewResistor(ckt.NewDeviceID(), "Rfb", 10000, 0)
	op := device.NewOpAmp(ckt.NewDeviceID(), "U1")

	ckt.AddDevice(vin)
	ckt.AddDevice(rin)
	ckt.AddDevice(rfb)
	ckt.AddDevice(op)

	vminus := circuit.Terminal{ComponentID: rin.ID(), Pin: 2}
	ckt.AddWire(circuit.Terminal{ComponentID: vin.ID(), Pin: 1}, circuit.Terminal{ComponentID: rin.ID(), Pin: 1})
	ckt.AddWire(vminus, circuit.Terminal{ComponentID: rfb.ID(), Pin: 1})
	ckt.AddWire(vminus, circuit.Terminal{ComponentID: op.ID(), Pin: 2}) // in-
	ckt.AddWire(circuit.Terminal{ComponentID: op.ID(), Pin: 1}, circuit.Ground) // in+
	ckt.AddWire(circuit.Terminal{ComponentID: rfb.ID(), Pin: 2}, circuit.Terminal{ComponentID: op.ID(), Pin: 3}) // out
	ckt.AddWire(circuit.Terminal{ComponentID: vin.ID(), Pin: 2}, circuit.Ground)
	require.NoError(t, ckt.Rebuild(false))

	sv := solver.New(ckt, 1e-3)
	x, err := sv.OperatingPoint()
	require.NoError(t, err)

	vout := ckt.NodeVoltage(x, circuit.Terminal{ComponentID: op.ID(), Pin: 3})
	require.InDelta(t, -10.0, vout/1.0, 0.01)
}

// TestAdaptiveStepMatchesFixedStepAtMinimum verifies property 7: an
// adaptive-step run over an RC charging circuit tracks a fixed-step
// run at dt=StepCtrl.Min within the declared tolerance.
func TestAdaptiveStepMatchesFixedStepAtMinimum(t *testing.T) {
	build := func() *circuit.Circuit {
		ckt := circuit.New()
		src := device.NewVoltageSource(ckt.NewDeviceID(), "V1", device.WaveformParams{Kind: device.DC, Offset: 5})
		res := device.NewResistor(ckt.NewDeviceID(), "R1", 1000, 0)
		cap := device.NewCapacitor(ckt.NewDeviceID(), "C1", 1e-6)
		ckt.AddDevice(src)
		ckt.AddDevice(res)
		ckt.AddDevice(cap)
		ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 1}, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
		ckt.AddWire(circuit.Terminal{ComponentID: res.ID(), Pin: 2}, circuit.Terminal{ComponentID: cap.ID(), Pin: 1})
		ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 2}, circuit.Ground)
		ckt.AddWire(circuit.Terminal{ComponentID: cap.ID(), Pin: 2}, circuit.Ground)
		require.NoError(t, ckt.Rebuild(false))
		return ckt
	}

	fixedCkt := build()
	fixedSv := solver.New(fixedCkt, 1e-6)
	_, err := fixedSv.OperatingPoint()
	require.NoError(t, err)
	for fixedCkt.Time < 1e-3 {
		_, _, err := fixedSv.Step(fixedSv.StepCtrl.Min)
		require.NoError(t, err)
	}

	adaptiveCkt := build()
	adaptiveSv := solver.New(adaptiveCkt, 1e-6)
	_, err = adaptiveSv.OperatingPoint()
	require.NoError(t, err)
	dt := 1e-6
	for adaptiveCkt.Time < 1e-3 {
		taken, errEst, err := adaptiveSv.Step(dt)
		require.NoError(t, err)
		_, dt = adaptiveSv.StepCtrl.Accept(taken, errEst)
	}

	fixedCap := fixedCkt.Devices()
	adaptiveCap := adaptiveCkt.Devices()
	var fv, av float64
	for _, d := range fixedCap {
		if c, ok := d.(*device.Capacitor); ok {
			fv = c.Voltage()
		}
	}
	for _, d := range adaptiveCap {
		if c, ok := d.(*device.Capacitor); ok {
			av = c.Voltage()
		}
	}
	require.InDelta(t, fv, av, 0.02)
}

// TestLCTankEnergyNonNegativeAndBounded verifies property 4: a lossless
// LC tank seeded with initial energy E0 keeps total energy
// non-negative throughout, and stays within a small fraction of E0
// over a quarter period at a step size a small fraction of the
// oscillation period (backward Euler is mildly dissipative, so exact
// conservation isn't expected — only boundedness as dt shrinks).
func TestLCTankEnergyNonNegativeAndBounded(t *testing.T) {
	ckt := circuit.New()
	l := device.NewInductor(ckt.NewDeviceID(), "L1", 1e-3)
	c := device.NewCapacitor(ckt.NewDeviceID(), "C1", 1e-6)
	ckt.AddDevice(l)
	ckt.AddDevice(c)

	node := circuit.Terminal{ComponentID: l.ID(), Pin: 1}
	ckt.AddWire(node, circuit.Terminal{ComponentID: c.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: l.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(circuit.Terminal{ComponentID: c.ID(), Pin: 2}, circuit.Ground)
	require.NoError(t, ckt.Rebuild(false))

	const v0 = 1.0
	c.SetInitialVoltage(v0)
	e0 := 0.5 * c.Farads * v0 * v0

	sv := solver.New(ckt, 1e-3)
	period := 2 * math.Pi * math.Sqrt(l.Henries*c.Farads)
	dt := period / 1000
	steps := int(period / 4 / dt)

	for i := 0; i < steps; i++ {
		_, _, err := sv.Step(dt)
		require.NoError(t, err)
		energy := 0.5*l.Henries*l.Current()*l.Current() + 0.5*c.Farads*c.Voltage()*c.Voltage()
		require.GreaterOrEqual(t, energy, 0.0)
		require.InDelta(t, e0, energy, e0*0.05)
	}
}

// TestTimer555AstableTiming reproduces scenario S6: a 555 astable with
// R1=R2=10kOhm, C=10uF, VCC=5V should oscillate with high time near
// 0.693*(R1+R2)*C = 0.1386s and low time near 0.693*R2*C = 0.0693s.
func TestTimer555AstableTiming(t *testing.T) {
	ckt := circuit.New()
	vcc := device.NewVoltageSource(ckt.NewDeviceID(), "VCC", device.WaveformParams{Kind: device.DC, Offset: 5})
	r1 := device.NewResistor(ckt.NewDeviceID(), "R1", 10000, 0)
	r2 := device.NewResistor(ckt.NewDeviceID(), "R2", 10000, 0)
	cap := device.NewCapacitor(ckt.NewDeviceID(), "C1", 10e-6)
	tm := device.NewTimer555(ckt.NewDeviceID(), "U1")

	ckt.AddDevice(vcc)
	ckt.AddDevice(r1)
	ckt.AddDevice(r2)
	ckt.AddDevice(cap)
	ckt.AddDevice(tm)

	vccNode := circuit.Terminal{ComponentID: vcc.ID(), Pin: 1}
	discharge := circuit.Terminal{ComponentID: tm.ID(), Pin: 5}
	threshTrig := circuit.Terminal{ComponentID: cap.ID(), Pin: 1}

	ckt.AddWire(vccNode, circuit.Terminal{ComponentID: r1.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: r1.ID(), Pin: 2}, discharge)
	ckt.AddWire(discharge, circuit.Terminal{ComponentID: r2.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: r2.ID(), Pin: 2}, threshTrig)
	ckt.AddWire(threshTrig, circuit.Terminal{ComponentID: tm.ID(), Pin: 1}) // threshold
	ckt.AddWire(threshTrig, circuit.Terminal{ComponentID: tm.ID(), Pin: 2}) // trigger
	ckt.AddWire(circuit.Terminal{ComponentID: cap.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(vccNode, circuit.Terminal{ComponentID: tm.ID(), Pin: 4}) // reset held high
	ckt.AddWire(circuit.Terminal{ComponentID: vcc.ID(), Pin: 2}, circuit.Ground)
	require.NoError(t, ckt.Rebuild(false))

	// segment records (duration, level held during that segment).
	type segment struct {
		duration float64
		high     bool
	}
	var segments []segment

	sv := solver.New(ckt, 1e-3)
	const dt = 20e-6
	lastLevel := tm.Output()
	lastEdge := 0.0

	for ckt.Time < 0.6 && len(segments) < 6 {
		_, _, err := sv.Step(dt)
		require.NoError(t, err)
		if tm.Output() != lastLevel {
			segments = append(segments, segment{duration: ckt.Time - lastEdge, high: lastLevel})
			lastLevel = tm.Output()
			lastEdge = ckt.Time
		}
	}
	require.GreaterOrEqual(t, len(segments), 4,
		"need at least two settled cycles; the first one or two segments are a charge-up artifact of starting the capacitor at 0V rather than the steady-state 1/3 Vcc")

	// The capacitor starts at 0V, below the Vcc/3 trigger threshold, so
	// the timer latches high immediately: segment 0 is a near-zero
	// bogus "low" segment and segment 1 is an abnormally long "high"
	// segment charging from 0V instead of Vcc/3. From segment 2 onward
	// the cycle is the ordinary periodic astable waveform, independent
	// of how the capacitor reached 2*Vcc/3 the first time.
	var highDur, lowDur float64
	var haveHigh, haveLow bool
	for _, seg := range segments[2:] {
		if seg.high && !haveHigh {
			highDur, haveHigh = seg.duration, true
		}
		if !seg.high && !haveLow {
			lowDur, haveLow = seg.duration, true
		}
	}

	require.True(t, haveHigh, "expected a settled high segment")
	require.True(t, haveLow, "expected a settled low segment")
	require.InDelta(t, 0.1386, highDur, 0.1386*0.15)
	require.InDelta(t, 0.0693, lowDur, 0.0693*0.15)
}
