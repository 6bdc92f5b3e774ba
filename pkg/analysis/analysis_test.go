package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/analysis"
	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
)

// buildRCTrial builds a fresh DC-source/resistor/capacitor trial
// circuit charging through ohms, returning the probe anchored on the
// capacitor's top node.
func buildRCTrial(ohms float64) (*circuit.Circuit, int, error) {
	ckt := circuit.New()
	src := device.NewVoltageSource(ckt.NewDeviceID(), "V1", device.WaveformParams{Kind: device.DC, Offset: 5})
	res := device.NewResistor(ckt.NewDeviceID(), "R1", ohms, 0)
	cap := device.NewCapacitor(ckt.NewDeviceID(), "C1", 1e-6)
	ckt.AddDevice(src)
	ckt.AddDevice(res)
	ckt.AddDevice(cap)

	capTop := circuit.Terminal{ComponentID: res.ID(), Pin: 2}
	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 1}, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	ckt.AddWire(capTop, circuit.Terminal{ComponentID: cap.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(circuit.Terminal{ComponentID: cap.ID(), Pin: 2}, circuit.Ground)
	if err := ckt.Rebuild(false); err != nil {
		return nil, 0, err
	}
	probeID := ckt.AddProbe(capTop)
	return ckt, probeID, nil
}

func TestRunSweepFinalValueTracksRCTimeConstant(t *testing.T) {
	values := []float64{100, 200, 400}
	cfg := analysis.ParameterSweepConfig{
		Values:            values,
		NominalStep:       1e-6,
		TransientDuration: 5e-3,
		Summary:           analysis.FinalValue,
	}
	points, err := analysis.RunSweep(func(ohms float64) (*circuit.Circuit, int, error) {
		return buildRCTrial(ohms)
	}, cfg)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for _, p := range points {
		// 5ms is >> 5*RC for every tried resistance (max RC=0.4ms), so
		// every trial should have settled near the 5V source rail.
		require.InDelta(t, 5.0, p.Outcome, 0.1)
	}
}

// buildResistiveBodeTrial builds a 1V-amplitude AC source driving a
// 1kOhm resistor straight to ground, returning the probe anchored on
// the driven node. A pure resistive divider to ground should pass the
// source amplitude through at 0dB with no phase shift.
func buildResistiveBodeTrial(freqHz float64) (*circuit.Circuit, int, error) {
	ckt := circuit.New()
	src := device.NewVoltageSource(ckt.NewDeviceID(), "V1", device.WaveformParams{
		Kind: device.SIN, Amplitude: 1.0, FreqHz: freqHz,
	})
	res := device.NewResistor(ckt.NewDeviceID(), "R1", 1000, 0)
	ckt.AddDevice(src)
	ckt.AddDevice(res)

	driven := circuit.Terminal{ComponentID: src.ID(), Pin: 1}
	ckt.AddWire(driven, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(circuit.Terminal{ComponentID: res.ID(), Pin: 2}, circuit.Ground)
	if err := ckt.Rebuild(false); err != nil {
		return nil, 0, err
	}
	probeID := ckt.AddProbe(driven)
	return ckt, probeID, nil
}

// TestRunBodeResistiveDividerIsFlat reproduces scenario S3: a 1V AC
// source at 1kHz into a resistor to ground should read back ~0dB with
// negligible phase shift once the correlation window has settled.
func TestRunBodeResistiveDividerIsFlat(t *testing.T) {
	cfg := analysis.BodeConfig{
		FreqStart:      1000,
		FreqStop:       1000,
		NumPoints:      1,
		PointsType:     "LIN",
		SettlePeriods:  5,
		StepsPerPeriod: 64,
		InputAmplitude: 1.0,
	}
	points, err := analysis.RunBode(buildResistiveBodeTrial, cfg)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.InDelta(t, 0.0, points[0].MagnitudeDB, 0.5)
	require.InDelta(t, 0.0, points[0].PhaseDeg, 5.0)
}

func TestRunMonteCarloReportsSpread(t *testing.T) {
	// Every trial builds a fresh circuit.Circuit, so its one probe is
	// always assigned id 1 — no shared state needs to cross the
	// concurrent build/measure closures.
	const probeID = 1
	cfg := analysis.MonteCarloConfig{
		Runs:              16,
		Tags:              []analysis.ToleranceTag{{Name: "R1", Nominal: 1000, TolFrac: 0.1}},
		NominalStep:       1e-6,
		TransientDuration: 5e-3,
		BaseSeed:          1,
		Measure: func(ckt *circuit.Circuit) (float64, error) {
			samples := ckt.ProbeHistory(probeID, 1)
			if len(samples) == 0 {
				return 0, nil
			}
			return samples[len(samples)-1].Value, nil
		},
	}
	result, err := analysis.RunMonteCarlo(func(perturbed []float64) (*circuit.Circuit, error) {
		ckt, _, err := buildRCTrial(perturbed[0])
		return ckt, err
	}, cfg)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 16)
	require.GreaterOrEqual(t, result.Stats.Max, result.Stats.Min)
	require.GreaterOrEqual(t, result.Stats.Mean, result.Stats.Min)
	require.LessOrEqual(t, result.Stats.Mean, result.Stats.Max)
}
