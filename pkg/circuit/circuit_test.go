package circuit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/solver"
)

// buildDividerCircuit wires a 10V DC source in series with a 1kOhm
// resistor to ground: source+ -> node A -> resistor -> ground, source-
// tied directly to ground. Scenario S1 from the spec's testable
// properties.
func buildDividerCircuit(t *testing.T) (*circuit.Circuit, *device.VoltageSource, *device.Resistor) {
	t.Helper()
	ckt := circuit.New()

	src := device.NewVoltageSource(ckt.NewDeviceID(), "V1", device.WaveformParams{Kind: device.DC, Offset: 10})
	res := device.NewResistor(ckt.NewDeviceID(), "R1", 1000, 0)
	ckt.AddDevice(src)
	ckt.AddDevice(res)

	nodeA := circuit.Terminal{ComponentID: src.ID(), Pin: 1}
	ckt.AddWire(nodeA, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(circuit.Terminal{ComponentID: res.ID(), Pin: 2}, circuit.Ground)

	require.NoError(t, ckt.Rebuild(false))
	return ckt, src, res
}

func TestOhmsLaw(t *testing.T) {
	ckt, _, res := buildDividerCircuit(t)
	sv := solver.New(ckt, 1e-3)

	x, err := sv.OperatingPoint()
	require.NoError(t, err)

	nodeA := circuit.Terminal{ComponentID: res.ID(), Pin: 1}
	vA := ckt.NodeVoltage(x, nodeA)
	require.InDelta(t, 10.0, vA, 1e-6)

	current := res.BranchCurrent(x)
	require.InDelta(t, 10.0/1000.0, current, 1e-9)
}

// TestKCLHolds checks that at the operating point, current into node A
// from the source branch equals current leaving through the resistor,
// within 1e-9 A.
func TestKCLHolds(t *testing.T) {
	ckt, src, res := buildDividerCircuit(t)
	sv := solver.New(ckt, 1e-3)

	x, err := sv.OperatingPoint()
	require.NoError(t, err)

	nodeA := circuit.Terminal{ComponentID: res.ID(), Pin: 1}
	iSource := src.BranchCurrent(x) // current flowing out of the source into node A
	iResistor := res.BranchCurrent(x)
	_ = nodeA
	require.InDelta(t, iSource, iResistor, 1e-9)
}

// TestCapacitorChargeConservation reproduces scenario S2: 5V DC source
// charging a 1uF capacitor through a 1kOhm resistor. At t=5*RC the
// capacitor voltage must be within 0.7% of the source voltage.
func TestCapacitorChargeConservation(t *testing.T) {
	ckt := circuit.New()
	src := device.NewVoltageSource(ckt.NewDeviceID(), "V1", device.WaveformParams{Kind: device.DC, Offset: 5})
	res := device.NewResistor(ckt.NewDeviceID(), "R1", 1000, 0)
	cap := device.NewCapacitor(ckt.NewDeviceID(), "C1", 1e-6)
	ckt.AddDevice(src)
	ckt.AddDevice(res)
	ckt.AddDevice(cap)

	nodeA := circuit.Terminal{ComponentID: src.ID(), Pin: 1}
	nodeB := circuit.Terminal{ComponentID: res.ID(), Pin: 2}
	ckt.AddWire(nodeA, circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	ckt.AddWire(nodeB, circuit.Terminal{ComponentID: cap.ID(), Pin: 1})
	ckt.AddWire(circuit.Terminal{ComponentID: src.ID(), Pin: 2}, circuit.Ground)
	ckt.AddWire(circuit.Terminal{ComponentID: cap.ID(), Pin: 2}, circuit.Ground)

	require.NoError(t, ckt.Rebuild(false))

	sv := solver.New(ckt, 10e-6)
	_, err := sv.OperatingPoint()
	require.NoError(t, err)

	const dt = 10e-6
	const rc = 1000 * 1e-6 // 1ms

	var vcAt1ms, vcAt5ms float64
	steps := int(5e-3 / dt)
	for i := 0; i < steps; i++ {
		_, _, err := sv.Step(dt)
		require.NoError(t, err)
		if math.Abs(ckt.Time-1e-3) < dt/2 {
			vcAt1ms = cap.Voltage()
		}
	}
	vcAt5ms = cap.Voltage()

	expected1ms := 5 * (1 - math.Exp(-1e-3/rc))
	require.InDelta(t, expected1ms, vcAt1ms, 0.01)
	require.GreaterOrEqual(t, vcAt5ms, 0.993*5.0)
}

// TestDisconnectedNodeGetsPadConductance verifies a node with no path
// to ground still solves rather than producing a singular system.
func TestDisconnectedNodeGetsPadConductance(t *testing.T) {
	ckt := circuit.New()
	res := device.NewResistor(ckt.NewDeviceID(), "Rfloat", 1000, 0)
	ckt.AddDevice(res)
	require.NoError(t, ckt.Rebuild(false))

	sv := solver.New(ckt, 1e-3)
	_, err := sv.OperatingPoint()
	require.NoError(t, err)
}

// TestProbeHistoryOrdering checks history append order is
// non-decreasing in time and reset clears it on rebuild.
func TestProbeHistoryOrdering(t *testing.T) {
	ckt, _, res := buildDividerCircuit(t)
	probeID := ckt.AddProbe(circuit.Terminal{ComponentID: res.ID(), Pin: 1})

	sv := solver.New(ckt, 1e-3)
	_, err := sv.OperatingPoint()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _, err := sv.Step(1e-3)
		require.NoError(t, err)
	}

	samples := ckt.ProbeHistory(probeID, 100)
	require.NotEmpty(t, samples)
	for i := 1; i < len(samples); i++ {
		require.GreaterOrEqual(t, samples[i].Time, samples[i-1].Time)
	}

	require.NoError(t, ckt.Rebuild(false))
	require.Empty(t, ckt.ProbeHistory(probeID, 100))
}

// TestRemoveDeviceOrphansProbe ensures deleting a probe's only
// anchoring device removes the probe's history too.
func TestRemoveDeviceOrphansProbe(t *testing.T) {
	ckt, _, res := buildDividerCircuit(t)
	probeID := ckt.AddProbe(circuit.Terminal{ComponentID: res.ID(), Pin: 1})
	ckt.RemoveDevice(res.ID())
	require.Empty(t, ckt.ProbeHistory(probeID, 10))
}
