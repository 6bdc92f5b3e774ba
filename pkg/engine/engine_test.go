package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/engine"
	"github.com/circuitplayground/simcore/pkg/persistence"
)

// buildDividerEngine wires a 9V source through a 3kOhm resistor to
// ground via the Engine editing surface, mirroring scenario S1.
func buildDividerEngine(t *testing.T) (*engine.Engine, *device.VoltageSource, *device.Resistor) {
	t.Helper()
	e := engine.New(1e-3)

	srcID := e.NewComponentID()
	src := device.NewVoltageSource(srcID, "V1", device.WaveformParams{Kind: device.DC, Offset: 9})
	require.NoError(t, e.AddComponent(src, engine.Placement{X: 1, Y: 1}))

	resID := e.NewComponentID()
	res := device.NewResistor(resID, "R1", 3000, 0)
	require.NoError(t, e.AddComponent(res, engine.Placement{X: 2, Y: 1}))

	_, err := e.AddWire(circuit.Terminal{ComponentID: srcID, Pin: 1}, circuit.Terminal{ComponentID: resID, Pin: 1})
	require.NoError(t, err)
	_, err = e.AddWire(circuit.Terminal{ComponentID: srcID, Pin: 2}, circuit.Ground)
	require.NoError(t, err)
	_, err = e.AddWire(circuit.Terminal{ComponentID: resID, Pin: 2}, circuit.Ground)
	require.NoError(t, err)

	return e, src, res
}

func TestEngineStepAdvancesTimeAndSolvesOhmsLaw(t *testing.T) {
	e, src, res := buildDividerEngine(t)
	require.NoError(t, e.Reset())

	nodeA := circuit.Terminal{ComponentID: src.ID(), Pin: 1}
	require.InDelta(t, 9.0, e.NodeVoltage(nodeA), 1e-6)
	require.InDelta(t, 9.0/3000.0, e.BranchCurrent(res.ID()), 1e-9)

	taken, err := e.Step()
	require.NoError(t, err)
	require.Greater(t, taken, 0.0)
	require.Greater(t, e.CurrentTime(), 0.0)
}

func TestEngineSerializeRestoreRoundTrips(t *testing.T) {
	e, src, res := buildDividerEngine(t)
	require.NoError(t, e.Reset())

	snap := e.Serialize()
	require.Len(t, snap.Components, 2)
	require.Len(t, snap.Wires, 3)

	factories := map[string]engine.ComponentFactory{
		src.Kind(): func(id int, rec persistence.ComponentRecord) (device.Device, error) {
			return device.NewVoltageSource(id, rec.Name, device.WaveformParams{Kind: device.DC}), nil
		},
		res.Kind(): func(id int, rec persistence.ComponentRecord) (device.Device, error) {
			return device.NewResistor(id, rec.Name, 1, 0), nil
		},
	}

	restored := engine.New(1e-3)
	require.NoError(t, restored.Restore(snap, factories))
	require.NoError(t, restored.Reset())

	nodeA := circuit.Terminal{ComponentID: src.ID(), Pin: 1}
	require.InDelta(t, 9.0, restored.NodeVoltage(nodeA), 1e-6)
	require.InDelta(t, 9.0/3000.0, restored.BranchCurrent(res.ID()), 1e-9)
}

func TestEngineRestoreRejectsUnknownKind(t *testing.T) {
	e, _, _ := buildDividerEngine(t)
	snap := e.Serialize()

	restored := engine.New(1e-3)
	err := restored.Restore(snap, map[string]engine.ComponentFactory{})
	require.Error(t, err)
}
