// Package circuit assembles a topology of devices and wires into one
// MNA system: node numbering via union-find over wires, per-step
// stamping, and solved-state query, built around a live, editable
// component graph rather than a parsed SPICE netlist.
package circuit

import (
	"fmt"
	"sort"

	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/history"
	"github.com/circuitplayground/simcore/pkg/matrix"
	"github.com/circuitplayground/simcore/pkg/simerr"
)

// Wire ties two terminals to the same electrical node. Either end may
// be the Ground sentinel.
type Wire struct {
	ID   int
	A, B Terminal
}

// Probe observes one terminal's node voltage over time.
type Probe struct {
	ID   int
	Node Terminal
}

// Circuit is one flattened, editable topology: devices, the wires
// connecting their terminals, and the probes watching node voltages.
// Sub-circuit instances are flattened into this same flat structure at
// placement time (pkg/subcircuit), so Circuit itself never recurses.
type Circuit struct {
	devices map[int]device.Device
	wires   map[int]Wire
	probes  map[int]*Probe

	nextDeviceID int
	nextWireID   int
	nextProbeID  int

	ordered   []device.Device // deterministic stamp order, rebuilt on demand
	nonlinear []device.Nonlinear
	dirty     bool // topology changed since last Rebuild

	numNodes int

	Matrix  *matrix.Matrix
	History *history.Store
	Env     *env.Environment

	Time     float64
	TimeStep float64
	Gmin     float64
}

// New builds an empty circuit.
func New() *Circuit {
	return &Circuit{
		devices: make(map[int]device.Device),
		wires:   make(map[int]Wire),
		probes:  make(map[int]*Probe),
		History: history.NewStore(history.MaxHistory),
		Env:     env.New(),
		Gmin:    1e-12,
		dirty:   true,
	}
}

// NewDeviceID reserves the next device identity. Callers construct
// their concrete device with this id, then call AddDevice.
func (c *Circuit) NewDeviceID() int {
	c.nextDeviceID++
	return c.nextDeviceID
}

// SkipDeviceIDsThrough advances the id counter so the next NewDeviceID
// call returns at least used+1, for callers restoring devices that
// already carry their own ids (e.g. persistence.Snapshot) and need
// further edits to keep allocating disjoint ones.
func (c *Circuit) SkipDeviceIDsThrough(used int) {
	if used > c.nextDeviceID {
		c.nextDeviceID = used
	}
}

// AddDevice registers a constructed device and marks the topology dirty.
func (c *Circuit) AddDevice(dev device.Device) {
	c.devices[dev.ID()] = dev
	c.dirty = true
}

// RemoveDevice deletes a device and any wires/probes touching its pins.
func (c *Circuit) RemoveDevice(id int) {
	delete(c.devices, id)
	for wid, w := range c.wires {
		if w.A.ComponentID == id || w.B.ComponentID == id {
			delete(c.wires, wid)
		}
	}
	for pid, p := range c.probes {
		if p.Node.ComponentID == id {
			delete(c.probes, pid)
			c.History.Remove(pid)
		}
	}
	c.dirty = true
}

// Device looks up a placed device by id.
func (c *Circuit) Device(id int) (device.Device, bool) {
	d, ok := c.devices[id]
	return d, ok
}

// Devices returns every placed device, unordered.
func (c *Circuit) Devices() []device.Device {
	out := make([]device.Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, d)
	}
	return out
}

// AddWire connects two terminals (either may be Ground).
func (c *Circuit) AddWire(a, b Terminal) int {
	c.nextWireID++
	id := c.nextWireID
	c.wires[id] = Wire{ID: id, A: a, B: b}
	c.dirty = true
	return id
}

// RemoveWire deletes a wire.
func (c *Circuit) RemoveWire(id int) {
	delete(c.wires, id)
	c.dirty = true
}

// Wires returns every placed wire, unordered.
func (c *Circuit) Wires() []Wire {
	out := make([]Wire, 0, len(c.wires))
	for _, w := range c.wires {
		out = append(out, w)
	}
	return out
}

// AddProbe starts watching a terminal's node voltage.
func (c *Circuit) AddProbe(node Terminal) int {
	c.nextProbeID++
	id := c.nextProbeID
	c.probes[id] = &Probe{ID: id, Node: node}
	return id
}

// RemoveProbe stops watching a node and discards its history.
func (c *Circuit) RemoveProbe(id int) {
	delete(c.probes, id)
	c.History.Remove(id)
}

// Probes returns every placed probe, unordered.
func (c *Circuit) Probes() []Probe {
	out := make([]Probe, 0, len(c.probes))
	for _, p := range c.probes {
		out = append(out, *p)
	}
	return out
}

// Rebuild recomputes node numbering from the current wire graph and
// (re)allocates the MNA matrix. Must be called after any topology edit
// (device/wire add or remove) before the next Stamp/Solve.
func (c *Circuit) Rebuild(isComplex bool) error {
	uf := newUnionFind()
	for _, w := range c.wires {
		uf.union(w.A, w.B)
	}

	ids := make([]int, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ordered := make([]device.Device, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, c.devices[id])
	}

	// Assign node ids: ground's root is always node 0; every other
	// distinct root gets the next integer in first-seen (device/pin)
	// order, matching stable node-numbering guarantee.
	nodeOf := make(map[Terminal]int)
	numNodes := 0
	groundRoot := uf.find(Ground)
	nodeOf[groundRoot] = 0

	assign := func(t Terminal) int {
		root := uf.find(t)
		if n, ok := nodeOf[root]; ok {
			return n
		}
		numNodes++
		nodeOf[root] = numNodes
		return numNodes
	}

	for _, dev := range ordered {
		n := dev.NumTerminals()
		nodes := make([]int, n)
		for pin := 1; pin <= n; pin++ {
			nodes[pin-1] = assign(Terminal{ComponentID: dev.ID(), Pin: pin})
		}
		dev.SetTerminals(nodes)
	}

	// Extra-variable rows follow every node row, one contiguous block
	// per device in id order (the extra-variable row allocation scheme, generalized from
	// voltage-source/inductor-only to any ExtraVars()>0 device).
	nextRow := numNodes + 1
	var nonlinear []device.Nonlinear
	for _, dev := range ordered {
		if ev := dev.ExtraVars(); ev > 0 {
			dev.SetExtraIndex(nextRow)
			nextRow += ev
		}
		if nl, ok := dev.(device.Nonlinear); ok {
			nonlinear = append(nonlinear, nl)
		}
	}

	size := nextRow - 1
	if c.Matrix != nil {
		c.Matrix.Destroy()
	}
	c.Matrix = matrix.New(size, isComplex)

	c.numNodes = numNodes
	c.ordered = ordered
	c.nonlinear = nonlinear
	c.dirty = false
	c.History.ResetAll()

	return nil
}

// EnsureBuilt rebuilds the topology if any edit has happened since the
// last Rebuild (non-complex matrix by default; callers needing an AC
// system call Rebuild(true) directly).
func (c *Circuit) EnsureBuilt() error {
	if c.dirty || c.Matrix == nil {
		return c.Rebuild(false)
	}
	return nil
}

// NumNodes returns the number of non-ground nodes assigned by the last
// Rebuild.
func (c *Circuit) NumNodes() int { return c.numNodes }

// Status builds the per-step device.Status context for Stamp.
func (c *Circuit) Status(mode device.AnalysisMode, frequency float64) *device.Status {
	return &device.Status{
		Time:      c.Time,
		TimeStep:  c.TimeStep,
		Gmin:      c.Gmin,
		Mode:      mode,
		Frequency: frequency,
	}
}

// Stamp clears the matrix and re-accumulates every device's
// contribution, then loads the gmin shunt.
func (c *Circuit) Stamp(st *device.Status) error {
	c.Matrix.Clear()
	for _, dev := range c.ordered {
		if err := dev.Stamp(c.Matrix, st, c.Env); err != nil {
			return fmt.Errorf("stamping %s %q: %w", dev.Kind(), dev.Name(), err)
		}
	}
	c.Matrix.LoadGmin(c.Gmin)
	return nil
}

// UpdateNonlinearVoltages refreshes every nonlinear device's retained
// linearization point from a Newton iterate, ahead of the next Stamp.
func (c *Circuit) UpdateNonlinearVoltages(x []float64) error {
	for _, nl := range c.nonlinear {
		if err := nl.UpdateVoltages(x); err != nil {
			return simerr.Wrap(simerr.ErrNewtonFailed, err.Error())
		}
	}
	return nil
}

// NonlinearCount reports how many devices require Newton-Raphson.
func (c *Circuit) NonlinearCount() int { return len(c.nonlinear) }

// Solve performs one linear solve of the currently stamped system.
func (c *Circuit) Solve() ([]float64, error) {
	if err := c.Matrix.Solve(); err != nil {
		return nil, err
	}
	return c.Matrix.Solution(), nil
}

// Commit writes solved state back into every device (companion-model
// history, thermal accumulation) and appends one sample per probe.
func (c *Circuit) Commit(x []float64, dt float64) error {
	for _, dev := range c.ordered {
		if err := dev.Commit(x, dt, c.Env); err != nil {
			return fmt.Errorf("committing %s %q: %w", dev.Kind(), dev.Name(), err)
		}
	}
	for id, p := range c.probes {
		c.History.Append(id, c.Time, c.NodeVoltage(x, p.Node))
	}
	return nil
}

// NodeVoltage reads a terminal's solved voltage out of x (0 if ground
// or the device/pin no longer exists).
func (c *Circuit) NodeVoltage(x []float64, t Terminal) float64 {
	if t.IsGround() {
		return 0
	}
	dev, ok := c.devices[t.ComponentID]
	if !ok || t.Pin < 1 || t.Pin > dev.NumTerminals() {
		return 0
	}
	return device.NodeVoltage(x, dev.Terminals()[t.Pin-1])
}

// BranchCurrent reports a device's terminal current: devices with a
// dedicated MNA row report that unknown directly; others fall back to
// their CurrentSensor implementation, else 0.
func (c *Circuit) BranchCurrent(x []float64, deviceID int) float64 {
	dev, ok := c.devices[deviceID]
	if !ok {
		return 0
	}
	if dev.ExtraVars() > 0 {
		idx := dev.ExtraIndex()
		if idx >= 1 && idx < len(x) {
			return x[idx]
		}
		return 0
	}
	if sensor, ok := dev.(device.CurrentSensor); ok {
		return sensor.BranchCurrent(x)
	}
	return 0
}

// ProbeHistory returns up to maxSamples recent samples for a probe.
func (c *Circuit) ProbeHistory(probeID int, maxSamples int) []history.Sample {
	return c.History.Last(probeID, maxSamples)
}
