// Package engine is the external facade a UI or scripted driver talks
// to: component/wire/probe editing, run/pause/step control over a
// background goroutine, and the analysis drivers (Bode, Monte-Carlo,
// parameter sweep) and sub-circuit library, all behind one mutex so a
// running simulation and a concurrent edit never race on the same
// circuit.Circuit.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/circuitplayground/simcore/pkg/analysis"
	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/history"
	"github.com/circuitplayground/simcore/pkg/persistence"
	"github.com/circuitplayground/simcore/pkg/simerr"
	"github.com/circuitplayground/simcore/pkg/solver"
	"github.com/circuitplayground/simcore/pkg/subcircuit"
)

// Placement is the editor-facing layout metadata a device carries
// that circuit.Circuit itself has no notion of: where it sits on the
// canvas and how it's rotated. Kept here rather than on device.Device
// since layout is a presentation concern, not a simulation input.
type Placement struct {
	X, Y     float64
	Rotation float64 // degrees, 0/90/180/270 typical
}

// AdaptiveStatus reports the step controller's current state for
// display (current step size, how many steps have been rejected and
// retried at a smaller size so far).
type AdaptiveStatus struct {
	Enabled        bool
	CurrentStep    float64
	Rejections     int
	NewtonFailures int
}

// Engine owns one circuit.Circuit, its solver, environment, and
// sub-circuit library, and serializes all access to them behind mu so
// a background Run loop and foreground edits never observe a
// half-stamped matrix. Every externally visible read (NodeVoltage,
// History, AdaptiveStatus...) takes a copy under the lock rather than
// handing out a pointer into live solver state.
type Engine struct {
	mu sync.Mutex

	ckt         *circuit.Circuit
	environment *env.Environment
	sv          *solver.Solver
	subcircuits *subcircuit.Library

	placements map[int]Placement

	nominalStep    float64
	adaptive       bool
	speed          float64 // wall-clock multiplier; 1.0 = real time
	lastSolution   []float64
	newtonFailures int

	runCancel context.CancelFunc
	runDone   chan struct{}
}

// New creates an Engine around a fresh, empty circuit with the given
// nominal (non-adaptive) timestep.
func New(nominalStep float64) *Engine {
	environment := env.New()
	ckt := circuit.New()
	ckt.Env = environment
	return &Engine{
		ckt:         ckt,
		environment: environment,
		sv:          solver.New(ckt, nominalStep),
		subcircuits: subcircuit.NewLibrary(),
		placements:  make(map[int]Placement),
		nominalStep: nominalStep,
		adaptive:    true,
		speed:       1.0,
	}
}

// Circuit exposes the underlying circuit.Circuit for callers that need
// direct construction access (analysis factories building fresh trial
// circuits); editing it outside the Engine's own methods bypasses the
// mutex and must only be done while the engine isn't running.
func (e *Engine) Circuit() *circuit.Circuit { return e.ckt }

// Environment returns the shared ambient environment (temperature,
// light, wireless channels) every device Stamp/Commit call reads.
func (e *Engine) Environment() *env.Environment { return e.environment }

// --- Circuit editing -------------------------------------------------

// NewComponentID reserves the next device id; callers construct a
// concrete device.Device with it (device.NewResistor(id, ...)) before
// passing it to AddComponent.
func (e *Engine) NewComponentID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ckt.NewDeviceID()
}

// AddComponent registers dev and rebuilds node numbering.
func (e *Engine) AddComponent(dev device.Device, placement Placement) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ckt.AddDevice(dev)
	e.placements[dev.ID()] = placement
	return e.rebuildLocked()
}

// RemoveComponent deletes a device and rebuilds node numbering.
func (e *Engine) RemoveComponent(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ckt.RemoveDevice(id)
	delete(e.placements, id)
	return e.rebuildLocked()
}

// AddWire connects two terminals and rebuilds node numbering.
func (e *Engine) AddWire(a, b circuit.Terminal) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.ckt.AddWire(a, b)
	if err := e.rebuildLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveWire deletes a wire and rebuilds node numbering.
func (e *Engine) RemoveWire(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ckt.RemoveWire(id)
	return e.rebuildLocked()
}

// AddProbe registers a voltage probe on node and returns its id.
func (e *Engine) AddProbe(node circuit.Terminal) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ckt.AddProbe(node)
}

// RemoveProbe deregisters a probe and discards its history.
func (e *Engine) RemoveProbe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ckt.RemoveProbe(id)
}

// SetRotation updates a component's editor-facing rotation without
// touching simulation state.
func (e *Engine) SetRotation(id int, rotationDeg float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.placements[id]
	if !ok {
		return fmt.Errorf("engine: no component %d", id)
	}
	p.Rotation = rotationDeg
	e.placements[id] = p
	return nil
}

// SetParameter edits a device's named headline parameter in place via
// device.Parameterized, validating before mutating so a rejected edit
// never leaves the device in a half-changed state. Topology is
// unaffected so no rebuild is triggered.
func (e *Engine) SetParameter(id int, name string, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	dev, ok := e.ckt.Device(id)
	if !ok {
		return fmt.Errorf("engine: no component %d", id)
	}
	p, ok := dev.(device.Parameterized)
	if !ok {
		return fmt.Errorf("engine: component %d (%s) has no editable parameters", id, dev.Kind())
	}
	if err := p.SetParameter(name, value); err != nil {
		return simerr.Wrap(simerr.ErrParameterOutOfRange, err.Error())
	}
	return nil
}

// Parameter reads a device's named parameter.
func (e *Engine) Parameter(id int, name string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dev, ok := e.ckt.Device(id)
	if !ok {
		return 0, false
	}
	p, ok := dev.(device.Parameterized)
	if !ok {
		return 0, false
	}
	return p.Parameter(name)
}

// rebuildLocked re-numbers nodes after a topology edit. Callers must
// already hold mu.
func (e *Engine) rebuildLocked() error {
	if err := e.ckt.Rebuild(false); err != nil {
		return err
	}
	e.lastSolution = nil
	return nil
}

// --- Simulation control -----------------------------------------------

// Reset returns the circuit to t=0, clears every probe's history, and
// solves a fresh operating point that NodeVoltage/BranchCurrent then
// report.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
	e.ckt.Time = 0
	e.ckt.History.ResetAll()
	e.newtonFailures = 0
	e.sv = solver.New(e.ckt, e.nominalStep)
	if err := e.ckt.EnsureBuilt(); err != nil {
		return err
	}
	sol, err := e.sv.OperatingPoint()
	if err != nil {
		return err
	}
	e.lastSolution = sol
	return nil
}

// SetTimestep sets the nominal (non-adaptive-floor) timestep.
func (e *Engine) SetTimestep(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nominalStep = dt
	e.sv.StepCtrl = solver.DefaultStepController(dt)
}

// SetAdaptive toggles Richardson-extrapolation step control; when
// disabled Run/Step always advances by exactly the nominal timestep.
// tol sets the per-step error tolerance StepCtrl.Accept checks against;
// it takes effect whether or not adaptive stepping is currently enabled,
// so turning it on later picks it up without a separate call.
func (e *Engine) SetAdaptive(enabled bool, tol float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adaptive = enabled
	e.sv.StepCtrl.Tol = tol
}

// SetSpeed sets the wall-clock multiplier Run paces itself against
// (2.0 runs twice as fast as real time, 0 runs as fast as the solver
// can go).
func (e *Engine) SetSpeed(multiplier float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = multiplier
}

// SetEnvironment updates ambient temperature and light, read by every
// thermally or optically sensitive device on its next Stamp.
func (e *Engine) SetEnvironment(tempC, light float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.environment.Set(tempC, light)
}

// Step advances the simulation by exactly one solver step (adaptive or
// fixed, per SetAdaptive) and returns the step actually taken.
func (e *Engine) Step() (dtTaken float64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepLocked()
}

func (e *Engine) stepLocked() (float64, error) {
	dt := e.nominalStep
	if !e.adaptive {
		tol := e.sv.StepCtrl.Tol
		e.sv.StepCtrl.Tol = math.Inf(1) // every error estimate passes: no shrink-and-retry
		taken, _, err := e.sv.Step(dt)
		e.sv.StepCtrl.Tol = tol
		if err != nil {
			e.newtonFailures++
			return 0, err
		}
		e.lastSolution = e.currentSolutionLocked()
		return taken, nil
	}
	taken, errEstimate, err := e.sv.Step(dt)
	if err != nil {
		e.newtonFailures++
		return 0, err
	}
	_, next := e.sv.StepCtrl.Accept(taken, errEstimate)
	e.nominalStep = next
	e.lastSolution = e.currentSolutionLocked()
	return taken, nil
}

// currentSolutionLocked re-solves the already-stamped linear system at
// the circuit's current committed state purely to read node voltages
// back out for observation; Step itself already advanced time and
// committed, so this is a cheap re-solve of the same linearization
// point, not a second Newton iteration.
func (e *Engine) currentSolutionLocked() []float64 {
	st := e.ckt.Status(device.Transient, 0)
	if err := e.ckt.Stamp(st); err != nil {
		return e.lastSolution
	}
	sol, err := e.ckt.Solve()
	if err != nil {
		return e.lastSolution
	}
	return sol
}

// Run starts a background goroutine stepping the solver until Pause is
// called, pacing itself against wall-clock time scaled by SetSpeed (0
// means run unthrottled).
func (e *Engine) Run() {
	e.mu.Lock()
	if e.runCancel != nil {
		e.mu.Unlock()
		return // already running
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.runCancel = cancel
	done := make(chan struct{})
	e.runDone = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.mu.Lock()
			taken, err := e.stepLocked()
			speed := e.speed
			e.mu.Unlock()
			if err != nil {
				return
			}
			if speed > 0 {
				pace := time.Duration(taken / speed * float64(time.Second))
				if pace > 0 {
					time.Sleep(pace)
				}
			}
		}
	}()
}

// Pause stops the background Run goroutine and waits for it to exit.
// Safe to call when not running.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

// pauseLocked does the work of Pause assuming the caller already holds
// mu; it releases the lock while waiting for the run goroutine to
// observe cancellation and exit (the goroutine itself needs mu each
// iteration), then reacquires it before returning.
func (e *Engine) pauseLocked() {
	cancel := e.runCancel
	done := e.runDone
	if cancel == nil {
		return
	}
	e.runCancel = nil
	e.runDone = nil
	e.mu.Unlock()
	cancel()
	<-done
	e.mu.Lock()
}

// --- Observation --------------------------------------------------

func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ckt.Time
}

func (e *Engine) NodeVoltage(t circuit.Terminal) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSolution == nil {
		return 0
	}
	return e.ckt.NodeVoltage(e.lastSolution, t)
}

func (e *Engine) BranchCurrent(deviceID int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSolution == nil {
		return 0
	}
	return e.ckt.BranchCurrent(e.lastSolution, deviceID)
}

func (e *Engine) History(probeID int, maxSamples int) []history.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ckt.ProbeHistory(probeID, maxSamples)
}

func (e *Engine) AdaptiveStatus() AdaptiveStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return AdaptiveStatus{
		Enabled:        e.adaptive,
		CurrentStep:    e.nominalStep,
		Rejections:     e.sv.StepCtrl.Rejections,
		NewtonFailures: e.newtonFailures,
	}
}

// --- Analyses -----------------------------------------------------
//
// Each analysis runs a pool of independently constructed trial
// circuits (see analysis.Factory) rather than touching the engine's
// own live circuit, so these may be called while Run is active; they
// share nothing with e.ckt beyond the factory closures the caller
// supplies.

func (e *Engine) RunBode(build analysis.BodeBuild, cfg analysis.BodeConfig) ([]analysis.BodePoint, error) {
	return analysis.RunBode(build, cfg)
}

func (e *Engine) RunMonteCarlo(build analysis.MonteCarloBuild, cfg analysis.MonteCarloConfig) (analysis.MonteCarloResult, error) {
	return analysis.RunMonteCarlo(build, cfg)
}

func (e *Engine) RunSweep(build analysis.ParameterSweepBuild, cfg analysis.ParameterSweepConfig) ([]analysis.ParameterSweepPoint, error) {
	return analysis.RunSweep(build, cfg)
}

// --- Sub-circuit library --------------------------------------------

func (e *Engine) DefineSubcircuit(name string, pins []string, uses []string, build subcircuit.BuildFunc) (*subcircuit.Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subcircuits.Define(name, pins, uses, build)
}

// InstantiateSubcircuit places one instance of a previously defined
// sub-circuit, wiring externalPins to its pin list in order, then
// rebuilds node numbering.
func (e *Engine) InstantiateSubcircuit(name string, externalPins []circuit.Terminal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.subcircuits.Instantiate(e.ckt, name, externalPins, 0); err != nil {
		return err
	}
	return e.rebuildLocked()
}

// --- Persistence ----------------------------------------------------

// Serialize captures the circuit's topology, layout, and editable
// parameters as a persistence.Snapshot. No solved state (voltages,
// history) crosses this boundary — a restored snapshot always starts
// cold at t=0.
func (e *Engine) Serialize() persistence.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	devices := e.ckt.Devices()
	components := make([]persistence.ComponentRecord, 0, len(devices))
	for _, dev := range devices {
		rec := persistence.ComponentRecord{
			ID:       dev.ID(),
			Kind:     dev.Kind(),
			Name:     dev.Name(),
			X:        e.placements[dev.ID()].X,
			Y:        e.placements[dev.ID()].Y,
			Rotation: e.placements[dev.ID()].Rotation,
		}
		if p, ok := dev.(device.Parameterized); ok {
			rec.Parameters = make(map[string]float64)
			for _, name := range p.ParameterNames() {
				if v, ok := p.Parameter(name); ok {
					rec.Parameters[name] = v
				}
			}
		}
		components = append(components, rec)
	}

	wires := e.ckt.Wires()
	wireRecords := make([]persistence.WireRecord, 0, len(wires))
	for _, w := range wires {
		wireRecords = append(wireRecords, persistence.WireRecord{
			ID: w.ID,
			A:  persistence.NewTerminalRecord(w.A),
			B:  persistence.NewTerminalRecord(w.B),
		})
	}

	probes := e.ckt.Probes()
	probeRecords := make([]persistence.ProbeRecord, 0, len(probes))
	for _, p := range probes {
		probeRecords = append(probeRecords, persistence.ProbeRecord{
			ID:   p.ID,
			Node: persistence.NewTerminalRecord(p.Node),
		})
	}

	return persistence.Snapshot{
		Components:  components,
		Wires:       wireRecords,
		Probes:      probeRecords,
		NominalStep: e.nominalStep,
		Adaptive:    e.adaptive,
	}
}

// ComponentFactory constructs a concrete device.Device for one kind
// tag; callers register one per kind they expect to restore, since
// devices are built by their own typed constructors rather than by
// reflection over the kind string.
type ComponentFactory func(id int, rec persistence.ComponentRecord) (device.Device, error)

// Restore replaces the engine's circuit with one rebuilt from snap,
// dispatching each component through factories keyed by Kind(). A
// component whose kind has no registered factory is reported as an
// error naming the kind, rather than silently dropped.
func (e *Engine) Restore(snap persistence.Snapshot, factories map[string]ComponentFactory) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()

	ckt := circuit.New()
	ckt.Env = e.environment
	placements := make(map[int]Placement)

	for _, rec := range snap.Components {
		factory, ok := factories[rec.Kind]
		if !ok {
			return fmt.Errorf("engine: restore: no factory registered for kind %q", rec.Kind)
		}
		dev, err := factory(rec.ID, rec)
		if err != nil {
			return fmt.Errorf("engine: restore component %d (%s): %w", rec.ID, rec.Kind, err)
		}
		if p, ok := dev.(device.Parameterized); ok {
			for name, value := range rec.Parameters {
				if err := p.SetParameter(name, value); err != nil {
					return fmt.Errorf("engine: restore component %d (%s) parameter %q: %w", rec.ID, rec.Kind, name, err)
				}
			}
		}
		ckt.AddDevice(dev)
		ckt.SkipDeviceIDsThrough(rec.ID)
		placements[rec.ID] = Placement{X: rec.X, Y: rec.Y, Rotation: rec.Rotation}
	}
	for _, w := range snap.Wires {
		ckt.AddWire(w.A.Terminal(), w.B.Terminal())
	}
	for _, p := range snap.Probes {
		ckt.AddProbe(p.Node.Terminal())
	}

	if err := ckt.Rebuild(false); err != nil {
		return err
	}

	e.ckt = ckt
	e.placements = placements
	e.nominalStep = snap.NominalStep
	e.adaptive = snap.Adaptive
	e.lastSolution = nil
	e.newtonFailures = 0
	e.sv = solver.New(ckt, snap.NominalStep)
	return nil
}
