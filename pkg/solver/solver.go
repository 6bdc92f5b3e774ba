// Package solver drives one circuit.Circuit through Newton-Raphson
// iteration and adaptive time-stepping: one reusable inner loop shared
// by every outer driver (playground live stepping, Bode sweep,
// Monte-Carlo trials), plus a failure-recovery ladder combining gmin
// stepping and Δt/4 step reduction.
package solver

import (
	"fmt"
	"math"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/simerr"
)

// Convergence holds the Newton-Raphson tolerances and iteration cap.
type Convergence struct {
	MaxIter int
	AbsTol  float64
	RelTol  float64
}

// DefaultConvergence returns a conservative 1e-12 absolute / 1e-6
// relative tolerance with a 100-iteration cap.
func DefaultConvergence() Convergence {
	return Convergence{MaxIter: 100, AbsTol: 1e-12, RelTol: 1e-6}
}

// State is the solver's run/pause control, exposed to engine.Engine for
// a playground's Stopped/Running/Paused/SingleStep controls.
type State int

const (
	Stopped State = iota
	Running
	Paused
	SingleStep
)

// StepController adapts the transient time step by Richardson
// extrapolation: one full step of size dt is compared against a single
// half step of dt/2 from the same starting state (no second half step
// is solved), the infinity-norm difference between the two solutions
// standing in for the local truncation error E. ratio =
// sqrt(tol/E) scales the next step, accept on E<=tol, reject and retry
// smaller otherwise — distinct from, and independent of, each
// nonlinear device's own LocalLTE bound (used as a cheaper secondary
// signal rather than the accept/reject criterion itself).
type StepController struct {
	Min, Max float64
	Tol      float64

	Rejections int // running count surfaced to the caller for display
}

// DefaultStepController scales Min/Max off one nominal step (a floor
// of 1/50th and a ceiling of 10x).
func DefaultStepController(nominalStep float64) StepController {
	return StepController{
		Min: nominalStep / 50,
		Max: nominalStep * 10,
		Tol: 1e-6,
	}
}

func (sc *StepController) clamp(dt float64) float64 {
	if dt < sc.Min {
		return sc.Min
	}
	if dt > sc.Max {
		return sc.Max
	}
	return dt
}

// Accept reports whether the estimated error E is within tolerance and
// returns the next step size either way (grown on accept, shrunk and
// counted as a rejection otherwise), implementing the clamp(dt*ratio)
// rule.
func (sc *StepController) Accept(dt, errEstimate float64) (accept bool, next float64) {
	ratio := math.Inf(1) // a zero estimate grows by the full factor of 2
	if errEstimate > 0 {
		ratio = math.Sqrt(sc.Tol / errEstimate)
	}
	if errEstimate <= sc.Tol {
		grow := math.Min(2.0, 0.9*ratio)
		return true, sc.clamp(dt * grow)
	}
	sc.Rejections++
	shrink := math.Max(0.1, 0.9*ratio)
	return false, sc.clamp(dt * shrink)
}

// gminLadder is the descending Gmin-stepping sequence tried when a
// direct solve at the true Gmin fails to converge, continuing by
// homotopy from an easier (higher-conductance) system down to the
// target.
var gminLadder = []float64{1e-2, 1e-3, 1e-4, 1e-5, 1e-6, 1e-7, 1e-8, 1e-9, 1e-10, 1e-11}

// Solver runs the Newton-Raphson inner loop and the transient outer
// loop for one circuit.
type Solver struct {
	Circuit     *circuit.Circuit
	Convergence Convergence
	StepCtrl    StepController

	state State
}

// New wraps an already-built circuit with default convergence/step
// controllers sized off the requested nominal step.
func New(ckt *circuit.Circuit, nominalStep float64) *Solver {
	return &Solver{
		Circuit:     ckt,
		Convergence: DefaultConvergence(),
		StepCtrl:    DefaultStepController(nominalStep),
		state:       Stopped,
	}
}

func (s *Solver) State() State    { return s.state }
func (s *Solver) SetState(v State) { s.state = v }

// newtonIterate runs the inner Newton-Raphson loop at one fixed
// (time, dt, gmin, mode): skip UpdateNonlinearVoltages on the first
// iteration (nothing to linearize around yet), then iterate until the
// combined relative+absolute tolerance test converges.
func (s *Solver) newtonIterate(st *device.Status) ([]float64, error) {
	ckt := s.Circuit
	var prev []float64

	for iter := 0; iter < s.Convergence.MaxIter; iter++ {
		if iter > 0 {
			if err := ckt.UpdateNonlinearVoltages(prev); err != nil {
				return nil, err
			}
		}
		if err := ckt.Stamp(st); err != nil {
			return nil, err
		}
		solution, err := ckt.Solve()
		if err != nil {
			return nil, simerr.Wrap(simerr.ErrSingularSystem, err.Error())
		}

		if iter > 0 && converged(prev, solution, s.Convergence) {
			return solution, nil
		}
		if prev == nil {
			prev = make([]float64, len(solution))
		}
		copy(prev, solution)
	}
	return nil, simerr.Wrap(simerr.ErrNewtonFailed, fmt.Sprintf("exceeded %d iterations", s.Convergence.MaxIter))
}

func converged(oldSol, newSol []float64, c Convergence) bool {
	if len(oldSol) != len(newSol) {
		return false
	}
	for i := range newSol {
		diff := math.Abs(newSol[i] - oldSol[i])
		tol := c.RelTol*math.Max(math.Abs(newSol[i]), math.Abs(oldSol[i])) + c.AbsTol
		if diff > tol {
			return false
		}
	}
	return true
}

// SolveWithGminStepping runs newtonIterate at the target Gmin, falling
// back to the descending homotopy ladder, then one final solve at the
// true Gmin.
func (s *Solver) SolveWithGminStepping(st *device.Status) ([]float64, error) {
	targetGmin := st.Gmin
	if solution, err := s.newtonIterate(st); err == nil {
		return solution, nil
	}

	for _, gmin := range gminLadder {
		if gmin <= targetGmin {
			continue
		}
		st.Gmin = gmin
		if _, err := s.newtonIterate(st); err != nil {
			st.Gmin = targetGmin
			return nil, err
		}
	}

	st.Gmin = targetGmin
	return s.newtonIterate(st)
}

// OperatingPoint solves the DC operating point (Mode=OperatingPoint,
// Time=0), the transient driver's implicit starting condition and the
// stand-alone op analysis.
func (s *Solver) OperatingPoint() ([]float64, error) {
	if err := s.Circuit.EnsureBuilt(); err != nil {
		return nil, err
	}
	st := s.Circuit.Status(device.OperatingPoint, 0)
	return s.SolveWithGminStepping(st)
}

// maxNewtonRetries is how many times Step quarters Δt on a
// SingularSystem/NewtonFailed before pausing, per the failure policy:
// reduce Δt by factor 4, retry up to 3 times.
const maxNewtonRetries = 3

// solveAt runs one converged Newton solve at (time, dt) without
// mutating Circuit.Time, used both for the real step and for the
// Richardson half-step.
func (s *Solver) solveAt(dt float64) ([]float64, error) {
	s.Circuit.TimeStep = dt
	st := s.Circuit.Status(device.Transient, 0)
	return s.SolveWithGminStepping(st)
}

// Step advances the circuit by one transient step, estimating local
// truncation error via Richardson extrapolation (one full step vs a
// single half step of Δt/2, solved — never committed — from the same
// starting state; no second half step is solved), retrying with Δt/4 on a Newton/singular failure per the
// solver's failure policy, and retrying finer per §4.5 whenever the
// error estimate exceeds StepCtrl.Tol: "reject when E > tol; scale
// Δt ... and retry" means the rejected trial is re-solved from the
// same starting state at the smaller size, never committed. Only the
// one trial that finally satisfies the tolerance (or bottoms out at
// StepCtrl.Min) is committed: the half-step solve exists purely to
// produce an error estimate and must not call Circuit.Commit, since
// committing twice from the same starting state would double-apply
// every device's irreversible state transition (capacitor charge
// history, thyristor latch, probe history) for one logical step.
func (s *Solver) Step(requestedDt float64) (dtTaken float64, errEstimate float64, err error) {
	ckt := s.Circuit
	dt := requestedDt
	newtonFailures := 0

	for {
		full, fullErr := s.solveAt(dt)
		if fullErr != nil {
			newtonFailures++
			if newtonFailures > maxNewtonRetries || dt/4 < s.StepCtrl.Min {
				s.state = Paused
				return 0, 0, simerr.Wrap(simerr.ErrNewtonFailed, fmt.Sprintf("paused at t=%g after %d retries", ckt.Time, newtonFailures-1))
			}
			dt /= 4
			continue
		}

		half, halfErr := s.solveAt(dt / 2)
		e := 0.0
		if halfErr == nil {
			e = scaledInfNorm(full, half)
		} else {
			e = localLTE(ckt, dt) // half-step solve itself failed; fall back to the device-local bound
		}

		accepted, next := s.StepCtrl.Accept(dt, e)
		if !accepted && next < dt {
			dt = next
			continue
		}

		if commitErr := ckt.Commit(full, dt); commitErr != nil {
			return 0, 0, commitErr
		}
		ckt.Time += dt
		return dt, e, nil
	}
}

// scaledInfNorm is the Richardson error-estimate metric: the infinity
// norm of (full-step solution minus half-step solution).
func scaledInfNorm(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	max := 0.0
	for i := 0; i < n; i++ {
		if d := math.Abs(a[i] - b[i]); d > max {
			max = d
		}
	}
	return max
}

// localLTE scans every device implementing LocalLTE(dt) for its own
// local truncation error bound, used as a fallback signal when the
// half-step Richardson solve itself fails to converge.
type localLTEDevice interface {
	LocalLTE(dt float64) float64
}

func localLTE(ckt *circuit.Circuit, dt float64) float64 {
	maxLTE := 0.0
	for _, dev := range ckt.Devices() {
		if ld, ok := dev.(localLTEDevice); ok {
			if v := ld.LocalLTE(dt); v > maxLTE {
				maxLTE = v
			}
		}
	}
	return maxLTE
}

// Run advances the circuit from its current Time to stopTime. Step
// already resolves every accept/reject decision internally before
// committing, so the Accept call here only picks the next trial size
// off the step actually taken (growing it when the estimate is within
// tolerance; a step Step committed at StepCtrl.Min with an
// over-tolerance estimate keeps the next trial at that floor). Passing math.Inf(1)
// runs until the caller stops it externally via SetState(Paused/Stopped).
func (s *Solver) Run(stopTime float64, dt float64, onStep func(t float64)) error {
	s.state = Running
	for s.Circuit.Time < stopTime && s.state == Running {
		taken, errEstimate, err := s.Step(dt)
		if err != nil {
			s.state = Stopped
			return err
		}
		_, dt = s.StepCtrl.Accept(taken, errEstimate)
		if onStep != nil {
			onStep(s.Circuit.Time)
		}
	}
	if s.state == Running {
		s.state = Stopped
	}
	return nil
}
