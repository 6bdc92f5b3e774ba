// Package simerr defines the solver/circuit error taxonomy as wrapped
// sentinel values so callers can branch with errors.Is instead of
// matching strings, generalizing ad hoc
// fmt.Errorf("...: %v", err) wrapping in pkg/circuit and pkg/analysis.
package simerr

import "errors"

var (
	// ErrSingularSystem: LU encountered a zero pivot below tolerance.
	ErrSingularSystem = errors.New("singular system")
	// ErrNewtonFailed: outer Newton loop exceeded the iteration cap.
	ErrNewtonFailed = errors.New("newton-raphson failed to converge")
	// ErrDiverged: a component detected |V| or |I| above a sanity bound.
	ErrDiverged = errors.New("solution diverged")
	// ErrInvalidTopology: missing ground, duplicate extra-variable
	// ownership, or a sub-circuit reference cycle.
	ErrInvalidTopology = errors.New("invalid topology")
	// ErrParameterOutOfRange: a set_parameter call would violate a
	// stated invariant (e.g. negative resistance).
	ErrParameterOutOfRange = errors.New("parameter out of range")
)

// Wrap attaches context to a sentinel while keeping it errors.Is-matchable.
func Wrap(sentinel error, context string) error {
	return &wrapped{sentinel: sentinel, context: context}
}

type wrapped struct {
	sentinel error
	context  string
}

func (w *wrapped) Error() string { return w.context + ": " + w.sentinel.Error() }
func (w *wrapped) Unwrap() error { return w.sentinel }

// OverloadEvent is a device-state event, not an engine error: appended
// to an observable log but never halting the simulation.
type OverloadEvent struct {
	ComponentID int
	ComponentName string
	Description string
	Time        float64
}
