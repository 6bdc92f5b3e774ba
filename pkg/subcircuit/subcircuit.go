// Package subcircuit implements hierarchical reuse: a Definition is a
// saved mini-circuit with named pins; an Instance places that
// definition's internal devices and wires directly into a parent
// circuit.Circuit, connecting the pins to the placement's external
// terminals. Circuit never gains a notion of nesting itself — every
// instance is flattened into the same flat device/wire maps
// circuit.Circuit already keeps, so Circuit.Rebuild's union-find pass
// (pkg/circuit/topology.go) does the "remap internal node ids onto
// shared rows" work for free: a pin wired to both an internal device's
// terminal and the placement's external terminal already lands on one
// MNA node by ordinary node-assignment, with no separate remap table
// required.
package subcircuit

import (
	"fmt"

	"github.com/circuitplayground/simcore/pkg/circuit"
)

// MaxDepth caps nested instantiation (a definition whose Build calls
// Instantiate on another definition, possibly several levels deep),
// a runtime backstop enforced at instantiation time independent of
// the static cycle check below.
const MaxDepth = 16

// BuildFunc places one instance's internal devices and wires into c,
// wiring pins[i] to whatever internal terminal plays that role. It
// receives the Library so nested placements can call lib.Instantiate
// for sub-definitions used by this one.
type BuildFunc func(c *circuit.Circuit, lib *Library, pins []circuit.Terminal, depth int) error

// Definition is one named, reusable mini-circuit template.
type Definition struct {
	Name  string
	Pins  []string // pin names, in placement order
	uses  []string // names of definitions this one instantiates internally
	build BuildFunc
}

// NumPins reports how many external terminals Instantiate expects.
func (d *Definition) NumPins() int { return len(d.Pins) }

// Library owns a named collection of definitions, rejecting any
// addition that would introduce a reference cycle.
type Library struct {
	defs map[string]*Definition
}

// NewLibrary returns an empty definition library.
func NewLibrary() *Library {
	return &Library{defs: make(map[string]*Definition)}
}

// Define registers a new definition. uses lists the names of any other
// definitions build calls Instantiate on — declared up front since
// BuildFunc is an opaque closure the library cannot statically inspect
// for calls, matching the "cycle check at definition-add time" phase
// separately from the depth limit enforced later at instantiation.
func (l *Library) Define(name string, pins []string, uses []string, build BuildFunc) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("subcircuit: definition name must not be empty")
	}
	if _, exists := l.defs[name]; exists {
		return nil, fmt.Errorf("subcircuit: definition %q already exists", name)
	}
	for _, u := range uses {
		if u == name {
			return nil, fmt.Errorf("subcircuit: definition %q cannot use itself", name)
		}
		if _, ok := l.defs[u]; !ok {
			return nil, fmt.Errorf("subcircuit: definition %q uses unknown definition %q", name, u)
		}
	}

	def := &Definition{Name: name, Pins: append([]string(nil), pins...), uses: append([]string(nil), uses...), build: build}
	l.defs[name] = def

	if cyclePath, ok := l.findCycle(name); ok {
		delete(l.defs, name)
		return nil, fmt.Errorf("subcircuit: defining %q would introduce a reference cycle: %v", name, cyclePath)
	}
	return def, nil
}

// findCycle runs a depth-first search over the uses graph starting
// from start, returning the first cycle found.
func (l *Library) findCycle(start string) ([]string, bool) {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string

	var dfs func(name string) ([]string, bool)
	dfs = func(name string) ([]string, bool) {
		if visiting[name] {
			return append(append([]string(nil), path...), name), true
		}
		if visited[name] {
			return nil, false
		}
		visiting[name] = true
		path = append(path, name)
		def := l.defs[name]
		for _, u := range def.uses {
			if cycle, found := dfs(u); found {
				return cycle, true
			}
		}
		path = path[:len(path)-1]
		visiting[name] = false
		visited[name] = true
		return nil, false
	}
	return dfs(start)
}

// Lookup returns a registered definition by name.
func (l *Library) Lookup(name string) (*Definition, bool) {
	d, ok := l.defs[name]
	return d, ok
}

// Instantiate places one instance of the named definition into c,
// wiring its pins to externalPins in declared order. depth is the
// current nesting level; callers placing a top-level instance pass 0.
func (l *Library) Instantiate(c *circuit.Circuit, name string, externalPins []circuit.Terminal, depth int) error {
	if depth >= MaxDepth {
		return fmt.Errorf("subcircuit: instantiation depth exceeds %d placing %q (recursive definitions?)", MaxDepth, name)
	}
	def, ok := l.defs[name]
	if !ok {
		return fmt.Errorf("subcircuit: no definition named %q", name)
	}
	if len(externalPins) != len(def.Pins) {
		return fmt.Errorf("subcircuit: %q expects %d pins, got %d", name, len(def.Pins), len(externalPins))
	}
	return def.build(c, l, externalPins, depth+1)
}
