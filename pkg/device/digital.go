package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// GateKind selects a logic gate's boolean function.
type GateKind int

const (
	GateAND GateKind = iota
	GateOR
	GateNAND
	GateNOR
	GateXOR
	GateXNOR
	GateNOT
	GateBUFFER
)

// LogicGate is an idealized digital gate driven as an output voltage
// source: its output pin is stamped exactly like VoltageSource's
// branch row (source.go), with the commanded voltage computed from the
// input pins' high/low state instead of a waveform generator. Not in
// catalogue (a SPICE-style netlist has no native digital
// primitive); grounded on VoltageSource's extra-row stamping, reused
// verbatim, with the value function swapped for boolean logic.
type LogicGate struct {
	Base
	Kind             GateKind
	Vhigh, Vlow      float64
	Vthreshold       float64
	PropagationDelay float64 // transport delay, seconds; 0 = instantaneous

	level      bool        // current (possibly delayed) output level, set in Commit
	history    []delayedLevel
	historyT   float64
}

type delayedLevel struct {
	t     float64
	level bool
}

// pin order: last pin is output, all preceding pins are inputs
// (NOT/BUFFER: 1=in, 2=out; AND/OR/.../XNOR: 1=inA, 2=inB, 3=out)
func NewLogicGate(id int, name string, kind GateKind, numInputs int) *LogicGate {
	g := &LogicGate{Base: NewBase(id, name, "logic_gate", numInputs+1), Kind: kind}
	g.Vhigh, g.Vlow, g.Vthreshold = 5.0, 0.0, 2.5
	return g
}

func (g *LogicGate) highLevel(v float64) bool { return v >= g.Vthreshold }

func (g *LogicGate) evaluate(in []bool) bool {
	switch g.Kind {
	case GateNOT:
		return !in[0]
	case GateBUFFER:
		return in[0]
	case GateAND:
		return in[0] && in[1]
	case GateOR:
		return in[0] || in[1]
	case GateNAND:
		return !(in[0] && in[1])
	case GateNOR:
		return !(in[0] || in[1])
	case GateXOR:
		return in[0] != in[1]
	case GateXNOR:
		return in[0] == in[1]
	default:
		return false
	}
}

func (g *LogicGate) ExtraVars() int { return 1 }

// Stamp drives the output pin as a fixed-voltage source for this
// Newton solve; the logic function only re-evaluates once per
// committed step (Commit), since combinational logic introduces no
// feedback within a single MNA solve the way a nonlinear device's
// iterative linearization does.
func (g *LogicGate) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	terms := g.Terminals()
	out := terms[len(terms)-1]
	branch := g.ExtraIndex()

	level := g.level
	if g.PropagationDelay > 0 {
		level = g.delayedLevel(st.Time)
	}
	v := g.Vlow
	if level {
		v = g.Vhigh
	}

	if out != 0 {
		m.AddElement(out, branch, 1)
		m.AddElement(branch, out, 1)
	}
	m.AddRHS(branch, v)
	return nil
}

// delayedLevel returns the gate's output as of t-PropagationDelay,
// looked up from the transition history recorded in Commit.
func (g *LogicGate) delayedLevel(t float64) bool {
	target := t - g.PropagationDelay
	level := false
	for _, h := range g.history {
		if h.t > target {
			break
		}
		level = h.level
	}
	return level
}

func (g *LogicGate) Commit(x []float64, dt float64, en *env.Environment) error {
	terms := g.Terminals()
	numInputs := len(terms) - 1
	in := make([]bool, numInputs)
	for i := 0; i < numInputs; i++ {
		in[i] = g.highLevel(NodeVoltage(x, terms[i]))
	}
	g.historyT += dt
	level := g.evaluate(in)
	if level != g.level {
		g.history = append(g.history, delayedLevel{t: g.historyT, level: level})
		if len(g.history) > 64 {
			g.history = g.history[len(g.history)-64:]
		}
	}
	g.level = level
	return nil
}

func (g *LogicGate) BranchCurrent(x []float64) float64 {
	idx := g.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return -x[idx]
}

// DFlipFlop is an edge-triggered D-type flip-flop: Q follows D on the
// rising edge of Clk, Q̄ its complement, with asynchronous Set/Reset.
// Modeled the same way as LogicGate (output pins are voltage-source
// rows), domain knowledge layered on LogicGate's stamping idiom since
// no file elsewhere in this package models sequential digital logic.
type DFlipFlop struct {
	Base
	Vhigh, Vlow, Vthreshold float64

	q, qPrev bool
	prevClk  bool
}

// pin order: 1=D, 2=Clk, 3=Set, 4=Reset, 5=Q, 6=Qbar
func NewDFlipFlop(id int, name string) *DFlipFlop {
	return &DFlipFlop{Base: NewBase(id, name, "dff", 6), Vhigh: 5.0, Vlow: 0.0, Vthreshold: 2.5}
}

func (f *DFlipFlop) ExtraVars() int { return 2 }

func (f *DFlipFlop) level(v float64) bool { return v >= f.Vthreshold }

func (f *DFlipFlop) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := f.Terminals()
	qNode, qbNode := t[4], t[5]
	qBranch, qbBranch := f.ExtraIndex(), f.ExtraIndex()+1

	vq, vqb := f.Vlow, f.Vhigh
	if f.q {
		vq, vqb = f.Vhigh, f.Vlow
	}

	if qNode != 0 {
		m.AddElement(qNode, qBranch, 1)
		m.AddElement(qBranch, qNode, 1)
	}
	m.AddRHS(qBranch, vq)

	if qbNode != 0 {
		m.AddElement(qbNode, qbBranch, 1)
		m.AddElement(qbBranch, qbNode, 1)
	}
	m.AddRHS(qbBranch, vqb)
	return nil
}

func (f *DFlipFlop) Commit(x []float64, dt float64, en *env.Environment) error {
	t := f.Terminals()
	d := f.level(NodeVoltage(x, t[0]))
	clk := f.level(NodeVoltage(x, t[1]))
	set := f.level(NodeVoltage(x, t[2]))
	reset := f.level(NodeVoltage(x, t[3]))

	switch {
	case set:
		f.q = true
	case reset:
		f.q = false
	case clk && !f.prevClk: // rising edge
		f.q = d
	}
	f.prevClk = clk
	return nil
}

// SrLatch is a level-sensitive set/reset latch (no clock).
type SrLatch struct {
	Base
	Vhigh, Vlow, Vthreshold float64
	q                       bool
}

// pin order: 1=Set, 2=Reset, 3=Q, 4=Qbar
func NewSRLatch(id int, name string) *SrLatch {
	return &SrLatch{Base: NewBase(id, name, "sr_latch", 4), Vhigh: 5.0, Vlow: 0.0, Vthreshold: 2.5}
}

func (l *SrLatch) ExtraVars() int { return 2 }

func (l *SrLatch) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := l.Terminals()
	qNode, qbNode := t[2], t[3]
	qBranch, qbBranch := l.ExtraIndex(), l.ExtraIndex()+1

	vq, vqb := l.Vlow, l.Vhigh
	if l.q {
		vq, vqb = l.Vhigh, l.Vlow
	}
	if qNode != 0 {
		m.AddElement(qNode, qBranch, 1)
		m.AddElement(qBranch, qNode, 1)
	}
	m.AddRHS(qBranch, vq)
	if qbNode != 0 {
		m.AddElement(qbNode, qbBranch, 1)
		m.AddElement(qbBranch, qbNode, 1)
	}
	m.AddRHS(qbBranch, vqb)
	return nil
}

func (l *SrLatch) Commit(x []float64, dt float64, en *env.Environment) error {
	t := l.Terminals()
	set := NodeVoltage(x, t[0]) >= l.Vthreshold
	reset := NodeVoltage(x, t[1]) >= l.Vthreshold
	if set {
		l.q = true
	} else if reset {
		l.q = false
	}
	return nil
}

// SevenSegmentDecoder is a BCD-to-seven-segment decoder: four binary
// inputs drive seven logic-level segment outputs (a-g), active-high.
type SevenSegmentDecoder struct {
	Base
	Vhigh, Vlow, Vthreshold float64

	segments [7]bool
}

var sevenSegTable = [16][7]bool{
	/*0*/ {true, true, true, true, true, true, false},
	/*1*/ {false, true, true, false, false, false, false},
	/*2*/ {true, true, false, true, true, false, true},
	/*3*/ {true, true, true, true, false, false, true},
	/*4*/ {false, true, true, false, false, true, true},
	/*5*/ {true, false, true, true, false, true, true},
	/*6*/ {true, false, true, true, true, true, true},
	/*7*/ {true, true, true, false, false, false, false},
	/*8*/ {true, true, true, true, true, true, true},
	/*9*/ {true, true, true, true, false, true, true},
	/*10-15: blank*/
}

// pin order: 1-4=BCD (A,B,C,D, D=MSB), 5-11=segments a,b,c,d,e,f,g
func NewSevenSegmentDecoder(id int, name string) *SevenSegmentDecoder {
	return &SevenSegmentDecoder{Base: NewBase(id, name, "bcd_7seg", 11), Vhigh: 5.0, Vlow: 0.0, Vthreshold: 2.5}
}

func (s *SevenSegmentDecoder) ExtraVars() int { return 7 }

func (s *SevenSegmentDecoder) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := s.Terminals()
	base := s.ExtraIndex()
	for i := 0; i < 7; i++ {
		node := t[4+i]
		branch := base + i
		v := s.Vlow
		if s.segments[i] {
			v = s.Vhigh
		}
		if node != 0 {
			m.AddElement(node, branch, 1)
			m.AddElement(branch, node, 1)
		}
		m.AddRHS(branch, v)
	}
	return nil
}

func (s *SevenSegmentDecoder) Commit(x []float64, dt float64, en *env.Environment) error {
	t := s.Terminals()
	bit := func(i int) bool { return NodeVoltage(x, t[i]) >= s.Vthreshold }
	value := 0
	if bit(0) {
		value |= 1
	}
	if bit(1) {
		value |= 2
	}
	if bit(2) {
		value |= 4
	}
	if bit(3) {
		value |= 8
	}
	if value < 10 {
		s.segments = sevenSegTable[value]
	} else {
		s.segments = [7]bool{}
	}
	return nil
}

// Timer555 is a 555 timer in astable or monostable configuration,
// modeled behaviorally against its own threshold/trigger comparator
// thresholds (2/3 and 1/3 of Vcc) rather than transistor-level,
// matching how LogicGate/DFlipFlop above drive their output pin as a
// commanded voltage-source row.
type Timer555 struct {
	Base
	Vcc         float64
	Monostable  bool
	PulseWidth  float64 // monostable only

	output     bool
	triggered  bool
	triggerT   float64
}

// pin order: 1=Threshold, 2=Trigger, 3=Output, 4=Reset, 5=Discharge
func NewTimer555(id int, name string) *Timer555 {
	return &Timer555{Base: NewBase(id, name, "timer555", 5), Vcc: 5.0}
}

func (tm *Timer555) ExtraVars() int { return 1 }

func (tm *Timer555) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := tm.Terminals()
	outNode := t[2]
	branch := tm.ExtraIndex()

	v := 0.0
	if tm.output {
		v = tm.Vcc
	}
	if outNode != 0 {
		m.AddElement(outNode, branch, 1)
		m.AddElement(branch, outNode, 1)
	}
	m.AddRHS(branch, v)

	discharge := t[4]
	if discharge != 0 {
		g := consts.DefaultGmin
		if !tm.output {
			g = 1.0 / 10.0 // discharge transistor approximated as a low-value pulldown
		}
		stampConductance(m, discharge, 0, g)
	}
	return nil
}

func (tm *Timer555) Commit(x []float64, dt float64, en *env.Environment) error {
	t := tm.Terminals()
	vThresh := NodeVoltage(x, t[0])
	vTrig := NodeVoltage(x, t[1])
	vReset := NodeVoltage(x, t[3])

	if vReset < tm.Vcc*0.3 {
		tm.output = false
		return nil
	}

	if tm.Monostable {
		if !tm.triggered && vTrig < tm.Vcc/3.0 {
			tm.triggered = true
			tm.output = true
			tm.triggerT = 0
		}
		if tm.triggered {
			tm.triggerT += dt
			if tm.triggerT >= tm.PulseWidth {
				tm.output = false
				tm.triggered = false
			}
		}
		return nil
	}

	if vTrig < tm.Vcc/3.0 {
		tm.output = true
	} else if vThresh > tm.Vcc*2.0/3.0 {
		tm.output = false
	}
	return nil
}

// Output reports the timer's current latched output level.
func (tm *Timer555) Output() bool { return tm.output }

var _ = math.Abs // keep math imported for future duty-cycle helpers on Timer555
