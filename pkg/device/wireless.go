package device

import (
	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// TxAntenna couples its terminal voltage out-of-band into a shared
// env.Environment channel every other device in the circuit can read
// from (an RxAntenna, most directly), modeling the playground's
// wireless link as an explicit side channel rather than as a further
// MNA stamp — no current flows through a TxAntenna's own terminal on
// account of transmitting, so Stamp only ever contributes the gmin
// floor a floating pin needs to keep the system non-singular, the same
// minimal-stamp idiom passive.go's Ground-sentinel-adjacent elements use.
type TxAntenna struct {
	Base

	Channel int
	Gain    float64

	voltage float64
}

// pin order: 1 (the signal this antenna observes and transmits)
func NewTxAntenna(id int, name string, channel int) *TxAntenna {
	t := &TxAntenna{Base: NewBase(id, name, "tx_antenna", 1), Channel: channel}
	t.Gain = 1.0
	return t
}

func (t *TxAntenna) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1 := t.Terminals()[0]
	if n1 != 0 {
		stampConductance(m, n1, 0, consts.DefaultGmin)
	}
	return nil
}

func (t *TxAntenna) UpdateVoltages(x []float64) error {
	t.voltage = NodeVoltage(x, t.Terminals()[0])
	return nil
}

// Commit is where the transmission actually happens: once per
// committed step, not per Newton iteration, so a channel's accumulator
// reflects one settled value per transmitter per step rather than a
// mid-solve guess.
func (t *TxAntenna) Commit(x []float64, dt float64, en *env.Environment) error {
	en.Transmit(t.Channel, t.Gain*t.voltage)
	return nil
}

// RxAntenna reads the averaged voltage env.Environment accumulated for
// its channel during the previous step's Commit pass and reproduces it
// as a weak Thevenin-equivalent source at its own terminal: a large
// series source resistance so the antenna loads the receiving node
// only lightly, the standard way an ideal voltage source is turned into
// a "soft" one without introducing a second MNA row (VoltageSource
// already owns the extra-variable pattern for a hard source; this
// reuses Stamp's existing conductance/RHS idiom instead of branching to
// it, since an RxAntenna never needs to report its own branch current).
type RxAntenna struct {
	Base

	Channel       int
	SourceOhms    float64
	receivedVolts float64
}

// pin order: 1 (receiving node, referenced to ground)
func NewRxAntenna(id int, name string, channel int) *RxAntenna {
	r := &RxAntenna{Base: NewBase(id, name, "rx_antenna", 1), Channel: channel}
	r.SourceOhms = 1e3
	return r
}

func (r *RxAntenna) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1 := r.Terminals()[0]
	g := 1.0 / r.SourceOhms
	stampConductance(m, n1, 0, g)
	if n1 != 0 {
		m.AddRHS(n1, g*r.receivedVolts)
	}
	return nil
}

// Commit refreshes the received value once per step, not per Newton
// iteration: the channel's accumulator itself only changes once per
// step (every TxAntenna.Commit), so re-reading it mid-solve would gain
// nothing. RxAntenna never implements Nonlinear — its Stamp depends
// only on state Commit already owns, not on the current iterate.
func (r *RxAntenna) Commit(x []float64, dt float64, en *env.Environment) error {
	r.receivedVolts = en.Receive(r.Channel)
	return nil
}
