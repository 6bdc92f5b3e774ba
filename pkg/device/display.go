package device

import (
	"math"

	"github.com/circuitplayground/simcore/internal/consts"
	"github.com/circuitplayground/simcore/pkg/env"
	"github.com/circuitplayground/simcore/pkg/matrix"
)

// SevenSegmentDisplay is seven independent LED segments (plus an
// optional decimal point) sharing one common anode or cathode pin,
// each segment a Diode-style forward-conducting element observed for
// its on/off brightness rather than driven by logic levels the way
// SevenSegmentDecoder's outputs are — grounded on Diode's Shockley
// current/LightOutput idiom (diode.go), replicated per segment instead
// of introducing a new light-emitting stamping pattern.
type SevenSegmentDisplay struct {
	Base
	Is, N, ForwardVolts float64
	CommonAnode         bool

	vseg      [8]float64 // per-segment junction voltage (a..g, dp)
	Intensity [8]float64 // 0..1 observed brightness
}

// pin order: 1-8 = segment a,b,c,d,e,f,g,dp; 9 = common
func NewSevenSegmentDisplay(id int, name string, commonAnode bool) *SevenSegmentDisplay {
	d := &SevenSegmentDisplay{Base: NewBase(id, name, "seven_seg", 9), CommonAnode: commonAnode}
	d.Is, d.N, d.ForwardVolts = 1e-18, 2.0, 2.0
	return d
}

func (d *SevenSegmentDisplay) segmentCurrent(v, vt float64) (float64, float64) {
	if v >= -5*vt {
		arg := v / (d.N * vt)
		if arg > 40 {
			arg = 40
		}
		i := d.Is * (math.Exp(arg) - 1)
		g := (i+d.Is)/(d.N*vt) + consts.DefaultGmin
		return i, g
	}
	return -d.Is, consts.DefaultGmin
}

func (d *SevenSegmentDisplay) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := d.Terminals()
	common := t[8]
	vt := consts.ThermalVoltage(en.TemperatureC)

	for i := 0; i < 8; i++ {
		seg := t[i]
		anode, cathode := seg, common
		if d.CommonAnode {
			anode, cathode = common, seg
		}
		iseg, gseg := d.segmentCurrent(d.vseg[i], vt)
		ieq := iseg - gseg*d.vseg[i]
		stampConductance(m, anode, cathode, gseg)
		if anode != 0 {
			m.AddRHS(anode, -ieq)
		}
		if cathode != 0 {
			m.AddRHS(cathode, ieq)
		}
	}
	return nil
}

func (d *SevenSegmentDisplay) UpdateVoltages(x []float64) error {
	t := d.Terminals()
	common := t[8]
	vCommon := NodeVoltage(x, common)
	for i := 0; i < 8; i++ {
		v := NodeVoltage(x, t[i])
		if d.CommonAnode {
			d.vseg[i] = vCommon - v
		} else {
			d.vseg[i] = v - vCommon
		}
	}
	return nil
}

func (d *SevenSegmentDisplay) Commit(x []float64, dt float64, en *env.Environment) error {
	vt := consts.ThermalVoltage(en.TemperatureC)
	for i := 0; i < 8; i++ {
		i2, _ := d.segmentCurrent(d.vseg[i], vt)
		if i2 > 0 {
			d.Intensity[i] = math.Min(1.0, i2/0.02) // normalized against a 20mA full-brightness reference
		} else {
			d.Intensity[i] = 0
		}
	}
	return nil
}

// LedBar is N independent LED segments sharing one common rail,
// generalizing SevenSegmentDisplay's per-segment diode array to an
// arbitrary bar-graph length instead of the fixed 7+1 segment layout.
type LedBar struct {
	Base
	Count               int
	Is, N, ForwardVolts float64
	CommonAnode         bool

	vseg      []float64
	Intensity []float64
}

// pin order: 1..Count = individual LEDs; Count+1 = common
func NewLedBar(id int, name string, count int, commonAnode bool) *LedBar {
	b := &LedBar{Base: NewBase(id, name, "led_bar", count+1), Count: count, CommonAnode: commonAnode}
	b.Is, b.N, b.ForwardVolts = 1e-18, 2.0, 2.0
	b.vseg = make([]float64, count)
	b.Intensity = make([]float64, count)
	return b
}

func (b *LedBar) segmentCurrent(v, vt float64) (float64, float64) {
	if v >= -5*vt {
		arg := v / (b.N * vt)
		if arg > 40 {
			arg = 40
		}
		i := b.Is * (math.Exp(arg) - 1)
		g := (i+b.Is)/(b.N*vt) + consts.DefaultGmin
		return i, g
	}
	return -b.Is, consts.DefaultGmin
}

func (b *LedBar) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := b.Terminals()
	common := t[b.Count]
	vt := consts.ThermalVoltage(en.TemperatureC)

	for i := 0; i < b.Count; i++ {
		anode, cathode := t[i], common
		if b.CommonAnode {
			anode, cathode = common, t[i]
		}
		iseg, gseg := b.segmentCurrent(b.vseg[i], vt)
		ieq := iseg - gseg*b.vseg[i]
		stampConductance(m, anode, cathode, gseg)
		if anode != 0 {
			m.AddRHS(anode, -ieq)
		}
		if cathode != 0 {
			m.AddRHS(cathode, ieq)
		}
	}
	return nil
}

func (b *LedBar) UpdateVoltages(x []float64) error {
	t := b.Terminals()
	vCommon := NodeVoltage(x, t[b.Count])
	for i := 0; i < b.Count; i++ {
		v := NodeVoltage(x, t[i])
		if b.CommonAnode {
			b.vseg[i] = vCommon - v
		} else {
			b.vseg[i] = v - vCommon
		}
	}
	return nil
}

func (b *LedBar) Commit(x []float64, dt float64, en *env.Environment) error {
	vt := consts.ThermalVoltage(en.TemperatureC)
	for i := 0; i < b.Count; i++ {
		i2, _ := b.segmentCurrent(b.vseg[i], vt)
		if i2 > 0 {
			b.Intensity[i] = math.Min(1.0, i2/0.02)
		} else {
			b.Intensity[i] = 0
		}
	}
	return nil
}

// LedMatrix is a Rows x Cols grid of LEDs wired in the common
// row-anode/column-cathode scan arrangement: pin order gives Rows
// anode pins then Cols cathode pins, one LED per (row,col)
// intersection — the standard charlieplexed/matrix-scan topology, a
// straightforward generalization of LedBar to two dimensions.
type LedMatrix struct {
	Base
	Rows, Cols          int
	Is, N               float64

	vseg      [][]float64
	Intensity [][]float64
}

// pin order: 1..Rows = row anodes, Rows+1..Rows+Cols = column cathodes
func NewLedMatrix(id int, name string, rows, cols int) *LedMatrix {
	m := &LedMatrix{Base: NewBase(id, name, "led_matrix", rows+cols), Rows: rows, Cols: cols}
	m.Is, m.N = 1e-18, 2.0
	m.vseg = make([][]float64, rows)
	m.Intensity = make([][]float64, rows)
	for r := range m.vseg {
		m.vseg[r] = make([]float64, cols)
		m.Intensity[r] = make([]float64, cols)
	}
	return m
}

func (m *LedMatrix) segmentCurrent(v, vt float64) (float64, float64) {
	if v >= -5*vt {
		arg := v / (m.N * vt)
		if arg > 40 {
			arg = 40
		}
		i := m.Is * (math.Exp(arg) - 1)
		g := (i+m.Is)/(m.N*vt) + consts.DefaultGmin
		return i, g
	}
	return -m.Is, consts.DefaultGmin
}

func (led *LedMatrix) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	t := led.Terminals()
	vt := consts.ThermalVoltage(en.TemperatureC)

	for r := 0; r < led.Rows; r++ {
		anode := t[r]
		for c := 0; c < led.Cols; c++ {
			cathode := t[led.Rows+c]
			iseg, gseg := led.segmentCurrent(led.vseg[r][c], vt)
			ieq := iseg - gseg*led.vseg[r][c]
			stampConductance(m, anode, cathode, gseg)
			if anode != 0 {
				m.AddRHS(anode, -ieq)
			}
			if cathode != 0 {
				m.AddRHS(cathode, ieq)
			}
		}
	}
	return nil
}

func (led *LedMatrix) UpdateVoltages(x []float64) error {
	t := led.Terminals()
	for r := 0; r < led.Rows; r++ {
		va := NodeVoltage(x, t[r])
		for c := 0; c < led.Cols; c++ {
			vc := NodeVoltage(x, t[led.Rows+c])
			led.vseg[r][c] = va - vc
		}
	}
	return nil
}

func (led *LedMatrix) Commit(x []float64, dt float64, en *env.Environment) error {
	vt := consts.ThermalVoltage(en.TemperatureC)
	for r := 0; r < led.Rows; r++ {
		for c := 0; c < led.Cols; c++ {
			i2, _ := led.segmentCurrent(led.vseg[r][c], vt)
			if i2 > 0 {
				led.Intensity[r][c] = math.Min(1.0, i2/0.02)
			} else {
				led.Intensity[r][c] = 0
			}
		}
	}
	return nil
}

// DcMotor is a brushed DC motor's electrical equivalent circuit: series
// winding resistance and inductance plus a back-EMF voltage source
// proportional to the mechanical speed the motor has spun up to, with
// a first-order mechanical model (torque constant, load, friction,
// inertia) updated alongside the electrical Commit. Domain knowledge
// composing Resistor/Inductor/VoltageSource's established per-element
// idioms rather than one available on any single file elsewhere in this package.
type DcMotor struct {
	Base

	Resistance, Inductance float64
	Kt, Ke                 float64 // torque constant (N*m/A), back-EMF constant (V*s/rad)
	Inertia, Friction      float64
	LoadTorque             float64

	current   float64
	voltage0  float64
	omega     float64 // mechanical angular speed, rad/s
}

// pin order: 1, 2 (motor terminals)
func NewDCMotor(id int, name string) *DcMotor {
	m := &DcMotor{Base: NewBase(id, name, "dc_motor", 2)}
	m.Resistance, m.Inductance = 2.0, 5e-3
	m.Kt, m.Ke = 0.05, 0.05
	m.Inertia, m.Friction = 1e-5, 1e-6
	return m
}

func (d *DcMotor) ExtraVars() int { return 1 }

func (d *DcMotor) Stamp(m matrix.DeviceMatrix, st *Status, en *env.Environment) error {
	n1, n2 := d.Terminals()[0], d.Terminals()[1]
	branch := d.ExtraIndex()

	if n1 != 0 {
		m.AddElement(n1, branch, 1)
		m.AddElement(branch, n1, 1)
	}
	if n2 != 0 {
		m.AddElement(n2, branch, -1)
		m.AddElement(branch, n2, -1)
	}

	dt := st.TimeStep
	if dt <= 0 {
		dt = 1e-6
	}
	lOverDt := d.Inductance / dt
	backEmf := d.Ke * d.omega
	m.AddElement(branch, branch, -d.Resistance-lOverDt)
	m.AddRHS(branch, backEmf-lOverDt*d.current)
	return nil
}

func (d *DcMotor) Commit(x []float64, dt float64, en *env.Environment) error {
	idx := d.ExtraIndex()
	if idx >= 1 && idx < len(x) {
		d.current = x[idx]
	}
	if dt <= 0 {
		return nil
	}
	torque := d.Kt*d.current - d.Friction*d.omega - d.LoadTorque
	d.omega += (torque / d.Inertia) * dt
	return nil
}

func (d *DcMotor) BranchCurrent(x []float64) float64 {
	idx := d.ExtraIndex()
	if idx < 1 || idx >= len(x) {
		return 0
	}
	return x[idx]
}

// SpeedRPM reports the motor's mechanical speed for external display.
func (d *DcMotor) SpeedRPM() float64 { return d.omega * 60.0 / (2 * math.Pi) }
