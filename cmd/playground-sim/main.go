// Command playground-sim is a small demonstration program that builds
// a handful of circuits directly through engine.Engine's editing API
// and prints their transient behavior. It replaces the teacher's
// netlist-driven CLI: there is no file to parse, every circuit here is
// wired in Go.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/device"
	"github.com/circuitplayground/simcore/pkg/engine"
	"github.com/circuitplayground/simcore/pkg/util"
)

func main() {
	demo := flag.String("demo", "rc", "which demo circuit to run: rc, opamp, diode")
	duration := flag.Float64("duration", 5e-3, "transient duration in seconds")
	flag.Parse()

	switch *demo {
	case "rc":
		runRCCharge(*duration)
	case "opamp":
		runInvertingOpAmp()
	case "diode":
		runDiodeLoad()
	default:
		log.Fatalf("unknown demo %q (want rc, opamp, or diode)", *demo)
	}
}

// runRCCharge builds a 5V source charging a 1uF capacitor through a
// 1kOhm resistor and prints the capacitor voltage as it settles,
// reproducing the charge-conservation scenario by eye.
func runRCCharge(duration float64) {
	e := engine.New(10e-6)

	srcID := e.NewComponentID()
	src := device.NewVoltageSource(srcID, "V1", device.WaveformParams{Kind: device.DC, Offset: 5})
	must(e.AddComponent(src, engine.Placement{}))

	resID := e.NewComponentID()
	res := device.NewResistor(resID, "R1", 1000, 0)
	must(e.AddComponent(res, engine.Placement{}))

	capID := e.NewComponentID()
	cap := device.NewCapacitor(capID, "C1", 1e-6)
	must(e.AddComponent(cap, engine.Placement{}))

	capTop := circuit.Terminal{ComponentID: resID, Pin: 2}
	must(connectAll(e,
		pair{circuit.Terminal{ComponentID: srcID, Pin: 1}, circuit.Terminal{ComponentID: resID, Pin: 1}},
		pair{capTop, circuit.Terminal{ComponentID: capID, Pin: 1}},
		pair{circuit.Terminal{ComponentID: srcID, Pin: 2}, circuit.Ground},
		pair{circuit.Terminal{ComponentID: capID, Pin: 2}, circuit.Ground},
	))
	probeID := e.AddProbe(capTop)

	must(e.Reset())
	fmt.Println("RC charging: 5V source, 1kOhm, 1uF")
	runAndPrint(e, duration, probeID, "V(cap)")
}

// runInvertingOpAmp builds the -10x inverting amplifier from scenario
// S5 and prints the steady operating point.
func runInvertingOpAmp() {
	e := engine.New(1e-3)

	vinID := e.NewComponentID()
	vin := device.NewVoltageSource(vinID, "Vin", device.WaveformParams{Kind: device.DC, Offset: 1.0})
	must(e.AddComponent(vin, engine.Placement{}))

	rinID := e.NewComponentID()
	rin := device.NewResistor(rinID, "Rin", 1000, 0)
	must(e.AddComponent(rin, engine.Placement{}))

	rfbID := e.NewComponentID()
	rfb := device.NewResistor(rfbID, "Rfb", 10000, 0)
	must(e.AddComponent(rfb, engine.Placement{}))

	opID := e.NewComponentID()
	op := device.NewOpAmp(opID, "U1")
	must(e.AddComponent(op, engine.Placement{}))

	vminus := circuit.Terminal{ComponentID: rinID, Pin: 2}
	vout := circuit.Terminal{ComponentID: opID, Pin: 3}
	must(connectAll(e,
		pair{circuit.Terminal{ComponentID: vinID, Pin: 1}, circuit.Terminal{ComponentID: rinID, Pin: 1}},
		pair{vminus, circuit.Terminal{ComponentID: rfbID, Pin: 1}},
		pair{vminus, circuit.Terminal{ComponentID: opID, Pin: 2}},
		pair{circuit.Terminal{ComponentID: opID, Pin: 1}, circuit.Ground},
		pair{circuit.Terminal{ComponentID: rfbID, Pin: 2}, vout},
		pair{circuit.Terminal{ComponentID: vinID, Pin: 2}, circuit.Ground},
	))
	e.AddProbe(vout)

	must(e.Reset())
	fmt.Println("Inverting op-amp: Vin=1V, Rin=1k, Rfb=10k")
	fmt.Printf("Vout = %s\n", util.FormatValueFactor(e.NodeVoltage(vout), "V"))
}

// runDiodeLoad reproduces scenario S4: a 0.7V source through a diode
// into a 100 Ohm load, printing the settled branch current.
func runDiodeLoad() {
	e := engine.New(1e-3)

	srcID := e.NewComponentID()
	src := device.NewVoltageSource(srcID, "V1", device.WaveformParams{Kind: device.DC, Offset: 0.7})
	must(e.AddComponent(src, engine.Placement{}))

	diodeID := e.NewComponentID()
	d := device.NewDiode(diodeID, "D1", device.Regular)
	must(e.AddComponent(d, engine.Placement{}))

	resID := e.NewComponentID()
	res := device.NewResistor(resID, "R1", 100, 0)
	must(e.AddComponent(res, engine.Placement{}))

	must(connectAll(e,
		pair{circuit.Terminal{ComponentID: srcID, Pin: 1}, circuit.Terminal{ComponentID: diodeID, Pin: 1}},
		pair{circuit.Terminal{ComponentID: diodeID, Pin: 2}, circuit.Terminal{ComponentID: resID, Pin: 1}},
		pair{circuit.Terminal{ComponentID: srcID, Pin: 2}, circuit.Ground},
		pair{circuit.Terminal{ComponentID: resID, Pin: 2}, circuit.Ground},
	))

	must(e.Reset())
	current := e.BranchCurrent(resID)
	fmt.Println("Diode load: 0.7V source, regular diode, 100 Ohm load")
	fmt.Printf("I = %s\n", util.FormatValueFactor(current, "A"))
}

type pair struct{ a, b circuit.Terminal }

func connectAll(e *engine.Engine, pairs ...pair) error {
	for _, p := range pairs {
		if _, err := e.AddWire(p.a, p.b); err != nil {
			return err
		}
	}
	return nil
}

// runAndPrint steps e forward by duration, printing probeID's history
// at a handful of points along the way.
func runAndPrint(e *engine.Engine, duration float64, probeID int, label string) {
	const samples = 10
	stepEvery := duration / samples
	for i := 0; i < samples; i++ {
		target := float64(i+1) * stepEvery
		for e.CurrentTime() < target {
			if _, err := e.Step(); err != nil {
				log.Fatalf("step failed: %v", err)
			}
		}
		history := e.History(probeID, 1)
		if len(history) == 0 {
			continue
		}
		fmt.Printf("t=%-10s %s=%s\n",
			util.FormatValueFactor(e.CurrentTime(), "s"), label,
			util.FormatValueFactor(history[0].Value, "V"))
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
