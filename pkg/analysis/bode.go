package analysis

import (
	"fmt"
	"math"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/history"
	"github.com/circuitplayground/simcore/pkg/solver"
)

// BodeConfig parametrizes a transient-based frequency response sweep:
// log- or linear-spaced frequencies, settle to steady state, then
// correlate one period against sin/cos at f_k rather than solving the
// linear AC small-signal system directly (device.Status's own
// ACSmallSignal Stamp branch remains available for a pure small-signal
// solve; this is the distinct large-signal/transient-correlation
// variant the playground's Bode tool exposes).
type BodeConfig struct {
	FreqStart, FreqStop float64
	NumPoints           int
	PointsType          string // "DEC", "OCT", "LIN"
	SettlePeriods       float64 // >=5 recommended
	StepsPerPeriod      float64
	InputAmplitude      float64 // A_in, the known stimulus amplitude
}

// BodeBuild constructs one trial's circuit for stimulus frequency
// freqHz, returning the probe id to correlate against.
type BodeBuild func(freqHz float64) (ckt *circuit.Circuit, outputProbe int, err error)

// BodePoint is one (frequency, magnitude, phase) sample.
type BodePoint struct {
	FreqHz      float64
	MagnitudeDB float64
	PhaseDeg    float64
}

// RunBode sweeps build across cfg's frequency points concurrently
// (each frequency is an independent trial circuit), extracting
// amplitude/phase of the output probe relative to the stimulus by
// one-period quadrature correlation once the circuit has settled for
// SettlePeriods periods.
func RunBode(build BodeBuild, cfg BodeConfig) ([]BodePoint, error) {
	freqs := bodeFrequencyPoints(cfg)

	return runTrialsConcurrently(len(freqs), func(i int) (BodePoint, error) {
		freq := freqs[i]
		return bodeTrial(build, freq, cfg)
	})
}

func bodeTrial(build BodeBuild, freq float64, cfg BodeConfig) (BodePoint, error) {
	ckt, probeID, err := build(freq)
	if err != nil {
		return BodePoint{}, fmt.Errorf("bode trial at f=%g: building circuit: %w", freq, err)
	}
	if err := ckt.EnsureBuilt(); err != nil {
		return BodePoint{}, err
	}

	nominalStep := 1.0 / (freq * cfg.StepsPerPeriod)
	s := solver.New(ckt, nominalStep)
	// Pin every step to nominalStep so the trailing StepsPerPeriod+8
	// history samples read below cover one full stimulus period.
	s.StepCtrl.Min, s.StepCtrl.Max = nominalStep, nominalStep
	if _, err := s.OperatingPoint(); err != nil {
		return BodePoint{}, fmt.Errorf("bode trial at f=%g: operating point: %w", freq, err)
	}

	settleTime := cfg.SettlePeriods / freq
	if err := s.Run(settleTime, nominalStep, nil); err != nil {
		return BodePoint{}, fmt.Errorf("bode trial at f=%g: settling: %w", freq, err)
	}

	samples := ckt.ProbeHistory(probeID, int(cfg.StepsPerPeriod)+8)
	period := 1.0 / freq
	ac, as := correlate(samples, freq, period)
	amplitude := math.Hypot(ac, as)
	phase := math.Atan2(ac, as) * 180.0 / math.Pi

	mag := 0.0
	if cfg.InputAmplitude > 0 {
		mag = 20 * math.Log10(amplitude/cfg.InputAmplitude)
	}
	return BodePoint{FreqHz: freq, MagnitudeDB: mag, PhaseDeg: phase}, nil
}

// correlate computes the in-phase/quadrature amplitude of samples
// against sin/cos at freqHz over the trailing one period, the discrete
// quadrature-demodulation idiom standard for steady-state extraction:
// Ac = (2/N)*sum(v_i*cos(w*t_i)), As = (2/N)*sum(v_i*sin(w*t_i)).
func correlate(samples []history.Sample, freqHz, period float64) (ac, as float64) {
	cutoff := 0.0
	if len(samples) > 0 {
		cutoff = samples[len(samples)-1].Time - period
	}
	var windowed []history.Sample
	for _, s := range samples {
		if s.Time >= cutoff {
			windowed = append(windowed, s)
		}
	}
	if len(windowed) == 0 {
		return 0, 0
	}

	omega := 2 * math.Pi * freqHz
	for _, s := range windowed {
		ac += s.Value * math.Cos(omega*s.Time)
		as += s.Value * math.Sin(omega*s.Time)
	}
	n := float64(len(windowed))
	return 2 * ac / n, 2 * as / n
}

func bodeFrequencyPoints(cfg BodeConfig) []float64 {
	n := cfg.NumPoints
	if n < 1 {
		n = 1
	}
	points := make([]float64, n)
	switch cfg.PointsType {
	case "OCT":
		logStart, logStop := math.Log2(cfg.FreqStart), math.Log2(cfg.FreqStop)
		step := (logStop - logStart) / float64(maxInt(n-1, 1))
		for i := 0; i < n; i++ {
			points[i] = math.Pow(2, logStart+float64(i)*step)
		}
	case "LIN":
		step := (cfg.FreqStop - cfg.FreqStart) / float64(maxInt(n-1, 1))
		for i := 0; i < n; i++ {
			points[i] = cfg.FreqStart + float64(i)*step
		}
	default: // "DEC"
		logStart, logStop := math.Log10(cfg.FreqStart), math.Log10(cfg.FreqStop)
		step := (logStop - logStart) / float64(maxInt(n-1, 1))
		for i := 0; i < n; i++ {
			points[i] = math.Pow(10, logStart+float64(i)*step)
		}
	}
	return points
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
