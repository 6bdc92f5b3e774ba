package analysis

import (
	"fmt"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/history"
)

// SweepSummaryKind selects which scalar reduction ParameterSweep
// reports per value: final value, peak, or mean.
type SweepSummaryKind int

const (
	FinalValue SweepSummaryKind = iota
	PeakValue
	MeanValue
)

// ParameterSweepBuild constructs one trial's circuit for a given
// parameter value, returning the probe to summarize.
type ParameterSweepBuild func(value float64) (ckt *circuit.Circuit, probeID int, err error)

// ParameterSweepConfig parametrizes one sweep across P values of a
// selected parameter.
type ParameterSweepConfig struct {
	Values                         []float64
	NominalStep, TransientDuration float64
	Summary                        SweepSummaryKind
	MaxHistorySamples              int
}

// ParameterSweepPoint is one (value, scalar-summary) result.
type ParameterSweepPoint struct {
	Value   float64
	Outcome float64
}

// RunSweep resets state and runs a fixed-duration transient for each
// of cfg.Values concurrently (each value is an independent trial),
// recording the requested scalar summary of the probe's history.
func RunSweep(build ParameterSweepBuild, cfg ParameterSweepConfig) ([]ParameterSweepPoint, error) {
	return runTrialsConcurrently(len(cfg.Values), func(i int) (ParameterSweepPoint, error) {
		value := cfg.Values[i]
		ckt, probeID, err := build(value)
		if err != nil {
			return ParameterSweepPoint{}, fmt.Errorf("parameter sweep at value=%g: building circuit: %w", value, err)
		}

		s, err := runTrial(func() (*circuit.Circuit, error) { return ckt, nil }, cfg.NominalStep, cfg.TransientDuration)
		if err != nil {
			return ParameterSweepPoint{}, fmt.Errorf("parameter sweep at value=%g: %w", value, err)
		}

		maxSamples := cfg.MaxHistorySamples
		if maxSamples <= 0 {
			maxSamples = 4096
		}
		samples := s.Circuit.ProbeHistory(probeID, maxSamples)
		return ParameterSweepPoint{Value: value, Outcome: summaryOf(samples, cfg.Summary)}, nil
	})
}

func summaryOf(samples []history.Sample, kind SweepSummaryKind) float64 {
	if len(samples) == 0 {
		return 0
	}
	switch kind {
	case PeakValue:
		peak := samples[0].Value
		for _, s := range samples {
			if s.Value > peak {
				peak = s.Value
			}
		}
		return peak
	case MeanValue:
		sum := 0.0
		for _, s := range samples {
			sum += s.Value
		}
		return sum / float64(len(samples))
	default: // FinalValue
		return samples[len(samples)-1].Value
	}
}
