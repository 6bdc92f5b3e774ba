package analysis

import (
	"fmt"
	"math/rand/v2"

	"github.com/circuitplayground/simcore/pkg/circuit"
)

// ToleranceTag names one perturbable parameter and its manufacturing
// tolerance, the unit the Monte-Carlo driver perturbs by: each trial
// draws a uniform value within ±TolFrac of Nominal.
type ToleranceTag struct {
	Name      string
	Nominal   float64
	TolFrac   float64 // e.g. 0.05 for ±5%
}

// Perturb draws one uniformly distributed value in
// [Nominal*(1-TolFrac), Nominal*(1+TolFrac)] using rng, the per-trial
// deterministically seeded generator trialRNG produces.
func (t ToleranceTag) Perturb(rng *rand.Rand) float64 {
	if t.TolFrac <= 0 {
		return t.Nominal
	}
	frac := -t.TolFrac + 2*t.TolFrac*rng.Float64()
	return t.Nominal * (1 + frac)
}

// MonteCarloBuild constructs one trial's circuit given a set of
// perturbed parameter values (same order/length as the ToleranceTag
// list RunMonteCarlo was given), returning the built circuit.
type MonteCarloBuild func(perturbed []float64) (*circuit.Circuit, error)

// MonteCarloConfig parametrizes one run.
type MonteCarloConfig struct {
	Runs       int
	Tags       []ToleranceTag
	NominalStep, TransientDuration float64
	BaseSeed   uint64
	NumBins    int

	// Measure extracts this trial's scalar outcome once the transient
	// has finished (e.g. final probe value, peak, mean) — left to the
	// caller since "scalar outcome" is whatever the circuit under test
	// defines it to be.
	Measure func(ckt *circuit.Circuit) (float64, error)
}

// MonteCarloResult pairs the per-trial raw outcomes with their
// distribution summary.
type MonteCarloResult struct {
	Outcomes []float64
	Stats    Stats
}

// RunMonteCarlo runs cfg.Runs independent trials concurrently, each
// perturbing cfg.Tags by a deterministically seeded draw, then
// summarizes the measured outcomes.
func RunMonteCarlo(build MonteCarloBuild, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.Measure == nil {
		return MonteCarloResult{}, fmt.Errorf("montecarlo: Measure must be set")
	}

	outcomes, err := runTrialsConcurrently(cfg.Runs, func(i int) (float64, error) {
		rng := trialRNG(cfg.BaseSeed, i)
		perturbed := make([]float64, len(cfg.Tags))
		for j, tag := range cfg.Tags {
			perturbed[j] = tag.Perturb(rng)
		}

		s, err := runTrial(func() (*circuit.Circuit, error) {
			return build(perturbed)
		}, cfg.NominalStep, cfg.TransientDuration)
		if err != nil {
			return 0, fmt.Errorf("monte-carlo trial %d: %w", i, err)
		}
		return cfg.Measure(s.Circuit)
	})
	if err != nil {
		return MonteCarloResult{}, err
	}

	return MonteCarloResult{Outcomes: outcomes, Stats: summarize(outcomes, cfg.NumBins)}, nil
}
