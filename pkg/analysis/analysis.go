// Package analysis implements the frequency-response and statistical
// analysis drivers layered on top of solver.Solver and a caller-
// supplied circuit.Circuit factory: Bode sweep, parameter sweep, and
// Monte-Carlo. Each analysis runs a pool of independent trial circuits
// concurrently via golang.org/x/sync/errgroup rather than stepping one
// mutable Circuit serially through in-place parameter edits, since a
// Monte-Carlo run needs R statistically independent trials rather than
// R sequential edits of one shared circuit.
package analysis

import (
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/circuitplayground/simcore/pkg/circuit"
	"github.com/circuitplayground/simcore/pkg/solver"
)

// Factory builds one fresh, unshared circuit.Circuit for a single
// trial, wiring in whatever stimulus/probe the caller's analysis needs.
// Each call must return an independently steppable circuit — devices
// hold plain Go pointers to each other (Transformer to its Inductor
// windings, Cccs/Ccvs to a BranchSensor), so a generic deep clone isn't
// attempted; the factory closure is simply invoked once per trial.
type Factory func() (*circuit.Circuit, error)

// runTrial builds one circuit from factory and steps it through
// settleTime, returning the live solver for the caller's own
// post-processing (reading probe history, computing a scalar summary).
func runTrial(factory Factory, nominalStep, settleTime float64) (*solver.Solver, error) {
	ckt, err := factory()
	if err != nil {
		return nil, err
	}
	if err := ckt.EnsureBuilt(); err != nil {
		return nil, err
	}
	s := solver.New(ckt, nominalStep)
	if _, err := s.OperatingPoint(); err != nil {
		return nil, err
	}
	if err := s.Run(settleTime, nominalStep, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// concurrencyLimit caps simultaneous trials so a large Monte-Carlo run
// doesn't spawn thousands of goroutines each holding their own matrix.
const concurrencyLimit = 8

// runTrialsConcurrently runs n trials via errgroup.Group.SetLimit,
// per spec's "errgroup-based parallelism ... across independent
// Monte-Carlo/sweep trials", collecting one result per trial in order.
func runTrialsConcurrently[T any](n int, work func(trial int) (T, error)) ([]T, error) {
	results := make([]T, n)
	var g errgroup.Group
	g.SetLimit(concurrencyLimit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			r, err := work(i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stats summarizes one scalar outcome distribution across trials.
type Stats struct {
	Mean, StdDev, Min, Max float64
	P1, P99                float64 // 1st/99th percentile
	Histogram              []int
	BinEdges               []float64
}

// summarize computes Stats over samples: mean, standard deviation,
// min, max, 1st and 99th percentiles, and a histogram.
func summarize(samples []float64, numBins int) Stats {
	n := len(samples)
	if n == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), samples...)
	sortFloats(sorted)

	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range samples {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	st := Stats{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Min:    sorted[0],
		Max:    sorted[n-1],
		P1:     percentile(sorted, 1),
		P99:    percentile(sorted, 99),
	}

	if numBins <= 0 {
		numBins = 10
	}
	st.BinEdges = make([]float64, numBins+1)
	st.Histogram = make([]int, numBins)
	lo, hi := st.Min, st.Max
	width := hi - lo
	if width <= 0 {
		width = 1
	}
	for i := 0; i <= numBins; i++ {
		st.BinEdges[i] = lo + width*float64(i)/float64(numBins)
	}
	for _, v := range samples {
		bin := int((v - lo) / width * float64(numBins))
		if bin >= numBins {
			bin = numBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		st.Histogram[bin]++
	}
	return st
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func sortFloats(v []float64) {
	// insertion sort is fine: numBins/trial counts here are small
	// (Monte-Carlo trial counts in the hundreds, not bulk data)
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

// trialRNG returns a deterministically seeded RNG for trial index i,
// so a Monte-Carlo run is reproducible given its base seed.
func trialRNG(baseSeed uint64, trial int) *rand.Rand {
	return rand.New(rand.NewPCG(baseSeed, uint64(trial)))
}
