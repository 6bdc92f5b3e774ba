// Package sweep implements the parameter sweep descriptor: a pure
// function of (config, base value, time) that animates a scalar device
// parameter during transient, generalizing a source-value sweep across
// independent operating-point runs to a per-step, time-varying
// override any device parameter can opt into.
package sweep

import "math"

// Mode selects the interpolation shape between Start and End.
type Mode int

const (
	Linear Mode = iota
	Log
	Step
)

// Config is the sweep annotation a parameter may carry.
type Config struct {
	Enabled       bool
	Start         float64
	End           float64
	SweepTime     float64 // seconds to go from Start to End
	Mode          Mode
	NumSteps      int  // quantization count, Step mode only
	Repeat        bool
	Bidirectional bool
}

// Value evaluates the sweep at time t, given the parameter's base value
// (returned only when the sweep is disabled; an enabled sweep never
// falls back to it, at t<=0 included).
func Value(cfg Config, base float64, t float64) float64 {
	if !cfg.Enabled {
		return base
	}
	if cfg.SweepTime <= 0 {
		return cfg.End
	}

	period := cfg.SweepTime
	if cfg.Bidirectional {
		period = 2 * cfg.SweepTime
	}

	var phase float64 // 0..period
	switch {
	case cfg.Repeat:
		phase = math.Mod(t, period)
		if phase < 0 {
			phase += period
		}
	case t <= 0:
		phase = 0
	case t >= period:
		// Non-repeat: hold at End (or back at Start for bidirectional
		// sweeps, which return to the starting value at t=2*sweep_time).
		if cfg.Bidirectional {
			return cfg.Start
		}
		return cfg.End
	default:
		phase = t
	}

	var frac float64 // 0..1 position within one Start->End leg
	if cfg.Bidirectional {
		if phase <= cfg.SweepTime {
			frac = phase / cfg.SweepTime
		} else {
			frac = 1 - (phase-cfg.SweepTime)/cfg.SweepTime
		}
	} else {
		frac = phase / cfg.SweepTime
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	return interpolate(cfg, frac)
}

func interpolate(cfg Config, frac float64) float64 {
	switch cfg.Mode {
	case Log:
		return logInterp(cfg.Start, cfg.End, frac)
	case Step:
		return stepInterp(cfg.Start, cfg.End, frac, cfg.NumSteps)
	default:
		return cfg.Start + (cfg.End-cfg.Start)*frac
	}
}

// logInterp requires both endpoints positive; callers
// that violate this get linear fallback rather than NaN propagation.
func logInterp(start, end, frac float64) float64 {
	if start <= 0 || end <= 0 {
		return start + (end-start)*frac
	}
	logStart := math.Log10(start)
	logEnd := math.Log10(end)
	return math.Pow(10, logStart+(logEnd-logStart)*frac)
}

func stepInterp(start, end float64, frac float64, numSteps int) float64 {
	if numSteps <= 1 {
		return start + (end-start)*frac
	}
	quantized := math.Round(frac*float64(numSteps-1)) / float64(numSteps-1)
	return start + (end-start)*quantized
}
