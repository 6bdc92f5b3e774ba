package device

import "fmt"

// Parameterized is implemented by device kinds whose primary value(s)
// can be edited live by name, the interface engine.Engine.SetParameter
// dispatches through instead of a big type switch over every concrete
// kind living outside this package. Only the device's "headline" knobs
// are exposed this way (a Resistor's "ohms", Capacitor.Farads, a source's
// Amplitude...); secondary physical constants stay Go struct fields a
// caller can still reach by type-asserting Circuit.Device's result.
type Parameterized interface {
	ParameterNames() []string
	Parameter(name string) (float64, bool)
	SetParameter(name string, value float64) error
}

// errUnknownParameter is wrapped with the device's own kind/name by
// engine.Engine before reaching the caller as simerr.ErrParameterOutOfRange.
func errUnknownParameter(kind, name string) error {
	return fmt.Errorf("%s has no parameter %q", kind, name)
}

func (r *Resistor) ParameterNames() []string { return []string{"ohms", "temp_coeff"} }

func (r *Resistor) Parameter(name string) (float64, bool) {
	switch name {
	case "ohms":
		return r.OhmsAt25C, true
	case "temp_coeff":
		return r.TempCoeff, true
	}
	return 0, false
}

func (r *Resistor) SetParameter(name string, value float64) error {
	switch name {
	case "ohms":
		if value <= 0 {
			return fmt.Errorf("resistance must be positive, got %g", value)
		}
		r.OhmsAt25C = value
	case "temp_coeff":
		r.TempCoeff = value
	default:
		return errUnknownParameter("resistor", name)
	}
	return nil
}

func (c *Capacitor) ParameterNames() []string { return []string{"farads"} }

func (c *Capacitor) Parameter(name string) (float64, bool) {
	if name == "farads" {
		return c.Farads, true
	}
	return 0, false
}

func (c *Capacitor) SetParameter(name string, value float64) error {
	if name != "farads" {
		return errUnknownParameter("capacitor", name)
	}
	if value <= 0 {
		return fmt.Errorf("capacitance must be positive, got %g", value)
	}
	c.Farads = value
	return nil
}

func (l *Inductor) ParameterNames() []string { return []string{"henries"} }

func (l *Inductor) Parameter(name string) (float64, bool) {
	if name == "henries" {
		return l.Henries, true
	}
	return 0, false
}

func (l *Inductor) SetParameter(name string, value float64) error {
	if name != "henries" {
		return errUnknownParameter("inductor", name)
	}
	if value <= 0 {
		return fmt.Errorf("inductance must be positive, got %g", value)
	}
	l.Henries = value
	return nil
}

func (v *VoltageSource) ParameterNames() []string {
	return []string{"amplitude", "offset", "freq_hz"}
}

func (v *VoltageSource) Parameter(name string) (float64, bool) {
	switch name {
	case "amplitude":
		return v.Params.Amplitude, true
	case "offset":
		return v.Params.Offset, true
	case "freq_hz":
		return v.Params.FreqHz, true
	}
	return 0, false
}

func (v *VoltageSource) SetParameter(name string, value float64) error {
	switch name {
	case "amplitude":
		v.Params.Amplitude = value
	case "offset":
		v.Params.Offset = value
	case "freq_hz":
		if value < 0 {
			return fmt.Errorf("frequency must be non-negative, got %g", value)
		}
		v.Params.FreqHz = value
	default:
		return errUnknownParameter("voltage_source", name)
	}
	return nil
}

func (c *CurrentSource) ParameterNames() []string {
	return []string{"amplitude", "offset", "freq_hz"}
}

func (c *CurrentSource) Parameter(name string) (float64, bool) {
	switch name {
	case "amplitude":
		return c.Params.Amplitude, true
	case "offset":
		return c.Params.Offset, true
	case "freq_hz":
		return c.Params.FreqHz, true
	}
	return 0, false
}

func (c *CurrentSource) SetParameter(name string, value float64) error {
	switch name {
	case "amplitude":
		c.Params.Amplitude = value
	case "offset":
		c.Params.Offset = value
	case "freq_hz":
		if value < 0 {
			return fmt.Errorf("frequency must be non-negative, got %g", value)
		}
		c.Params.FreqHz = value
	default:
		return errUnknownParameter("current_source", name)
	}
	return nil
}

func (p *Potentiometer) ParameterNames() []string { return []string{"ohms", "position"} }

func (p *Potentiometer) Parameter(name string) (float64, bool) {
	switch name {
	case "ohms":
		return p.TotalOhms, true
	case "position":
		return p.Position, true
	}
	return 0, false
}

func (p *Potentiometer) SetParameter(name string, value float64) error {
	switch name {
	case "ohms":
		if value <= 0 {
			return fmt.Errorf("resistance must be positive, got %g", value)
		}
		p.TotalOhms = value
	case "position":
		if value < 0 || value > 1 {
			return fmt.Errorf("wiper position must be in [0,1], got %g", value)
		}
		p.Position = value
	default:
		return errUnknownParameter("potentiometer", name)
	}
	return nil
}
