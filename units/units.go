// Package units converts raw imaging measurements, which the instrument
// reports in pixels, into physical units.
package units

import "fmt"

// DefaultMicronFactor is the number of microns per pixel for the standard
// IFCB optics.
const DefaultMicronFactor = 1 / 2.7

// Dimension identifies how a raw measurement scales with the micron factor.
type Dimension int

const (
	Length Dimension = iota
	Volume
)

func (d Dimension) String() string {
	switch d {
	case Length:
		return "length"
	case Volume:
		return "volume"
	}

	return fmt.Sprintf("Dimension(%d)", int(d))
}

// Converter applies a fixed, deployment-wide micron-per-pixel factor. It is
// read-only once constructed and safe to share between goroutines.
type Converter struct {
	MicronFactor float64
}

// NewConverter returns a Converter using the given micron factor, falling
// back to DefaultMicronFactor when factor is not positive.
func NewConverter(factor float64) Converter {
	if factor <= 0 {
		factor = DefaultMicronFactor
	}

	return Converter{MicronFactor: factor}
}

// Convert scales v by f for lengths and by f^3 for volumes.
func (c Converter) Convert(v float64, d Dimension) float64 {
	f := c.MicronFactor
	if d == Volume {
		return v * f * f * f
	}

	return v * f
}

func (c Converter) Length(v float64) float64 {
	return c.Convert(v, Length)
}

func (c Converter) Volume(v float64) float64 {
	return c.Convert(v, Volume)
}
