// Package psd turns the targets of an IFCB sample into particle size
// distributions, fits a power law to each, and aggregates the results of a
// deployment into a Bin.
package psd

import (
	"fmt"
	"math"
	"strings"

	"github.com/carbocation/ifcbpsd/ifcbdata"
	"github.com/carbocation/ifcbpsd/units"
)

// Target is one imaged particle, in microns.
type Target struct {
	Index           int     `json:"index"`
	Biovolume       float64 `json:"biovolume"`
	EquivDiameter   float64 `json:"equiv_diameter"`
	MajorAxisLength float64 `json:"major_axis_length"`
	MinorAxisLength float64 `json:"minor_axis_length"`
}

// NewTarget converts row i of a feature table from pixels to microns.
func NewTarget(i int, row ifcbdata.FeatureRow, conv units.Converter) Target {
	return Target{
		Index:           i,
		Biovolume:       conv.Volume(row.Biovolume),
		EquivDiameter:   conv.Length(row.EquivDiameter),
		MajorAxisLength: conv.Length(row.MajorAxisLength),
		MinorAxisLength: conv.Length(row.MinorAxisLength),
	}
}

// Feature selects the size measurement a histogram is built from.
type Feature int

const (
	EquivDiameter Feature = iota
	MajorAxis
	MinorAxis
)

// Features is every size feature, in the order histograms are stored.
var Features = []Feature{EquivDiameter, MajorAxis, MinorAxis}

// Of returns the feature's value for t. An unknown Feature yields NaN.
func (f Feature) Of(t Target) float64 {
	switch f {
	case EquivDiameter:
		return t.EquivDiameter
	case MajorAxis:
		return t.MajorAxisLength
	case MinorAxis:
		return t.MinorAxisLength
	}

	return math.NaN()
}

func (f Feature) String() string {
	switch f {
	case EquivDiameter:
		return "equiv_diameter"
	case MajorAxis:
		return "major_axis_length"
	case MinorAxis:
		return "minor_axis_length"
	}

	return fmt.Sprintf("Feature(%d)", int(f))
}

// ParseFeature is the inverse of Feature.String.
func ParseFeature(name string) (Feature, error) {
	valid := make([]string, 0, len(Features))
	for _, f := range Features {
		if f.String() == name {
			return f, nil
		}
		valid = append(valid, f.String())
	}

	return 0, fmt.Errorf("feature %q not found. Valid names include: %s", name, strings.Join(valid, ", "))
}
