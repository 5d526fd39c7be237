package psd

import (
	"errors"
	"fmt"
	"math"

	"github.com/carbocation/ifcbpsd/tables"
)

// ErrNegativeSize is returned when a target has a negative (or NaN) size,
// which would otherwise land in no bin.
var ErrNegativeSize = errors.New("target size is negative")

// Histogram groups the targets of a sample into 1-micron bins by one size
// feature. Density is particles per liter.
type Histogram struct {
	Feature Feature                `json:"feature"`
	Groups  [tables.NBins][]Target `json:"groups"`
	Density [tables.NBins]float64  `json:"density"`
}

// BinIndex is the histogram bin for a size in microns. Sizes of NBins-1 or
// more share the last bin.
func BinIndex(size float64) (int, error) {
	if size < 0 || math.IsNaN(size) {
		return 0, fmt.Errorf("%w: %g", ErrNegativeSize, size)
	}
	if size >= tables.NBins-1 {
		return tables.NBins - 1, nil
	}

	return int(math.Floor(size)), nil
}

// Group places every target in the bin of its feature value, keeping the
// targets' order within a bin.
func Group(targets []Target, feature Feature) ([tables.NBins][]Target, error) {
	var groups [tables.NBins][]Target

	for _, t := range targets {
		b, err := BinIndex(feature.Of(t))
		if err != nil {
			return groups, fmt.Errorf("target %d, %s: %w", t.Index, feature, err)
		}
		groups[b] = append(groups[b], t)
	}

	return groups, nil
}

// BuildHistogram bins targets by feature. With a non-positive
// volumeAnalyzed (mL) every density is zero.
func BuildHistogram(targets []Target, feature Feature, volumeAnalyzed float64) (Histogram, error) {
	groups, err := Group(targets, feature)
	if err != nil {
		return Histogram{}, err
	}
	h := Histogram{Feature: feature, Groups: groups}

	if volumeAnalyzed > 0 {
		for b, group := range h.Groups {
			h.Density[b] = float64(len(group)) / volumeAnalyzed * 1000
		}
	}

	return h, nil
}

// Counts returns the number of targets in each bin.
func (h Histogram) Counts() [tables.NBins]int {
	var out [tables.NBins]int
	for b, group := range h.Groups {
		out[b] = len(group)
	}

	return out
}
