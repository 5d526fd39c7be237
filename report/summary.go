package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/montanaflynn/stats"
)

// Summary describes a finished Bin in a few numbers.
type Summary struct {
	Samples   int
	Failed    int
	Flagged   int
	Converged int
	BeadRuns  int

	FlagCounts map[string]int

	MeanRSquared   float64
	MedianRSquared float64
	MeanCapture    float64
}

// Summarize counts rows and flags. R² statistics cover only the samples
// whose fit succeeded, which are the ones with a non-zero scale.
func Summarize(e psd.Export) (Summary, error) {
	s := Summary{
		Samples:    e.Fits.Len(),
		Failed:     len(e.Failures),
		Flagged:    len(e.Flags),
		FlagCounts: make(map[string]int),
	}

	for _, f := range e.Flags {
		s.FlagCounts[f.Name]++
	}

	r2 := make([]float64, 0, e.Fits.Len())
	capture := make([]float64, 0, e.Fits.Len())
	e.Fits.Each(func(_ string, row tables.FitRow) {
		capture = append(capture, row.CapturePercent)
		if row.BeadRun {
			s.BeadRuns++
		}
		if row.A != 0 {
			r2 = append(r2, row.RSquared)
		}
	})
	s.Converged = len(r2)

	var err error
	if data := stats.LoadRawData(r2); data.Len() > 0 {
		if s.MeanRSquared, err = data.Mean(); err != nil {
			return s, err
		}
		if s.MedianRSquared, err = data.Median(); err != nil {
			return s, err
		}
	}
	if data := stats.LoadRawData(capture); data.Len() > 0 {
		if s.MeanCapture, err = data.Mean(); err != nil {
			return s, err
		}
	}

	return s, nil
}

func (s Summary) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d samples (%d failed), %d fits converged, %d bead runs\n", s.Samples, s.Failed, s.Converged, s.BeadRuns)
	fmt.Fprintf(&sb, "R^2 mean %.3f, median %.3f; mean capture %.3f\n", s.MeanRSquared, s.MedianRSquared, s.MeanCapture)

	names := make([]string, 0, len(s.FlagCounts))
	for name := range s.FlagCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(&sb, "%d flagged", s.Flagged)
	for _, name := range names {
		fmt.Fprintf(&sb, "\n\t%s\t%d", name, s.FlagCounts[name])
	}

	return sb.String()
}
