package psd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carbocation/ifcbpsd/ifcbdata"
	"github.com/carbocation/ifcbpsd/powerfit"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/carbocation/ifcbpsd/units"
)

var (
	ErrMissingMetadata = errors.New("required header value is missing or not numeric")
	ErrNoTriggers      = errors.New("trigger count is zero")
	ErrNotBinned       = errors.New("histograms have not been built")
)

// FlowRate is the sample flow through the instrument, in mL per minute.
const FlowRate = 0.25

const (
	sampleNameLayout = "D20060102T150405"

	// MATLAB datenum of 1970-01-01.
	unixEpochDatenum = 719529
)

// SampleInput is everything read from disk for one sample.
type SampleInput struct {
	Name         string
	Instrument   string
	Features     []ifcbdata.FeatureRow
	Metadata     ifcbdata.Metadata
	TriggerCount int
}

// Sample is one acquisition. Its histograms and fit are filled in by
// BuildHistograms and FitAndSummarize.
type Sample struct {
	Name           string            `json:"name"`
	Instrument     string            `json:"ifcb"`
	DateNumber     float64           `json:"datenum"`
	MicronFactor   float64           `json:"micron_factor"`
	Targets        []Target          `json:"targets"`
	Metadata       ifcbdata.Metadata `json:"metadata"`
	VolumeAnalyzed float64           `json:"mL_analyzed"`
	TriggerCount   int               `json:"trigger_count"`
	CapturePercent float64           `json:"capture_percent"`
	Humidity       float64           `json:"humidity"`
	BeadRun        bool              `json:"bead_run"`

	// One per entry of Features, in the same order.
	Histograms []Histogram `json:"histograms,omitempty"`

	Fit         powerfit.Result `json:"fit"`
	ESDDiff     int             `json:"max_ESD_diff"`
	PeakDensity float64         `json:"max"`
}

// Aggregator receives the one data row and one fit row a sample produces.
type Aggregator interface {
	AddData(name string, dateNumber float64, density [tables.NBins]float64, volumeAnalyzed, peakDensity float64)
	AddFit(name string, a, k, rSquared float64, esdDiff int, capturePercent float64, beadRun bool, humidity float64)
}

// NewSample converts the raw inputs of one sample and derives its scalars.
// Any error means the sample cannot be ingested.
func NewSample(in SampleInput, conv units.Converter) (*Sample, error) {
	datenum, err := DateNumber(in.Name)
	if err != nil {
		return nil, err
	}

	s := &Sample{
		Name:         in.Name,
		Instrument:   in.Instrument,
		DateNumber:   datenum,
		MicronFactor: conv.MicronFactor,
		Targets:      make([]Target, 0, len(in.Features)),
		Metadata:     in.Metadata,
		TriggerCount: in.TriggerCount,
	}

	for i, row := range in.Features {
		s.Targets = append(s.Targets, NewTarget(i, row, conv))
	}

	if s.VolumeAnalyzed, err = DeriveVolumeAnalyzed(in.Metadata); err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name, err)
	}

	if s.CapturePercent, err = DeriveCapturePercent(len(s.Targets), in.TriggerCount); err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name, err)
	}

	humidity, ok := in.Metadata.Float("humidity")
	if !ok {
		return nil, fmt.Errorf("%s: %w: humidity", in.Name, ErrMissingMetadata)
	}
	s.Humidity = humidity
	s.BeadRun = in.Metadata.First("runType", "NORMAL") == "BEADS"

	return s, nil
}

// DeriveVolumeAnalyzed is the volume imaged, in mL, over the sample's look
// time (runTime less inhibitTime, in seconds).
func DeriveVolumeAnalyzed(meta ifcbdata.Metadata) (float64, error) {
	runTime, ok := meta.Float("runTime")
	if !ok {
		return 0, fmt.Errorf("%w: runTime", ErrMissingMetadata)
	}
	inhibitTime, ok := meta.Float("inhibitTime")
	if !ok {
		return 0, fmt.Errorf("%w: inhibitTime", ErrMissingMetadata)
	}

	return FlowRate * (runTime - inhibitTime) / 60, nil
}

// DeriveCapturePercent is the fraction of triggers that produced a target.
// It is not clamped: instrument faults can push it above 1.
func DeriveCapturePercent(targets, triggers int) (float64, error) {
	if triggers <= 0 {
		return 0, ErrNoTriggers
	}

	return float64(targets) / float64(triggers), nil
}

// DateNumber is the MATLAB datenum of the timestamp in a sample name such as
// D20210415T123456.
func DateNumber(name string) (float64, error) {
	t, err := time.Parse(sampleNameLayout, name)
	if err != nil {
		return 0, fmt.Errorf("sample name %q does not carry a timestamp: %w", name, err)
	}

	return float64(t.Unix())/86400 + unixEpochDatenum, nil
}

// BuildHistograms bins the targets by every size feature.
func (s *Sample) BuildHistograms() error {
	out := make([]Histogram, 0, len(Features))
	for _, f := range Features {
		h, err := BuildHistogram(s.Targets, f, s.VolumeAnalyzed)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		out = append(out, h)
	}
	s.Histograms = out

	return nil
}

// Histogram returns the histogram for f once BuildHistograms has run.
func (s *Sample) Histogram(f Feature) (Histogram, bool) {
	for _, h := range s.Histograms {
		if h.Feature == f {
			return h, true
		}
	}

	return Histogram{}, false
}

// FitAndSummarize fits the equivalent-diameter distribution and hands the
// sample's data and fit rows to agg. A fit that fails numerically is still
// reported, with zeroed parameters.
func (s *Sample) FitAndSummarize(opts powerfit.Options, agg Aggregator) (powerfit.Result, error) {
	h, ok := s.Histogram(EquivDiameter)
	if !ok {
		return powerfit.Result{}, fmt.Errorf("%s: %w", s.Name, ErrNotBinned)
	}

	density := h.Density[:]

	s.Fit = powerfit.FitDensity(density, opts)
	s.ESDDiff = powerfit.ESDDiff(density, opts.StartFit)
	_, s.PeakDensity = powerfit.Peak(density)

	a, k, r2 := s.Fit.Row()
	agg.AddFit(s.Name, a, k, r2, s.ESDDiff, s.CapturePercent, s.BeadRun, s.Humidity)
	agg.AddData(s.Name, s.DateNumber, h.Density, s.VolumeAnalyzed, s.PeakDensity)

	return s.Fit, nil
}

// LoadSample reads the feature table, header and trigger record of ref.
func LoadSample(ctx context.Context, src ifcbdata.Source, ref ifcbdata.SampleRef, conv units.Converter) (*Sample, error) {
	features, err := src.Features(ctx, ref)
	if err != nil {
		return nil, err
	}

	meta, err := src.Header(ctx, ref)
	if err != nil {
		return nil, err
	}

	triggers, err := src.TriggerCount(ctx, ref)
	if err != nil {
		return nil, err
	}

	return NewSample(SampleInput{
		Name:         ref.Name,
		Instrument:   ref.Instrument,
		Features:     features,
		Metadata:     meta,
		TriggerCount: triggers,
	}, conv)
}
