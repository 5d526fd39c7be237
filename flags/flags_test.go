package flags

import (
	"testing"

	"github.com/carbocation/ifcbpsd/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	name string
	data tables.DistributionRow
	fit  tables.FitRow
}

func build(rows ...fixture) (*tables.Distribution, *tables.Fits) {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.name)
	}

	data := tables.NewDistribution(names)
	fits := tables.NewFits(names)
	for _, r := range rows {
		data.Set(r.name, r.data)
		fits.Set(r.name, r.fit)
	}

	return data, fits
}

func good() tables.FitRow {
	return tables.FitRow{A: 1000, K: -1, RSquared: 0.9, CapturePercent: 0.9, Humidity: 30}
}

func TestNewRejectsUnknownRule(t *testing.T) {
	_, err := New(0.5, map[string][]float64{"sparkles": {1}})
	assert.ErrorIs(t, err, ErrUnknownRule)
}

func TestNewRejectsWrongArity(t *testing.T) {
	cases := []map[string][]float64{
		{"incomplete": {1}},
		{"beads": {1, 2}},
		{"humidity": {}},
	}

	for _, c := range cases {
		_, err := New(0.5, c)
		assert.ErrorIs(t, err, ErrThresholdArity, "%v", c)
	}
}

func TestPriorityLaw(t *testing.T) {
	fit := good()
	fit.A = 1e9
	fit.RSquared = 0.1
	data, fits := build(fixture{name: "s1", fit: fit})

	e, err := New(0.5, map[string][]float64{"beads": {1e6}})
	require.NoError(t, err)

	got := e.Evaluate(data, fits)
	want := []tables.Flag{{Sample: "s1", Name: "Beads", Priority: 1}}
	assert.Equal(t, want, got)
}

func TestBeadsDedup(t *testing.T) {
	fit := good()
	fit.A = 1e9
	fit.BeadRun = true

	onlyRun := good()
	onlyRun.BeadRun = true

	data, fits := build(fixture{name: "a", fit: fit}, fixture{name: "b", fit: onlyRun})

	e, err := New(0.5, map[string][]float64{"beads": {1e6}})
	require.NoError(t, err)

	raw := e.apply(Beads, []float64{1e6}, data, fits)
	assert.Len(t, raw, 2)

	got := e.Evaluate(data, fits)
	want := []tables.Flag{
		{Sample: "a", Name: "Beads", Priority: 1},
		{Sample: "b", Name: "Beads", Priority: 1},
	}
	assert.Equal(t, want, got)
}

func TestSignFlip(t *testing.T) {
	rows := []fixture{}
	for _, c := range []struct {
		name string
		diff int
	}{
		{"d-200", -200},
		{"d-150", -150},
		{"d000", 0},
		{"d004", 4},
		{"d005", 5},
		{"d010", 10},
	} {
		f := good()
		f.ESDDiff = c.diff
		f.RSquared = 0.1
		rows = append(rows, fixture{name: c.name, fit: f})
	}
	data, fits := build(rows...)

	bubbles, err := New(0.05, map[string][]float64{"bubbles": {150}})
	require.NoError(t, err)
	got := bubbles.apply(Bubbles, []float64{150}, data, fits)
	require.Len(t, got, 1)
	assert.Equal(t, "d-200", got[0].Sample)

	bloom, err := New(0.5, map[string][]float64{"bloom": {5}})
	require.NoError(t, err)
	got = bloom.apply(Bloom, []float64{5}, data, fits)
	names := make([]string, 0)
	for _, f := range got {
		names = append(names, f.Sample)
	}
	want := []string{"d-200", "d-150", "d000", "d004"}
	assert.Equal(t, want, names)
}

func TestLowROnlyFiltersFirst(t *testing.T) {
	lowFit := good()
	lowFit.RSquared = 0.2
	highFit := good()

	data, fits := build(
		fixture{name: "low", data: tables.DistributionRow{PeakDensity: 1}, fit: lowFit},
		fixture{name: "high", data: tables.DistributionRow{PeakDensity: 1}, fit: highFit},
	)

	e, err := New(0.5, map[string][]float64{"biomass": {100}})
	require.NoError(t, err)

	got := e.Evaluate(data, fits)
	want := []tables.Flag{{Sample: "low", Name: "Low Biomass", Priority: 5}}
	assert.Equal(t, want, got)
}

func TestIncompleteNeedsBoth(t *testing.T) {
	data, fits := build(
		fixture{name: "both", data: tables.DistributionRow{PeakDensity: 1, VolumeAnalyzed: 1}, fit: good()},
		fixture{name: "peak", data: tables.DistributionRow{PeakDensity: 1, VolumeAnalyzed: 10}, fit: good()},
		fixture{name: "vol", data: tables.DistributionRow{PeakDensity: 1000, VolumeAnalyzed: 1}, fit: good()},
	)

	e, err := New(0.5, map[string][]float64{"incomplete": {100, 3}})
	require.NoError(t, err)

	got := e.Evaluate(data, fits)
	assert.Equal(t, []tables.Flag{{Sample: "both", Name: "Incomplete Run", Priority: 3}}, got)
}

func TestEndToEndScenario(t *testing.T) {
	bead := good()
	bead.A = 5e6
	bead.BeadRun = true

	poor := good()
	poor.RSquared = 0.2

	data, fits := build(
		fixture{name: "D20210101T000000", fit: good()},
		fixture{name: "D20210102T000000", fit: poor},
		fixture{name: "D20210100T000000", fit: bead},
	)

	e, err := New(0.5, map[string][]float64{
		"beads":    {1e6},
		"bubbles":  {150},
		"humidity": {80},
	})
	require.NoError(t, err)

	got := e.Evaluate(data, fits)
	want := []tables.Flag{
		{Sample: "D20210100T000000", Name: "Beads", Priority: 1},
		{Sample: "D20210102T000000", Name: "Low R^2", Priority: 8},
	}
	assert.Equal(t, want, got)
}

func TestMerge(t *testing.T) {
	got := Merge([]tables.Flag{
		{Sample: "b", Name: "Low R^2", Priority: 8},
		{Sample: "a", Name: "High Humidity", Priority: 7},
		{Sample: "b", Name: "Bubbles", Priority: 2},
		{Sample: "a", Name: "Missing Cells", Priority: 4},
	})
	want := []tables.Flag{
		{Sample: "a", Name: "Missing Cells", Priority: 4},
		{Sample: "b", Name: "Bubbles", Priority: 2},
	}
	assert.Equal(t, want, got)
}

func TestPrioritiesAreBelowSentinel(t *testing.T) {
	for _, r := range append(Optional, LowRSquared) {
		assert.Less(t, r.Priority(), NoFlagPriority, "%s", r)
		if r != LowRSquared {
			assert.Less(t, r.Priority(), LowRSquared.Priority(), "%s should outrank Low R^2", r)
		}
	}
}
