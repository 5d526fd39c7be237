package report

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() psd.Export {
	names := []string{"D20210102T000000", "D20210101T000000", "D20210103T000000"}
	data := tables.NewDistribution(names)
	fits := tables.NewFits(names)

	var density [tables.NBins]float64
	density[2] = 400
	density[13] = 100

	data.Set("D20210101T000000", tables.DistributionRow{Density: density, VolumeAnalyzed: 5, PeakDensity: 400, DateNumber: 738157})
	data.Set("D20210102T000000", tables.DistributionRow{VolumeAnalyzed: 4.5, DateNumber: 738158})
	fits.Set("D20210101T000000", tables.FitRow{A: 12345, K: -1.25, RSquared: 0.9, ESDDiff: 11, CapturePercent: 0.8, Humidity: 40})
	fits.Set("D20210102T000000", tables.FitRow{ESDDiff: 13, CapturePercent: 0.5, BeadRun: true, Humidity: 45})

	return psd.Export{
		Distribution: data,
		Fits:         fits,
		Flags: []tables.Flag{
			{Sample: "D20210101T000000", Name: "High Humidity", Priority: 7},
			{Sample: "D20210102T000000", Name: "Beads", Priority: 1},
		},
		Failures: []psd.Failure{{Sample: "D20210103T000000", Err: errors.New("no header")}},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return recs
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, "bin", exportFixture()))

	dataPath, fitsPath, flagsPath, failuresPath := Paths(dir, "bin")

	data := readCSV(t, dataPath)
	require.Len(t, data, 3, "header and 2 rows")
	require.Len(t, data[0], tables.NBins+4)
	assert.Equal(t, "0μm", data[0][3])
	assert.Equal(t, "datenum", data[0][len(data[0])-1])

	// Index order, not name order
	assert.Equal(t, "D20210102T000000", data[1][0])
	assert.Equal(t, "D20210101T000000", data[2][0])

	assert.Equal(t, "5", data[2][1])
	assert.Equal(t, "400", data[2][2])
	assert.Equal(t, "100", data[2][3+13])
	assert.Equal(t, "738157", data[2][len(data[2])-1])

	fits := readCSV(t, fitsPath)
	require.Len(t, fits, 3)
	assert.Equal(t, "sample,a,k,R^2,max_ESD_diff,capture_percent,bead_run,humidity", strings.Join(fits[0], ","))
	assert.Equal(t, "D20210102T000000", fits[1][0])
	assert.Equal(t, "true", fits[1][6])
	assert.Equal(t, []string{"12345", "-1.25"}, fits[2][1:3])
	assert.Equal(t, "11", fits[2][4])

	flags := readCSV(t, flagsPath)
	require.Len(t, flags, 3)
	assert.Equal(t, []string{"file", "flag"}, flags[0])
	assert.Equal(t, "Beads", flags[2][1])

	failures := readCSV(t, failuresPath)
	assert.Equal(t, [][]string{{"sample", "error"}, {"D20210103T000000", "no header"}}, failures)
}

func TestSaveWithoutFailures(t *testing.T) {
	dir := t.TempDir()
	e := exportFixture()
	e.Failures = nil

	require.NoError(t, Save(dir, "bin", e))

	_, _, _, failuresPath := Paths(dir, "bin")
	_, err := os.Stat(failuresPath)
	assert.True(t, os.IsNotExist(err), "no failures file expected, got %v", err)

	_, err = os.Stat(filepath.Join(dir, "bin_data.csv"))
	assert.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(exportFixture())
	require.NoError(t, err)

	assert.Equal(t, 2, s.Samples)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Flagged)
	assert.Equal(t, 1, s.Converged)
	assert.Equal(t, 1, s.BeadRuns)

	assert.Equal(t, 0.9, s.MeanRSquared)
	assert.Equal(t, 0.9, s.MedianRSquared)
	assert.InDelta(t, 0.65, s.MeanCapture, 1e-3)
	assert.Equal(t, 1, s.FlagCounts["Beads"])
	assert.Contains(t, s.String(), "Beads\t1")
}
