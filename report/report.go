// Package report writes the tables of a processed Bin to delimited files and
// summarizes them.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

type fitLine struct {
	Sample         string  `csv:"sample"`
	A              float64 `csv:"a"`
	K              float64 `csv:"k"`
	RSquared       float64 `csv:"R^2"`
	ESDDiff        int     `csv:"max_ESD_diff"`
	CapturePercent float64 `csv:"capture_percent"`
	BeadRun        bool    `csv:"bead_run"`
	Humidity       float64 `csv:"humidity"`
}

type flagLine struct {
	File string `csv:"file"`
	Flag string `csv:"flag"`
}

type failureLine struct {
	Sample string `csv:"sample"`
	Error  string `csv:"error"`
}

// Paths returns the files Save writes for name inside dir.
func Paths(dir, name string) (data, fits, flags, failures string) {
	base := filepath.Join(dir, name)
	return base + "_data.csv", base + "_fits.csv", base + "_flags.csv", base + "_failures.csv"
}

// Save writes {name}_data.csv, {name}_fits.csv and {name}_flags.csv into
// dir, plus {name}_failures.csv when any sample failed.
func Save(dir, name string, e psd.Export) error {
	dataPath, fitsPath, flagsPath, failuresPath := Paths(dir, name)

	if err := writeFile(dataPath, func(w io.Writer) error { return WriteDistribution(w, e.Distribution) }); err != nil {
		return err
	}
	if err := writeFile(fitsPath, func(w io.Writer) error { return WriteFits(w, e.Fits) }); err != nil {
		return err
	}
	if err := writeFile(flagsPath, func(w io.Writer) error { return WriteFlags(w, e.Flags) }); err != nil {
		return err
	}
	if len(e.Failures) > 0 {
		if err := writeFile(failuresPath, func(w io.Writer) error { return WriteFailures(w, e.Failures) }); err != nil {
			return err
		}
	}

	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	return pfx.Err(f.Close())
}

// DistributionHeader is the header row of the distribution table.
func DistributionHeader() []string {
	header := make([]string, 0, tables.NBins+4)
	header = append(header, "sample", "mL_analyzed", "max")
	for i := 0; i < tables.NBins; i++ {
		header = append(header, fmt.Sprintf("%dμm", i))
	}
	header = append(header, "datenum")

	return header
}

// WriteDistribution writes one row per populated sample, in index order.
func WriteDistribution(w io.Writer, t *tables.Distribution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DistributionHeader()); err != nil {
		return pfx.Err(err)
	}

	var err error
	t.Each(func(name string, row tables.DistributionRow) {
		if err != nil {
			return
		}

		line := make([]string, 0, tables.NBins+4)
		line = append(line, name, formatFloat(row.VolumeAnalyzed), formatFloat(row.PeakDensity))
		for _, d := range row.Density {
			line = append(line, formatFloat(d))
		}
		line = append(line, formatFloat(row.DateNumber))

		err = cw.Write(line)
	})
	if err != nil {
		return pfx.Err(err)
	}

	cw.Flush()
	return pfx.Err(cw.Error())
}

// WriteFits writes one row per populated sample, in index order.
func WriteFits(w io.Writer, t *tables.Fits) error {
	lines := make([]fitLine, 0, t.Len())
	t.Each(func(name string, row tables.FitRow) {
		lines = append(lines, fitLine{
			Sample:         name,
			A:              row.A,
			K:              row.K,
			RSquared:       row.RSquared,
			ESDDiff:        row.ESDDiff,
			CapturePercent: row.CapturePercent,
			BeadRun:        row.BeadRun,
			Humidity:       row.Humidity,
		})
	})

	return pfx.Err(gocsv.Marshal(&lines, w))
}

// WriteFlags writes the merged flags. Priority is not part of the output.
func WriteFlags(w io.Writer, flags []tables.Flag) error {
	lines := make([]flagLine, 0, len(flags))
	for _, f := range flags {
		lines = append(lines, flagLine{File: f.Sample, Flag: f.Name})
	}

	return pfx.Err(gocsv.Marshal(&lines, w))
}

func WriteFailures(w io.Writer, failures []psd.Failure) error {
	lines := make([]failureLine, 0, len(failures))
	for _, f := range failures {
		lines = append(lines, failureLine{Sample: f.Sample, Error: f.Err.Error()})
	}

	return pfx.Err(gocsv.Marshal(&lines, w))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
