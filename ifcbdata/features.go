package ifcbdata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// FeatureRow holds the per-target columns of a v2 feature table that the
// size distribution needs. All other columns are ignored.
type FeatureRow struct {
	Biovolume       float64 `csv:"Biovolume"`
	EquivDiameter   float64 `csv:"EquivDiameter"`
	MajorAxisLength float64 `csv:"MajorAxisLength"`
	MinorAxisLength float64 `csv:"MinorAxisLength"`
}

// RequiredFeatureColumns must all be present in the header of a feature
// table.
var RequiredFeatureColumns = []string{"Biovolume", "EquivDiameter", "MajorAxisLength", "MinorAxisLength"}

// ReadFeatures parses a feature table. The delimiter is sniffed from the
// head of the stream; if the sniffed delimiter does not split the header into
// the required columns, the other accepted delimiters are tried in turn. A
// header-only table yields zero rows.
func ReadFeatures(r io.Reader) ([]FeatureRow, error) {
	br := bufio.NewReaderSize(r, 16*1024)
	sniffed := ifcbpsd.PeekDelimiter(br)

	content, err := io.ReadAll(br)
	if err != nil {
		return nil, pfx.Err(err)
	}

	delim, err := headerDelimiter(content, sniffed)
	if err != nil {
		return nil, err
	}

	out := make([]FeatureRow, 0)
	if err := gocsv.UnmarshalCSV(newFeatureReader(content, delim), &out); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// headerDelimiter returns the first delimiter, starting with sniffed, under
// which the header carries every required column.
func headerDelimiter(content []byte, sniffed rune) (rune, error) {
	candidates := append([]rune{sniffed}, ifcbpsd.Delimiters...)

	var firstErr error
	for _, delim := range candidates {
		header, err := newFeatureReader(content, delim).Read()
		if err == io.EOF {
			return 0, fmt.Errorf("feature table is empty")
		} else if err != nil {
			if firstErr == nil {
				firstErr = pfx.Err(err)
			}
			continue
		}

		if err := checkColumns(header); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		return delim, nil
	}

	return 0, firstErr
}

func newFeatureReader(content []byte, delim rune) *csv.Reader {
	rdr := csv.NewReader(bytes.NewReader(content))
	rdr.Comma = delim
	rdr.TrimLeadingSpace = true
	rdr.ReuseRecord = false
	return rdr
}

func checkColumns(header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = struct{}{}
	}

	missing := make([]string, 0)
	for _, col := range RequiredFeatureColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("feature table is missing column(s) %s", strings.Join(missing, ", "))
	}

	return nil
}

// Features opens, decompresses if needed, and parses the feature table of a
// sample.
func (s Source) Features(ctx context.Context, ref SampleRef) ([]FeatureRow, error) {
	rc, err := s.open(ctx, s.FeaturePath(ref))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rows, err := ReadFeatures(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.FeaturePath(ref), err)
	}

	return rows, nil
}

func (s Source) open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := ifcbpsd.OpenPath(ctx, path, s.Storage)
	if err != nil {
		return nil, pfx.Err(err)
	}

	rc, err := ifcbpsd.MaybeDecompressReadCloser(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return rc, nil
}
