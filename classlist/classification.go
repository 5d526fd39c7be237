package classlist

import (
	"bufio"
	"database/sql/driver"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/carbocation/ifcbpsd"
	"github.com/carbocation/pfx"
)

var ErrScores = errors.New("malformed classifier scores")

// Scores is one ROI's score per class, stored as a JSON array.
type Scores []float64

func (s Scores) Value() (driver.Value, error) {
	b, err := sonic.Marshal([]float64(s))
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func (s *Scores) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Scores", src)
	}

	return sonic.Unmarshal(b, (*[]float64)(s))
}

// ClassifiedROI is the classifier output for one ROI.
type ClassifiedROI struct {
	ROI            int64  `db:"roi"`
	Scores         Scores `db:"scores"`
	Winner         string `db:"winner"`
	AboveThreshold string `db:"above_threshold"`
}

// Classification is the output of an automated classifier for one sample.
// Classes lists the scored classes followed by DefaultClass, which is what
// a ROI below threshold is assigned.
type Classification struct {
	Sample     string
	Classifier string
	Classes    []string
	ROIs       []ClassifiedROI
}

// NewClassification checks that every ROI has one score per class and
// builds the record. winner and aboveThreshold hold one class name per ROI.
func NewClassification(sample, classifier string, classes []string, rois []int64, scores [][]float64, winner, aboveThreshold []string) (*Classification, error) {
	if len(scores) != len(rois) || len(winner) != len(rois) || len(aboveThreshold) != len(rois) {
		return nil, fmt.Errorf("%w: %d ROIs but %d score rows, %d winners and %d thresholded classes", ErrScores, len(rois), len(scores), len(winner), len(aboveThreshold))
	}

	c := &Classification{
		Sample:     sample,
		Classifier: classifier,
		Classes:    append(append([]string(nil), classes...), DefaultClass),
		ROIs:       make([]ClassifiedROI, len(rois)),
	}

	for i, roi := range rois {
		if len(scores[i]) != len(classes) {
			return nil, fmt.Errorf("%w: ROI %d has %d scores for %d classes", ErrScores, roi, len(scores[i]), len(classes))
		}
		c.ROIs[i] = ClassifiedROI{
			ROI:            roi,
			Scores:         append(Scores(nil), scores[i]...),
			Winner:         winner[i],
			AboveThreshold: aboveThreshold[i],
		}
	}

	return c, nil
}

// Decide picks the highest-scoring class of each ROI; ties go to the
// earlier class. The thresholded class is the winner when its score reaches
// threshold and DefaultClass otherwise.
func Decide(classes []string, scores [][]float64, threshold float64) (winner, aboveThreshold []string) {
	winner = make([]string, len(scores))
	aboveThreshold = make([]string, len(scores))

	for i, row := range scores {
		best := -1
		for j, v := range row {
			if j >= len(classes) {
				break
			}
			if best < 0 || v > row[best] {
				best = j
			}
		}

		if best < 0 {
			winner[i] = DefaultClass
			aboveThreshold[i] = DefaultClass
			continue
		}

		winner[i] = classes[best]
		aboveThreshold[i] = DefaultClass
		if row[best] >= threshold {
			aboveThreshold[i] = classes[best]
		}
	}

	return winner, aboveThreshold
}

// ReadScores parses a classifier score table: a header of the ROI column
// followed by one column per class, then one row per ROI.
func ReadScores(r io.Reader) (classes []string, rois []int64, scores [][]float64, err error) {
	br := bufio.NewReader(r)

	rdr := csv.NewReader(br)
	rdr.Comma = ifcbpsd.PeekDelimiter(br)
	rdr.TrimLeadingSpace = true

	header, err := rdr.Read()
	if err == io.EOF {
		return nil, nil, nil, fmt.Errorf("%w: empty table", ErrScores)
	} else if err != nil {
		return nil, nil, nil, pfx.Err(err)
	}
	if len(header) < 2 {
		return nil, nil, nil, fmt.Errorf("%w: need a ROI column and at least one class", ErrScores)
	}

	for _, name := range header[1:] {
		classes = append(classes, strings.TrimSpace(name))
	}

	for line := 2; ; line++ {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, nil, pfx.Err(err)
		}

		roi, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: line %d: %v", ErrScores, line, err)
		}

		row := make([]float64, 0, len(classes))
		for _, field := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: line %d: %v", ErrScores, line, err)
			}
			row = append(row, v)
		}

		rois = append(rois, roi)
		scores = append(scores, row)
	}

	return classes, rois, scores, nil
}
