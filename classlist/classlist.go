// Package classlist maintains the manual classification lists that
// accompany IFCB samples: one row per ROI holding a manual and an automatic
// class index, plus the class names those indices refer to.
package classlist

import (
	"errors"
	"fmt"

	"gopkg.in/guregu/null.v3"
)

const (
	ColumnROI = iota
	ColumnManual
	ColumnAuto
)

// DefaultClass is the class every ROI is assumed to have had before manual
// annotation.
const DefaultClass = "unclassified"

var (
	ErrLength = errors.New("manual values must be a single value or one per ROI")
	ErrRow    = errors.New("row out of range")
	ErrColumn = errors.New("unknown classlist column")
)

// Titles are the column titles of a classlist, by Column index.
var Titles = []string{"roi number", "manual", "auto"}

// Row is one ROI. A class index that has not been assigned is null.
type Row struct {
	ROI    int64    `db:"roi"`
	Manual null.Int `db:"manual"`
	Auto   null.Int `db:"auto"`
}

// Record is the classification list of one sample.
type Record struct {
	Sample               string
	ClassesManual        []string
	ClassesAuto          []string
	Rows                 []Row
	ListTitles           []string
	DefaultClassOriginal string
}

// NewManual creates a list of length ROIs numbered from 1 with no automatic
// classes. With no manual values every ROI gets class 1; a single value is
// used for every ROI; otherwise there must be one value per ROI.
func NewManual(sample string, length int, classes []string, manual ...int64) (*Record, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrLength, length)
	}

	switch len(manual) {
	case 0:
		manual = []int64{1}
		fallthrough
	case 1:
		fill := make([]int64, length)
		for i := range fill {
			fill[i] = manual[0]
		}
		manual = fill
	case length:
	default:
		return nil, fmt.Errorf("%w: got %d values for %d ROIs", ErrLength, len(manual), length)
	}

	rec := &Record{
		Sample:               sample,
		ClassesManual:        append([]string(nil), classes...),
		ClassesAuto:          []string{},
		Rows:                 make([]Row, length),
		ListTitles:           append([]string(nil), Titles...),
		DefaultClassOriginal: DefaultClass,
	}
	for i := range rec.Rows {
		rec.Rows[i] = Row{ROI: int64(i + 1), Manual: null.IntFrom(manual[i])}
	}

	return rec, nil
}

// EditRows sets the manual class of the given 1-based rows. Nothing changes
// if any row is out of range.
func (r *Record) EditRows(rows []int, value null.Int) error {
	for _, row := range rows {
		if row < 1 || row > len(r.Rows) {
			return fmt.Errorf("%w: %d not in [1, %d]", ErrRow, row, len(r.Rows))
		}
	}

	for _, row := range rows {
		r.Rows[row-1].Manual = value
	}

	return nil
}

// ReplaceMissing fills the unassigned entries of a class column.
func (r *Record) ReplaceMissing(column int, value int64) (int, error) {
	if column != ColumnManual && column != ColumnAuto {
		return 0, fmt.Errorf("%w: %d has no missing values", ErrColumn, column)
	}

	n := 0
	for i := range r.Rows {
		cell := r.cell(i, column)
		if !cell.Valid {
			*cell = null.IntFrom(value)
			n++
		}
	}

	return n, nil
}

// ReplaceValue swaps every occurrence of target in column for value and
// reports how many rows changed.
func (r *Record) ReplaceValue(column int, target, value int64) (int, error) {
	if column < ColumnROI || column > ColumnAuto {
		return 0, fmt.Errorf("%w: %d", ErrColumn, column)
	}

	n := 0
	for i := range r.Rows {
		if column == ColumnROI {
			if r.Rows[i].ROI == target {
				r.Rows[i].ROI = value
				n++
			}
			continue
		}

		cell := r.cell(i, column)
		if cell.Valid && cell.Int64 == target {
			*cell = null.IntFrom(value)
			n++
		}
	}

	return n, nil
}

func (r *Record) cell(i, column int) *null.Int {
	if column == ColumnAuto {
		return &r.Rows[i].Auto
	}

	return &r.Rows[i].Manual
}

// SetClasses replaces both class name lists.
func (r *Record) SetClasses(classes []string) {
	r.ClassesManual = append([]string(nil), classes...)
	r.ClassesAuto = append([]string(nil), classes...)
}

// Class returns the manual class name of a 1-based row, or DefaultClass
// when the row is unassigned or its index has no name.
func (r *Record) Class(row int) (string, error) {
	if row < 1 || row > len(r.Rows) {
		return "", fmt.Errorf("%w: %d not in [1, %d]", ErrRow, row, len(r.Rows))
	}

	m := r.Rows[row-1].Manual
	if !m.Valid || m.Int64 < 1 || m.Int64 > int64(len(r.ClassesManual)) {
		return DefaultClass, nil
	}

	return r.ClassesManual[m.Int64-1], nil
}
