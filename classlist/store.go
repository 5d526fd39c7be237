package classlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS record (
	sample TEXT PRIMARY KEY,
	default_class_original TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS label (
	sample TEXT NOT NULL,
	kind TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (sample, kind, position)
);
CREATE TABLE IF NOT EXISTS roi (
	sample TEXT NOT NULL,
	roi INTEGER NOT NULL,
	manual INTEGER NULL,
	auto INTEGER NULL,
	PRIMARY KEY (sample, roi)
);
CREATE TABLE IF NOT EXISTS class2use (
	name TEXT NOT NULL,
	position INTEGER NOT NULL,
	class TEXT NOT NULL,
	PRIMARY KEY (name, position)
);
CREATE TABLE IF NOT EXISTS classification (
	sample TEXT PRIMARY KEY,
	classifier TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS classification_class (
	sample TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (sample, position)
);
CREATE TABLE IF NOT EXISTS classification_roi (
	sample TEXT NOT NULL,
	roi INTEGER NOT NULL,
	scores TEXT NOT NULL,
	winner TEXT NOT NULL,
	above_threshold TEXT NOT NULL,
	PRIMARY KEY (sample, roi)
);`

const (
	kindManual = "class2use_manual"
	kindAuto   = "class2use_auto"
	kindTitle  = "list_titles"
)

var ErrNoClassList = errors.New("no class2use list stored")

// Store keeps classification lists in a sqlite database.
type Store struct {
	DB *sqlx.DB
}

// Open connects to the sqlite database at path, creating the schema if
// needed.
func Open(path string) (*Store, error) {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Save replaces whatever is stored for rec.Sample.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return pfx.Err(err)
	}
	defer tx.Rollback()

	for _, table := range []string{"record", "label", "roi"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE sample = ?", rec.Sample); err != nil {
			return pfx.Err(err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO record (sample, default_class_original) VALUES (?, ?)", rec.Sample, rec.DefaultClassOriginal); err != nil {
		return pfx.Err(err)
	}

	labels := map[string][]string{kindManual: rec.ClassesManual, kindAuto: rec.ClassesAuto, kindTitle: rec.ListTitles}
	for kind, names := range labels {
		for i, name := range names {
			if _, err := tx.ExecContext(ctx, "INSERT INTO label (sample, kind, position, name) VALUES (?, ?, ?, ?)", rec.Sample, kind, i, name); err != nil {
				return pfx.Err(err)
			}
		}
	}

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO roi (sample, roi, manual, auto) VALUES (?, ?, ?, ?)")
	if err != nil {
		return pfx.Err(err)
	}
	defer stmt.Close()

	for _, row := range rec.Rows {
		if _, err := stmt.ExecContext(ctx, rec.Sample, row.ROI, row.Manual, row.Auto); err != nil {
			return pfx.Err(err)
		}
	}

	return pfx.Err(tx.Commit())
}

// Load returns the list stored for sample.
func (s *Store) Load(ctx context.Context, sample string) (*Record, error) {
	rec := &Record{Sample: sample}

	err := s.DB.GetContext(ctx, &rec.DefaultClassOriginal, "SELECT default_class_original FROM record WHERE sample = ?", sample)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no classlist stored for %s", sample)
	} else if err != nil {
		return nil, pfx.Err(err)
	}

	for kind, dst := range map[string]*[]string{kindManual: &rec.ClassesManual, kindAuto: &rec.ClassesAuto, kindTitle: &rec.ListTitles} {
		names := make([]string, 0)
		if err := s.DB.SelectContext(ctx, &names, "SELECT name FROM label WHERE sample = ? AND kind = ? ORDER BY position", sample, kind); err != nil {
			return nil, pfx.Err(err)
		}
		*dst = names
	}

	rec.Rows = make([]Row, 0)
	if err := s.DB.SelectContext(ctx, &rec.Rows, "SELECT roi, manual, auto FROM roi WHERE sample = ? ORDER BY roi", sample); err != nil {
		return nil, pfx.Err(err)
	}

	return rec, nil
}

// Samples lists the stored sample names in order.
func (s *Store) Samples(ctx context.Context) ([]string, error) {
	out := make([]string, 0)
	if err := s.DB.SelectContext(ctx, &out, "SELECT sample FROM record ORDER BY sample"); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// AdjustClasses sets the class names of every stored sample list, that is,
// every sample whose name starts with D, and reports how many were changed.
func (s *Store) AdjustClasses(ctx context.Context, classes []string) (int, error) {
	samples, err := s.Samples(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, sample := range samples {
		if !strings.HasPrefix(sample, "D") {
			continue
		}

		rec, err := s.Load(ctx, sample)
		if err != nil {
			return n, err
		}
		rec.SetClasses(classes)
		if err := s.Save(ctx, rec); err != nil {
			return n, err
		}
		n++
	}

	return n, nil
}

// AdjustClassesFrom is AdjustClasses with the class2use list stored under
// name.
func (s *Store) AdjustClassesFrom(ctx context.Context, name string) (int, error) {
	classes, err := s.ClassList(ctx, name)
	if err != nil {
		return 0, err
	}

	return s.AdjustClasses(ctx, classes)
}

// SaveClassList stores classes under name, replacing any list of that name.
func (s *Store) SaveClassList(ctx context.Context, name string, classes []string) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return pfx.Err(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM class2use WHERE name = ?", name); err != nil {
		return pfx.Err(err)
	}

	for i, class := range classes {
		if _, err := tx.ExecContext(ctx, "INSERT INTO class2use (name, position, class) VALUES (?, ?, ?)", name, i, class); err != nil {
			return pfx.Err(err)
		}
	}

	return pfx.Err(tx.Commit())
}

// ClassList returns the class2use list stored under name.
func (s *Store) ClassList(ctx context.Context, name string) ([]string, error) {
	out := make([]string, 0)
	if err := s.DB.SelectContext(ctx, &out, "SELECT class FROM class2use WHERE name = ? ORDER BY position", name); err != nil {
		return nil, pfx.Err(err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoClassList, name)
	}

	return out, nil
}

// ClassLists lists the names of the stored class2use lists.
func (s *Store) ClassLists(ctx context.Context) ([]string, error) {
	out := make([]string, 0)
	if err := s.DB.SelectContext(ctx, &out, "SELECT DISTINCT name FROM class2use ORDER BY name"); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// SaveClassification replaces the classifier output stored for c.Sample.
func (s *Store) SaveClassification(ctx context.Context, c *Classification) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return pfx.Err(err)
	}
	defer tx.Rollback()

	for _, table := range []string{"classification", "classification_class", "classification_roi"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE sample = ?", c.Sample); err != nil {
			return pfx.Err(err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO classification (sample, classifier) VALUES (?, ?)", c.Sample, c.Classifier); err != nil {
		return pfx.Err(err)
	}

	for i, name := range c.Classes {
		if _, err := tx.ExecContext(ctx, "INSERT INTO classification_class (sample, position, name) VALUES (?, ?, ?)", c.Sample, i, name); err != nil {
			return pfx.Err(err)
		}
	}

	stmt, err := tx.PreparexContext(ctx, "INSERT INTO classification_roi (sample, roi, scores, winner, above_threshold) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return pfx.Err(err)
	}
	defer stmt.Close()

	for _, roi := range c.ROIs {
		if _, err := stmt.ExecContext(ctx, c.Sample, roi.ROI, roi.Scores, roi.Winner, roi.AboveThreshold); err != nil {
			return pfx.Err(err)
		}
	}

	return pfx.Err(tx.Commit())
}

// LoadClassification returns the classifier output stored for sample.
func (s *Store) LoadClassification(ctx context.Context, sample string) (*Classification, error) {
	c := &Classification{Sample: sample}

	err := s.DB.GetContext(ctx, &c.Classifier, "SELECT classifier FROM classification WHERE sample = ?", sample)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no classification stored for %s", sample)
	} else if err != nil {
		return nil, pfx.Err(err)
	}

	c.Classes = make([]string, 0)
	if err := s.DB.SelectContext(ctx, &c.Classes, "SELECT name FROM classification_class WHERE sample = ? ORDER BY position", sample); err != nil {
		return nil, pfx.Err(err)
	}

	c.ROIs = make([]ClassifiedROI, 0)
	if err := s.DB.SelectContext(ctx, &c.ROIs, "SELECT roi, scores, winner, above_threshold FROM classification_roi WHERE sample = ? ORDER BY roi", sample); err != nil {
		return nil, pfx.Err(err)
	}

	return c, nil
}
