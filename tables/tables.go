// Package tables holds the fixed-schema, sample-keyed tables that a Bin
// aggregates and that the flag engine and report writers consume.
package tables

// NBins is the number of 1-micron size bins in every histogram. Sizes at or
// above NBins-1 are clamped into the last bin.
const NBins = 200

// DistributionRow is one sample's row in the distribution table.
type DistributionRow struct {
	Density        [NBins]float64 // particles per liter, by size bin
	VolumeAnalyzed float64        // mL
	PeakDensity    float64
	DateNumber     float64 // MATLAB datenum of the acquisition
}

// FitRow is one sample's row in the fit table.
type FitRow struct {
	A              float64
	K              float64
	RSquared       float64
	ESDDiff        int
	CapturePercent float64
	BeadRun        bool
	Humidity       float64
}

// Flag is a quality flag raised against a sample. Lower Priority wins when
// more than one rule matches the same sample.
type Flag struct {
	Sample   string
	Name     string
	Priority int
}

// Table is a name-keyed table that holds at most one row per name and
// iterates in insertion order. It is not safe for concurrent writes; the
// owner serializes Set calls.
type Table[R any] struct {
	order   []string
	indexed map[string]struct{}
	rows    map[string]R
}

// New returns a Table whose iteration order is seeded with index. Names in
// the index have no row until Set is called for them.
func New[R any](index []string) *Table[R] {
	t := &Table[R]{
		order:   make([]string, 0, len(index)),
		indexed: make(map[string]struct{}, len(index)),
		rows:    make(map[string]R, len(index)),
	}

	for _, name := range index {
		if _, exists := t.indexed[name]; exists {
			continue
		}
		t.indexed[name] = struct{}{}
		t.order = append(t.order, name)
	}

	return t
}

// Set inserts or silently overwrites the row for name. Names that were not
// part of the index are appended to the iteration order.
func (t *Table[R]) Set(name string, row R) {
	if _, exists := t.indexed[name]; !exists {
		t.indexed[name] = struct{}{}
		t.order = append(t.order, name)
	}
	t.rows[name] = row
}

// Get returns the row for name and whether it has been populated.
func (t *Table[R]) Get(name string) (R, bool) {
	r, ok := t.rows[name]
	return r, ok
}

// Names returns the populated row names in index order.
func (t *Table[R]) Names() []string {
	out := make([]string, 0, len(t.rows))
	for _, name := range t.order {
		if _, ok := t.rows[name]; ok {
			out = append(out, name)
		}
	}

	return out
}

// Len is the number of populated rows.
func (t *Table[R]) Len() int {
	return len(t.rows)
}

// Each calls fn for every populated row in index order.
func (t *Table[R]) Each(fn func(name string, row R)) {
	for _, name := range t.order {
		if r, ok := t.rows[name]; ok {
			fn(name, r)
		}
	}
}

// Distribution and Fits are the two per-Bin aggregate tables.
type (
	Distribution = Table[DistributionRow]
	Fits         = Table[FitRow]
)

func NewDistribution(index []string) *Distribution { return New[DistributionRow](index) }

func NewFits(index []string) *Fits { return New[FitRow](index) }
