// Package flags raises quality flags against the samples of a Bin. Each rule
// is a predicate over one of the two aggregate tables; when several rules
// match a sample, the one with the lowest priority number wins.
package flags

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/ifcbpsd/tables"
)

var (
	ErrUnknownRule    = errors.New("unknown flag rule")
	ErrThresholdArity = errors.New("wrong number of thresholds for flag rule")
)

// Rule is one entry of the closed rule catalog. Its numeric value is its
// priority.
type Rule int

const (
	Beads Rule = iota + 1
	Bubbles
	Incomplete
	MissingCells
	Biomass
	Bloom
	Humidity
	LowRSquared
)

// NoFlagPriority ranks below every rule. It is never emitted.
const NoFlagPriority = 10000

// Optional lists the rules a caller may enable by key, in priority order.
// LowRSquared is always evaluated and cannot be enabled by key.
var Optional = []Rule{Beads, Bubbles, Incomplete, MissingCells, Biomass, Bloom, Humidity}

type fitPredicate func(row tables.FitRow, t []float64) bool

type dataPredicate func(row tables.DistributionRow, t []float64) bool

type definition struct {
	key   string
	name  string
	arity int

	// lowROnly restricts the candidate rows to samples whose fit R² is
	// below the engine's threshold.
	lowROnly bool

	// negate flips the sign of every caller threshold before the predicate
	// sees it.
	negate bool

	// Exactly one of fit and data is set.
	fit  fitPredicate
	data dataPredicate
}

var catalog = map[Rule]definition{
	Beads: {
		key: "beads", name: "Beads", arity: 1,
		fit: func(r tables.FitRow, t []float64) bool { return r.A > t[0] },
	},
	Bubbles: {
		key: "bubbles", name: "Bubbles", arity: 1, negate: true,
		fit: func(r tables.FitRow, t []float64) bool { return float64(r.ESDDiff) < t[0] },
	},
	Incomplete: {
		key: "incomplete", name: "Incomplete Run", arity: 2,
		data: func(r tables.DistributionRow, t []float64) bool {
			return r.PeakDensity < t[0] && r.VolumeAnalyzed < t[1]
		},
	},
	MissingCells: {
		key: "missing_cells", name: "Missing Cells", arity: 1,
		fit: func(r tables.FitRow, t []float64) bool { return r.CapturePercent < t[0] },
	},
	Biomass: {
		key: "biomass", name: "Low Biomass", arity: 1, lowROnly: true,
		data: func(r tables.DistributionRow, t []float64) bool { return r.PeakDensity < t[0] },
	},
	Bloom: {
		key: "bloom", name: "Bloom", arity: 1, lowROnly: true, negate: true,
		// Same column as Bubbles, opposite direction.
		fit: func(r tables.FitRow, t []float64) bool { return -float64(r.ESDDiff) > t[0] },
	},
	Humidity: {
		key: "humidity", name: "High Humidity", arity: 1,
		fit: func(r tables.FitRow, t []float64) bool { return r.Humidity > t[0] },
	},
	LowRSquared: {
		key: "r_squared", name: "Low R^2", arity: 1,
		fit: func(r tables.FitRow, t []float64) bool { return r.RSquared < t[0] },
	},
}

func (r Rule) Priority() int {
	return int(r)
}

// Name is the label written to the flag table.
func (r Rule) Name() string {
	if d, ok := catalog[r]; ok {
		return d.name
	}

	return fmt.Sprintf("Rule(%d)", int(r))
}

// Key is the configuration key that enables the rule.
func (r Rule) Key() string {
	return catalog[r].key
}

// Arity is the number of thresholds the rule takes.
func (r Rule) Arity() int {
	return catalog[r].arity
}

func (r Rule) String() string {
	return r.Name()
}

// ParseRule maps a configuration key to its rule.
func ParseRule(key string) (Rule, error) {
	valid := make([]string, 0, len(Optional))
	for _, r := range Optional {
		if r.Key() == key {
			return r, nil
		}
		valid = append(valid, r.Key())
	}

	return 0, fmt.Errorf("%w: %q not found. Valid names include: %s", ErrUnknownRule, key, strings.Join(valid, ", "))
}

// Keys returns the configuration keys of the optional rules, sorted.
func Keys() []string {
	out := make([]string, 0, len(Optional))
	for _, r := range Optional {
		out = append(out, r.Key())
	}
	sort.Strings(out)

	return out
}
