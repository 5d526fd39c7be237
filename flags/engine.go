package flags

import (
	"fmt"
	"sort"

	"github.com/carbocation/ifcbpsd/tables"
)

type enabled struct {
	rule       Rule
	thresholds []float64
}

// Engine evaluates the low-R² rule plus whichever optional rules were
// configured. It is built, and its configuration checked, before any sample
// is processed.
type Engine struct {
	rSquared float64
	rules    []enabled
}

// New validates thresholds, keyed by rule key, and returns an Engine. Rules
// absent from thresholds are not evaluated.
func New(rSquared float64, thresholds map[string][]float64) (*Engine, error) {
	e := &Engine{rSquared: rSquared}

	keys := make([]string, 0, len(thresholds))
	for key := range thresholds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rule, err := ParseRule(key)
		if err != nil {
			return nil, err
		}

		values := thresholds[key]
		if len(values) != rule.Arity() {
			return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrThresholdArity, key, rule.Arity(), len(values))
		}

		e.rules = append(e.rules, enabled{rule: rule, thresholds: append([]float64(nil), values...)})
	}

	sort.SliceStable(e.rules, func(i, j int) bool { return e.rules[i].rule < e.rules[j].rule })

	return e, nil
}

// RSquared is the global goodness-of-fit threshold.
func (e *Engine) RSquared() float64 {
	return e.rSquared
}

// Rules lists the configured optional rules in priority order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.rule)
	}

	return out
}

// Evaluate runs every rule over the finished tables and merges the results
// into at most one flag per sample, sorted by sample name.
func (e *Engine) Evaluate(data *tables.Distribution, fits *tables.Fits) []tables.Flag {
	all := e.apply(LowRSquared, []float64{e.rSquared}, data, fits)
	for _, r := range e.rules {
		all = append(all, e.apply(r.rule, r.thresholds, data, fits)...)
	}

	return Merge(all)
}

func (e *Engine) apply(rule Rule, thresholds []float64, data *tables.Distribution, fits *tables.Fits) []tables.Flag {
	def := catalog[rule]

	t := append([]float64(nil), thresholds...)
	if def.negate {
		for i := range t {
			t[i] = -t[i]
		}
	}

	lowR := func(name string) bool {
		if !def.lowROnly {
			return true
		}
		fr, ok := fits.Get(name)
		return ok && fr.RSquared < e.rSquared
	}

	out := make([]tables.Flag, 0)
	add := func(name string) {
		out = append(out, tables.Flag{Sample: name, Name: def.name, Priority: rule.Priority()})
	}

	switch {
	case def.fit != nil:
		fits.Each(func(name string, row tables.FitRow) {
			if lowR(name) && def.fit(row, t) {
				add(name)
			}
		})
	case def.data != nil:
		data.Each(func(name string, row tables.DistributionRow) {
			if lowR(name) && def.data(row, t) {
				add(name)
			}
		})
	}

	if rule == Beads {
		fits.Each(func(name string, row tables.FitRow) {
			if row.BeadRun {
				add(name)
			}
		})
		out = dedup(out)
	}

	return out
}

// Merge orders flags by priority, keeps the first flag seen for each sample,
// and returns the survivors sorted by sample name.
func Merge(flags []tables.Flag) []tables.Flag {
	sorted := append([]tables.Flag(nil), flags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	out := dedup(sorted)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sample < out[j].Sample })

	return out
}

func dedup(flags []tables.Flag) []tables.Flag {
	seen := make(map[string]struct{}, len(flags))
	out := make([]tables.Flag, 0, len(flags))
	for _, f := range flags {
		if _, exists := seen[f.Sample]; exists {
			continue
		}
		seen[f.Sample] = struct{}{}
		out = append(out, f)
	}

	return out
}
