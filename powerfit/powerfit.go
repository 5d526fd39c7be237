// Package powerfit fits the power-law model y = a * x^k to a particle size
// distribution by non-linear least squares.
//
// The scale parameter is reported as A and the exponent as K, which are the
// column names the downstream fit tables have always used.
package powerfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Status records how a fit ended. Everything other than Converged is a
// degraded result; it is never returned as a Go error.
type Status int

const (
	Converged Status = iota
	InsufficientPoints
	NotConverged
	Singular
	NonFinite
	Degenerate
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case InsufficientPoints:
		return "insufficient_points"
	case NotConverged:
		return "not_converged"
	case Singular:
		return "singular"
	case NonFinite:
		return "non_finite"
	case Degenerate:
		return "degenerate"
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

// Options controls the fitting window, the starting guess and the rounding of
// the reported parameters.
type Options struct {
	// Only points with x >= StartFit are fitted.
	StartFit int

	InitialScale    float64
	InitialExponent float64
	MaxIterations   int

	// Significant figures kept for A and K. Zero disables rounding.
	SigFigs int
}

func DefaultOptions() Options {
	return Options{
		StartFit:        13,
		InitialScale:    80000,
		InitialExponent: -0.8,
		MaxIterations:   1000,
		SigFigs:         5,
	}
}

// Result is the outcome of a fit. A, K and RSquared are only meaningful when
// Status is Converged.
type Result struct {
	A          float64
	K          float64
	RSquared   float64
	Status     Status
	Iterations int
}

func (r Result) OK() bool {
	return r.Status == Converged
}

// Row returns the values that belong in a fit table: the fitted parameters
// on success, and the zeroed degraded triple otherwise.
func (r Result) Row() (a, k, rSquared float64) {
	if !r.OK() {
		return 0, 0, 0
	}

	return r.A, r.K, r.RSquared
}

// Model evaluates a * x^k.
func Model(x, a, k float64) float64 {
	return a * math.Pow(x, k)
}

// FitDensity fits a histogram whose x values are the bin indices.
func FitDensity(density []float64, opts Options) Result {
	x := make([]float64, len(density))
	for i := range x {
		x[i] = float64(i)
	}

	return Fit(x, density, opts)
}

// Fit fits y = a * x^k over the points with x >= opts.StartFit, starting from
// (opts.InitialScale, opts.InitialExponent).
func Fit(x, y []float64, opts Options) Result {
	xs, ys := window(x, y, float64(opts.StartFit))

	if len(xs) < 2 || allZero(ys) {
		return Result{Status: InsufficientPoints}
	}

	mean := stat.Mean(ys, nil)
	ssTot := 0.0
	for _, v := range ys {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		return Result{Status: Degenerate}
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultOptions().MaxIterations
	}

	lm := newSolver(xs, ys)
	a, k, iters, status := lm.minimize(opts.InitialScale, opts.InitialExponent, maxIter)
	if status != Converged {
		return Result{Status: status, Iterations: iters}
	}

	ssRes := 0.0
	for i := range xs {
		r := ys[i] - Model(xs[i], a, k)
		ssRes += r * r
	}
	rSquared := 1 - ssRes/ssTot

	if !finite(a) || !finite(k) || !finite(rSquared) {
		return Result{Status: NonFinite, Iterations: iters}
	}

	if opts.SigFigs > 0 {
		a = RoundSig(a, opts.SigFigs)
		k = RoundSig(k, opts.SigFigs)
	}

	return Result{
		A:          a,
		K:          k,
		RSquared:   rSquared,
		Status:     Converged,
		Iterations: iters,
	}
}

func window(x, y []float64, start float64) (xs, ys []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	for i := 0; i < n; i++ {
		if x[i] < start {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}

	return xs, ys
}

func allZero(v []float64) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}

	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
