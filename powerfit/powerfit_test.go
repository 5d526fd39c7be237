package powerfit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func powerLaw(a, k float64, from, to int) (x, y []float64) {
	for i := from; i <= to; i++ {
		x = append(x, float64(i))
		y = append(y, Model(float64(i), a, k))
	}

	return x, y
}

func TestFitRecoversExactPowerLaw(t *testing.T) {
	x, y := powerLaw(100, -1, 13, 50)

	res := Fit(x, y, DefaultOptions())
	require.True(t, res.OK(), "status %s after %d iterations", res.Status, res.Iterations)

	assert.InDelta(t, 100, res.A, 1e-3)
	assert.InDelta(t, -1, res.K, 1e-3)
	assert.InDelta(t, 1, res.RSquared, 1e-3)
}

func TestFitDensityUsesBinIndexAndWindow(t *testing.T) {
	density := make([]float64, 200)
	for i := 13; i < 200; i++ {
		density[i] = Model(float64(i), 5000, -1.5)
	}
	// A spike below the window must not affect the fit.
	density[3] = 1e9

	res := FitDensity(density, DefaultOptions())
	require.True(t, res.OK(), "status %s", res.Status)

	assert.InDelta(t, 5000, res.A, 1)
	assert.InDelta(t, -1.5, res.K, 1e-3)
	assert.InDelta(t, 1, res.RSquared, 1e-6)
}

func TestFitTooFewPoints(t *testing.T) {
	for _, x := range [][]float64{
		{},
		{1, 2, 3, 13},
		{13},
	} {
		y := make([]float64, len(x))
		for i := range y {
			y[i] = 10
		}

		res := Fit(x, y, DefaultOptions())
		assert.Equal(t, InsufficientPoints, res.Status)
		assert.False(t, res.OK())

		a, k, r2 := res.Row()
		assert.Zero(t, a)
		assert.Zero(t, k)
		assert.Zero(t, r2)
	}
}

func TestFitEmptyDistribution(t *testing.T) {
	res := FitDensity(make([]float64, 200), DefaultOptions())
	assert.Equal(t, InsufficientPoints, res.Status)
}

func TestFitConstantWindowIsDegenerate(t *testing.T) {
	x := []float64{13, 14, 15, 16}
	y := []float64{7, 7, 7, 7}

	res := Fit(x, y, DefaultOptions())
	assert.Equal(t, Degenerate, res.Status)
}

func TestFitNonFiniteAtZero(t *testing.T) {
	opts := DefaultOptions()
	opts.StartFit = 0

	x := []float64{0, 1, 2, 3}
	y := []float64{5, 4, 3, 1}

	res := Fit(x, y, opts)
	assert.Equal(t, NonFinite, res.Status)
}

func TestFitNegativeRSquaredIsReportable(t *testing.T) {
	// A zig-zag cannot be matched by a decaying power law. The fit still
	// converges, and its R^2 is worse than the mean and must be kept.
	x := []float64{13, 14, 15, 16, 17, 18}
	y := []float64{1, 9, 2, 8, 3, 7}

	res := Fit(x, y, DefaultOptions())
	require.True(t, res.OK(), "status %s after %d iterations", res.Status, res.Iterations)
	assert.Less(t, res.RSquared, 0.0)
	assert.False(t, math.IsNaN(res.RSquared))

	_, _, r2 := res.Row()
	assert.Less(t, r2, 0.0)
}

func TestRoundSig(t *testing.T) {
	for _, v := range []struct {
		In       float64
		Sig      int
		Expected float64
	}{
		{123456, 3, 123000},
		{987.65, 3, 988},
		{0.00123456, 3, 0.00123},
		{-1.23456, 5, -1.2346},
		{80012.345, 5, 80012},
		{0, 5, 0},
		{math.NaN(), 5, 0},
		{math.Inf(1), 5, 0},
		{2.5, 0, 2.5},
	} {
		assert.InDelta(t, v.Expected, RoundSig(v.In, v.Sig), 1e-6, "%+v", v)
	}
}

func TestPeakAndESDDiff(t *testing.T) {
	density := make([]float64, 200)
	density[20] = 5
	density[40] = 5

	idx, val := Peak(density)
	assert.Equal(t, 20, idx)
	assert.Equal(t, 5.0, val)

	assert.Equal(t, -7, ESDDiff(density, 13))
	assert.Equal(t, 13, ESDDiff(make([]float64, 200), 13))

	idx, val = Peak(nil)
	assert.Zero(t, idx)
	assert.Zero(t, val)

	density = make([]float64, 200)
	density[2] = 1
	assert.Equal(t, 11, ESDDiff(density, 13))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "insufficient_points", InsufficientPoints.String())
	assert.Equal(t, "Status(42)", Status(42).String())
}
