package powerfit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tolerances match the defaults of the MINPACK lmdif driver.
const (
	xtol = 1.49012e-8

	lambdaInit = 1e-3
	lambdaMin  = 1e-12
	lambdaMax  = 1e30
)

// solver is a two-parameter Levenberg-Marquardt minimizer for the power law.
// The damped normal equations are solved in coordinates scaled by the column
// norms of the Jacobian, so the scale parameter (order 1e4) and the exponent
// (order 1) are treated evenly.
type solver struct {
	x, y []float64

	res      []float64
	jac      *mat.Dense
	trialRes []float64
	trialJac *mat.Dense
}

func newSolver(x, y []float64) *solver {
	n := len(x)
	return &solver{
		x:        x,
		y:        y,
		res:      make([]float64, n),
		jac:      mat.NewDense(n, 2, nil),
		trialRes: make([]float64, n),
		trialJac: mat.NewDense(n, 2, nil),
	}
}

// evaluate fills res and jac at (a, k) and returns half the sum of squared
// residuals. ok is false if anything is not finite.
func (s *solver) evaluate(a, k float64, res []float64, jac *mat.Dense) (cost float64, ok bool) {
	for i, x := range s.x {
		xk := math.Pow(x, k)
		res[i] = a*xk - s.y[i]
		jac.Set(i, 0, xk)
		jac.Set(i, 1, a*xk*math.Log(x))

		if !finite(res[i]) || !finite(jac.At(i, 1)) {
			return 0, false
		}
	}

	return 0.5 * floats.Dot(res, res), true
}

func (s *solver) minimize(a0, k0 float64, maxIter int) (a, k float64, iter int, status Status) {
	p := []float64{a0, k0}

	cost, ok := s.evaluate(p[0], p[1], s.res, s.jac)
	if !ok {
		return 0, 0, 0, NonFinite
	}
	if cost == 0 {
		return p[0], p[1], 0, Converged
	}

	lambda := lambdaInit

	var jtj mat.Dense
	var grad mat.VecDense
	scale := make([]float64, 2)
	scaled := mat.NewDense(2, 2, nil)
	rhs := mat.NewVecDense(2, nil)
	var z mat.VecDense
	step := make([]float64, 2)
	trial := make([]float64, 2)

	fresh := true
	for iter = 1; iter <= maxIter; iter++ {
		if fresh {
			jtj.Mul(s.jac.T(), s.jac)
			grad.MulVec(s.jac.T(), mat.NewVecDense(len(s.res), s.res))

			for i := 0; i < 2; i++ {
				scale[i] = math.Sqrt(jtj.At(i, i))
				if scale[i] == 0 {
					scale[i] = 1
				}
			}
			fresh = false
		}

		// (D^-1 JtJ D^-1 + lambda I) z = D^-1 g, step = D^-1 z
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				v := jtj.At(i, j) / (scale[i] * scale[j])
				if i == j {
					v += lambda
				}
				scaled.Set(i, j, v)
			}
			rhs.SetVec(i, grad.AtVec(i)/scale[i])
		}

		if err := z.SolveVec(scaled, rhs); err != nil && !usableCondition(err) {
			return 0, 0, iter, Singular
		}

		for i := 0; i < 2; i++ {
			step[i] = z.AtVec(i) / scale[i]
			trial[i] = p[i] - step[i]
		}

		// Step length relative to the current point, both in scaled units
		small := scaledNorm(step, scale) <= xtol*(scaledNorm(p, scale)+xtol)

		trialCost, ok := s.evaluate(trial[0], trial[1], s.trialRes, s.trialJac)
		if ok && trialCost < cost {
			copy(p, trial)
			cost = trialCost
			s.res, s.trialRes = s.trialRes, s.res
			s.jac, s.trialJac = s.trialJac, s.jac
			fresh = true

			if cost == 0 || small {
				return p[0], p[1], iter, Converged
			}

			lambda = math.Max(lambda/10, lambdaMin)
			continue
		}

		// No improvement is possible at this resolution: we are at the minimum.
		if small {
			return p[0], p[1], iter, Converged
		}

		lambda *= 10
		if lambda > lambdaMax {
			return 0, 0, iter, NotConverged
		}
	}

	return 0, 0, maxIter, NotConverged
}

// usableCondition reports whether a solve error only warns about
// ill-conditioning, in which case gonum still fills in the solution.
func usableCondition(err error) bool {
	var cond mat.Condition
	if !errors.As(err, &cond) {
		return false
	}

	return !math.IsInf(float64(cond), 0) && !math.IsNaN(float64(cond))
}

func scaledNorm(v, scale []float64) float64 {
	sum := 0.0
	for i := range v {
		sum += (v[i] * scale[i]) * (v[i] * scale[i])
	}

	return math.Sqrt(sum)
}
