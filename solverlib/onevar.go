package solverlib

import (
	"math"

	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/slsqp"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)

func checkInterval(a, b *float64, maxCal Integer, fail *Fail) bool {
	switch {
	case a == nil || b == nil:
		fail.Set(BadParam, "interval ends are nil")
	case math.IsNaN(*a) || math.IsNaN(*b) || math.IsInf(*a, 0) || math.IsInf(*b, 0):
		fail.Set(BadParam, "interval [%g, %g] must be finite", *a, *b)
	case *a > *b:
		fail.Set(BadParam, "a = %g exceeds b = %g", *a, *b)
	case maxCal < 3:
		fail.Set(BadParam, "max_fun = %d, must be at least 3", maxCal)
	default:
		return true
	}
	return false
}

// accuracy returns the absolute tolerance e1×|x| + e2 with defaults √ε for zero entries.
func accuracy(e1, e2, x float64) float64 {
	if e1 <= 0 {
		e1 = sqrtEps
	}
	if e2 <= 0 {
		e2 = sqrtEps
	}
	return e1*math.Abs(x) + e2
}

// OneVarDeriv minimizes fn on [a, b] starting from x using values and derivatives.
// On return a and b bracket the solution within the requested accuracy.
func (r *Reference) OneVarDeriv(fn DerivFunc, e1, e2 float64, a, b *float64, maxCal Integer,
	x, f, g *float64, comm *Comm, fail *Fail) {

	if fn == nil || x == nil || f == nil || g == nil {
		fail.Set(BadParam, "function and output pointers are required")
		return
	}
	if !checkInterval(a, b, maxCal, fail) {
		return
	}

	var (
		calls    int
		panicked any
		hasPanic bool
	)
	eval := func(xs, _, gs, _ []float64, _ int) float64 {
		defer func() {
			if v := recover(); v != nil {
				panicked, hasPanic = v, true
				panic(v)
			}
		}()
		var fc, gc float64
		fn(xs[0], &fc, &gc, comm)
		calls++
		if gs != nil {
			gs[0] = gc
		}
		return fc
	}

	x0 := *x
	if math.IsNaN(x0) {
		x0 = 0
	}
	x0 = math.Min(math.Max(x0, *a), *b)

	p := slsqp.Problem{
		N:      1,
		Eval:   eval,
		Bounds: []slsqp.Bound{{Lower: *a, Upper: *b}},
		Stop: slsqp.Termination{
			Accuracy:      accuracy(e1, e2, x0),
			MaxIterations: int(maxCal),
		},
	}
	opt, err := p.New()
	if err != nil {
		fail.Set(BadParam, "%v", err)
		return
	}
	res := opt.Fit([]float64{x0}, opt.Init())
	if hasPanic {
		panic(panicked)
	}

	*x, *f, *g = res.X[0], res.F, res.G[0]
	tol := accuracy(e1, e2, *x)
	*a, *b = math.Max(*a, *x-tol), math.Min(*b, *x+tol)

	switch res.Status {
	case slsqp.OK:
	case slsqp.SQPExceedMaxIter:
		fail.Set(TooManyIterations, "max_fun = %d function calls were not enough", maxCal)
	default:
		fail.Set(NumericalDifficulties, "the solver stopped with status %s", res.Status)
	}
	r.logger.Debug("one variable solve with derivative",
		zap.Float64("x", *x), zap.Float64("f", *f), zap.Int("calls", calls), zap.Stringer("code", fail.Code))
}

// OneVar minimizes fn on [a, b] by golden section search and quadratic interpolation.
// On return a and b bracket the solution within the requested accuracy.
func (r *Reference) OneVar(fn ScalarFunc, e1, e2 float64, a, b *float64, maxCal Integer,
	x, f *float64, comm *Comm, fail *Fail) {

	if fn == nil || x == nil || f == nil {
		fail.Set(BadParam, "function and output pointers are required")
		return
	}
	if !checkInterval(a, b, maxCal, fail) {
		return
	}

	tol := e2
	if e1 > 0 {
		tol += e1 * math.Max(math.Abs(*a), math.Abs(*b))
	}
	res, err := slsqp.Minimize1D(func(xc float64) float64 {
		var fc float64
		fn(xc, &fc, comm)
		return fc
	}, slsqp.Bound{Lower: *a, Upper: *b}, tol, int(maxCal))
	if err != nil {
		fail.Set(BadParam, "%v", err)
		return
	}

	*x, *f = res.X, res.F
	t := accuracy(e1, e2, *x)
	*a, *b = math.Max(*a, *x-t), math.Min(*b, *x+t)

	if !res.OK {
		fail.Set(TooManyIterations, "max_fun = %d function calls were not enough", maxCal)
	}
	r.logger.Debug("one variable solve",
		zap.Float64("x", *x), zap.Float64("f", *f), zap.Int("calls", res.NumEval), zap.Stringer("code", fail.Code))
}
