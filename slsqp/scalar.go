// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"errors"
	"math"
)

// ScalarResult contains the outcome of Minimize1D.
type ScalarResult struct {
	OK      bool    // Whether the interval of uncertainty shrank below the tolerance.
	X       float64 // Abscissa of the best point found.
	F       float64 // Function value at X.
	NumEval int     // Number of function evaluations performed.
}

// Minimize1D searches for a minimum of the univariate function f in the interval [𝒂, 𝒃]
// using function values only, by the combination of golden section and successive
// quadratic interpolation that drives the exact line-search.
//
// The search stops when the interval of uncertainty is below 2×(√ε|𝐱| + tol)
// or after maxEval evaluations of f.
func Minimize1D(f func(x float64) float64, bnd Bound, tol float64, maxEval int) (*ScalarResult, error) {

	switch {
	case f == nil:
		return nil, errors.New("function is required")
	case math.IsNaN(bnd.Lower) || math.IsNaN(bnd.Upper) || math.IsInf(bnd.Lower, 0) || math.IsInf(bnd.Upper, 0):
		return nil, errors.New("interval must be finite")
	case bnd.Lower > bnd.Upper:
		return nil, errors.New("interval lower end exceeds upper end")
	case maxEval <= 0:
		return nil, errors.New("max evaluation must greater than 0")
	}

	if tol <= zero {
		tol = sqrtEps
	}

	var w findWork
	res := new(ScalarResult)
	x, mode := findMin(findNoop, &w, zero, tol, bnd)
	for mode != findConv {
		if res.NumEval >= maxEval {
			// w.x always holds the best abscissa evaluated so far
			res.X, res.F = w.x, w.fx
			return res, nil
		}
		fx := f(x)
		res.NumEval++
		x, mode = findMin(mode, &w, fx, tol, bnd)
	}

	res.OK = true
	res.X, res.F = x, w.fx
	return res, nil
}
