// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
	"slices"
	"testing"
)

func TestBlasZeroIncrement(t *testing.T) {

	// fill a row of a column-major 3×4 matrix with its first element
	w := make([]float64, 12)
	w[1] = 7
	dcopy(4, w[1:], 0, w[1:], 3)
	for j := 0; j < 4; j++ {
		if w[1+3*j] != 7 {
			t.Fatal("strided fill failed")
		}
	}
	if w[0] != 0 || w[2] != 0 {
		t.Fatal("fill touched other rows")
	}

	y := []float64{1, 2, math.NaN(), 0, 0, 0}
	dcopy(4, y[2:], 0, y[2:], 1)
	for _, v := range y[2:] {
		if !math.IsNaN(v) {
			t.Fatal("NaN fill failed")
		}
	}

	x := []float64{2}
	z := []float64{1, 1, 1}
	daxpy(3, 0.5, x, 0, z, 1)
	if !slices.Equal(z, []float64{2, 2, 2}) {
		t.Fatal("daxpy with zero increment failed")
	}
	if ddot(3, x, 0, z, 1) != 12 {
		t.Fatal("ddot with zero increment failed")
	}

	// the regular path goes through gonum
	a := []float64{1, 2, 3, 4}
	b := make([]float64, 4)
	dcopy(2, a, 2, b, 1)
	switch {
	case !slices.Equal(b[:2], []float64{1, 3}):
		t.Fatal("strided copy failed")
	case ddot(4, a, 1, a, 1) != 30:
		t.Fatal("ddot failed")
	case math.Abs(dnrm2(4, a, 1)-math.Sqrt(30)) > 1e-15:
		t.Fatal("dnrm2 failed")
	case dnrm2(0, a, 1) != 0 || ddot(-1, a, 1, a, 1) != 0:
		t.Fatal("empty vectors must be no-ops")
	}
	dscal(2, 2, a, 2)
	if !slices.Equal(a, []float64{2, 2, 6, 4}) {
		t.Fatal("dscal failed")
	}
}

func TestBoundedQuadratic(t *testing.T) {

	// (x-3)² on [-10, 10] puts both bounds into the least squares subproblem
	p := Problem{
		N: 1,
		Eval: func(x, _, g, _ []float64, _ int) float64 {
			if g != nil {
				g[0] = 2 * (x[0] - 3)
			}
			return (x[0] - 3) * (x[0] - 3)
		},
		Bounds: []Bound{{Lower: -10, Upper: 10}},
		Stop:   Termination{Accuracy: 1e-8, MaxIterations: 50},
	}
	opt, err := p.New()
	if err != nil {
		t.Fatal(err)
	}
	res := opt.Fit([]float64{0}, opt.Init())
	switch {
	case res.Status != OK:
		t.Fatalf("unexpected status %s", res.Status)
	case !almostEqual(res.X[0], 3, 1e-6):
		t.Fatalf("unexpected solution %v", res.X)
	}
}
