// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"gonum.org/v1/gonum/blas/blas64"
)

// Level 1 BLAS in the reference calling convention. A non-positive n is a no-op, as is
// a zero multiplier in daxpy. A zero x increment reuses x[0] for every element, which
// dcopy relies on to fill a strided vector with one value.

var impl = blas64.Implementation()

func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == 0 {
		return
	}
	if incx == 0 {
		for i := 0; i < n; i++ {
			dy[i*incy] += da * dx[0]
		}
		return
	}
	impl.Daxpy(n, da, dx, incx, dy, incy)
}

func ddot(n int, dx []float64, incx int, dy []float64, incy int) float64 {
	if n <= 0 {
		return 0
	}
	if incx == 0 {
		dot := 0.0
		for i := 0; i < n; i++ {
			dot += dx[0] * dy[i*incy]
		}
		return dot
	}
	return impl.Ddot(n, dx, incx, dy, incy)
}

func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx == 0 {
		v := dx[0]
		for i := 0; i < n; i++ {
			dy[i*incy] = v
		}
		return
	}
	impl.Dcopy(n, dx, incx, dy, incy)
}

func dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	impl.Dscal(n, da, dx, incx)
}

// dnrm2 is the Euclidean norm of x computed without destructive underflow or overflow.
func dnrm2(n int, x []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return zero
	}
	return impl.Dnrm2(n, x, incx)
}

func dzero(dx []float64) { clear(dx) }
