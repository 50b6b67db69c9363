package numdiff

import (
	"errors"
	"math"
)

// Mismatch is a jacobian entry whose analytic value disagrees with the finite difference estimate.
type Mismatch struct {
	Row, Col         int
	Analytic, Approx float64
	// Error is |Analytic - Approx| / max(1, |Approx|).
	Error float64
}

// CompareJacobian estimates the m×n jacobian of fun at x0 with the finite difference method
// and compares it with the analytic jacobian jac stored row-major (∂fⱼ/∂xᵢ at jac[i + j×n]).
// Entries whose scaled error exceeds tol are reported in row-major order.
//
// x0 is restored before returning.
func CompareJacobian(n, m int, x0 []float64, fun func(x, y []float64), jac []float64, method Method, tol float64) ([]Mismatch, error) {

	if len(jac) != n*m {
		return nil, errors.New("invalid jacobian dimensions")
	}
	if tol < 0 || math.IsNaN(tol) {
		return nil, errors.New("tolerance must not less than 0")
	}

	approx := make([]float64, n*m)
	as := ApproxSpec{N: n, M: m, Method: method, Object: fun, NotChkBnd: true}
	if err := as.Diff(x0, approx); err != nil {
		return nil, err
	}

	var bad []Mismatch
	for j := 0; j < m; j++ {
		for i := 0; i < n; i++ {
			k := i + j*n
			e := math.Abs(jac[k]-approx[k]) / math.Max(1, math.Abs(approx[k]))
			if e > tol || math.IsNaN(e) {
				bad = append(bad, Mismatch{Row: j, Col: i, Analytic: jac[k], Approx: approx[k], Error: e})
			}
		}
	}
	return bad, nil
}
