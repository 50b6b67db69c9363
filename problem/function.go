// Package problem describes nonlinear optimization problems: an objective,
// an ordered list of bounded constraints, variable bounds and a starting point.
package problem

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Function is a vector valued function 𝒇 : ℝⁿ → ℝᵐ.
type Function interface {
	InputSize() int
	OutputSize() int
	Name() string
	// Eval stores 𝒇(𝐱) into out (an m-vector).
	Eval(x, out []float64)
}

// Differentiable is a Function able to evaluate its m×n jacobian.
//
// The returned matrix declares the structure of the jacobian: entries it holds are
// structurally non-zero even when their value happens to be 0.
type Differentiable interface {
	Function
	Jacobian(x []float64) *Sparse
}

// Affine is a Function of the form 𝒇(𝐱) = A𝐱 + 𝐛.
type Affine interface {
	Function
	Coefficients() *mat.Dense
	Offset() []float64
}

type base struct {
	name string
	n, m int
}

func (b base) InputSize() int  { return b.n }
func (b base) OutputSize() int { return b.m }
func (b base) Name() string    { return b.name }

func checkSize(n, m int) {
	if n <= 0 || m <= 0 {
		panic(fmt.Sprintf("problem: invalid function size %d→%d", n, m))
	}
}

type valueFunc struct {
	base
	eval func(x, out []float64)
}

func (f *valueFunc) Eval(x, out []float64) { f.eval(x, out) }

// NewFunction returns a Function without derivative information.
func NewFunction(name string, n, m int, eval func(x, out []float64)) Function {
	checkSize(n, m)
	return &valueFunc{base{name, n, m}, eval}
}

type denseFunc struct {
	base
	eval func(x, out []float64)
	jac  func(x []float64, j *mat.Dense)
}

func (f *denseFunc) Eval(x, out []float64) { f.eval(x, out) }

func (f *denseFunc) Jacobian(x []float64) *Sparse {
	j := mat.NewDense(f.m, f.n, nil)
	f.jac(x, j)
	return denseToSparse(j, true)
}

// NewDifferentiable returns a Differentiable whose jacobian is filled into a dense m×n matrix.
// Every entry of the matrix is structural, so its sparsity never depends on 𝐱.
func NewDifferentiable(name string, n, m int, eval func(x, out []float64), jac func(x []float64, j *mat.Dense)) Differentiable {
	checkSize(n, m)
	return &denseFunc{base{name, n, m}, eval, jac}
}

type sparseFunc struct {
	base
	eval func(x, out []float64)
	jac  func(x []float64) *Sparse
}

func (f *sparseFunc) Eval(x, out []float64) { f.eval(x, out) }

func (f *sparseFunc) Jacobian(x []float64) *Sparse {
	j := f.jac(x)
	if r, c := j.Dims(); r != f.m || c != f.n {
		panic(fmt.Sprintf("problem: %s jacobian is %d×%d, want %d×%d", f.name, r, c, f.m, f.n))
	}
	return j
}

// NewSparseDifferentiable returns a Differentiable whose jacobian structure is declared by jac.
func NewSparseDifferentiable(name string, n, m int, eval func(x, out []float64), jac func(x []float64) *Sparse) Differentiable {
	checkSize(n, m)
	return &sparseFunc{base{name, n, m}, eval, jac}
}

type scalarFunc struct {
	base
	f    func(x []float64) float64
	grad func(x, g []float64)
}

func (f *scalarFunc) Eval(x, out []float64) { out[0] = f.f(x) }

func (f *scalarFunc) Jacobian(x []float64) *Sparse {
	g := make([]float64, f.n)
	f.grad(x, g)
	entries := make([]Entry, f.n)
	for i, v := range g {
		entries[i] = Entry{Row: 0, Col: i, Value: v}
	}
	return NewSparse(1, f.n, entries)
}

// NewScalar returns a real valued Differentiable 𝒇 : ℝⁿ → ℝ with a dense gradient.
func NewScalar(name string, n int, f func(x []float64) float64, grad func(x, g []float64)) Differentiable {
	checkSize(n, 1)
	return &scalarFunc{base{name, n, 1}, f, grad}
}

// Linear is the affine function A𝐱 + 𝐛.
type Linear struct {
	base
	a *mat.Dense
	b []float64
}

// NewLinear returns the affine function A𝐱 + 𝐛. A nil b means 𝐛 = 0.
func NewLinear(name string, a *mat.Dense, b []float64) *Linear {
	m, n := a.Dims()
	if b == nil {
		b = make([]float64, m)
	}
	if len(b) != m {
		panic(fmt.Sprintf("problem: offset length %d does not match %d rows", len(b), m))
	}
	return &Linear{base{name, n, m}, mat.DenseCopyOf(a), append([]float64(nil), b...)}
}

func (l *Linear) Eval(x, out []float64) {
	y := mat.NewVecDense(l.m, out)
	y.MulVec(l.a, mat.NewVecDense(l.n, x))
	for i, v := range l.b {
		out[i] += v
	}
}

// Jacobian returns the non-zero coefficients of A.
func (l *Linear) Jacobian([]float64) *Sparse { return denseToSparse(l.a, false) }

func (l *Linear) Coefficients() *mat.Dense { return l.a }
func (l *Linear) Offset() []float64        { return l.b }

func denseToSparse(d *mat.Dense, structural bool) *Sparse {
	r, c := d.Dims()
	entries := make([]Entry, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := d.At(i, j); structural || v != 0 {
				entries = append(entries, Entry{Row: i, Col: j, Value: v})
			}
		}
	}
	return NewSparse(r, c, entries)
}
