package main

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/nlpbridge/problem"
)

var inf = problem.Infinity

type builtin struct {
	about string
	build func() (*problem.Problem, error)
}

var builtins = map[string]builtin{
	"quadratic": {
		about: "(x-3)² on [-10, 10] from x = 0",
		build: func() (*problem.Problem, error) {
			pb, err := problem.New(problem.NewScalar("quadratic", 1,
				func(x []float64) float64 { return (x[0] - 3) * (x[0] - 3) },
				func(x, g []float64) { g[0] = 2 * (x[0] - 3) }))
			if err != nil {
				return nil, err
			}
			if err = pb.SetArgumentBounds([]problem.Interval{{Lower: -10, Upper: 10}}); err != nil {
				return nil, err
			}
			return pb, pb.SetStartingPoint([]float64{0})
		},
	},
	"simplex": {
		about: "x₁² + x₂² subject to x₁ + x₂ = 1 on [0, 1]²",
		build: func() (*problem.Problem, error) {
			pb, err := problem.New(problem.NewScalar("squares", 2,
				func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] },
				func(x, g []float64) { g[0], g[1] = 2*x[0], 2*x[1] }))
			if err != nil {
				return nil, err
			}
			if err = pb.SetArgumentBounds([]problem.Interval{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}); err != nil {
				return nil, err
			}
			sum := problem.NewLinear("sum", mat.NewDense(1, 2, []float64{1, 1}), nil)
			return pb, pb.AddConstraint(sum, problem.Interval{Lower: 1, Upper: 1})
		},
	},
	"rosenbrock-disk": {
		about: "Rosenbrock function inside the unit disk",
		build: func() (*problem.Problem, error) {
			pb, err := problem.New(problem.NewDifferentiable("rosenbrock", 2, 1,
				func(x, out []float64) {
					a, b := 1-x[0], x[1]-x[0]*x[0]
					out[0] = a*a + 100*b*b
				},
				func(x []float64, j *mat.Dense) {
					b := x[1] - x[0]*x[0]
					j.Set(0, 0, -2*(1-x[0])-400*x[0]*b)
					j.Set(0, 1, 200*b)
				}))
			if err != nil {
				return nil, err
			}
			disk := problem.NewSparseDifferentiable("disk", 2, 1,
				func(x, out []float64) { out[0] = x[0]*x[0] + x[1]*x[1] },
				func(x []float64) *problem.Sparse {
					return problem.NewSparse(1, 2, []problem.Entry{
						{Row: 0, Col: 0, Value: 2 * x[0]},
						{Row: 0, Col: 1, Value: 2 * x[1]},
					})
				})
			if err = pb.AddConstraint(disk, problem.Interval{Lower: -inf, Upper: 1}); err != nil {
				return nil, err
			}
			return pb, pb.SetStartingPoint([]float64{0, 0})
		},
	},
	"scalar": {
		about: "(x+1.5)² on [-10, 10] without derivative",
		build: func() (*problem.Problem, error) {
			pb, err := problem.New(problem.NewFunction("valley", 1, 1, func(x, out []float64) {
				out[0] = (x[0] + 1.5) * (x[0] + 1.5)
			}))
			if err != nil {
				return nil, err
			}
			return pb, pb.SetArgumentBounds([]problem.Interval{{Lower: -10, Upper: 10}})
		},
	},
}

func builtinNames() []string {
	names := make([]string, 0, len(builtins))
	for k := range builtins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
