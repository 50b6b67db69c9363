package bridge

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

func solve(t *testing.T, s Solver) *problem.Result {
	t.Helper()
	require.NoError(t, s.Solve())
	res, err := s.Result()
	require.NoError(t, err)
	return res
}

func TestShiftedQuadratic(t *testing.T) {
	pb := newProblem(t, shifted())
	require.NoError(t, pb.SetArgumentBounds([]problem.Interval{{Lower: -10, Upper: 10}}))
	require.NoError(t, pb.SetStartingPoint([]float64{0}))

	s := NewNLPSparse(pb, solverlib.NewReference(nil), WithLogger(zaptest.NewLogger(t)))
	defer s.Close()

	res := solve(t, s)
	assert.InDelta(t, 3, res.X[0], 1e-4)
	assert.InDelta(t, 0, res.Value, 1e-6)
	assert.Empty(t, res.Constraints)
}

func TestLinearEquality(t *testing.T) {
	pb := newProblem(t, sumSquares(2))
	require.NoError(t, pb.SetArgumentBounds([]problem.Interval{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}))
	require.NoError(t, pb.SetStartingPoint([]float64{1, 0}))
	require.NoError(t, pb.AddConstraint(linear("sum", [][]float64{{1, 1}}, nil), problem.Interval{Lower: 1, Upper: 1}))

	s := NewNLPSparse(pb, solverlib.NewReference(nil))
	defer s.Close()

	res := solve(t, s)
	require.Len(t, res.Constraints, 1)
	assert.InDelta(t, 1, res.Constraints[0], 1e-6)
	assert.InDelta(t, 1, res.X[0]+res.X[1], 1e-6)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, res.X, 1e-4)
}

func TestLinearOffsetOutput(t *testing.T) {
	pb := newProblem(t, sumSquares(2))
	require.NoError(t, pb.SetArgumentBounds([]problem.Interval{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}))
	require.NoError(t, pb.AddConstraint(linear("sum", [][]float64{{1, 1}}, []float64{2}), problem.Interval{Lower: 3, Upper: 3}))

	s := NewNLPSparse(pb, solverlib.NewReference(nil))
	defer s.Close()

	// the library reports x₁+x₂ against the shifted bound, not x₁+x₂+2
	res := solve(t, s)
	require.Len(t, res.Constraints, 1)
	assert.InDelta(t, 1, res.Constraints[0], 1e-6)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, res.X, 1e-4)
}

func TestRosenbrockDisk(t *testing.T) {
	pb := newProblem(t, problem.NewScalar("rosenbrock", 2,
		func(x []float64) float64 {
			a, b := 1-x[0], x[1]-x[0]*x[0]
			return a*a + 100*b*b
		},
		func(x, g []float64) {
			b := x[1] - x[0]*x[0]
			g[0] = -2*(1-x[0]) - 400*x[0]*b
			g[1] = 200 * b
		}))
	require.NoError(t, pb.SetStartingPoint([]float64{0, 0}))
	require.NoError(t, pb.AddConstraint(disk(), problem.Interval{Lower: -inf, Upper: 1}))
	require.NoError(t, pb.AddConstraint(linear("half plane", [][]float64{{1, 0}}, nil), problem.Interval{Lower: -1, Upper: inf}))

	probe := newProbe()
	s := NewNLPSparse(pb, probe)
	defer s.Close()
	require.NoError(t, s.Parameters().Set("max-iterations", 200))
	require.NoError(t, s.Parameters().Set("nag.optimality-tolerance", 1e-9))

	res := solve(t, s)
	assert.InDeltaSlice(t, []float64{0.7864, 0.6177}, res.X, 1e-3)
	assert.InDelta(t, 1, res.Constraints[0], 1e-5)
	assert.Contains(t, probe.options, "Major Iterations Limit = 200")
	assert.Contains(t, probe.options, "Major Optimality Tolerance = 1e-09")
	for _, opt := range probe.options {
		assert.NotContains(t, opt, "Feasibility")
	}
}

func TestUnsupportedObjective(t *testing.T) {
	pb := newProblem(t, problem.NewFunction("plain", 1, 1, func(x, out []float64) { out[0] = x[0] * x[0] }))

	probe := newProbe()
	s := NewNLPSparse(pb, probe)
	defer s.Close()

	err := s.Solve()
	assert.ErrorIs(t, err, ErrUnsupportedFunctionKind)
	assert.Zero(t, probe.calls)

	_, err = s.Result()
	assert.ErrorIs(t, err, ErrUnsupportedFunctionKind)
	assert.ErrorIs(t, s.Solve(), ErrAlreadySolved)
}

func TestInconsistentBoundsBeforeLibrary(t *testing.T) {
	pb := newProblem(t, sumSquares(2))
	require.NoError(t, pb.AddConstraint(linear("sum", [][]float64{{1, 1}}, []float64{1}),
		problem.Interval{Lower: 2, Upper: 1.5}))

	probe := newProbe()
	s := NewNLPSparse(pb, probe)
	defer s.Close()

	assert.ErrorIs(t, s.Solve(), ErrInconsistentBounds)
	assert.Zero(t, probe.calls)
}

func TestSessionLifecycle(t *testing.T) {
	live := solverlib.LiveStrings()

	pb := newProblem(t, shifted())
	s := NewNLPSparse(pb, solverlib.NewReference(nil))
	assert.Equal(t, "nag-nlp-sparse solver (configured)", s.String())
	assert.Nil(t, s.Layout())

	_, err := s.Result()
	assert.ErrorIs(t, err, problem.ErrNoSolution)

	solve(t, s)
	assert.Equal(t, "nag-nlp-sparse solver (completed)", s.String())
	assert.Equal(t, live+2, solverlib.LiveStrings())
	assert.ErrorIs(t, s.Solve(), ErrAlreadySolved)

	require.NoError(t, s.Close())
	assert.Equal(t, live, solverlib.LiveStrings())
	require.NoError(t, s.Close())
	assert.Equal(t, live, solverlib.LiveStrings())

	// closing a session that never solved is fine too
	require.NoError(t, NewNLPSparse(pb, solverlib.NewReference(nil)).Close())
}

func TestSolverError(t *testing.T) {
	pb := newProblem(t, sumSquares(2))
	require.NoError(t, pb.SetStartingPoint([]float64{0.25, 0.75}))

	probe := newProbe()
	probe.solve = func(call *solverlib.SparseCall, comm *solverlib.Comm, fail *solverlib.Fail) {
		status := solverlib.Integer(1)
		g := make([]float64, call.LenG)
		call.UsrFun(&status, call.N, call.X, 1, call.NF, call.F, 1, call.LenG, g, comm)
		fail.Set(solverlib.NumericalDifficulties, "numerical difficulties")
	}
	s := NewNLPSparse(pb, probe)
	defer s.Close()

	require.NoError(t, s.Solve())
	_, err := s.Result()
	var serr *problem.SolverError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "numerical difficulties")
	require.NotNil(t, serr.LastState)
	assert.Equal(t, []float64{0.25, 0.75}, serr.LastState.X)
	assert.InDelta(t, 0.625, serr.LastState.Value, 1e-12)
}

func TestInvalidOption(t *testing.T) {
	pb := newProblem(t, shifted())
	probe := newProbe()
	s := NewNLPSparse(pb, probe)
	defer s.Close()
	require.NoError(t, s.Parameters().Set("nag.print-level", "loud"))

	require.NoError(t, s.Solve())
	_, err := s.Result()
	var serr *problem.SolverError
	require.ErrorAs(t, err, &serr)
	assert.Nil(t, serr.LastState)
	assert.Contains(t, probe.options, "Print Level = loud")
}

func TestIterationCallback(t *testing.T) {
	pb := newProblem(t, shifted())
	require.NoError(t, pb.SetArgumentBounds([]problem.Interval{{Lower: -10, Upper: 10}}))

	var (
		calls int
		last  problem.SolverState
	)
	s := NewNLPSparse(pb, solverlib.NewReference(nil))
	defer s.Close()
	s.SetIterationCallback(func(p *problem.Problem, st *problem.SolverState) {
		assert.Same(t, pb, p)
		calls++
		last = *st
	})
	require.NotNil(t, s.IterationCallback())

	solve(t, s)
	assert.Positive(t, calls)
	assert.Equal(t, calls, last.Evaluations)
	assert.InDelta(t, 3, last.X[0], 1e-4)
}

func TestIterationCallbackPanic(t *testing.T) {
	hookFailed := errors.New("hook failed")
	panicking := func(*problem.Problem, *problem.SolverState) { panic(hookFailed) }

	pb := boundedShifted(t)
	s := NewNLPSparse(pb, solverlib.NewReference(nil))
	defer s.Close()
	s.SetIterationCallback(panicking)

	assert.PanicsWithValue(t, hookFailed, func() { _ = s.Solve() })
	res, err := s.Result()
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSolvePanicked)
	assert.ErrorIs(t, err, hookFailed)

	d, err := NewDifferentiableSolver(boundedShifted(t), solverlib.NewReference(nil))
	require.NoError(t, err)
	defer d.Close()
	d.SetIterationCallback(func(*problem.Problem, *problem.SolverState) { panic("stop here") })

	assert.PanicsWithValue(t, "stop here", func() { _ = d.Solve() })
	_, err = d.Result()
	assert.ErrorIs(t, err, ErrSolvePanicked)
	assert.ErrorContains(t, err, "stop here")
}

func TestCallbackWithoutValues(t *testing.T) {
	pb := newProblem(t, shifted())

	var hooks, evals int
	probe := newProbe()
	probe.solve = func(call *solverlib.SparseCall, comm *solverlib.Comm, fail *solverlib.Fail) {
		status := solverlib.Integer(1)
		g := make([]float64, call.LenG)
		call.UsrFun(&status, call.N, call.X, 0, call.NF, call.F, 1, call.LenG, g, comm)
		evals = hooks
		status = 0
		call.UsrFun(&status, call.N, call.X, 1, call.NF, call.F, 0, call.LenG, g, comm)
		status = 2
		call.UsrFun(&status, call.N, call.X, 1, call.NF, call.F, 1, call.LenG, g, comm)
	}
	s := NewNLPSparse(pb, probe)
	defer s.Close()
	s.SetIterationCallback(func(*problem.Problem, *problem.SolverState) { hooks++ })

	solve(t, s)
	assert.Zero(t, evals)
	assert.Equal(t, 1, hooks)
}

func TestStaleHandle(t *testing.T) {
	pb := newProblem(t, shifted())
	s := NewNLPSparse(pb, solverlib.NewReference(nil))
	require.NoError(t, s.prepare())

	h := solverlib.NewHandle(s)
	h.Delete()

	status := solverlib.Integer(0)
	f, g := make([]float64, 1), make([]float64, 1)
	assertInvariantPanic(t, func() {
		usrfun(&status, 1, []float64{0}, 1, 1, f, 1, 1, g, &solverlib.Comm{P: h})
	})

	other := solverlib.NewHandle("not a session")
	defer other.Delete()
	assertInvariantPanic(t, func() {
		usrfun(&status, 1, []float64{0}, 1, 1, f, 1, 1, g, &solverlib.Comm{P: other})
	})
}

func TestSparsityChange(t *testing.T) {
	// the structure of the gradient depends on the sign of x₁
	obj := problem.NewSparseDifferentiable("moving", 2, 1,
		func(x, out []float64) { out[0] = x[0]*x[0] + x[1]*x[1] },
		func(x []float64) *problem.Sparse {
			es := []problem.Entry{{Row: 0, Col: 0, Value: 2 * x[0]}}
			if x[0] < 0 {
				es = append(es, problem.Entry{Row: 0, Col: 1, Value: 2 * x[1]})
			}
			return problem.NewSparse(1, 2, es)
		})
	pb := newProblem(t, obj)
	require.NoError(t, pb.SetStartingPoint([]float64{-1, -1}))

	probe := newProbe()
	probe.solve = func(call *solverlib.SparseCall, comm *solverlib.Comm, fail *solverlib.Fail) {
		status := solverlib.Integer(1)
		g := make([]float64, call.LenG)
		call.UsrFun(&status, call.N, []float64{1, 1}, 1, call.NF, call.F, 1, call.LenG, g, comm)
	}
	s := NewNLPSparse(pb, probe)
	defer s.Close()

	assertInvariantPanic(t, func() { _ = s.Solve() })
	assert.Equal(t, 2, s.Layout().NEG)

	res, err := s.Result()
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSolvePanicked)
	assert.ErrorIs(t, err, ErrInternalInvariant)
	assert.ErrorIs(t, s.Solve(), ErrAlreadySolved)
}

func assertInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.True(t, errors.Is(err, ErrInternalInvariant), "panic %v", err)
	}()
	fn()
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	pb := newProblem(t, shifted())
	require.NoError(t, pb.SetArgumentBounds([]problem.Interval{{Lower: -10, Upper: 10}}))
	s := NewNLPSparse(pb, solverlib.NewReference(nil), WithMetrics(m))
	defer s.Close()
	solve(t, s)

	bad := NewNLPSparse(newProblem(t, problem.NewFunction("plain", 1, 1, func(x, out []float64) {})),
		solverlib.NewReference(nil), WithMetrics(m))
	defer bad.Close()
	require.Error(t, bad.Solve())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues(SolverSparse, outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues(SolverSparse, outcomeInvalid)))
	assert.Positive(t, testutil.ToFloat64(m.callbacks.WithLabelValues(SolverSparse)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	// a nil collector records nothing
	var none *Metrics
	none.solved(SolverSparse, outcomeSuccess, 0)
	none.callback(SolverSparse)
}

func TestGradientCheck(t *testing.T) {
	// the analytic gradient of x₂ is off by a factor 2
	wrong := problem.NewScalar("wrong", 2,
		func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] },
		func(x, g []float64) { g[0], g[1] = 2*x[0], 4*x[1] })

	for _, method := range []string{"central", "forward"} {
		t.Run(method, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			pb := newProblem(t, wrong)
			require.NoError(t, pb.SetStartingPoint([]float64{1, 1}))
			require.NoError(t, pb.SetArgumentBounds([]problem.Interval{{Lower: -2, Upper: 2}, {Lower: -2, Upper: 2}}))

			probe := newProbe()
			probe.solve = func(call *solverlib.SparseCall, comm *solverlib.Comm, fail *solverlib.Fail) {
				status := solverlib.Integer(1)
				g := make([]float64, call.LenG)
				call.UsrFun(&status, call.N, call.X, 1, call.NF, call.F, 1, call.LenG, g, comm)
			}
			s := NewNLPSparse(pb, probe, WithLogger(zap.New(core)))
			defer s.Close()
			require.NoError(t, s.Parameters().Set("check-gradient", true))
			require.NoError(t, s.Parameters().Set("check-gradient.method", method))
			solve(t, s)

			entries := logs.FilterMessage("invalid jacobian entry").All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, "wrong", fields["function"])
			assert.EqualValues(t, 0, fields["row"])
			assert.EqualValues(t, 1, fields["col"])
			assert.InDelta(t, 2, fields["approx"], 1e-5)
			for _, opt := range probe.options {
				assert.NotContains(t, opt, "Check Gradient")
			}
		})
	}
}

func TestGradientCheckUnknownMethod(t *testing.T) {
	probe := newProbe()
	s := NewNLPSparse(newProblem(t, shifted()), probe)
	defer s.Close()
	require.NoError(t, s.Parameters().Set("check-gradient.method", "backward"))

	err := s.Solve()
	assert.ErrorContains(t, err, `unknown finite difference method "backward"`)
	assert.Zero(t, probe.calls)
	_, rerr := s.Result()
	assert.Equal(t, err, rerr)
}
