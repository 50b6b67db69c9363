package solverlib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHandle(t *testing.T) {
	v := &struct{ name string }{"session"}
	h := NewHandle(v)
	require.NotZero(t, h)

	got, ok := h.Lookup()
	assert.True(t, ok)
	assert.Same(t, v, got)

	h2 := NewHandle(v)
	assert.NotEqual(t, h, h2)

	h.Delete()
	_, ok = h.Lookup()
	assert.False(t, ok)
	assert.Panics(t, func() { h.Delete() })
	h2.Delete()

	_, ok = Handle(0).Lookup()
	assert.False(t, ok)
}

func TestCString(t *testing.T) {
	live := LiveStrings()
	s := Strdup("variable 0")
	assert.Equal(t, "variable 0", s.String())
	assert.Equal(t, live+1, LiveStrings())

	Free(s)
	assert.Equal(t, live, LiveStrings())
	assert.Panics(t, func() { Free(s) })
	assert.Panics(t, func() { _ = s.String() })
	Free(nil)
}

func TestFail(t *testing.T) {
	var f Fail
	f.Set(BadParam, "n = %d", 0)
	f.Set(Internal, "ignored")
	assert.Equal(t, BadParam, f.Code)
	assert.Equal(t, "NE_BAD_PARAM: n = 0", f.Message)

	f.Init()
	assert.Equal(t, Fail{}, f)
	assert.Equal(t, "ErrorCode(42)", ErrorCode(42).String())
}

func TestOptions(t *testing.T) {
	lib := NewReference(nil)
	var (
		st   State
		fail Fail
	)

	lib.SparseOption(&st, "Print Level = 1", &fail)
	assert.Equal(t, BadParam, fail.Code)

	fail.Init()
	lib.SparseInit(&st, &fail)
	require.Equal(t, NoError, fail.Code)
	require.True(t, st.Initialized())
	assert.Equal(t, defaultInfBound, st.infBound)

	for _, opt := range []string{
		"Major Iterations Limit = 50",
		"major   optimality tolerance=1e-9",
		"Major Feasibility Tolerance = 2e-7",
		"Infinite Bound Size = 1e10",
		"Print Level = 0",
	} {
		lib.SparseOption(&st, opt, &fail)
		require.Equal(t, NoError, fail.Code, opt)
	}
	assert.Equal(t, 50, st.majorIter)
	assert.Equal(t, 1e-9, st.optTol)
	assert.Equal(t, 2e-7, st.feasTol)
	assert.Equal(t, 1e10, st.infBound)

	for _, opt := range []string{
		"Verify Level = 3",
		"Major Iterations Limit = 0",
		"Major Optimality Tolerance = -1",
		"Print Level",
	} {
		fail.Init()
		lib.SparseOption(&st, opt, &fail)
		assert.Equal(t, InvalidOption, fail.Code, opt)
	}
}

// projection minimizes (x₁-1)² + (x₂-2)² subject to the linear row x₁ + x₂ = 1.
func projection(usrfun UserFunc) *SparseCall {
	inf := math.Inf(1)
	return &SparseCall{
		NF: 2, N: 2, NXName: 2, NFName: 2, ObjRow: 1,
		Prob:   "projection",
		UsrFun: usrfun,
		IAFun:  []Integer{2, 2}, JAVar: []Integer{1, 2}, A: []float64{1, 1}, LenA: 2, NEA: 2,
		IGFun: []Integer{1, 1}, JGVar: []Integer{1, 2}, LenG: 2, NEG: 2,
		XLow: []float64{-10, -10}, XUpp: []float64{10, 10},
		XNames: []*CString{nil, nil},
		FLow:   []float64{-inf, 1}, FUpp: []float64{inf, 1},
		FNames: []*CString{nil, nil},
		X:      []float64{0, 0}, XState: make([]Integer, 2), XMul: make([]float64, 2),
		F: make([]float64, 2), FState: make([]Integer, 2), FMul: make([]float64, 2),
	}
}

func projectionFun(statuses *[]Integer) UserFunc {
	return func(status *Integer, n Integer, x []float64, needf Integer, nf Integer, f []float64,
		needg Integer, leng Integer, g []float64, comm *Comm) {
		*statuses = append(*statuses, *status)
		if *status >= 2 {
			return
		}
		if needf > 0 {
			f[0] = (x[0]-1)*(x[0]-1) + (x[1]-2)*(x[1]-2)
		}
		if needg > 0 {
			g[0], g[1] = 2*(x[0]-1), 2*(x[1]-2)
		}
	}
}

func TestSparseSolve(t *testing.T) {
	lib := NewReference(zaptest.NewLogger(t))

	var (
		st       State
		fail     Fail
		statuses []Integer
	)
	lib.SparseInit(&st, &fail)
	call := projection(projectionFun(&statuses))
	lib.SparseSolve(call, &st, &Comm{}, &fail)

	require.Equal(t, NoError, fail.Code, fail.Message)
	assert.InDeltaSlice(t, []float64{0, 1}, call.X, 1e-6)
	assert.InDelta(t, 2, call.F[0], 1e-6)
	assert.InDelta(t, 1, call.F[1], 1e-6)
	assert.Equal(t, Integer(0), call.NInf)
	assert.Equal(t, Integer(3), call.FState[0])
	assert.NotZero(t, call.FMul[1])

	require.GreaterOrEqual(t, len(statuses), 3)
	assert.Equal(t, Integer(1), statuses[0])
	assert.Equal(t, Integer(2), statuses[len(statuses)-1])
	for _, s := range statuses[1 : len(statuses)-1] {
		assert.Equal(t, Integer(0), s)
	}
}

func TestSparseSolveFailures(t *testing.T) {
	lib := NewReference(nil)
	var statuses []Integer

	t.Run("uninitialized", func(t *testing.T) {
		var fail Fail
		lib.SparseSolve(projection(projectionFun(&statuses)), &State{}, &Comm{}, &fail)
		assert.Equal(t, BadParam, fail.Code)
	})

	t.Run("empty triples", func(t *testing.T) {
		var (
			st   State
			fail Fail
		)
		lib.SparseInit(&st, &fail)
		call := projection(projectionFun(&statuses))
		call.LenA, call.NEA = 0, 0
		lib.SparseSolve(call, &st, &Comm{}, &fail)
		assert.Equal(t, BadParam, fail.Code)
	})

	t.Run("warm start", func(t *testing.T) {
		var (
			st   State
			fail Fail
		)
		lib.SparseInit(&st, &fail)
		call := projection(projectionFun(&statuses))
		call.Start = Cold + 1
		lib.SparseSolve(call, &st, &Comm{}, &fail)
		assert.Equal(t, BadParam, fail.Code)
		assert.Contains(t, fail.Message, "cold start")
	})

	t.Run("index out of range", func(t *testing.T) {
		var (
			st   State
			fail Fail
		)
		lib.SparseInit(&st, &fail)
		call := projection(projectionFun(&statuses))
		call.JGVar[1] = 3
		lib.SparseSolve(call, &st, &Comm{}, &fail)
		assert.Equal(t, BadParam, fail.Code)
	})

	t.Run("user stop", func(t *testing.T) {
		var (
			st   State
			fail Fail
		)
		lib.SparseInit(&st, &fail)
		stop := func(status *Integer, n Integer, x []float64, needf Integer, nf Integer, f []float64,
			needg Integer, leng Integer, g []float64, comm *Comm) {
			if *status < 2 {
				*status = -1
			}
		}
		lib.SparseSolve(projection(stop), &st, &Comm{}, &fail)
		assert.Equal(t, UserStop, fail.Code)
	})

	t.Run("panic", func(t *testing.T) {
		var (
			st   State
			fail Fail
		)
		lib.SparseInit(&st, &fail)
		boom := func(status *Integer, n Integer, x []float64, needf Integer, nf Integer, f []float64,
			needg Integer, leng Integer, g []float64, comm *Comm) {
			panic("boom")
		}
		assert.PanicsWithValue(t, "boom", func() {
			lib.SparseSolve(projection(boom), &st, &Comm{}, &fail)
		})
	})

	t.Run("iteration limit", func(t *testing.T) {
		var (
			st   State
			fail Fail
		)
		lib.SparseInit(&st, &fail)
		lib.SparseOption(&st, "Major Iterations Limit = 1", &fail)
		rosen := func(status *Integer, n Integer, x []float64, needf Integer, nf Integer, f []float64,
			needg Integer, leng Integer, g []float64, comm *Comm) {
			if needf > 0 {
				f[0] = 100*math.Pow(x[1]-x[0]*x[0], 2) + math.Pow(1-x[0], 2)
			}
			if needg > 0 {
				g[0] = -400*(x[1]-x[0]*x[0])*x[0] - 2*(1-x[0])
				g[1] = 200 * (x[1] - x[0]*x[0])
			}
		}
		call := projection(rosen)
		call.FLow[1], call.FUpp[1] = math.Inf(-1), math.Inf(1)
		call.X = []float64{-1.2, 1}
		lib.SparseSolve(call, &st, &Comm{}, &fail)
		assert.Equal(t, TooManyIterations, fail.Code)
	})
}

func TestOneVarDeriv(t *testing.T) {
	lib := NewReference(nil)
	var (
		fail     Fail
		a, b     = -10.0, 10.0
		x, f, g  float64
		calls    int
		received *Comm
	)
	comm := &Comm{P: 7}
	fn := func(xc float64, fc, gc *float64, c *Comm) {
		calls++
		received = c
		*fc = (xc - 3) * (xc - 3)
		*gc = 2 * (xc - 3)
	}
	lib.OneVarDeriv(fn, 0, 0, &a, &b, 30, &x, &f, &g, comm, &fail)

	require.Equal(t, NoError, fail.Code, fail.Message)
	assert.InDelta(t, 3, x, 1e-6)
	assert.InDelta(t, 0, f, 1e-8)
	assert.LessOrEqual(t, a, x)
	assert.GreaterOrEqual(t, b, x)
	assert.Positive(t, calls)
	assert.Same(t, comm, received)

	fail.Init()
	lo, hi := 1.0, 0.0
	lib.OneVarDeriv(fn, 0, 0, &lo, &hi, 30, &x, &f, &g, comm, &fail)
	assert.Equal(t, BadParam, fail.Code)
}

func TestOneVar(t *testing.T) {
	lib := NewReference(nil)
	var (
		fail Fail
		a, b = -10.0, 10.0
		x, f float64
	)
	fn := func(xc float64, fc *float64, c *Comm) { *fc = (xc - 3) * (xc - 3) }

	lib.OneVar(fn, 0, 1e-8, &a, &b, 100, &x, &f, &Comm{}, &fail)
	require.Equal(t, NoError, fail.Code, fail.Message)
	assert.InDelta(t, 3, x, 1e-6)

	fail.Init()
	a, b = -10, 10
	lib.OneVar(fn, 0, 1e-12, &a, &b, 3, &x, &f, &Comm{}, &fail)
	assert.Equal(t, TooManyIterations, fail.Code)

	fail.Init()
	a, b = math.Inf(-1), 0
	lib.OneVar(fn, 0, 0, &a, &b, 30, &x, &f, &Comm{}, &fail)
	assert.Equal(t, BadParam, fail.Code)
}
