package solverlib

import (
	"errors"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/slsqp"
)

// Reference is an in-process Library whose solvers run the SLSQP engine.
//
// Each F row other than the objective becomes an SLSQP constraint: rows with
// FLow = FUpp are equalities, otherwise each finite end is an inequality.
// Linear rows are computed from the A triples and added to what UsrFun writes.
type Reference struct {
	logger *zap.Logger
}

// NewReference returns a Reference logging to logger; nil disables logging.
func NewReference(logger *zap.Logger) *Reference {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reference{logger: logger}
}

var errUserStop = errors.New("stop requested by user function")

// SparseInit resets state to the default options.
func (r *Reference) SparseInit(state *State, fail *Fail) {
	if state == nil {
		fail.Set(BadParam, "state is nil")
		return
	}
	state.reset()
}

// SparseOption applies one option to an initialized state.
func (r *Reference) SparseOption(state *State, option string, fail *Fail) {
	if state == nil || !state.initialized {
		fail.Set(BadParam, "option %q set before initialization", option)
		return
	}
	state.apply(option, fail)
	r.logger.Debug("sparse option", zap.String("option", option), zap.Stringer("code", fail.Code))
}

// rowCons is one SLSQP constraint sign×(F[row] - bound).
type rowCons struct {
	row   int
	sign  float64
	bound float64
}

type sparseRun struct {
	call  *SparseCall
	comm  *Comm
	n, nf int
	obj   int

	f, g []float64 // usrfun buffers
	F    []float64 // f plus linear part
	jac  []float64 // nf×n row-major

	cons  []rowCons
	first bool
	calls int

	panicked any
	hasPanic bool
	stopped  bool
}

func (s *sparseRun) evaluate(x []float64, needf, needg Integer) {
	c := s.call
	status := Integer(0)
	if s.first {
		status, s.first = 1, false
	}
	clear(s.f)
	if needg > 0 {
		clear(s.g)
	}
	c.UsrFun(&status, c.N, x, needf, c.NF, s.f, needg, c.LenG, s.g, s.comm)
	s.calls++
	if status < 0 {
		s.stopped = true
		panic(errUserStop)
	}

	copy(s.F, s.f)
	for k := 0; k < int(c.NEA); k++ {
		s.F[c.IAFun[k]-1] += c.A[k] * x[c.JAVar[k]-1]
	}
	if needg > 0 {
		clear(s.jac)
		for k := 0; k < int(c.NEA); k++ {
			s.jac[int(c.IAFun[k]-1)*s.n+int(c.JAVar[k]-1)] += c.A[k]
		}
		for k := 0; k < int(c.NEG); k++ {
			s.jac[int(c.IGFun[k]-1)*s.n+int(c.JGVar[k]-1)] += s.g[k]
		}
	}
}

func (s *sparseRun) eval(x, c, g, a []float64, lda int) float64 {
	defer func() {
		if v := recover(); v != nil {
			if v != errUserStop {
				s.panicked, s.hasPanic = v, true
			}
			panic(v)
		}
	}()

	needg := Integer(0)
	if g != nil {
		needg = 1
	}
	s.evaluate(x, 1, needg)

	for j, rc := range s.cons {
		c[j] = rc.sign * (s.F[rc.row] - rc.bound)
	}
	if g != nil {
		n := s.n
		copy(g, s.jac[s.obj*n:(s.obj+1)*n])
		for j, rc := range s.cons {
			for i, v := range s.jac[rc.row*n : (rc.row+1)*n] {
				a[j+i*lda] = rc.sign * v
			}
		}
	}
	return s.call.ObjAdd + s.F[s.obj]
}

// SparseSolve minimizes F[ObjRow] subject to the variable and output bounds.
func (r *Reference) SparseSolve(call *SparseCall, state *State, comm *Comm, fail *Fail) {
	switch {
	case state == nil || !state.initialized:
		fail.Set(BadParam, "solve called before initialization")
		return
	case call == nil:
		fail.Set(BadParam, "call is nil")
		return
	}
	if !checkSparseCall(call, fail) {
		return
	}

	n, nf := int(call.N), int(call.NF)
	inf := state.infBound
	s := &sparseRun{
		call: call, comm: comm,
		n: n, nf: nf, obj: int(call.ObjRow) - 1,
		f:     make([]float64, nf),
		g:     make([]float64, call.LenG),
		F:     make([]float64, nf),
		jac:   make([]float64, nf*n),
		first: true,
	}

	var eqs, ineqs []rowCons
	for i := 0; i < nf; i++ {
		if i == s.obj {
			continue
		}
		lo, up := call.FLow[i], call.FUpp[i]
		hasLo, hasUp := lo > -inf, up < inf
		switch {
		case hasLo && hasUp && lo == up:
			eqs = append(eqs, rowCons{i, 1, lo})
		default:
			if hasLo {
				ineqs = append(ineqs, rowCons{i, 1, lo})
			}
			if hasUp {
				ineqs = append(ineqs, rowCons{i, -1, up})
			}
		}
	}
	s.cons = append(eqs, ineqs...)

	bnd := make([]slsqp.Bound, n)
	x0 := slices.Clone(call.X)
	for i := range bnd {
		lo, up := call.XLow[i], call.XUpp[i]
		if lo <= -inf {
			lo = math.Inf(-1)
		}
		if up >= inf {
			up = math.Inf(1)
		}
		bnd[i] = slsqp.Bound{Lower: lo, Upper: up}
		if math.IsNaN(x0[i]) {
			x0[i] = 0
		}
		x0[i] = math.Min(math.Max(x0[i], lo), up)
	}

	p := slsqp.Problem{
		N: n, M: len(s.cons), MEq: len(eqs),
		Eval:   s.eval,
		Bounds: bnd,
		BndInf: inf,
		Stop: slsqp.Termination{
			Accuracy:      state.optTol,
			MaxIterations: state.majorIter,
		},
	}
	opt, err := p.New()
	if err != nil {
		fail.Set(BadParam, "%v", err)
		return
	}

	start := time.Now()
	res := opt.Fit(x0, opt.Init())
	if s.hasPanic {
		panic(s.panicked)
	}

	// leave the buffers at the returned point
	copy(call.X, res.X)
	if !s.stopped {
		s.evaluate(call.X, 1, 0)
	}
	copy(call.F, s.F)
	status := Integer(2)
	call.UsrFun(&status, call.N, call.X, 0, call.NF, s.f, 0, call.LenG, s.g, comm)

	clear(call.XMul)
	clear(call.FMul)
	for j, rc := range s.cons {
		call.FMul[rc.row] += rc.sign * res.Multipliers[j]
	}

	tol := state.feasTol
	call.NInf, call.SInf = 0, 0
	free := 0
	for i, x := range call.X {
		call.XState[i] = boundState(x, call.XLow[i], call.XUpp[i], tol)
		if call.XState[i] == 3 {
			free++
		}
		if v := violation(x, call.XLow[i], call.XUpp[i], tol); v > 0 {
			call.NInf++
			call.SInf += v
		}
	}
	active := 0
	for i, v := range call.F {
		if i == s.obj {
			call.FState[i] = 3
			continue
		}
		call.FState[i] = boundState(v, call.FLow[i], call.FUpp[i], tol)
		if call.FState[i] != 3 {
			active++
		}
		if d := violation(v, call.FLow[i], call.FUpp[i], tol); d > 0 {
			call.NInf++
			call.SInf += d
		}
	}
	call.NS = Integer(max(0, free-active))

	switch {
	case s.stopped:
		fail.Set(UserStop, "user requested termination")
	case res.Status == slsqp.OK && call.NInf > 0:
		fail.Set(Infeasible, "the problem appears to be infeasible, sum of infeasibilities %g", call.SInf)
	case res.Status == slsqp.OK:
	case res.Status == slsqp.SQPExceedMaxIter:
		fail.Set(TooManyIterations, "the major iteration limit %d was reached", state.majorIter)
	case res.Status == slsqp.ConsIncompatible:
		fail.Set(Infeasible, "the linearized constraints are incompatible")
	default:
		fail.Set(NumericalDifficulties, "the solver stopped with status %s", res.Status)
	}

	fields := []zap.Field{
		zap.String("prob", call.Prob),
		zap.Int("nf", nf),
		zap.Int("n", n),
		zap.Int("constraints", len(s.cons)),
		zap.Int("iterations", res.NumIter),
		zap.Int("calls", s.calls),
		zap.Stringer("status", res.Status),
		zap.Stringer("code", fail.Code),
		zap.Float64("objective", call.F[s.obj]),
		zap.Duration("elapsed", time.Since(start)),
	}
	if state.printLevel > 0 {
		r.logger.Info("sparse solve", fields...)
	} else {
		r.logger.Debug("sparse solve", fields...)
	}
}

// boundState is 0 at the lower bound, 1 at the upper bound and 3 in between.
func boundState(v, lo, up, tol float64) Integer {
	switch {
	case math.Abs(v-lo) <= tol:
		return 0
	case math.Abs(v-up) <= tol:
		return 1
	}
	return 3
}

func violation(v, lo, up, tol float64) float64 {
	switch {
	case v < lo-tol:
		return lo - v
	case v > up+tol:
		return v - up
	}
	return 0
}

func checkSparseCall(c *SparseCall, fail *Fail) bool {
	n, nf := int(c.N), int(c.NF)
	bad := func(format string, args ...any) bool {
		fail.Set(BadParam, format, args...)
		return false
	}
	switch {
	case c.UsrFun == nil:
		return bad("usrfun is nil")
	case c.Start != Cold:
		return bad("start = %d, only a cold start is supported", c.Start)
	case n < 1:
		return bad("n = %d, must be at least 1", n)
	case nf < 1:
		return bad("nf = %d, must be at least 1", nf)
	case c.ObjRow < 1 || int(c.ObjRow) > nf:
		return bad("objrow = %d, must satisfy 1 ≤ objrow ≤ nf", c.ObjRow)
	case c.NXName != 1 && int(c.NXName) != n:
		return bad("nxname = %d, must be 1 or n", c.NXName)
	case c.NFName != 1 && int(c.NFName) != nf:
		return bad("nfname = %d, must be 1 or nf", c.NFName)
	case len(c.XNames) < int(c.NXName) || len(c.FNames) < int(c.NFName):
		return bad("name tables are shorter than nxname and nfname")
	case c.LenA < 1 || c.NEA < 0 || c.NEA > c.LenA:
		return bad("lena = %d and nea = %d, must satisfy 0 ≤ nea ≤ lena, lena ≥ 1", c.LenA, c.NEA)
	case len(c.IAFun) < int(c.LenA) || len(c.JAVar) < int(c.LenA) || len(c.A) < int(c.LenA):
		return bad("A triples are shorter than lena")
	case c.LenG < 1 || c.NEG < 0 || c.NEG > c.LenG:
		return bad("leng = %d and neg = %d, must satisfy 0 ≤ neg ≤ leng, leng ≥ 1", c.LenG, c.NEG)
	case len(c.IGFun) < int(c.LenG) || len(c.JGVar) < int(c.LenG):
		return bad("G pattern is shorter than leng")
	case len(c.XLow) != n || len(c.XUpp) != n || len(c.X) != n || len(c.XState) != n || len(c.XMul) != n:
		return bad("variable arrays must have length n = %d", n)
	case len(c.FLow) != nf || len(c.FUpp) != nf || len(c.F) != nf || len(c.FState) != nf || len(c.FMul) != nf:
		return bad("output arrays must have length nf = %d", nf)
	}
	for k := 0; k < int(c.NEA); k++ {
		if c.IAFun[k] < 1 || int(c.IAFun[k]) > nf || c.JAVar[k] < 1 || int(c.JAVar[k]) > n {
			return bad("A triple %d at (%d,%d) is out of range", k+1, c.IAFun[k], c.JAVar[k])
		}
	}
	for k := 0; k < int(c.NEG); k++ {
		if c.IGFun[k] < 1 || int(c.IGFun[k]) > nf || c.JGVar[k] < 1 || int(c.JGVar[k]) > n {
			return bad("G pattern entry %d at (%d,%d) is out of range", k+1, c.IGFun[k], c.JGVar[k])
		}
	}
	for i := 0; i < n; i++ {
		if c.XLow[i] > c.XUpp[i] {
			return bad("xlow[%d] = %g exceeds xupp[%d] = %g", i+1, c.XLow[i], i+1, c.XUpp[i])
		}
	}
	for i := 0; i < nf; i++ {
		if c.FLow[i] > c.FUpp[i] {
			return bad("flow[%d] = %g exceeds fupp[%d] = %g", i+1, c.FLow[i], i+1, c.FUpp[i])
		}
	}
	return true
}
