package bridge

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

// Solver names accepted by New.
const (
	SolverSparse         = "nag-nlp-sparse"
	SolverDifferentiable = "nag-differentiable"
	SolverScalar         = "nag"
)

// NLPSparse solves constrained problems through the sparse entry points of a library.
// The objective and the nonlinear constraints must be problem.Differentiable.
type NLPSparse struct {
	session
	lib solverlib.Library

	view   *view
	layout *Layout
	names  *nameTable
}

// NewNLPSparse returns a sparse solver for pb.
func NewNLPSparse(pb *problem.Problem, lib solverlib.Library, opts ...Option) *NLPSparse {
	s := &NLPSparse{session: newSession(SolverSparse, pb, opts), lib: lib}
	s.params.Define("max-iterations", "number of iterations", 30)
	s.params.Define("nag.optimality-tolerance", "major optimality tolerance (0 means default)", 0.)
	s.params.Define("nag.feasibility-tolerance", "major feasibility tolerance (0 means default)", 0.)
	s.params.Define("check-gradient", "compare jacobians with finite differences", false)
	s.params.Define("check-gradient.method", "finite difference method of the jacobian check (forward or central)", "central")
	return s
}

// gradientCheck reads the jacobian check parameters into the config.
func (s *NLPSparse) gradientCheck() error {
	check, err := Value[bool](s.params, "check-gradient")
	if err != nil {
		return err
	}
	name, err := Value[string](s.params, "check-gradient.method")
	if err != nil {
		return err
	}
	method, err := checkMethod(name)
	if err != nil {
		return err
	}
	s.cfg.checkJac = s.cfg.checkJac || check
	s.cfg.checkMethod = method
	return nil
}

// Layout returns the layout of the last solve, nil before.
func (s *NLPSparse) Layout() *Layout { return s.layout }

// Solve runs the library once. Unsupported functions and inconsistent bounds are
// returned before the library is called; a library failure is reported by Result.
func (s *NLPSparse) Solve() error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.complete()

	log := s.cfg.logger.With(zap.String("solver", s.name))
	if err := s.prepare(); err != nil {
		s.err = err
		s.cfg.metrics.solved(s.name, outcomeInvalid, 0)
		log.Error("invalid problem", zap.Error(err))
		return err
	}

	if err := s.gradientCheck(); err != nil {
		s.err = err
		s.cfg.metrics.solved(s.name, outcomeInvalid, 0)
		return err
	}

	l := s.layout
	log.Debug("layout built",
		zap.Int("nf", l.NF), zap.Int("n", l.N),
		zap.Int("nea", l.NEA), zap.Int("neg", l.NEG),
		zap.Int("nonlinear", len(s.view.nonlinear)), zap.Int("linear", len(s.view.linear)))

	s.names = newNameTable(l.XNames, l.FNames)
	call := &solverlib.SparseCall{
		Start:  solverlib.Cold,
		NF:     solverlib.Integer(l.NF),
		N:      solverlib.Integer(l.N),
		NXName: solverlib.Integer(l.NXName),
		NFName: solverlib.Integer(l.NFName),
		ObjAdd: l.ObjAdd,
		ObjRow: solverlib.Integer(l.ObjRow),
		Prob:   "nlpbridge",
		UsrFun: usrfun,

		IAFun: l.IAFun, JAVar: l.JAVar, A: l.A,
		LenA: solverlib.Integer(l.LenA), NEA: solverlib.Integer(l.NEA),
		IGFun: l.IGFun, JGVar: l.JGVar,
		LenG: solverlib.Integer(l.LenG), NEG: solverlib.Integer(l.NEG),

		XLow: l.XLow, XUpp: l.XUpp, XNames: s.names.x,
		FLow: l.FLow, FUpp: l.FUpp, FNames: s.names.f,

		X:      slices.Clone(l.Point),
		XState: make([]solverlib.Integer, l.N),
		XMul:   make([]float64, l.N),
		F:      make([]float64, l.NF),
		FState: make([]solverlib.Integer, l.NF),
		FMul:   make([]float64, l.NF),
	}

	var (
		fail  solverlib.Fail
		state solverlib.State
	)
	fail.Init()
	s.lib.SparseInit(&state, &fail)
	for _, opt := range s.params.forwarded() {
		if fail.Code != solverlib.NoError {
			break
		}
		log.Debug("set option", zap.String("option", opt))
		s.lib.SparseOption(&state, opt, &fail)
	}

	start := time.Now()
	solved := false
	if fail.Code == solverlib.NoError {
		h := solverlib.NewHandle(s)
		func() {
			defer h.Delete()
			s.lib.SparseSolve(call, &state, &solverlib.Comm{P: h}, &fail)
		}()
		solved = true
	}
	elapsed := time.Since(start)

	res := &problem.Result{
		X:           slices.Clone(call.X),
		Value:       call.F[0],
		Constraints: slices.Clone(call.F[1:]),
		Lambda:      slices.Clone(call.FMul[1:]),
	}
	if fail.Code == solverlib.NoError {
		s.result = res
		s.cfg.metrics.solved(s.name, outcomeSuccess, elapsed)
		log.Info("solve succeeded", zap.Float64("value", res.Value), zap.Int("evaluations", s.live.Evaluations),
			zap.Duration("elapsed", elapsed))
		return nil
	}

	serr := &problem.SolverError{Message: fail.Message}
	if solved {
		serr.LastState = res
	}
	s.err = serr
	s.cfg.metrics.solved(s.name, outcomeSolverError, elapsed)
	log.Info("solve failed", zap.Stringer("code", fail.Code), zap.String("message", fail.Message),
		zap.Int("ninf", int(call.NInf)), zap.Float64("sinf", call.SInf))
	return nil
}

// prepare builds and validates the layout of the problem.
func (s *NLPSparse) prepare() error {
	v, err := newView(s.pb)
	if err != nil {
		return err
	}
	l, err := buildLayout(v)
	if err != nil {
		return err
	}
	l.validate()
	s.view, s.layout = v, l
	return nil
}

// Close releases the name tables. It is safe to call more than once.
func (s *NLPSparse) Close() error {
	s.names.free()
	s.names = nil
	return nil
}

func (s *NLPSparse) String() string {
	return fmt.Sprintf("%s solver (%s)", s.name, s.state)
}
