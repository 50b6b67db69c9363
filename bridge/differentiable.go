package bridge

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

// DifferentiableSolver minimizes a differentiable function of one variable on the
// interval given by its argument bounds.
type DifferentiableSolver struct {
	session
	lib       solverlib.Library
	objective problem.Differentiable
}

// NewDifferentiableSolver returns a one variable solver for pb.
func NewDifferentiableSolver(pb *problem.Problem, lib solverlib.Library, opts ...Option) (*DifferentiableSolver, error) {
	if n := pb.InputSize(); n != 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInputSize, n)
	}
	s := &DifferentiableSolver{session: newSession(SolverDifferentiable, pb, opts), lib: lib}
	defineOneVarParameters(s.params)
	return s, nil
}

func defineOneVarParameters(p *Parameters) {
	p.Define("max-iterations", "number of iterations", 30)
	p.Define("nag.e1", "relative accuracy (0 means default)", 0.)
	p.Define("nag.e2", "absolute accuracy (0 means default)", 0.)
}

type oneVarArgs struct {
	e1, e2 float64
	maxCal solverlib.Integer
	a, b   float64
	x      float64
}

func oneVarArguments(pb *problem.Problem, p *Parameters) (args oneVarArgs, err error) {
	if args.e1, err = Value[float64](p, "nag.e1"); err != nil {
		return
	}
	if args.e2, err = Value[float64](p, "nag.e2"); err != nil {
		return
	}
	it, err := Value[int](p, "max-iterations")
	if err != nil {
		return
	}
	args.maxCal = solverlib.Integer(it)
	bnd := pb.ArgumentBounds()[0]
	args.a, args.b = bnd.Lower, bnd.Upper
	if x0 := pb.StartingPoint(); x0 != nil {
		args.x = x0[0]
	}
	return
}

// Solve runs the library once.
func (s *DifferentiableSolver) Solve() error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.complete()

	obj, ok := s.pb.Objective().(problem.Differentiable)
	if !ok {
		s.err = fmt.Errorf("cost function %q has no derivative: %w", s.pb.Objective().Name(), ErrUnsupportedFunctionKind)
		s.cfg.metrics.solved(s.name, outcomeInvalid, 0)
		return s.err
	}
	s.objective = obj

	args, err := oneVarArguments(s.pb, s.params)
	if err != nil {
		s.err = err
		s.cfg.metrics.solved(s.name, outcomeInvalid, 0)
		return err
	}

	var (
		fail solverlib.Fail
		f, g float64
	)
	fail.Init()
	h := solverlib.NewHandle(s)
	start := time.Now()
	func() {
		defer h.Delete()
		s.lib.OneVarDeriv(derivFun, args.e1, args.e2, &args.a, &args.b, args.maxCal,
			&args.x, &f, &g, &solverlib.Comm{P: h}, &fail)
	}()
	s.finish(fail, args.x, f, time.Since(start))
	return nil
}

// finish records the outcome of a one variable solve.
func (s *session) finish(fail solverlib.Fail, x, f float64, elapsed time.Duration) {
	log := s.cfg.logger.With(zap.String("solver", s.name))
	if fail.Code != solverlib.NoError {
		s.err = &problem.SolverError{Message: fail.Message}
		s.cfg.metrics.solved(s.name, outcomeSolverError, elapsed)
		log.Info("solve failed", zap.Stringer("code", fail.Code), zap.String("message", fail.Message))
		return
	}
	s.result = &problem.Result{X: []float64{x}, Value: f}
	s.cfg.metrics.solved(s.name, outcomeSuccess, elapsed)
	log.Info("solve succeeded", zap.Float64("x", x), zap.Float64("value", f),
		zap.Int("evaluations", s.live.Evaluations), zap.Duration("elapsed", elapsed))
}

// Close is a no-op: the one variable solvers own no library memory.
func (s *DifferentiableSolver) Close() error { return nil }
