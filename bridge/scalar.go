package bridge

import (
	"fmt"
	"time"

	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

// ScalarSolver minimizes a function of one variable on the interval given by its
// argument bounds using function values only.
type ScalarSolver struct {
	session
	lib solverlib.Library
}

// NewScalarSolver returns a one variable solver for pb.
func NewScalarSolver(pb *problem.Problem, lib solverlib.Library, opts ...Option) (*ScalarSolver, error) {
	if n := pb.InputSize(); n != 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInputSize, n)
	}
	s := &ScalarSolver{session: newSession(SolverScalar, pb, opts), lib: lib}
	defineOneVarParameters(s.params)
	return s, nil
}

// Solve runs the library once.
func (s *ScalarSolver) Solve() error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.complete()

	args, err := oneVarArguments(s.pb, s.params)
	if err != nil {
		s.err = err
		s.cfg.metrics.solved(s.name, outcomeInvalid, 0)
		return err
	}

	var (
		fail solverlib.Fail
		f    float64
	)
	fail.Init()
	h := solverlib.NewHandle(s)
	start := time.Now()
	func() {
		defer h.Delete()
		s.lib.OneVar(scalarFun, args.e1, args.e2, &args.a, &args.b, args.maxCal,
			&args.x, &f, &solverlib.Comm{P: h}, &fail)
	}()
	s.finish(fail, args.x, f, time.Since(start))
	return nil
}

// Close is a no-op: the one variable solvers own no library memory.
func (s *ScalarSolver) Close() error { return nil }
