package bridge

import (
	"fmt"

	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

// Solver is a single use solver session.
type Solver interface {
	// Solve runs the library once; a second call returns ErrAlreadySolved.
	Solve() error
	// Result returns the solution or the error that ended the solve.
	Result() (*problem.Result, error)
	Parameters() *Parameters
	SetIterationCallback(cb IterationCallback)
	IterationCallback() IterationCallback
	// Close releases the memory shared with the library.
	Close() error
}

var (
	_ Solver = (*NLPSparse)(nil)
	_ Solver = (*DifferentiableSolver)(nil)
	_ Solver = (*ScalarSolver)(nil)
)

// Names lists the solver names accepted by New.
func Names() []string {
	return []string{SolverSparse, SolverDifferentiable, SolverScalar}
}

// New creates the solver registered under name.
func New(name string, pb *problem.Problem, lib solverlib.Library, opts ...Option) (Solver, error) {
	switch name {
	case SolverSparse:
		return NewNLPSparse(pb, lib, opts...), nil
	case SolverDifferentiable:
		s, err := NewDifferentiableSolver(pb, lib, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case SolverScalar:
		s, err := NewScalarSolver(pb, lib, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownSolver, name)
}
