// Package bridge drives a solverlib.Library from a problem.Problem.
//
// A sparse solve lays the problem out as the flat arrays the library expects:
// output row 0 is the objective, followed by the nonlinear constraint outputs and
// then the linear ones, each group in registration order. Linear outputs are
// described once by coordinate triples, nonlinear outputs are evaluated by a
// callback that finds its session through the opaque handle in solverlib.Comm.
package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFunctionKind is returned when the objective or a constraint lacks
	// the capability a solver needs.
	ErrUnsupportedFunctionKind = errors.New("unsupported function kind")
	// ErrInconsistentBounds is returned when an output lower bound exceeds its upper bound.
	ErrInconsistentBounds = errors.New("inconsistent bounds")
	// ErrInternalInvariant is wrapped by the InvariantError panics of the bridge.
	ErrInternalInvariant = errors.New("internal invariant violated")
	// ErrAlreadySolved is returned by a second Solve on the same session.
	ErrAlreadySolved = errors.New("solver already solved")
	// ErrSolvePanicked is the result error of a solve left by a panic, from the
	// iteration callback or a broken invariant. The panic itself is propagated.
	ErrSolvePanicked = errors.New("solve panicked")
	// ErrUnknownSolver is returned by New for an unregistered solver name.
	ErrUnknownSolver = errors.New("unknown solver")
	// ErrInputSize is returned by the one variable solvers for other input sizes.
	ErrInputSize = errors.New("cost function input size must be 1")
)

// InvariantError is the panic value of a broken layout or callback invariant.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return fmt.Sprintf("%v: %s", ErrInternalInvariant, e.Msg) }

func (e *InvariantError) Unwrap() error { return ErrInternalInvariant }

func invariant(ok bool, format string, args ...any) {
	if !ok {
		panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
	}
}
