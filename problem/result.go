package problem

import (
	"errors"
	"fmt"
)

// ErrNoSolution is returned by solvers asked for a result before solving.
var ErrNoSolution = errors.New("no solution available")

// Result is a solution of a Problem.
type Result struct {
	X           []float64 // Solution point.
	Value       float64   // Objective value at X.
	Constraints []float64 // Constraint outputs at X in solver order. Linear rows hold A x without the offset b.
	Lambda      []float64 // Multipliers of the constraint outputs.
}

// SolverError reports a solver failure together with the last known state, if any.
type SolverError struct {
	Message   string
	LastState *Result
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver failed: %s", e.Message)
}

// SolverState is the live state exposed to iteration callbacks.
type SolverState struct {
	X           []float64
	Cost        float64
	Evaluations int
}
