package bridge

import (
	"fmt"

	"github.com/curioloop/nlpbridge/problem"
)

// IterationCallback is invoked with the problem and the live solver state.
type IterationCallback func(pb *problem.Problem, st *problem.SolverState)

type sessionState int

const (
	configured sessionState = iota
	solving
	completed
)

func (s sessionState) String() string {
	switch s {
	case configured:
		return "configured"
	case solving:
		return "solving"
	default:
		return "completed"
	}
}

// session is the state shared by every solver: a single use Configured → Solving →
// Completed machine holding the result of its only solve.
type session struct {
	name   string
	pb     *problem.Problem
	cfg    config
	params *Parameters
	hook   IterationCallback
	state  sessionState

	live   problem.SolverState
	result *problem.Result
	err    error
}

func newSession(name string, pb *problem.Problem, opts []Option) session {
	return session{
		name:   name,
		pb:     pb,
		cfg:    newConfig(opts),
		params: NewParameters(),
	}
}

// Problem returns the problem being solved.
func (s *session) Problem() *problem.Problem { return s.pb }

// Parameters returns the parameter store read by Solve.
func (s *session) Parameters() *Parameters { return s.params }

// SetIterationCallback registers cb; nil removes it.
func (s *session) SetIterationCallback(cb IterationCallback) { s.hook = cb }

// IterationCallback returns the registered callback.
func (s *session) IterationCallback() IterationCallback { return s.hook }

// Result returns the solution, or the error that ended the solve.
// A failure of the library is a *problem.SolverError.
func (s *session) Result() (*problem.Result, error) {
	switch {
	case s.state != completed:
		return nil, problem.ErrNoSolution
	case s.err != nil:
		return nil, s.err
	}
	return s.result, nil
}

// begin moves the session to solving.
func (s *session) begin() error {
	if s.state != configured {
		return ErrAlreadySolved
	}
	s.state = solving
	return nil
}

// complete ends the solve. A panic leaving the solve is recorded as the result error
// and raised again.
func (s *session) complete() {
	s.state = completed
	if r := recover(); r != nil {
		s.result = nil
		if err, ok := r.(error); ok {
			s.err = fmt.Errorf("%w: %w", ErrSolvePanicked, err)
		} else {
			s.err = fmt.Errorf("%w: %v", ErrSolvePanicked, r)
		}
		panic(r)
	}
}

// progress records a value producing evaluation and runs the hook.
func (s *session) progress(x []float64, cost float64) {
	s.live.X = append(s.live.X[:0], x...)
	s.live.Cost = cost
	s.live.Evaluations++
	if s.hook != nil {
		s.hook(s.pb, &s.live)
	}
}
