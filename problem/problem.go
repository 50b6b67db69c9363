package problem

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Infinity is the bound value meaning "no bound".
var Infinity = math.Inf(1)

// Interval is a closed interval [Lower, Upper]; infinite ends are unbounded.
type Interval struct {
	Lower, Upper float64
}

// Unbounded returns (-∞, +∞).
func Unbounded() Interval { return Interval{-Infinity, Infinity} }

// Kind tells how a constraint is handed to a solver.
type Kind int

const (
	// KindLinear constraints implement Affine.
	KindLinear Kind = iota
	// KindNonlinear constraints implement Differentiable.
	KindNonlinear
	// KindUnsupported constraints provide neither capability.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindNonlinear:
		return "nonlinear"
	default:
		return "unsupported"
	}
}

// Constraint is a bounded function registered into a Problem.
// Its Kind is decided once at registration.
type Constraint struct {
	ID       int
	Kind     Kind
	Function Function
	Bounds   []Interval
}

// Affine returns the affine view of a KindLinear constraint.
func (c *Constraint) Affine() Affine {
	a, _ := c.Function.(Affine)
	return a
}

// Differentiable returns the differentiable view of a KindNonlinear constraint.
func (c *Constraint) Differentiable() Differentiable {
	d, _ := c.Function.(Differentiable)
	return d
}

func classify(f Function) Kind {
	if _, ok := f.(Affine); ok {
		return KindLinear
	}
	if _, ok := f.(Differentiable); ok {
		return KindNonlinear
	}
	return KindUnsupported
}

// Problem minimizes a real valued objective subject to bounded constraints.
type Problem struct {
	objective   Function
	constraints []Constraint
	argBounds   []Interval
	start       []float64
}

// New creates a problem for the given objective. Variables are unbounded.
func New(objective Function) (*Problem, error) {
	switch {
	case objective == nil:
		return nil, errors.New("objective is required")
	case objective.OutputSize() != 1:
		return nil, fmt.Errorf("objective output size must be 1, got %d", objective.OutputSize())
	case objective.InputSize() <= 0:
		return nil, errors.New("objective input size must greater than 0")
	}
	bnd := make([]Interval, objective.InputSize())
	for i := range bnd {
		bnd[i] = Unbounded()
	}
	return &Problem{objective: objective, argBounds: bnd}, nil
}

// Objective returns the function being minimized.
func (p *Problem) Objective() Function { return p.objective }

// InputSize returns the number of variables.
func (p *Problem) InputSize() int { return p.objective.InputSize() }

// Constraints returns the registered constraints in registration order.
func (p *Problem) Constraints() []Constraint { return p.constraints }

// ArgumentBounds returns the variable bounds.
func (p *Problem) ArgumentBounds() []Interval { return p.argBounds }

// StartingPoint returns the starting point, nil when none was set.
func (p *Problem) StartingPoint() []float64 { return p.start }

// AddConstraint registers f with one bound interval per output.
func (p *Problem) AddConstraint(f Function, bounds ...Interval) error {
	switch {
	case f == nil:
		return errors.New("constraint is required")
	case f.InputSize() != p.InputSize():
		return fmt.Errorf("constraint %q input size %d does not match %d", f.Name(), f.InputSize(), p.InputSize())
	case len(bounds) != f.OutputSize():
		return fmt.Errorf("constraint %q needs %d bounds, got %d", f.Name(), f.OutputSize(), len(bounds))
	}
	for i, b := range bounds {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
			return fmt.Errorf("constraint %q bound %d is NaN", f.Name(), i)
		}
	}
	p.constraints = append(p.constraints, Constraint{
		ID:       len(p.constraints),
		Kind:     classify(f),
		Function: f,
		Bounds:   slices.Clone(bounds),
	})
	return nil
}

// SetArgumentBounds replaces the variable bounds.
func (p *Problem) SetArgumentBounds(bounds []Interval) error {
	if len(bounds) != p.InputSize() {
		return fmt.Errorf("need %d argument bounds, got %d", p.InputSize(), len(bounds))
	}
	for i, b := range bounds {
		if b.Lower > b.Upper || math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
			return fmt.Errorf("argument bound %d is invalid", i)
		}
	}
	p.argBounds = slices.Clone(bounds)
	return nil
}

// SetStartingPoint sets the initial guess; nil clears it.
func (p *Problem) SetStartingPoint(x []float64) error {
	if x != nil && len(x) != p.InputSize() {
		return fmt.Errorf("starting point size %d does not match %d", len(x), p.InputSize())
	}
	p.start = slices.Clone(x)
	return nil
}
