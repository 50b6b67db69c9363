package bridge

import (
	"fmt"

	"github.com/curioloop/nlpbridge/problem"
)

// slot is a constraint placed at output row offset (0-based, row 0 is the objective).
type slot struct {
	*problem.Constraint
	offset int
}

func (s slot) size() int { return s.Function.OutputSize() }

// view is the read-only solver view of a problem.
type view struct {
	pb        *problem.Problem
	objective problem.Differentiable
	nonlinear []slot
	linear    []slot
	nf        int
}

// newView classifies the constraints of pb and assigns their output offsets:
// the objective first, then nonlinear constraints, then linear ones.
func newView(pb *problem.Problem) (*view, error) {
	obj, ok := pb.Objective().(problem.Differentiable)
	if !ok {
		return nil, fmt.Errorf("cost function %q has no jacobian: %w", pb.Objective().Name(), ErrUnsupportedFunctionKind)
	}
	v := &view{pb: pb, objective: obj}

	cs := pb.Constraints()
	for i := range cs {
		c := &cs[i]
		switch c.Kind {
		case problem.KindNonlinear:
			v.nonlinear = append(v.nonlinear, slot{Constraint: c})
		case problem.KindLinear:
			v.linear = append(v.linear, slot{Constraint: c})
		default:
			return nil, fmt.Errorf("constraint %q #%d is neither linear nor differentiable: %w",
				c.Function.Name(), c.ID, ErrUnsupportedFunctionKind)
		}
	}
	v.nf = v.computeOutputCount()
	return v, nil
}

// computeOutputCount assigns offsets and returns nf = 1 + Σ constraint output sizes.
func (v *view) computeOutputCount() int {
	offset := v.objective.OutputSize()
	for i := range v.nonlinear {
		v.nonlinear[i].offset = offset
		offset += v.nonlinear[i].size()
	}
	for i := range v.linear {
		v.linear[i].offset = offset
		offset += v.linear[i].size()
	}
	return offset
}

func (v *view) n() int { return v.pb.InputSize() }

// offsets returns the output row of each constraint indexed by registration order.
func (v *view) offsets() []int {
	off := make([]int, len(v.nonlinear)+len(v.linear))
	for _, s := range v.nonlinear {
		off[s.ID] = s.offset
	}
	for _, s := range v.linear {
		off[s.ID] = s.offset
	}
	return off
}
