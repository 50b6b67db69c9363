package bridge

import (
	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

// lookup resolves the session behind comm.
func lookup[T any](comm *solverlib.Comm) T {
	invariant(comm != nil, "callback without communication structure")
	v, ok := comm.P.Lookup()
	invariant(ok, "callback handle %d is not registered", comm.P)
	s, ok := v.(T)
	invariant(ok, "callback handle resolves to %T", v)
	return s
}

// usrfun is the sparse solver callback. Only nonlinear output rows are written into f:
// the library computes the linear rows from the A triples.
func usrfun(status *solverlib.Integer, n solverlib.Integer, x []float64, needf solverlib.Integer, nf solverlib.Integer,
	f []float64, needg solverlib.Integer, leng solverlib.Integer, g []float64, comm *solverlib.Comm) {

	s := lookup[*NLPSparse](comm)
	if *status >= 2 {
		return
	}
	s.evaluate(x, int(n), needf > 0, f, int(nf), needg > 0, g, int(leng))
}

func (s *NLPSparse) evaluate(x []float64, n int, needf bool, f []float64, nf int, needg bool, g []float64, leng int) {
	l, v := s.layout, s.view
	invariant(n == l.N && len(x) == l.N, "callback with n = %d, layout has %d", n, l.N)
	s.cfg.metrics.callback(s.name)

	if needf {
		invariant(nf == l.NF && len(f) >= nf, "callback with nf = %d, layout has %d", nf, l.NF)
		v.objective.Eval(x, f[:1])
		offset := 1
		for _, c := range v.nonlinear {
			invariant(c.offset == offset, "constraint #%d at %d, expected %d", c.ID, c.offset, offset)
			c.Function.Eval(x, f[offset:offset+c.size()])
			offset += c.size()
		}
		for _, c := range v.linear {
			invariant(c.offset == offset, "constraint #%d at %d, expected %d", c.ID, c.offset, offset)
			offset += c.size()
		}
		invariant(offset == nf, "outputs end at %d, nf = %d", offset, nf)
	}

	if needg {
		invariant(leng == l.LenG && len(g) >= l.NEG, "callback with leng = %d, layout has %d", leng, l.LenG)
		k := 0
		fill := func(sp Span, fn problem.Differentiable) {
			jac := fn.Jacobian(x)
			es := jac.Entries()
			invariant(len(es) == sp.Count, "jacobian of %q has %d entries, pattern has %d", sp.Name, len(es), sp.Count)
			for _, e := range es {
				invariant(l.IGFun[k] == solverlib.Integer(sp.Row+e.Row+1) && l.JGVar[k] == solverlib.Integer(e.Col+1),
					"jacobian entry (%d,%d) of %q does not match pattern entry %d", e.Row, e.Col, sp.Name, k)
				g[k] = e.Value
				k++
			}
			if s.cfg.checkJac {
				s.checkJacobian(sp.Name, fn, x, jac)
			}
		}
		invariant(len(l.Spans) == len(v.nonlinear)+1, "%d spans for %d functions", len(l.Spans), len(v.nonlinear)+1)
		fill(l.Spans[0], v.objective)
		for i, c := range v.nonlinear {
			fill(l.Spans[i+1], c.Differentiable())
		}
		invariant(k == l.NEG, "wrote %d jacobian values, neg = %d", k, l.NEG)
	}

	if needf {
		s.progress(x, f[0])
	}
}

// derivFun is the callback of the one variable solver with derivative.
func derivFun(xc float64, fc, gc *float64, comm *solverlib.Comm) {
	s := lookup[*DifferentiableSolver](comm)
	x := []float64{xc}
	out := []float64{0}
	s.objective.Eval(x, out)
	*fc = out[0]
	*gc = s.objective.Jacobian(x).At(0, 0)
	s.cfg.metrics.callback(s.name)
	s.progress(x, *fc)
}

// scalarFun is the callback of the one variable solver without derivative.
func scalarFun(xc float64, fc *float64, comm *solverlib.Comm) {
	s := lookup[*ScalarSolver](comm)
	x := []float64{xc}
	out := []float64{0}
	s.pb.Objective().Eval(x, out)
	*fc = out[0]
	s.cfg.metrics.callback(s.name)
	s.progress(x, *fc)
}
