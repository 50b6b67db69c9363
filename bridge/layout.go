package bridge

import (
	"fmt"
	"math"

	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

// snapTol is the distance under which bounds are snapped to zero or to each other.
const snapTol = 1e-6

// Span locates the jacobian entries of one function inside the G pattern.
type Span struct {
	Name  string
	Row   int // output row of the first function output
	Start int // index of the first entry in IGFun/JGVar
	Count int
}

// Layout is the flat description of a problem handed to the sparse solver.
// Row and column indices of the coordinate arrays are 1-based.
type Layout struct {
	NF, N          int
	NXName, NFName int
	ObjAdd         float64
	ObjRow         int

	XLow, XUpp []float64
	FLow, FUpp []float64

	IAFun, JAVar []solverlib.Integer
	A            []float64
	LenA, NEA    int

	IGFun, JGVar []solverlib.Integer
	LenG, NEG    int
	// Spans of the objective then of each nonlinear constraint, in pattern order.
	Spans []Span

	XNames, FNames []string

	// Offsets holds the output row of each constraint by registration order.
	Offsets []int
	// Point is where the sparsity pattern was discovered.
	Point []float64
}

func buildLayout(v *view) (*Layout, error) {
	l := &Layout{
		NF:      v.nf,
		N:       v.n(),
		ObjAdd:  0,
		ObjRow:  1,
		Offsets: v.offsets(),
	}
	l.XLow, l.XUpp = buildVariableBounds(v.pb)

	var err error
	if l.FLow, l.FUpp, err = buildOutputBounds(v); err != nil {
		return nil, err
	}
	l.IAFun, l.JAVar, l.A, l.LenA, l.NEA = buildLinearTriples(v)
	l.Point = representativePoint(v.pb)
	l.IGFun, l.JGVar, l.LenG, l.NEG, l.Spans = buildNonlinearSparsityPattern(v, l.Point)
	l.XNames, l.FNames, l.NXName, l.NFName = buildNameTables(v)
	return l, nil
}

// buildVariableBounds copies the variable bounds.
func buildVariableBounds(pb *problem.Problem) (xlow, xupp []float64) {
	bnd := pb.ArgumentBounds()
	xlow, xupp = make([]float64, len(bnd)), make([]float64, len(bnd))
	for i, b := range bnd {
		xlow[i], xupp[i] = b.Lower, b.Upper
	}
	return
}

// buildOutputBounds returns the output bounds in layout order. Linear bounds are
// shifted by the affine offset, then every bound is snapped.
func buildOutputBounds(v *view) (flow, fupp []float64, err error) {
	flow, fupp = make([]float64, v.nf), make([]float64, v.nf)
	flow[0], fupp[0] = -problem.Infinity, problem.Infinity

	for _, s := range v.nonlinear {
		for i, b := range s.Bounds {
			flow[s.offset+i], fupp[s.offset+i] = b.Lower, b.Upper
		}
	}
	for _, s := range v.linear {
		off := s.Affine().Offset()
		for i, b := range s.Bounds {
			flow[s.offset+i], fupp[s.offset+i] = b.Lower-off[i], b.Upper-off[i]
		}
	}

	for i := range flow {
		if math.Abs(flow[i]) < snapTol {
			flow[i] = 0
		}
		if math.Abs(fupp[i]) < snapTol {
			fupp[i] = 0
		}
		if math.Abs(flow[i]-fupp[i]) < snapTol {
			flow[i] = fupp[i]
		}
		if flow[i] > fupp[i] {
			return nil, nil, fmt.Errorf("output %d bounds [%g, %g]: %w", i, flow[i], fupp[i], ErrInconsistentBounds)
		}
	}
	return flow, fupp, nil
}

// buildLinearTriples collects the non-zero coefficients of the linear constraints in
// row-major order. Without any, a single zero placeholder is returned with nea = 0.
func buildLinearTriples(v *view) (iafun, javar []solverlib.Integer, a []float64, lena, nea int) {
	for _, s := range v.linear {
		c := s.Affine().Coefficients()
		r, n := c.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < n; j++ {
				if x := c.At(i, j); x != 0 {
					iafun = append(iafun, solverlib.Integer(s.offset+i+1))
					javar = append(javar, solverlib.Integer(j+1))
					a = append(a, x)
				}
			}
		}
	}
	if len(a) == 0 {
		return []solverlib.Integer{1}, []solverlib.Integer{1}, []float64{0}, 1, 0
	}
	return iafun, javar, a, len(a), len(a)
}

// representativePoint is the starting point if any. Otherwise each variable takes the
// middle of its bounds, its only finite bound, or 0.
func representativePoint(pb *problem.Problem) []float64 {
	if x0 := pb.StartingPoint(); x0 != nil {
		return append([]float64(nil), x0...)
	}
	bnd := pb.ArgumentBounds()
	x := make([]float64, len(bnd))
	for i, b := range bnd {
		lo, up := !math.IsInf(b.Lower, 0), !math.IsInf(b.Upper, 0)
		switch {
		case lo && up:
			x[i] = (b.Lower + b.Upper) / 2
		case lo:
			x[i] = b.Lower
		case up:
			x[i] = b.Upper
		}
	}
	return x
}

// buildNonlinearSparsityPattern evaluates the objective and nonlinear jacobians at x and
// records the positions of their structural entries. Without any, a single placeholder
// is returned with neg = 0.
func buildNonlinearSparsityPattern(v *view, x []float64) (igfun, jgvar []solverlib.Integer, leng, neg int, spans []Span) {
	add := func(name string, row int, f problem.Differentiable) {
		jac := f.Jacobian(x)
		sp := Span{Name: name, Row: row, Start: len(igfun)}
		for _, e := range jac.Entries() {
			igfun = append(igfun, solverlib.Integer(row+e.Row+1))
			jgvar = append(jgvar, solverlib.Integer(e.Col+1))
		}
		sp.Count = len(igfun) - sp.Start
		spans = append(spans, sp)
	}

	add(v.objective.Name(), 0, v.objective)
	for _, s := range v.nonlinear {
		add(s.Function.Name(), s.offset, s.Differentiable())
	}

	if len(igfun) == 0 {
		return []solverlib.Integer{1}, []solverlib.Integer{1}, 1, 0, spans
	}
	return igfun, jgvar, len(igfun), len(igfun), spans
}

// validate panics with an InvariantError when the arrays disagree with each other.
func (l *Layout) validate() {
	invariant(l.NF > 0 && l.N > 0, "nf = %d, n = %d", l.NF, l.N)
	invariant(l.NXName == 1 || l.NXName == l.N, "nxname = %d, n = %d", l.NXName, l.N)
	invariant(l.NFName == 1 || l.NFName == l.NF, "nfname = %d, nf = %d", l.NFName, l.NF)
	invariant(l.ObjAdd == 0, "objadd = %g", l.ObjAdd)
	invariant(1 <= l.ObjRow && l.ObjRow <= l.NF, "objrow = %d", l.ObjRow)

	invariant(l.LenA >= 1 && 0 <= l.NEA && l.NEA <= l.LenA, "lena = %d, nea = %d", l.LenA, l.NEA)
	invariant(len(l.IAFun) == l.LenA && len(l.JAVar) == l.LenA && len(l.A) == l.LenA,
		"A triples %d/%d/%d, lena = %d", len(l.IAFun), len(l.JAVar), len(l.A), l.LenA)
	invariant(l.LenG >= 1 && 0 <= l.NEG && l.NEG <= l.LenG, "leng = %d, neg = %d", l.LenG, l.NEG)
	invariant(len(l.IGFun) == l.LenG && len(l.JGVar) == l.LenG,
		"G pattern %d/%d, leng = %d", len(l.IGFun), len(l.JGVar), l.LenG)

	invariant(len(l.XLow) == l.N && len(l.XUpp) == l.N, "variable bounds %d/%d, n = %d", len(l.XLow), len(l.XUpp), l.N)
	invariant(len(l.FLow) == l.NF && len(l.FUpp) == l.NF, "output bounds %d/%d, nf = %d", len(l.FLow), len(l.FUpp), l.NF)
	invariant(len(l.XNames) == l.N && len(l.FNames) == l.NF, "name tables %d/%d", len(l.XNames), len(l.FNames))
	invariant(len(l.Point) == l.N, "representative point size %d", len(l.Point))

	total := 0
	for _, s := range l.Spans {
		invariant(s.Start == total, "span %q starts at %d, want %d", s.Name, s.Start, total)
		total += s.Count
	}
	invariant(total == l.NEG, "spans cover %d entries, neg = %d", total, l.NEG)
	for _, off := range l.Offsets {
		invariant(0 < off && off < l.NF, "constraint offset %d outside (0, %d)", off, l.NF)
	}
}
