package bridge

import (
	"fmt"

	"github.com/curioloop/nlpbridge/solverlib"
)

// buildNameTables names every variable and output. Both tables are complete; the
// declared name counts collapse to 1 when nf or n is 1.
func buildNameTables(v *view) (xnames, fnames []string, nxname, nfname int) {
	n := v.n()
	xnames = make([]string, n)
	for i := range xnames {
		xnames[i] = fmt.Sprintf("variable %d", i)
	}

	fnames = make([]string, 0, v.nf)
	fnames = append(fnames, fmt.Sprintf("cost, %s, output 0", v.objective.Name()))
	for _, s := range v.nonlinear {
		for i := 0; i < s.size(); i++ {
			fnames = append(fnames, fmt.Sprintf("nonlinear, %s #%d, output %d", s.Function.Name(), s.ID, i))
		}
	}
	for _, s := range v.linear {
		for i := 0; i < s.size(); i++ {
			fnames = append(fnames, fmt.Sprintf("linear, %s #%d, output %d", s.Function.Name(), s.ID, i))
		}
	}

	if v.nf == 1 || n == 1 {
		return xnames, fnames, 1, 1
	}
	return xnames, fnames, n, v.nf
}

// nameTable owns the C strings handed to the library for one session.
type nameTable struct {
	x, f []*solverlib.CString
}

func newNameTable(xnames, fnames []string) *nameTable {
	t := &nameTable{
		x: make([]*solverlib.CString, len(xnames)),
		f: make([]*solverlib.CString, len(fnames)),
	}
	for i, s := range xnames {
		t.x[i] = solverlib.Strdup(s)
	}
	for i, s := range fnames {
		t.f[i] = solverlib.Strdup(s)
	}
	return t
}

// free releases every string; it is a no-op on a nil table.
func (t *nameTable) free() {
	if t == nil {
		return
	}
	for _, s := range t.x {
		solverlib.Free(s)
	}
	for _, s := range t.f {
		solverlib.Free(s)
	}
	t.x, t.f = nil, nil
}
